package domain

import "strings"

// Source tells where a flashcard came from.
type Source string

const (
	SourceKindle Source = "kindle"
	SourceUser   Source = "user"
)

// Flashcard represents a single highlight (or hand-written note) with an
// optional backside. Hash is the card's identity within its book and never
// changes across re-imports.
type Flashcard struct {
	Hash     string `json:"hash"`
	Content  string `json:"content"`
	Backside string `json:"backside,omitempty"`
	Excluded bool   `json:"excluded,omitempty"`
	Page     *int   `json:"page,omitempty"`
	Location *int   `json:"location,omitempty"`
	Src      Source `json:"src"`
}

// IsUser reports whether the card was written by the user rather than imported.
func (f Flashcard) IsUser() bool {
	return f.Src != SourceKindle
}

// Book is a named, ordered collection of flashcards persisted as one document.
type Book struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Author     string      `json:"author,omitempty"`
	Photo      string      `json:"photo,omitempty"`
	Flashcards []Flashcard `json:"flashcards"`

	// FlashcardsPerStudySession overrides the global session size when > 0.
	FlashcardsPerStudySession int `json:"flashcardsPerStudySession,omitempty"`
}

// Flashcard looks up a card by hash.
func (b *Book) Flashcard(hash string) (Flashcard, bool) {
	for _, fc := range b.Flashcards {
		if fc.Hash == hash {
			return fc, true
		}
	}
	return Flashcard{}, false
}

// Hashes returns the set of non-empty hashes in the book.
func (b *Book) Hashes() map[string]struct{} {
	hashes := make(map[string]struct{}, len(b.Flashcards))
	for _, fc := range b.Flashcards {
		if fc.Hash != "" {
			hashes[fc.Hash] = struct{}{}
		}
	}
	return hashes
}

// Clone returns a copy that shares no slices with b.
func (b Book) Clone() Book {
	out := b
	out.Flashcards = make([]Flashcard, len(b.Flashcards))
	for i, fc := range b.Flashcards {
		out.Flashcards[i] = fc.clone()
	}
	return out
}

func (f Flashcard) clone() Flashcard {
	out := f
	if f.Page != nil {
		v := *f.Page
		out.Page = &v
	}
	if f.Location != nil {
		v := *f.Location
		out.Location = &v
	}
	return out
}

// IsBlank reports whether s holds nothing but whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
