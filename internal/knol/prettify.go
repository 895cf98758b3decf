package knol

import (
	"fmt"
	"strconv"

	"github.com/conorfennell/kindlenotes/internal/domain"
	"github.com/conorfennell/kindlenotes/internal/parser"
)

// Status describes what Prettify did to a document.
type Status string

const (
	StatusNoChange Status = "no-change"
	StatusModified Status = "modified"
	StatusInvalid  Status = "invalid-input"
)

// PrettifyResult is the rewritten document. For invalid input Document is the
// original text and Err says why it was rejected.
type PrettifyResult struct {
	Document string
	Status   Status
	Err      error
}

// Prettify assigns identities to hand-written cards and a book id when one is
// missing, then re-encodes the document in canonical form.
func Prettify(document string) PrettifyResult {
	book, err := parser.DecodeString(document)
	if err != nil {
		return PrettifyResult{Document: document, Status: StatusInvalid, Err: err}
	}
	book, err = AssignIdentities(book)
	if err != nil {
		return PrettifyResult{Document: document, Status: StatusInvalid, Err: err}
	}

	out := parser.Encode(book)
	status := StatusModified
	if out == document {
		status = StatusNoChange
	}
	return PrettifyResult{Document: out, Status: status}
}

// AssignIdentities returns a copy of book where every user card with content
// has a unique hash and the book has an id.
func AssignIdentities(book domain.Book) (domain.Book, error) {
	out := book.Clone()
	if out.ID == "" {
		id, err := ContentHash(out.Name+strconv.FormatInt(now().UnixMilli(), 10), nil)
		if err != nil {
			return domain.Book{}, err
		}
		out.ID = id
	}

	existing := out.Hashes()
	seen := make(map[string]struct{}, len(out.Flashcards))
	for i := range out.Flashcards {
		card := &out.Flashcards[i]
		_, duplicate := seen[card.Hash]
		needsHash := card.Hash == "" || (duplicate && card.IsUser())
		if card.IsUser() && needsHash && card.Content != "" {
			hash, err := ContentHash(card.Content, existing)
			if err != nil {
				return domain.Book{}, fmt.Errorf("card %d: %w", i, err)
			}
			card.Hash = hash
			existing[hash] = struct{}{}
		}
		if card.Hash != "" {
			seen[card.Hash] = struct{}{}
		}
	}
	return out, nil
}
