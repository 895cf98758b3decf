// Package importer turns raw highlight exports into kindle-sourced books.
//
// Fetching highlights from a reading service is somebody else's job: the
// sync pipeline only needs a Source that yields raw notes.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/kindlenotes/internal/domain"
	"github.com/conorfennell/kindlenotes/internal/knol"
)

// RawNote is a highlight as scraped from the notebook page.
type RawNote struct {
	RawID           string `json:"rawId"`
	Content         string `json:"content"`
	HighlightHeader string `json:"highlightHeader"`
}

// RawBook is a book with its raw highlights.
type RawBook struct {
	ID     string    `json:"id" validate:"required"`
	Name   string    `json:"name" validate:"required"`
	Author string    `json:"author"`
	Photo  string    `json:"photo"`
	Notes  []RawNote `json:"notes"`
}

// Source supplies the current state of the external highlight collection.
type Source interface {
	FetchBooks(ctx context.Context) ([]RawBook, error)
}

var validate = validator.New()

// JSONFile reads an export file holding a JSON array of RawBook.
type JSONFile struct {
	Path string
}

func (f JSONFile) FetchBooks(ctx context.Context) ([]RawBook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export %s: %w", f.Path, err)
	}
	var books []RawBook
	if err := json.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("failed to decode export %s: %w", f.Path, err)
	}
	for i, b := range books {
		if err := validate.Struct(b); err != nil {
			return nil, fmt.Errorf("export %s: book %d: %w", f.Path, i, err)
		}
	}
	return books, nil
}

var (
	pagePattern     = regexp.MustCompile(`Page:\s*([\d,]+)`)
	locationPattern = regexp.MustCompile(`Location:\s*([\d,]+)`)
)

// SourceID extracts the stable per-highlight id from a raw element id such as
// "highlight-QID:123". It returns "" when the id has an unexpected shape.
func SourceID(rawID string) string {
	parts := strings.Split(rawID, "-")
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}

// ToFlashcard converts one raw note, hashing it against the hashes already
// used in the book.
func ToFlashcard(note RawNote, existing map[string]struct{}) (domain.Flashcard, error) {
	content := clean(note.Content)
	hash, err := knol.ImportHash(SourceID(note.RawID), content, existing)
	if err != nil {
		return domain.Flashcard{}, err
	}
	return domain.Flashcard{
		Hash:     hash,
		Content:  content,
		Page:     headerNumber(pagePattern, note.HighlightHeader),
		Location: headerNumber(locationPattern, note.HighlightHeader),
		Src:      domain.SourceKindle,
	}, nil
}

// ToBook converts a raw book. Notes without text (image clippings) are skipped.
func ToBook(raw RawBook) (domain.Book, error) {
	book := domain.Book{
		ID:         raw.ID,
		Name:       clean(raw.Name),
		Author:     clean(strings.TrimPrefix(raw.Author, "By: ")),
		Photo:      raw.Photo,
		Flashcards: make([]domain.Flashcard, 0, len(raw.Notes)),
	}
	existing := make(map[string]struct{}, len(raw.Notes))
	for i, note := range raw.Notes {
		if domain.IsBlank(note.Content) {
			continue
		}
		card, err := ToFlashcard(note, existing)
		if err != nil {
			return domain.Book{}, fmt.Errorf("book %s: note %d: %w", raw.ID, i, err)
		}
		existing[card.Hash] = struct{}{}
		book.Flashcards = append(book.Flashcards, card)
	}
	return book, nil
}

// clean trims s and replaces invalid UTF-8, which would not survive the
// document's quoted YAML scalars.
func clean(s string) string {
	return strings.TrimSpace(strings.ToValidUTF8(s, "\uFFFD"))
}

func headerNumber(pattern *regexp.Regexp, header string) *int {
	m := pattern.FindStringSubmatch(header)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return nil
	}
	return &n
}
