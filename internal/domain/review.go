package domain

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	MinGrade = 0
	MaxGrade = 4

	DefaultEasinessFactor = 2.5
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FlashcardSm2 is the spaced-repetition memory record of one flashcard.
// There is at most one per (BookID, Hash).
type FlashcardSm2 struct {
	BookID           string    `json:"bookId" validate:"required"`
	Hash             string    `json:"hash" validate:"required"`
	EasinessFactor   float64   `json:"easinessFactor" validate:"gte=1.3"`
	RepetitionNumber int       `json:"repetitionNumber" validate:"gte=0"`
	Interval         int       `json:"interval" validate:"gte=0"` // days
	LastReview       time.Time `json:"lastReview"`
	LastGrade        int       `json:"lastGrade" validate:"gte=0,lte=4"`
}

// NewFlashcardSm2 returns the record used before a card's first grade.
func NewFlashcardSm2(bookID, hash string) FlashcardSm2 {
	return FlashcardSm2{
		BookID:         bookID,
		Hash:           hash,
		EasinessFactor: DefaultEasinessFactor,
	}
}

// Validate checks the record's bounds.
func (r FlashcardSm2) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid sm2 record %s/%s: %w", r.BookID, r.Hash, err)
	}
	return nil
}

// ValidGrade reports whether g is a grade the SM-2 model accepts.
func ValidGrade(g int) bool {
	return g >= MinGrade && g <= MaxGrade
}

// Sm2Key identifies a memory record.
type Sm2Key struct {
	BookID string
	Hash   string
}

// Key returns the record's identity.
func (r FlashcardSm2) Key() Sm2Key {
	return Sm2Key{BookID: r.BookID, Hash: r.Hash}
}
