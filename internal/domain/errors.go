package domain

import "errors"

// Sentinel errors shared by the codec, the sync pipeline and study sessions.
// Callers wrap them with context; check with errors.Is.
var (
	// ErrInvalidDocument is returned when a book document has no usable
	// front-matter or a malformed card block.
	ErrInvalidDocument = errors.New("not a valid book document")

	// ErrHashExhausted is returned when every salted attempt at a unique
	// content hash collided.
	ErrHashExhausted = errors.New("no unique content hash available")

	ErrBookNotFound         = errors.New("book not found")
	ErrFlashcardNotFound    = errors.New("flashcard not found")
	ErrNoEligibleBook       = errors.New("no book has flashcards to study")
	ErrNoEligibleFlashcards = errors.New("book has no flashcards to study")

	ErrSessionNotFound  = errors.New("study session not found")
	ErrInvalidState     = errors.New("study session is not on going")
	ErrSessionExhausted = errors.New("study session has shown all flashcards")
	ErrUnknownFlashcard = errors.New("flashcard is not part of the study session")
	ErrInvalidGrade     = errors.New("grade must be between 0 and 4")
)
