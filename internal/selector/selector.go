// Package selector decides which book to study and which of its cards to show.
package selector

import (
	"math/rand/v2"
	"slices"
	"time"

	"github.com/conorfennell/kindlenotes/internal/domain"
	"github.com/conorfennell/kindlenotes/internal/sm2"
)

// Records indexes memory records by (book, hash).
type Records = map[domain.Sm2Key]domain.FlashcardSm2

// IsDue reports whether a card with the given record should be reviewed at
// now. A card without a record has never been studied and is always due.
func IsDue(rec *domain.FlashcardSm2, now time.Time) bool {
	if rec == nil {
		return true
	}
	return now.After(sm2.DueAt(rec.LastReview, rec.Interval))
}

func lookup(records Records, bookID, hash string) *domain.FlashcardSm2 {
	if rec, ok := records[domain.Sm2Key{BookID: bookID, Hash: hash}]; ok {
		return &rec
	}
	return nil
}

func count(book *domain.Book, records Records, now time.Time) (due, eligible int) {
	for _, fc := range book.Flashcards {
		if fc.Excluded {
			continue
		}
		eligible++
		if IsDue(lookup(records, book.ID, fc.Hash), now) {
			due++
		}
	}
	return due, eligible
}

// Eligible returns the book's due cards in book order, or every
// non-excluded card when none is due.
func Eligible(book *domain.Book, records Records, now time.Time) []domain.Flashcard {
	var due, all []domain.Flashcard
	for _, fc := range book.Flashcards {
		if fc.Excluded {
			continue
		}
		all = append(all, fc)
		if IsDue(lookup(records, book.ID, fc.Hash), now) {
			due = append(due, fc)
		}
	}
	if len(due) > 0 {
		return due
	}
	return all
}

// PickBook draws a book with probability proportional to its due count, or
// to its non-excluded count when nothing is due anywhere. It reports false
// when no book has an eligible card.
func PickBook(books []domain.Book, records Records, now time.Time, rng *rand.Rand) (*domain.Book, bool) {
	weights := make([]int, len(books))
	eligible := make([]int, len(books))
	total := 0
	for i := range books {
		weights[i], eligible[i] = count(&books[i], records, now)
		total += weights[i]
	}
	if total == 0 {
		weights = eligible
		for _, n := range eligible {
			total += n
		}
	}
	if total == 0 {
		return nil, false
	}

	draw := rng.IntN(total) + 1
	for i, w := range weights {
		if draw <= w {
			return &books[i], true
		}
		draw -= w
	}
	return nil, false
}

// PickFlashcards returns up to target eligible cards in book order, sampled
// uniformly without replacement when there are more than target.
func PickFlashcards(book *domain.Book, records Records, now time.Time, target int, rng *rand.Rand) []domain.Flashcard {
	eligible := Eligible(book, records, now)
	if target <= 0 {
		return nil
	}
	if len(eligible) <= target {
		return eligible
	}
	picked := rng.Perm(len(eligible))[:target]
	slices.Sort(picked)
	out := make([]domain.Flashcard, len(picked))
	for i, idx := range picked {
		out[i] = eligible[idx]
	}
	return out
}

// BookSummary is the study overview of one book.
type BookSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Author     string `json:"author,omitempty"`
	Flashcards int    `json:"flashcards"`
	Eligible   int    `json:"eligible"`
	Due        int    `json:"due"`
}

// Summarize counts cards per book.
func Summarize(books []domain.Book, records Records, now time.Time) []BookSummary {
	out := make([]BookSummary, len(books))
	for i := range books {
		due, eligible := count(&books[i], records, now)
		out[i] = BookSummary{
			ID:         books[i].ID,
			Name:       books[i].Name,
			Author:     books[i].Author,
			Flashcards: len(books[i].Flashcards),
			Eligible:   eligible,
			Due:        due,
		}
	}
	return out
}
