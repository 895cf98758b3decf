package sync

import (
	"cmp"
	"slices"

	"github.com/conorfennell/kindlenotes/internal/domain"
)

// placement is the sort key of one merged card. Kindle cards sit at
// (sourcePos, 0, sourcePos); user cards at (anchorPos, 1, userPos) where
// anchorPos is the source position of the nearest preceding kindle card that
// survived the import, or -1 when there is none. Keys are unique, so the
// order is total.
type placement struct {
	anchor int
	kind   int
	index  int
	card   domain.Flashcard
}

const (
	kindKindle = 0
	kindUser   = 1
)

func comparePlacement(a, b placement) int {
	return cmp.Or(
		cmp.Compare(a.anchor, b.anchor),
		cmp.Compare(a.kind, b.kind),
		cmp.Compare(a.index, b.index),
	)
}

// Merge reconciles the persisted book (markdown) with a fresh import
// (fromSource). The kindle cards of fromSource replace the previous kindle
// cards, user cards are kept in their relative order right after the kindle
// card they followed, and user-maintained fields survive on cards whose hash
// is unchanged. No hash appears twice in the result: a user card carrying
// the hash of an incoming kindle card, or of an earlier user card, is not
// placed on its own. When it is the first prior card with that hash, its
// user-maintained fields are carried onto the kindle card instead.
func Merge(markdown, fromSource domain.Book) domain.Book {
	prior := markdown.Clone()
	source := fromSource.Clone()

	placements := make([]placement, 0, len(prior.Flashcards)+len(source.Flashcards))
	sourcePos := make(map[string]int, len(source.Flashcards))
	for _, card := range source.Flashcards {
		if card.Hash != "" {
			if _, dup := sourcePos[card.Hash]; dup {
				continue
			}
			sourcePos[card.Hash] = len(placements)
		}
		card.Src = domain.SourceKindle
		pos := len(placements)
		placements = append(placements, placement{anchor: pos, kind: kindKindle, index: pos, card: card})
	}

	anchor := -1
	userPos := 0
	seenUser := make(map[string]struct{})
	for _, card := range prior.Flashcards {
		if !card.IsUser() {
			if pos, ok := sourcePos[card.Hash]; ok {
				anchor = pos
			}
			continue
		}
		if card.Hash != "" {
			if _, clash := sourcePos[card.Hash]; clash {
				continue
			}
			if _, dup := seenUser[card.Hash]; dup {
				continue
			}
			seenUser[card.Hash] = struct{}{}
		}
		placements = append(placements, placement{anchor: anchor, kind: kindUser, index: userPos, card: card})
		userPos++
	}

	slices.SortStableFunc(placements, comparePlacement)

	previous := make(map[string]domain.Flashcard, len(prior.Flashcards))
	for _, card := range prior.Flashcards {
		if _, ok := previous[card.Hash]; !ok && card.Hash != "" {
			previous[card.Hash] = card
		}
	}

	merged := make([]domain.Flashcard, 0, len(placements))
	for _, p := range placements {
		card := p.card
		if p.kind == kindKindle {
			if old, ok := previous[card.Hash]; ok {
				copyUserData(old, &card)
			}
		}
		merged = append(merged, card)
	}

	return domain.Book{
		ID:                        cmp.Or(source.ID, prior.ID),
		Name:                      cmp.Or(source.Name, prior.Name),
		Author:                    cmp.Or(source.Author, prior.Author),
		Photo:                     cmp.Or(source.Photo, prior.Photo),
		Flashcards:                merged,
		FlashcardsPerStudySession: prior.FlashcardsPerStudySession,
	}
}

// copyUserData carries the fields a user maintains by hand onto a freshly
// imported card. Blank previous content counts as not yet edited.
func copyUserData(from domain.Flashcard, to *domain.Flashcard) {
	to.Excluded = from.Excluded
	to.Backside = from.Backside
	if !domain.IsBlank(from.Content) {
		to.Content = from.Content
	}
}
