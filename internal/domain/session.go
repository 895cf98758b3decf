package domain

import (
	"slices"
	"time"
)

// SessionStatus is the lifecycle state of a study session.
type SessionStatus string

const (
	StatusOnGoing   SessionStatus = "ongoing"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
)

// StudySession is one bounded run of flashcard presentations.
type StudySession struct {
	ID              string        `json:"id"`
	BookID          string        `json:"bookId"`
	Scheduled       []string      `json:"scheduled"`
	NeedToReview    []string      `json:"needToReview"`
	TotalFlashcards int           `json:"totalFlashcards"`
	Shown           int           `json:"shown"`
	NextScheduled   int           `json:"nextScheduled"` // cursor into Scheduled
	Status          SessionStatus `json:"status"`
	StartedAt       time.Time     `json:"startedAt"`
	EndedAt         *time.Time    `json:"endedAt,omitempty"`
}

// OnGoing reports whether the session still accepts mutations.
func (s *StudySession) OnGoing() bool {
	return s.Status == StatusOnGoing
}

// ScheduleExhausted reports whether every scheduled hash was presented in order.
func (s *StudySession) ScheduleExhausted() bool {
	return s.NextScheduled >= len(s.Scheduled)
}

// Remaining is the number of presentations left.
func (s *StudySession) Remaining() int {
	return s.TotalFlashcards - s.Shown
}

// Contains reports whether hash belongs to the schedule or the review set.
func (s *StudySession) Contains(hash string) bool {
	return slices.Contains(s.Scheduled, hash) || slices.Contains(s.NeedToReview, hash)
}

// Clone returns a deep copy.
func (s StudySession) Clone() StudySession {
	out := s
	out.Scheduled = slices.Clone(s.Scheduled)
	out.NeedToReview = slices.Clone(s.NeedToReview)
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return out
}

// StoreData is the persisted unit: every session and every memory record.
type StoreData struct {
	Sessions []StudySession `json:"sessions"`
	Sm2      []FlashcardSm2 `json:"sm2"`
}

// NewStoreData returns an empty store.
func NewStoreData() *StoreData {
	return &StoreData{Sessions: []StudySession{}, Sm2: []FlashcardSm2{}}
}

// Clone returns a deep copy so a failed update never leaks into cached state.
func (d *StoreData) Clone() *StoreData {
	out := &StoreData{
		Sessions: make([]StudySession, len(d.Sessions)),
		Sm2:      slices.Clone(d.Sm2),
	}
	for i, s := range d.Sessions {
		out.Sessions[i] = s.Clone()
	}
	if out.Sm2 == nil {
		out.Sm2 = []FlashcardSm2{}
	}
	return out
}

// Session returns a pointer into the store for in-place mutation.
func (d *StoreData) Session(id string) (*StudySession, bool) {
	for i := range d.Sessions {
		if d.Sessions[i].ID == id {
			return &d.Sessions[i], true
		}
	}
	return nil, false
}

// Record returns the memory record for (bookID, hash).
func (d *StoreData) Record(bookID, hash string) (FlashcardSm2, bool) {
	for _, r := range d.Sm2 {
		if r.BookID == bookID && r.Hash == hash {
			return r, true
		}
	}
	return FlashcardSm2{}, false
}

// PutRecord replaces the record with the same key, or appends it.
func (d *StoreData) PutRecord(rec FlashcardSm2) {
	for i := range d.Sm2 {
		if d.Sm2[i].Key() == rec.Key() {
			d.Sm2[i] = rec
			return
		}
	}
	d.Sm2 = append(d.Sm2, rec)
}

// Records indexes the memory records by key.
func (d *StoreData) Records() map[Sm2Key]FlashcardSm2 {
	out := make(map[Sm2Key]FlashcardSm2, len(d.Sm2))
	for _, r := range d.Sm2 {
		out[r.Key()] = r
	}
	return out
}
