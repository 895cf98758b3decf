// Package study runs spaced-repetition study sessions over the book library.
//
// A session moves from ongoing to completed or cancelled, never back. Every
// operation is a single read-modify-write of the store, so a failure leaves
// the persisted sessions and memory records untouched.
package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/kindlenotes/internal/domain"
	"github.com/conorfennell/kindlenotes/internal/selector"
	"github.com/conorfennell/kindlenotes/internal/sm2"
	"github.com/conorfennell/kindlenotes/internal/storage"
)

// DefaultSessionSize is used when neither the book nor the config sets one.
const DefaultSessionSize = 10

// Library resolves books by id.
type Library interface {
	Books(ctx context.Context) ([]domain.Book, error)
	Book(ctx context.Context, id string) (domain.Book, error)
}

// Options configures a Service. Zero values pick defaults.
type Options struct {
	SessionSize int
	// StaleAfter is how long a session may stay ongoing before ReapStale
	// cancels it. Zero disables reaping.
	StaleAfter time.Duration
	Now        func() time.Time
	Rand       *rand.Rand
	Logger     *slog.Logger
}

// Service implements the study session operations.
type Service struct {
	store   storage.Store
	library Library

	sessionSize int
	staleAfter  time.Duration
	now         func() time.Time
	logger      *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewService(store storage.Store, library Library, opts Options) *Service {
	s := &Service{
		store:       store,
		library:     library,
		sessionSize: opts.SessionSize,
		staleAfter:  opts.StaleAfter,
		now:         opts.Now,
		rng:         opts.Rand,
		logger:      opts.Logger,
	}
	if s.sessionSize <= 0 {
		s.sessionSize = DefaultSessionSize
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// FlashcardView is a flashcard to present with the session's progress.
type FlashcardView struct {
	SessionID       string           `json:"sessionId"`
	BookID          string           `json:"bookId"`
	BookName        string           `json:"bookName"`
	Flashcard       domain.Flashcard `json:"flashcard"`
	Position        int              `json:"position"`
	TotalFlashcards int              `json:"totalFlashcards"`
}

func (s *Service) intN(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.IntN(n)
}

// NewSession starts a session on bookID, or on a randomly picked book when
// bookID is empty.
func (s *Service) NewSession(ctx context.Context, bookID string) (domain.StudySession, error) {
	if _, err := s.ReapStale(ctx); err != nil {
		return domain.StudySession{}, err
	}

	var books []domain.Book
	if bookID != "" {
		book, err := s.library.Book(ctx, bookID)
		if err != nil {
			return domain.StudySession{}, err
		}
		books = []domain.Book{book}
	} else {
		var err error
		if books, err = s.library.Books(ctx); err != nil {
			return domain.StudySession{}, fmt.Errorf("failed to load books: %w", err)
		}
	}

	var session domain.StudySession
	err := s.store.Update(ctx, func(data *domain.StoreData) error {
		now := s.now()
		records := data.Records()

		book := &books[0]
		if bookID == "" {
			s.rngMu.Lock()
			picked, ok := selector.PickBook(books, records, now, s.rng)
			s.rngMu.Unlock()
			if !ok {
				return domain.ErrNoEligibleBook
			}
			book = picked
		}

		total := s.sessionSize
		if book.FlashcardsPerStudySession > 0 {
			total = book.FlashcardsPerStudySession
		}
		s.rngMu.Lock()
		cards := selector.PickFlashcards(book, records, now, total, s.rng)
		s.rngMu.Unlock()
		if len(cards) == 0 {
			return fmt.Errorf("%w: %s", domain.ErrNoEligibleFlashcards, book.ID)
		}

		scheduled := make([]string, len(cards))
		for i, fc := range cards {
			scheduled[i] = fc.Hash
		}
		session = domain.StudySession{
			ID:              uuid.NewString(),
			BookID:          book.ID,
			Scheduled:       scheduled,
			NeedToReview:    []string{},
			TotalFlashcards: total,
			Status:          domain.StatusOnGoing,
			StartedAt:       now,
		}
		data.Sessions = append(data.Sessions, session)
		return nil
	})
	if err != nil {
		return domain.StudySession{}, err
	}

	s.logger.Info("study session started",
		"session", session.ID,
		"book", session.BookID,
		"scheduled", len(session.Scheduled),
		"total", session.TotalFlashcards,
	)
	return session.Clone(), nil
}

// Session returns the session with the given id.
func (s *Service) Session(ctx context.Context, id string) (domain.StudySession, error) {
	data, err := s.store.Load(ctx)
	if err != nil {
		return domain.StudySession{}, err
	}
	session, ok := data.Session(id)
	if !ok {
		return domain.StudySession{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return session.Clone(), nil
}

func ongoing(data *domain.StoreData, id string) (*domain.StudySession, error) {
	session, ok := data.Session(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	if !session.OnGoing() {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrInvalidState, id, session.Status)
	}
	return session, nil
}

// NextFlashcard advances the session and returns the card to show. Failed
// cards are mixed back in once they would not otherwise fit in the cards
// left, or once the schedule has been shown in full.
func (s *Service) NextFlashcard(ctx context.Context, sessionID string) (FlashcardView, error) {
	current, err := s.Session(ctx, sessionID)
	if err != nil {
		return FlashcardView{}, err
	}
	book, err := s.library.Book(ctx, current.BookID)
	if err != nil {
		return FlashcardView{}, err
	}

	var view FlashcardView
	err = s.store.Update(ctx, func(data *domain.StoreData) error {
		session, err := ongoing(data, sessionID)
		if err != nil {
			return err
		}
		if session.Shown >= session.TotalFlashcards {
			return fmt.Errorf("%w: %s", domain.ErrSessionExhausted, sessionID)
		}

		hash := s.nextHash(session)
		card, ok := book.Flashcard(hash)
		if !ok {
			return fmt.Errorf("%w: %s in book %s", domain.ErrFlashcardNotFound, hash, book.ID)
		}
		session.Shown++

		view = FlashcardView{
			SessionID:       session.ID,
			BookID:          book.ID,
			BookName:        book.Name,
			Flashcard:       card,
			Position:        session.Shown - 1,
			TotalFlashcards: session.TotalFlashcards,
		}
		return nil
	})
	if err != nil {
		return FlashcardView{}, err
	}
	return view, nil
}

// nextHash picks the next card and moves the schedule cursor when the card
// comes from the schedule.
func (s *Service) nextHash(session *domain.StudySession) string {
	remaining := session.Remaining()
	review := len(session.NeedToReview)
	switch {
	case review > 0 && (review >= remaining || session.ScheduleExhausted()):
		return session.NeedToReview[s.intN(review)]
	case !session.ScheduleExhausted():
		hash := session.Scheduled[session.NextScheduled]
		session.NextScheduled++
		return hash
	default:
		return session.Scheduled[s.intN(len(session.Scheduled))]
	}
}

// SaveResult records the grade given to a card of the session and updates
// its memory record. Cards graded below sm2.PassingGrade are queued for
// review within the session.
func (s *Service) SaveResult(ctx context.Context, sessionID, hash string, grade int) (domain.StudySession, error) {
	if !domain.ValidGrade(grade) {
		return domain.StudySession{}, fmt.Errorf("%w: got %d", domain.ErrInvalidGrade, grade)
	}

	var out domain.StudySession
	err := s.store.Update(ctx, func(data *domain.StoreData) error {
		session, err := ongoing(data, sessionID)
		if err != nil {
			return err
		}
		if !session.Contains(hash) {
			return fmt.Errorf("%w: %s", domain.ErrUnknownFlashcard, hash)
		}

		now := s.now()
		rec, ok := data.Record(session.BookID, hash)
		if !ok {
			rec = domain.NewFlashcardSm2(session.BookID, hash)
		}
		next := sm2.Next(sm2.Grade(grade), sm2.State{
			RepetitionNumber: rec.RepetitionNumber,
			EasinessFactor:   rec.EasinessFactor,
			Interval:         rec.Interval,
		})
		rec.RepetitionNumber = next.RepetitionNumber
		rec.EasinessFactor = next.EasinessFactor
		rec.Interval = next.Interval
		rec.LastReview = now
		rec.LastGrade = grade
		data.PutRecord(rec)

		session.NeedToReview = slices.DeleteFunc(session.NeedToReview, func(h string) bool { return h == hash })
		if !sm2.Grade(grade).Remembered() {
			session.NeedToReview = append(session.NeedToReview, hash)
		}
		if session.Shown == session.TotalFlashcards {
			session.Status = domain.StatusCompleted
			session.EndedAt = &now
		}
		out = session.Clone()
		return nil
	})
	if err != nil {
		return domain.StudySession{}, err
	}
	if out.Status == domain.StatusCompleted {
		s.logger.Info("study session completed", "session", out.ID, "book", out.BookID, "review", len(out.NeedToReview))
	}
	return out, nil
}

// Cancel ends an ongoing session.
func (s *Service) Cancel(ctx context.Context, sessionID string) error {
	err := s.store.Update(ctx, func(data *domain.StoreData) error {
		session, err := ongoing(data, sessionID)
		if err != nil {
			return err
		}
		now := s.now()
		session.Status = domain.StatusCancelled
		session.EndedAt = &now
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("study session cancelled", "session", sessionID)
	return nil
}

var errNothingToReap = errors.New("nothing to reap")

// ReapStale cancels sessions left ongoing for longer than the configured
// limit and returns how many were cancelled.
func (s *Service) ReapStale(ctx context.Context) (int, error) {
	if s.staleAfter <= 0 {
		return 0, nil
	}
	reaped := 0
	err := s.store.Update(ctx, func(data *domain.StoreData) error {
		now := s.now()
		for i := range data.Sessions {
			session := &data.Sessions[i]
			if session.OnGoing() && now.Sub(session.StartedAt) > s.staleAfter {
				session.Status = domain.StatusCancelled
				session.EndedAt = &now
				reaped++
			}
		}
		if reaped == 0 {
			return errNothingToReap
		}
		return nil
	})
	if errors.Is(err, errNothingToReap) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	s.logger.Info("cancelled stale study sessions", "count", reaped, "stale_after", s.staleAfter)
	return reaped, nil
}

// Summaries reports per-book card counts for the current time.
func (s *Service) Summaries(ctx context.Context) ([]selector.BookSummary, error) {
	books, err := s.library.Books(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load books: %w", err)
	}
	data, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return selector.Summarize(books, data.Records(), s.now()), nil
}
