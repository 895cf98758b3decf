package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/conorfennell/kindlenotes/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB keeps the store in SQLite. Every Update rewrites both tables in one
// transaction.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
}

// OpenSQLite creates a new database connection and ensures the schema is up to date.
// A plain file path gets its parent directory created.
func OpenSQLite(dsn string) (*DB, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (db *DB) Load(ctx context.Context) (*domain.StoreData, error) {
	return load(ctx, db.conn)
}

func (db *DB) Update(ctx context.Context, fn func(*domain.StoreData) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	data, err := load(ctx, tx)
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	if err := validate(data); err != nil {
		return err
	}
	if err := save(ctx, tx, data); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit store: %w", err)
	}
	return nil
}

func load(ctx context.Context, q querier) (*domain.StoreData, error) {
	data := domain.NewStoreData()

	rows, err := q.QueryContext(ctx, `
		SELECT id, book_id, scheduled, need_to_review, total_flashcards, shown, next_scheduled, status, started_at, ended_at
		FROM sessions ORDER BY started_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	for rows.Next() {
		var (
			s            domain.StudySession
			scheduled    string
			needToReview string
			startedAt    int64
			endedAt      sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.BookID, &scheduled, &needToReview, &s.TotalFlashcards,
			&s.Shown, &s.NextScheduled, &s.Status, &startedAt, &endedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		if err := json.Unmarshal([]byte(scheduled), &s.Scheduled); err != nil {
			rows.Close()
			return nil, fmt.Errorf("session %s: scheduled: %w", s.ID, err)
		}
		if err := json.Unmarshal([]byte(needToReview), &s.NeedToReview); err != nil {
			rows.Close()
			return nil, fmt.Errorf("session %s: need_to_review: %w", s.ID, err)
		}
		s.StartedAt = fromNanos(startedAt)
		if endedAt.Valid {
			t := fromNanos(endedAt.Int64)
			s.EndedAt = &t
		}
		data.Sessions = append(data.Sessions, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	rows, err = q.QueryContext(ctx, `
		SELECT book_id, hash, easiness_factor, repetition_number, interval_days, last_review, last_grade
		FROM sm2 ORDER BY book_id, hash
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sm2 records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			r          domain.FlashcardSm2
			lastReview sql.NullInt64
		)
		if err := rows.Scan(&r.BookID, &r.Hash, &r.EasinessFactor, &r.RepetitionNumber,
			&r.Interval, &lastReview, &r.LastGrade); err != nil {
			return nil, fmt.Errorf("failed to scan sm2 row: %w", err)
		}
		if lastReview.Valid {
			r.LastReview = fromNanos(lastReview.Int64)
		}
		data.Sm2 = append(data.Sm2, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sm2 records: %w", err)
	}
	return data, nil
}

func save(ctx context.Context, tx *sql.Tx, data *domain.StoreData) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sm2`); err != nil {
		return fmt.Errorf("failed to clear sm2 records: %w", err)
	}

	for _, s := range data.Sessions {
		scheduled, err := json.Marshal(nonNil(s.Scheduled))
		if err != nil {
			return err
		}
		needToReview, err := json.Marshal(nonNil(s.NeedToReview))
		if err != nil {
			return err
		}
		var endedAt sql.NullInt64
		if s.EndedAt != nil {
			endedAt = sql.NullInt64{Int64: s.EndedAt.UnixNano(), Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (id, book_id, scheduled, need_to_review, total_flashcards, shown, next_scheduled, status, started_at, ended_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			s.ID,
			s.BookID,
			string(scheduled),
			string(needToReview),
			s.TotalFlashcards,
			s.Shown,
			s.NextScheduled,
			string(s.Status),
			s.StartedAt.UnixNano(),
			endedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert session %s: %w", s.ID, err)
		}
	}

	for _, r := range data.Sm2 {
		var lastReview sql.NullInt64
		if !r.LastReview.IsZero() {
			lastReview = sql.NullInt64{Int64: r.LastReview.UnixNano(), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sm2 (book_id, hash, easiness_factor, repetition_number, interval_days, last_review, last_grade)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			r.BookID,
			r.Hash,
			r.EasinessFactor,
			r.RepetitionNumber,
			r.Interval,
			lastReview,
			r.LastGrade,
		)
		if err != nil {
			return fmt.Errorf("failed to insert sm2 record %s/%s: %w", r.BookID, r.Hash, err)
		}
	}
	return nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
