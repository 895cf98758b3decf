package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/kindlenotes/internal/domain"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	jsonStore, err := Open(DriverJSON, filepath.Join(dir, "store.json"))
	require.NoError(t, err)
	sqliteStore, err := Open(DriverSQLite, filepath.Join(dir, "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		jsonStore.Close()
		sqliteStore.Close()
	})

	return map[string]Store{DriverJSON: jsonStore, DriverSQLite: sqliteStore}
}

func sampleSession() domain.StudySession {
	ended := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	return domain.StudySession{
		ID:              "s1",
		BookID:          "b1",
		Scheduled:       []string{"a", "b"},
		NeedToReview:    []string{"a"},
		TotalFlashcards: 3,
		Shown:           3,
		NextScheduled:   2,
		Status:          domain.StatusCompleted,
		StartedAt:       time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		EndedAt:         &ended,
	}
}

func sampleRecord() domain.FlashcardSm2 {
	return domain.FlashcardSm2{
		BookID:           "b1",
		Hash:             "a",
		EasinessFactor:   2.36,
		RepetitionNumber: 2,
		Interval:         6,
		LastReview:       time.Date(2024, 3, 1, 10, 4, 0, 0, time.UTC),
		LastGrade:        3,
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("empty store", func(t *testing.T) {
				data, err := store.Load(ctx)
				require.NoError(t, err)
				assert.Empty(t, data.Sessions)
				assert.Empty(t, data.Sm2)
			})

			t.Run("update round trips", func(t *testing.T) {
				err := store.Update(ctx, func(d *domain.StoreData) error {
					d.Sessions = append(d.Sessions, sampleSession())
					d.PutRecord(sampleRecord())
					d.PutRecord(domain.NewFlashcardSm2("b1", "new"))
					return nil
				})
				require.NoError(t, err)

				data, err := store.Load(ctx)
				require.NoError(t, err)
				require.Len(t, data.Sessions, 1)
				got := data.Sessions[0]
				want := sampleSession()
				assert.Equal(t, want.Scheduled, got.Scheduled)
				assert.Equal(t, want.NeedToReview, got.NeedToReview)
				assert.Equal(t, want.Status, got.Status)
				assert.Equal(t, want.NextScheduled, got.NextScheduled)
				assert.True(t, want.StartedAt.Equal(got.StartedAt))
				require.NotNil(t, got.EndedAt)
				assert.True(t, want.EndedAt.Equal(*got.EndedAt))

				rec, ok := data.Record("b1", "a")
				require.True(t, ok)
				assert.InDelta(t, 2.36, rec.EasinessFactor, 1e-9)
				assert.Equal(t, 6, rec.Interval)
				assert.True(t, sampleRecord().LastReview.Equal(rec.LastReview))

				fresh, ok := data.Record("b1", "new")
				require.True(t, ok)
				assert.True(t, fresh.LastReview.IsZero())
			})

			t.Run("failed update saves nothing", func(t *testing.T) {
				boom := errors.New("boom")
				err := store.Update(ctx, func(d *domain.StoreData) error {
					d.Sessions = nil
					return boom
				})
				assert.ErrorIs(t, err, boom)

				data, err := store.Load(ctx)
				require.NoError(t, err)
				assert.Len(t, data.Sessions, 1)
			})

			t.Run("invalid record is rejected", func(t *testing.T) {
				err := store.Update(ctx, func(d *domain.StoreData) error {
					bad := sampleRecord()
					bad.EasinessFactor = 1.0
					d.PutRecord(bad)
					return nil
				})
				assert.Error(t, err)

				data, err := store.Load(ctx)
				require.NoError(t, err)
				rec, _ := data.Record("b1", "a")
				assert.InDelta(t, 2.36, rec.EasinessFactor, 1e-9)
			})

			t.Run("loaded data is a copy", func(t *testing.T) {
				data, err := store.Load(ctx)
				require.NoError(t, err)
				data.Sessions[0].Scheduled[0] = "mutated"

				again, err := store.Load(ctx)
				require.NoError(t, err)
				assert.Equal(t, "a", again.Sessions[0].Scheduled[0])
			})
		})
	}
}

func TestJSONFileSeesExternalWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	first := NewJSONFile(path)
	second := NewJSONFile(path)

	_, err := first.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, second.Update(ctx, func(d *domain.StoreData) error {
		d.Sessions = append(d.Sessions, sampleSession())
		return nil
	}))

	data, err := first.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, data.Sessions, 1)
}

func TestOpenCreatesParentDir(t *testing.T) {
	for _, driver := range []string{DriverJSON, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "flashcards", ".kindlenotes", "store")
			store, err := Open(driver, path)
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.Update(context.Background(), func(d *domain.StoreData) error {
				d.Sessions = append(d.Sessions, sampleSession())
				return nil
			}))
			assert.FileExists(t, path)
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("postgres", "x")
	assert.Error(t, err)
}
