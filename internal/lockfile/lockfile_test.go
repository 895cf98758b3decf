package lockfile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryAcquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")

	first, err := TryAcquire(path)
	require.NoError(t, err)

	_, err = TryAcquire(path)
	assert.ErrorIs(t, err, ErrAlreadyLocked)

	require.NoError(t, first.Release())
	require.NoError(t, first.Release())

	second, err := TryAcquire(path)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestWait(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")
	held, err := TryAcquire(path)
	require.NoError(t, err)

	t.Run("times out while held", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
		defer cancel()
		_, err := Wait(ctx, path)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("acquires once released", func(t *testing.T) {
		go func() {
			time.Sleep(30 * time.Millisecond)
			_ = held.Release()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l, err := Wait(ctx, path)
		require.NoError(t, err)
		require.NoError(t, l.Release())
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := TryAcquire("")
		assert.Error(t, err)
	})
}
