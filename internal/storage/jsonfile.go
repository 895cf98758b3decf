package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/conorfennell/kindlenotes/internal/domain"
	"github.com/conorfennell/kindlenotes/internal/lockfile"
)

// JSONFile keeps the store in a single JSON document. The last loaded
// content is cached and reused while the file's size and modification time
// are unchanged.
type JSONFile struct {
	path string

	mu      sync.Mutex
	cached  *domain.StoreData
	version fileVersion
}

type fileVersion struct {
	modTime time.Time
	size    int64
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

func (s *JSONFile) Load(ctx context.Context) (*domain.StoreData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return nil, err
	}
	return data.Clone(), nil
}

func (s *JSONFile) Update(ctx context.Context, fn func(*domain.StoreData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create store dir: %w", err)
	}
	lock, err := lockfile.Wait(ctx, s.path+".lock")
	if err != nil {
		return fmt.Errorf("failed to lock store: %w", err)
	}
	defer lock.Release()

	current, err := s.load()
	if err != nil {
		return err
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := validate(next); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	if err := writeFileAtomic(s.path, raw); err != nil {
		return err
	}
	info, err := os.Stat(s.path)
	if err != nil {
		s.cached = nil
		return nil
	}
	s.cached = next
	s.version = fileVersion{modTime: info.ModTime(), size: info.Size()}
	return nil
}

func (s *JSONFile) Close() error { return nil }

// load returns the cached data when the file has not changed on disk.
// Callers hold s.mu and must not mutate the result.
func (s *JSONFile) load() (*domain.StoreData, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.cached = nil
		return domain.NewStoreData(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat store %s: %w", s.path, err)
	}
	version := fileVersion{modTime: info.ModTime(), size: info.Size()}
	if s.cached != nil && version == s.version {
		return s.cached, nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read store %s: %w", s.path, err)
	}
	data := domain.NewStoreData()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, data); err != nil {
			return nil, fmt.Errorf("failed to decode store %s: %w", s.path, err)
		}
	}
	if data.Sessions == nil {
		data.Sessions = []domain.StudySession{}
	}
	if data.Sm2 == nil {
		data.Sm2 = []domain.FlashcardSm2{}
	}
	s.cached = data
	s.version = version
	return data, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace store %s: %w", path, err)
	}
	return nil
}
