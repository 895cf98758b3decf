// Package library manages the directory of book documents.
package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/kindlenotes/internal/domain"
	"github.com/conorfennell/kindlenotes/internal/parser"
)

const docExt = ".md"

// Document is a decoded book together with the file it was read from.
type Document struct {
	Path string
	Book domain.Book
}

// Dir is a flashcards directory holding one markdown document per book.
type Dir struct {
	root   string
	logger *slog.Logger
}

func New(root string, logger *slog.Logger) *Dir {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dir{root: root, logger: logger}
}

func (d *Dir) Root() string { return d.root }

// Paths lists every document path below the root, skipping hidden
// directories such as .git.
func (d *Dir) Paths() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if path != d.root && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), docExt) {
			paths = append(paths, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", d.root, err)
	}
	slices.Sort(paths)
	return paths, nil
}

// Documents decodes every document in the directory. Invalid documents are
// logged and skipped.
func (d *Dir) Documents(ctx context.Context) ([]Document, error) {
	paths, err := d.Paths()
	if err != nil {
		return nil, err
	}

	decoded := make([]*Document, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			book, err := parser.ParseFile(path)
			if errors.Is(err, domain.ErrInvalidDocument) {
				d.logger.Warn("skipping invalid document", "path", path, "error", err)
				return nil
			}
			if err != nil {
				return err
			}
			decoded[i] = &Document{Path: path, Book: book}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(decoded))
	for _, doc := range decoded {
		if doc != nil {
			docs = append(docs, *doc)
		}
	}
	return docs, nil
}

// Books returns the decoded books in path order.
func (d *Dir) Books(ctx context.Context) ([]domain.Book, error) {
	docs, err := d.Documents(ctx)
	if err != nil {
		return nil, err
	}
	books := make([]domain.Book, len(docs))
	for i, doc := range docs {
		books[i] = doc.Book
	}
	return books, nil
}

// Find looks a document up by book id.
func (d *Dir) Find(ctx context.Context, id string) (Document, bool, error) {
	docs, err := d.Documents(ctx)
	if err != nil {
		return Document{}, false, err
	}
	for _, doc := range docs {
		if doc.Book.ID == id {
			return doc, true, nil
		}
	}
	return Document{}, false, nil
}

// Book returns the book with the given id or domain.ErrBookNotFound.
func (d *Dir) Book(ctx context.Context, id string) (domain.Book, error) {
	doc, ok, err := d.Find(ctx, id)
	if err != nil {
		return domain.Book{}, err
	}
	if !ok {
		return domain.Book{}, fmt.Errorf("%w: %s", domain.ErrBookNotFound, id)
	}
	return doc.Book, nil
}

// Write encodes book to path. It reports false and leaves the file alone
// when the content would not change.
func (d *Dir) Write(path string, book domain.Book) (bool, error) {
	return WriteDocument(path, parser.Encode(book))
}

// WriteDocument atomically replaces path with content unless it already
// holds exactly that content.
func WriteDocument(path, content string) (bool, error) {
	current, err := os.ReadFile(path)
	if err == nil && string(current) == content {
		return false, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := writeAtomic(path, []byte(content)); err != nil {
		return false, err
	}
	return true, nil
}

// PathFor returns a path for a new document named after the book, adding a
// numeric suffix when the file already exists. Titles without usable
// characters, such as ones written in a non-Latin script, fall back to the
// book id.
func (d *Dir) PathFor(book domain.Book) (string, error) {
	fileName, err := FileName(book.Name)
	if err != nil {
		var idErr error
		if fileName, idErr = FileName(book.ID); idErr != nil {
			return "", err
		}
	}
	base := strings.TrimSuffix(fileName, docExt)
	path := filepath.Join(d.root, fileName)
	for i := 2; exists(path); i++ {
		path = filepath.Join(d.root, fmt.Sprintf("%s-%d%s", base, i, docExt))
	}
	return path, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
