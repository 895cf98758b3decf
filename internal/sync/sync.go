package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/conorfennell/kindlenotes/internal/domain"
	"github.com/conorfennell/kindlenotes/internal/gitsource"
	"github.com/conorfennell/kindlenotes/internal/importer"
	"github.com/conorfennell/kindlenotes/internal/knol"
	"github.com/conorfennell/kindlenotes/internal/library"
)

// GitOptions controls how the flashcards directory is shared through git.
type GitOptions struct {
	// Remote is cloned or pulled before importing. Empty disables pulling
	// and pushing.
	Remote string
	// Commit records changed documents in the directory's repository.
	Commit bool
}

// Report summarizes one sync run.
type Report struct {
	Books     int
	Created   int
	Updated   int
	Unchanged int
	Errors    []error
}

// Syncer merges imported highlights into the book documents.
type Syncer struct {
	source  importer.Source
	library *library.Dir
	git     GitOptions
	logger  *slog.Logger
}

func NewSyncer(source importer.Source, lib *library.Dir, git GitOptions, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{source: source, library: lib, git: git, logger: logger}
}

type outcome int

const (
	unchanged outcome = iota
	created
	updated
)

// Run imports every book from the source. A failing book is recorded in the
// report and does not stop the others; errors reaching the source, the
// directory or git abort the run.
func (s *Syncer) Run(ctx context.Context) (Report, error) {
	s.logger.Info("starting sync", "dir", s.library.Root())
	var report Report

	if s.git.Remote != "" {
		if err := gitsource.Sync(ctx, s.git.Remote, s.library.Root()); err != nil {
			return report, err
		}
	}

	raws, err := s.source.FetchBooks(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to fetch books: %w", err)
	}
	docs, err := s.library.Documents(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load documents: %w", err)
	}
	byID := make(map[string]library.Document, len(docs))
	for _, doc := range docs {
		if _, dup := byID[doc.Book.ID]; dup {
			s.logger.Warn("duplicate book id, keeping first document", "id", doc.Book.ID, "path", doc.Path)
			continue
		}
		byID[doc.Book.ID] = doc
	}

	var changed []string
	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Books++
		path, result, err := s.syncBook(raw, byID)
		if err != nil {
			s.logger.Error("failed to sync book", "id", raw.ID, "name", raw.Name, "error", err)
			report.Errors = append(report.Errors, fmt.Errorf("book %s: %w", raw.ID, err))
			continue
		}
		switch result {
		case created:
			report.Created++
			changed = append(changed, path)
		case updated:
			report.Updated++
			changed = append(changed, path)
		default:
			report.Unchanged++
		}
	}

	if s.git.Commit && len(changed) > 0 {
		msg := fmt.Sprintf("sync: %d created, %d updated", report.Created, report.Updated)
		committed, err := gitsource.Commit(s.library.Root(), msg, changed)
		if err != nil {
			return report, err
		}
		if committed && s.git.Remote != "" {
			if err := gitsource.Push(ctx, s.library.Root()); err != nil {
				return report, err
			}
		}
	}

	s.logger.Info("sync complete",
		"books", report.Books,
		"created", report.Created,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"errors", len(report.Errors),
	)
	return report, nil
}

func (s *Syncer) syncBook(raw importer.RawBook, existing map[string]library.Document) (string, outcome, error) {
	fromSource, err := importer.ToBook(raw)
	if err != nil {
		return "", unchanged, err
	}

	var prior domain.Book
	doc, found := existing[fromSource.ID]
	if found {
		if prior, err = knol.AssignIdentities(doc.Book); err != nil {
			return "", unchanged, err
		}
	}

	merged := Merge(prior, fromSource)

	path := doc.Path
	if !found {
		if path, err = s.library.PathFor(merged); err != nil {
			return "", unchanged, err
		}
	}
	wrote, err := s.library.Write(path, merged)
	if err != nil {
		return "", unchanged, err
	}

	switch {
	case !found:
		s.logger.Info("created book", "id", merged.ID, "path", path, "flashcards", len(merged.Flashcards))
		return path, created, nil
	case wrote:
		s.logger.Info("updated book", "id", merged.ID, "path", path, "flashcards", len(merged.Flashcards))
		return path, updated, nil
	default:
		return path, unchanged, nil
	}
}
