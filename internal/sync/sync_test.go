package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/kindlenotes/internal/domain"
	"github.com/conorfennell/kindlenotes/internal/importer"
	"github.com/conorfennell/kindlenotes/internal/library"
	"github.com/conorfennell/kindlenotes/internal/parser"
)

type fakeSource struct {
	books []importer.RawBook
	err   error
}

func (f *fakeSource) FetchBooks(context.Context) ([]importer.RawBook, error) {
	return f.books, f.err
}

func rawBook(id, name string, noteIDs ...string) importer.RawBook {
	raw := importer.RawBook{ID: id, Name: name}
	for _, n := range noteIDs {
		raw.Notes = append(raw.Notes, importer.RawNote{RawID: "highlight-" + n, Content: "text of " + n})
	}
	return raw
}

func TestSyncerRun(t *testing.T) {
	root := t.TempDir()
	lib := library.New(root, nil)
	source := &fakeSource{books: []importer.RawBook{rawBook("B1", "Deep Work", "a", "b")}}
	syncer := NewSyncer(source, lib, GitOptions{}, nil)
	ctx := context.Background()

	report, err := syncer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Books: 1, Created: 1}, report)

	path := filepath.Join(root, "deep-work.md")
	book, err := parser.ParseFile(path)
	require.NoError(t, err)
	require.Len(t, book.Flashcards, 2)
	assert.Equal(t, "B1", book.ID)

	t.Run("second run is a no-op", func(t *testing.T) {
		report, err := syncer.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, Report{Books: 1, Unchanged: 1}, report)
	})

	t.Run("user edits survive a new import", func(t *testing.T) {
		book.Flashcards[0].Backside = "my answer"
		book.Flashcards = append(book.Flashcards[:1],
			append([]domain.Flashcard{{Content: "my own note", Src: domain.SourceUser}}, book.Flashcards[1:]...)...)
		require.NoError(t, os.WriteFile(path, []byte(parser.Encode(book)), 0o644))

		source.books = []importer.RawBook{rawBook("B1", "Deep Work", "a", "c")}
		report, err := syncer.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, Report{Books: 1, Updated: 1}, report)

		got, err := parser.ParseFile(path)
		require.NoError(t, err)
		require.Len(t, got.Flashcards, 3)
		assert.Equal(t, "my answer", got.Flashcards[0].Backside)
		assert.Equal(t, "my own note", got.Flashcards[1].Content)
		assert.NotEmpty(t, got.Flashcards[1].Hash, "hand-written card gets an identity")
		assert.Equal(t, "text of c", got.Flashcards[2].Content)
	})
}

func TestSyncerCollectsPerBookErrors(t *testing.T) {
	root := t.TempDir()
	source := &fakeSource{books: []importer.RawBook{
		rawBook("???", "!!!", "a"),
		rawBook("B2", "Good Book", "b"),
	}}
	report, err := NewSyncer(source, library.New(root, nil), GitOptions{}, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Books)
	assert.Equal(t, 1, report.Created)
	require.Len(t, report.Errors, 1)
	assert.FileExists(t, filepath.Join(root, "good-book.md"))
}

func TestSyncerNonLatinTitle(t *testing.T) {
	root := t.TempDir()
	source := &fakeSource{books: []importer.RawBook{rawBook("B01", "ノルウェイの森", "a")}}
	syncer := NewSyncer(source, library.New(root, nil), GitOptions{}, nil)

	report, err := syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Books: 1, Created: 1}, report)

	book, err := parser.ParseFile(filepath.Join(root, "b01.md"))
	require.NoError(t, err)
	assert.Equal(t, "ノルウェイの森", book.Name)

	report, err = syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Books: 1, Unchanged: 1}, report)
}

func TestSyncerDuplicateHighlightsKeepTheirIdentity(t *testing.T) {
	root := t.TempDir()
	raw := importer.RawBook{ID: "B1", Name: "Deep Work", Notes: []importer.RawNote{
		{Content: "same"},
		{Content: "same"},
	}}
	syncer := NewSyncer(&fakeSource{books: []importer.RawBook{raw}}, library.New(root, nil), GitOptions{}, nil)

	_, err := syncer.Run(context.Background())
	require.NoError(t, err)
	first, err := parser.ParseFile(filepath.Join(root, "deep-work.md"))
	require.NoError(t, err)

	report, err := syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Books: 1, Unchanged: 1}, report)

	second, err := parser.ParseFile(filepath.Join(root, "deep-work.md"))
	require.NoError(t, err)
	assert.Equal(t, first.Flashcards, second.Flashcards)
}

func TestSyncerSourceFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("boom")}
	_, err := NewSyncer(source, library.New(t.TempDir(), nil), GitOptions{}, nil).Run(context.Background())
	assert.Error(t, err)
}

func TestSyncerCommits(t *testing.T) {
	root := t.TempDir()
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)

	source := &fakeSource{books: []importer.RawBook{rawBook("B1", "Deep Work", "a")}}
	_, err = NewSyncer(source, library.New(root, nil), GitOptions{Commit: true}, nil).Run(context.Background())
	require.NoError(t, err)

	repo, err := git.PlainOpen(root)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	commit, err := repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, "sync: 1 created, 0 updated", commit.Message)
}
