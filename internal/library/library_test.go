package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/kindlenotes/internal/domain"
	"github.com/conorfennell/kindlenotes/internal/parser"
)

func TestFileName(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"cut at colon", "abc 123   bbb ccc: eee Your vvv Around Your Life, xyz zzz ccc ddd vvv wer", "abc-123-bbb-ccc.md"},
		{"cut at spaced colon", "Bbb ccc ddd, eee and bbbz : A zzz One-Step Plan vv Dddd and BB Crde", "bbb-ccc-ddd-eee-and-bbbz.md"},
		{"colon wins over dash", "Abc def: ayz mgr - hello singapore", "abc-def.md"},
		{"cut at dash", "System Vedre Bzsdde  - Bc dsadsad's vvvvv", "system-vedre-bzsdde.md"},
		{"short names are kept whole", "abc: def - ghz   123 456", "abc-def-ghz-123-456.md"},
		{"parentheses are dropped", "Best-Dbcven HelloScript Vdsadsad (Developer's Library)", "best-dbcven-helloscript-vdsadsad.md"},
		{"no delimiter", "Abc dad 12312 3ddew 323d vvasd 23123 ddd-bb", "abc-dad-12312-3ddew-323d-vvasd-23123-ddd-bb.md"},
		{"zero is kept", "1984", "1984.md"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FileName(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	t.Run("blank name", func(t *testing.T) {
		_, err := FileName("   ")
		assert.Error(t, err)
	})

	t.Run("only punctuation", func(t *testing.T) {
		_, err := FileName("!!!")
		assert.Error(t, err)
	})
}

func writeDoc(t *testing.T, path string, book domain.Book) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(parser.Encode(book)), 0o644))
}

func TestDocuments(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "a.md"), domain.Book{ID: "a", Name: "A"})
	writeDoc(t, filepath.Join(root, "nested", "b.md"), domain.Book{ID: "b", Name: "B"})
	writeDoc(t, filepath.Join(root, ".git", "c.md"), domain.Book{ID: "c", Name: "C"})
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.md"), []byte("no front-matter"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignored"), 0o644))

	dir := New(root, nil)
	docs, err := dir.Documents(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, doc := range docs {
		ids = append(ids, doc.Book.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)

	t.Run("book by id", func(t *testing.T) {
		book, err := dir.Book(context.Background(), "b")
		require.NoError(t, err)
		assert.Equal(t, "B", book.Name)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := dir.Book(context.Background(), "zzz")
		assert.ErrorIs(t, err, domain.ErrBookNotFound)
	})
}

func TestDocumentsMissingRoot(t *testing.T) {
	docs, err := New(filepath.Join(t.TempDir(), "absent"), nil).Documents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestWrite(t *testing.T) {
	root := t.TempDir()
	dir := New(root, nil)
	path := filepath.Join(root, "book.md")
	book := domain.Book{ID: "x", Name: "X", Flashcards: []domain.Flashcard{{Hash: "h", Content: "c"}}}

	changed, err := dir.Write(path, book)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = dir.Write(path, book)
	require.NoError(t, err)
	assert.False(t, changed, "identical content must not be rewritten")

	book.Flashcards[0].Content = "edited"
	changed, err = dir.Write(path, book)
	require.NoError(t, err)
	assert.True(t, changed)

	decoded, err := parser.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "edited", decoded.Flashcards[0].Content)
}

func TestPathFor(t *testing.T) {
	root := t.TempDir()
	dir := New(root, nil)

	book := domain.Book{ID: "B01", Name: "Deep Work"}

	first, err := dir.PathFor(book)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "deep-work.md"), first)

	require.NoError(t, os.WriteFile(first, []byte("taken"), 0o644))
	second, err := dir.PathFor(book)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "deep-work-2.md"), second)

	t.Run("non-latin title falls back to the id", func(t *testing.T) {
		path, err := dir.PathFor(domain.Book{ID: "B01", Name: "ノルウェイの森"})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "b01.md"), path)
	})

	t.Run("no usable name or id", func(t *testing.T) {
		_, err := dir.PathFor(domain.Book{ID: "???", Name: "!!!"})
		assert.Error(t, err)
	})
}
