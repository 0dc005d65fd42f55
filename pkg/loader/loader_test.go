package loader_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/fullstackgpt/internal/types"
	"github.com/xhad/fullstackgpt/pkg/loader"
)

func TestFileLoader_Text(t *testing.T) {
	dir := t.TempDir()
	l := loader.NewFileLoader(dir)

	docs, err := l.Load(context.Background(), "notes.txt", []byte("Photosynthesis turns light into energy."))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Photosynthesis turns light into energy.", docs[0].Content)
	assert.Equal(t, "notes.txt", docs[0].Metadata.Origin)
	assert.Nil(t, docs[0].Metadata.Timestamp)

	persisted, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis turns light into energy.", string(persisted))
}

func TestFileLoader_StripsPathComponents(t *testing.T) {
	dir := t.TempDir()
	l := loader.NewFileLoader(dir)

	_, err := l.Load(context.Background(), "../../escape.txt", []byte("content"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	assert.NoError(t, err)
}

func TestFileLoader_Markdown(t *testing.T) {
	l := loader.NewFileLoader(t.TempDir())

	md := "# Cells\n\nThe **mitochondria** is the powerhouse.\n\n- ribosomes\n- nucleus\n\n```\ncode line\n```\n"
	docs, err := l.Load(context.Background(), "bio.md", []byte(md))
	require.NoError(t, err)
	require.Len(t, docs, 1)

	content := docs[0].Content
	assert.Contains(t, content, "Cells")
	assert.Contains(t, content, "The mitochondria is the powerhouse.")
	assert.Contains(t, content, "ribosomes")
	assert.Contains(t, content, "code line")
	assert.NotContains(t, content, "**")
	assert.NotContains(t, content, "#")
}

func TestFileLoader_Docx(t *testing.T) {
	l := loader.NewFileLoader(t.TempDir())

	body := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>First</w:t></w:r><w:r><w:t xml:space="preserve"> paragraph</w:t></w:r></w:p>
<w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>
</w:body>
</w:document>`

	docs, err := l.Load(context.Background(), "essay.docx", buildDocx(t, body))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "First paragraph\nSecond paragraph", docs[0].Content)
}

func TestFileLoader_Errors(t *testing.T) {
	l := loader.NewFileLoader(t.TempDir())

	tests := []struct {
		name    string
		file    string
		content []byte
		target  error
	}{
		{"unsupported extension", "slides.pptx", []byte("x"), loader.ErrUnsupportedType},
		{"missing name", "", []byte("x"), loader.ErrMissingName},
		{"blank text", "empty.txt", []byte("   \n\t"), loader.ErrEmptyDocument},
		{"corrupt docx", "broken.docx", []byte("not a zip"), nil},
		{"corrupt pdf", "broken.pdf", []byte("%PDF-garbage"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Load(context.Background(), tt.file, tt.content)
			require.Error(t, err)
			assert.True(t, types.IsLoadError(err))
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

type fakeSearcher struct {
	out   string
	err   error
	calls []string
}

func (f *fakeSearcher) Call(_ context.Context, input string) (string, error) {
	f.calls = append(f.calls, input)
	return f.out, f.err
}

func TestWikipediaSource(t *testing.T) {
	s := &fakeSearcher{out: "Page: Go (programming language)\nSummary: Go is a language.\n\nPage: Gopher\nSummary: A rodent.\n"}
	src := loader.NewWikipediaSourceWith(s)

	docs, err := src.Search(context.Background(), " golang ")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, []string{"golang"}, s.calls)
	assert.Equal(t, "wikipedia:golang", docs[0].Metadata.Origin)
	assert.Contains(t, docs[0].Content, "Go is a language.")
	assert.Contains(t, docs[1].Content, "A rodent.")
}

func TestWikipediaSource_Errors(t *testing.T) {
	_, err := loader.NewWikipediaSourceWith(&fakeSearcher{}).Search(context.Background(), "  ")
	assert.True(t, types.IsLoadError(err))

	_, err = loader.NewWikipediaSourceWith(&fakeSearcher{err: errors.New("timeout")}).Search(context.Background(), "go")
	assert.True(t, types.IsFetchError(err))

	_, err = loader.NewWikipediaSourceWith(&fakeSearcher{out: "  "}).Search(context.Background(), "go")
	assert.True(t, types.IsLoadError(err))
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
