// Package loader turns uploaded files and search topics into RawDocuments.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/fullstackgpt/internal/models"
	"github.com/xhad/fullstackgpt/internal/types"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyDocument   = errors.New("no text could be extracted")
	ErrMissingName     = errors.New("file name is required")
)

// FileLoader persists uploads under CacheDir and parses them by extension.
type FileLoader struct {
	CacheDir string
}

func NewFileLoader(cacheDir string) *FileLoader {
	if cacheDir == "" {
		cacheDir = "./.cache/quiz_files"
	}
	return &FileLoader{CacheDir: cacheDir}
}

var _ types.FileLoader = (*FileLoader)(nil)

// Load writes content to CacheDir/<base name> and extracts its text. PDFs yield
// one document per page, everything else a single document.
func (l *FileLoader) Load(ctx context.Context, name string, content []byte) ([]models.RawDocument, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return nil, &types.LoadError{Path: name, Err: ErrMissingName}
	}

	path, err := l.persist(base, content)
	if err != nil {
		return nil, &types.LoadError{Path: base, Err: err}
	}

	var docs []models.RawDocument
	switch ext := strings.ToLower(filepath.Ext(base)); ext {
	case ".pdf":
		docs, err = loadPDF(ctx, path, base)
	case ".txt":
		docs, err = loadText(ctx, content, base)
	case ".md", ".markdown":
		docs, err = loadMarkdown(content, base)
	case ".docx":
		docs, err = loadDocx(content, base)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	if err != nil {
		return nil, &types.LoadError{Path: base, Err: err}
	}

	docs = dropBlank(docs)
	if len(docs) == 0 {
		return nil, &types.LoadError{Path: base, Err: ErrEmptyDocument}
	}

	log.Printf("Loaded %s: %d document(s)", base, len(docs))
	return docs, nil
}

func (l *FileLoader) persist(base string, content []byte) (string, error) {
	if err := os.MkdirAll(l.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}
	path := filepath.Join(l.CacheDir, base)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to persist upload: %w", err)
	}
	return path, nil
}

func loadPDF(ctx context.Context, path, origin string) ([]models.RawDocument, error) {
	pages, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("invalid pdf: %w", err)
	}
	if pages == 0 {
		return nil, ErrEmptyDocument
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	loaded, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to extract pdf text: %w", err)
	}

	docs := make([]models.RawDocument, 0, len(loaded))
	for i, d := range loaded {
		docs = append(docs, models.RawDocument{
			Content:  d.PageContent,
			Metadata: models.Metadata{Origin: fmt.Sprintf("%s#page=%d", origin, i+1)},
		})
	}
	return docs, nil
}

func loadText(ctx context.Context, content []byte, origin string) ([]models.RawDocument, error) {
	loaded, err := documentloaders.NewText(bytes.NewReader(content)).Load(ctx)
	if err != nil {
		return nil, err
	}
	return fromSchema(loaded, origin), nil
}

func fromSchema(loaded []schema.Document, origin string) []models.RawDocument {
	docs := make([]models.RawDocument, 0, len(loaded))
	for _, d := range loaded {
		docs = append(docs, models.RawDocument{
			Content:  d.PageContent,
			Metadata: models.Metadata{Origin: origin},
		})
	}
	return docs
}

func dropBlank(docs []models.RawDocument) []models.RawDocument {
	out := docs[:0]
	for _, d := range docs {
		if strings.TrimSpace(d.Content) != "" {
			out = append(out, d)
		}
	}
	return out
}
