package parser

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"rag-chatbot/internal/apperror"
	"rag-chatbot/internal/models"
)

// Ext returns the lower-cased extension of path, including the dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// CheckSupported fails with an unsupported error naming ext and the
// supported set when ext cannot be ingested.
func CheckSupported(ext string) error {
	if slices.Contains(models.SupportedExtensions, ext) {
		return nil
	}
	return apperror.Newf(apperror.KindUnsupported, "load",
		"unsupported file type: %s. Supported: %s", ext, strings.Join(models.SupportedExtensions, ", "))
}

// Load reads the file at filePath into documents, choosing the loader by
// extension. source is recorded as the documents' source metadata; when empty
// the base name of filePath is used.
func Load(ctx context.Context, filePath, source string) ([]schema.Document, error) {
	ext := Ext(filePath)
	if err := CheckSupported(ext); err != nil {
		return nil, err
	}
	if source == "" {
		source = filepath.Base(filePath)
	}

	var (
		docs []schema.Document
		err  error
	)
	switch ext {
	case ".pdf":
		docs, err = loadPDF(filePath)
	case ".md":
		docs, err = loadText(ctx, filePath)
		if err == nil {
			addMarkdownTitle(docs)
		}
	default:
		docs, err = loadText(ctx, filePath)
	}
	if err != nil {
		return nil, apperror.New(apperror.KindLoad, "load", err)
	}

	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = map[string]any{}
		}
		docs[i].Metadata[models.MetaSource] = source
	}
	return docs, nil
}

// loadPDF returns one document per page that has text.
func loadPDF(filePath string) ([]schema.Document, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var docs []schema.Document
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		docs = append(docs, schema.Document{
			PageContent: pageText,
			Metadata: map[string]any{
				models.MetaPage:       i,
				models.MetaTotalPages: numPages,
			},
		})
	}
	return docs, nil
}

func loadText(ctx context.Context, filePath string) ([]schema.Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s is not valid UTF-8 text", filepath.Base(filePath))
	}
	docs, err := documentloaders.NewText(bytes.NewReader(data)).Load(ctx)
	if err != nil {
		return nil, err
	}
	// a blank file has nothing to index
	out := docs[:0]
	for _, d := range docs {
		if strings.TrimSpace(d.PageContent) != "" {
			out = append(out, d)
		}
	}
	return out, nil
}

// addMarkdownTitle records the first heading of each markdown document.
func addMarkdownTitle(docs []schema.Document) {
	md := goldmark.New()
	for i := range docs {
		src := []byte(docs[i].PageContent)
		root := md.Parser().Parse(text.NewReader(src))
		var title string
		_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
			if !entering {
				return ast.WalkContinue, nil
			}
			if h, ok := n.(*ast.Heading); ok {
				title = strings.TrimSpace(string(h.Text(src)))
				return ast.WalkStop, nil
			}
			return ast.WalkContinue, nil
		})
		if title == "" {
			continue
		}
		if docs[i].Metadata == nil {
			docs[i].Metadata = map[string]any{}
		}
		docs[i].Metadata[models.MetaTitle] = title
	}
}

// Split breaks documents into overlapping chunks with the recursive
// character splitter. Every chunk keeps its document's metadata and gains a
// chunk_index numbered across the whole input.
func Split(docs []schema.Document, chunkSize, chunkOverlap int) ([]schema.Document, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)
	chunks, err := textsplitter.SplitDocuments(splitter, docs)
	if err != nil {
		return nil, apperror.New(apperror.KindLoad, "split", err)
	}
	for i := range chunks {
		meta := make(map[string]any, len(chunks[i].Metadata)+1)
		for k, v := range chunks[i].Metadata {
			meta[k] = v
		}
		meta[models.MetaChunkIndex] = i
		chunks[i].Metadata = meta
	}
	return chunks, nil
}

// StringMetadata flattens metadata values to strings for stores that only
// keep string maps.
func StringMetadata(meta map[string]any) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int:
			out[k] = strconv.Itoa(val)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}
