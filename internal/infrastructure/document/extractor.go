// Package document turns uploaded files into plain text for the extraction
// pipeline. Text and PDF text layers are read natively; image formats are
// delegated to an optional ImageTextExtractor.
package document

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/turtacn/deadline-agent/pkg/errors"
)

// DefaultMaxBytes caps the accepted document size.
const DefaultMaxBytes = 10 << 20

// Kind classifies a file by extension.
type Kind string

const (
	KindText        Kind = "text"
	KindPDF         Kind = "pdf"
	KindImage       Kind = "image"
	KindUnsupported Kind = "unsupported"
)

var kindsByExt = map[string]Kind{
	".txt":  KindText,
	".pdf":  KindPDF,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".jfif": KindImage,
}

// KindOf returns the document kind for name based on its extension.
func KindOf(name string) Kind {
	if k, ok := kindsByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return k
	}
	return KindUnsupported
}

// Supported reports whether name has an extension the extractor recognises.
func Supported(name string) bool {
	return KindOf(name) != KindUnsupported
}

// ImageTextExtractor recognises text in an image. No implementation ships
// with the agent; deployments may plug an OCR service in.
type ImageTextExtractor interface {
	ExtractText(ctx context.Context, name string, content []byte) (string, error)
}

// Extractor reads text out of documents.
type Extractor struct {
	maxBytes int64
	images   ImageTextExtractor
}

type Option func(*Extractor)

// WithMaxBytes overrides DefaultMaxBytes.
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxBytes = n
		}
	}
}

// WithImageExtractor enables image documents.
func WithImageExtractor(x ImageTextExtractor) Option {
	return func(e *Extractor) { e.images = x }
}

func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{maxBytes: DefaultMaxBytes}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxBytes returns the size limit in effect.
func (e *Extractor) MaxBytes() int64 { return e.maxBytes }

// Extract returns the text of the named document.
func (e *Extractor) Extract(ctx context.Context, name string, content []byte) (string, error) {
	if int64(len(content)) > e.maxBytes {
		return "", errors.New(errors.ErrCodeDocumentTooLarge, "document too large").
			WithDetail(fmt.Sprintf("%s: %d bytes exceeds %d", name, len(content), e.maxBytes))
	}

	var (
		text string
		err  error
	)
	switch kind := KindOf(name); kind {
	case KindText:
		text, err = plainText(content)
	case KindPDF:
		text, err = pdfText(content)
	case KindImage:
		if e.images == nil {
			return "", errors.New(errors.ErrCodeDocumentUnsupported, "Unsupported file type: "+strings.ToLower(filepath.Ext(name))).
				WithDetail("no image text extractor configured")
		}
		text, err = e.images.ExtractText(ctx, name, content)
	default:
		ext := strings.ToLower(filepath.Ext(name))
		if ext == "" {
			ext = name
		}
		return "", errors.New(errors.ErrCodeDocumentUnsupported, "Unsupported file type: "+ext)
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeDocumentExtractionFailed, "Could not extract text from file").WithDetail(name)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New(errors.ErrCodeDocumentExtractionFailed, "Could not extract text from file").WithDetail(name + ": no text found")
	}
	return text, nil
}

func plainText(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(content) {
		return "", errors.New(errors.ErrCodeDocumentExtractionFailed, "text is not valid UTF-8")
	}
	return string(content), nil
}

// pdfText concatenates the text layer of every page, one line per row.
func pdfText(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		for _, row := range rows {
			for _, word := range row.Content {
				sb.WriteString(word.S)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
