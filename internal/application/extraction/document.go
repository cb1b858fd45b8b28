package extraction

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

// SupportedExtensions are the file types ProcessFolder picks up.
var SupportedExtensions = []string{".txt", ".pdf", ".jpg", ".jpeg", ".png", ".jfif"}

// Document is an uploaded or discovered file.
type Document struct {
	Name    string
	Content []byte
}

// DocumentResult pairs a file with its extraction outcome.
type DocumentResult struct {
	FileName      string           `json:"file_name"`
	ExtractedText string           `json:"extracted_text,omitempty"`
	Result        *deadline.Result `json:"result"`
}

// BatchSummary is the outcome of a folder run.
type BatchSummary struct {
	BatchID               string            `json:"batch_id"`
	TotalFiles            int               `json:"total_files"`
	SuccessfulExtractions int               `json:"successful_extractions"`
	Results               []*DocumentResult `json:"results"`
	ProcessedAt           time.Time         `json:"processed_at"`
}

// ProcessDocument extracts text from doc and runs it through Process.
func (s *serviceImpl) ProcessDocument(ctx context.Context, doc Document, opts Options) (*DocumentResult, error) {
	if s.extractor == nil {
		return nil, errors.New(errors.ErrCodeDocumentUnsupported, "document processing is not configured")
	}
	name := filepath.Base(doc.Name)
	if name == "." || name == string(filepath.Separator) || strings.TrimSpace(doc.Name) == "" {
		return nil, errors.InvalidParam("document name is required")
	}

	text, err := s.extractor.Extract(ctx, name, doc.Content)
	if err != nil {
		s.logger.WithContext(ctx).Info("document text extraction failed",
			logging.String("file", name),
			logging.Err(err))
		return nil, err
	}

	r := s.Process(ctx, ProcessRequest{Text: text, Source: name, Options: opts})
	return &DocumentResult{
		FileName:      name,
		ExtractedText: preview(text, s.cfg.PreviewChars),
		Result:        r,
	}, nil
}

// preview cuts text to max runes and marks the cut with "...".
func preview(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max]) + "..."
}

func isSupportedFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// ProcessFolder runs ProcessDocument over the supported files directly in
// dir. Per-file failures are recorded as failed results.
func (s *serviceImpl) ProcessFolder(ctx context.Context, dir string, opts Options) (*BatchSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("Folder not found: " + dir)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to read folder").WithDetail(dir)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && isSupportedFile(e.Name()) {
			names = append(names, e.Name())
		}
	}

	log := s.logger.WithContext(ctx)
	results := make([]*DocumentResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.processFile(gctx, log, filepath.Join(dir, name), opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, contextError(err, "folder processing interrupted")
	}

	summary := &BatchSummary{
		BatchID:     uuid.NewString(),
		TotalFiles:  len(results),
		Results:     results,
		ProcessedAt: s.clock(),
	}
	for _, r := range results {
		if r.Result.Succeeded() {
			summary.SuccessfulExtractions++
		}
	}
	log.Info("folder processed",
		logging.String("batch_id", summary.BatchID),
		logging.String("dir", dir),
		logging.Int("total_files", summary.TotalFiles),
		logging.Int("successful", summary.SuccessfulExtractions))
	return summary, nil
}

func (s *serviceImpl) processFile(ctx context.Context, log logging.Logger, path string, opts Options) *DocumentResult {
	name := filepath.Base(path)
	content, err := os.ReadFile(path)
	if err == nil {
		var dr *DocumentResult
		dr, err = s.ProcessDocument(ctx, Document{Name: name, Content: content}, opts)
		if err == nil {
			return dr
		}
	}
	log.Warn("file skipped", logging.String("file", name), logging.Err(err))
	return &DocumentResult{
		FileName: name,
		Result:   deadline.NewFailure(errors.Message(err), s.clock()),
	}
}
