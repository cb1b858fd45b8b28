package extraction

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	"github.com/turtacn/deadline-agent/internal/infrastructure/document"
	"github.com/turtacn/deadline-agent/internal/testutil"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestProcessDocument_Text(t *testing.T) {
	s := newTestService(t, WithTextExtractor(document.NewExtractor()))

	dr, err := s.ProcessDocument(context.Background(), Document{
		Name:    "inbox/notice.txt",
		Content: []byte("\xef\xbb\xbfTo Do: SAF-T - entregar ficheiro"),
	}, Options{Reference: refDate})
	require.NoError(t, err)
	assert.Equal(t, "notice.txt", dr.FileName)
	assert.Equal(t, "To Do: SAF-T - entregar ficheiro", dr.ExtractedText)
	assert.Equal(t, "2025-06-25", dr.Result.DeadlineString())
}

func TestProcessDocument_PreviewIsTruncated(t *testing.T) {
	s := newTestService(t, WithTextExtractor(document.NewExtractor()))
	body := "DMR " + strings.Repeat("á", 600)

	dr, err := s.ProcessDocument(context.Background(), Document{Name: "long.txt", Content: []byte(body)}, Options{Reference: refDate})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(dr.ExtractedText, "..."))
	assert.Equal(t, 503, len([]rune(dr.ExtractedText)))
	assert.Equal(t, "2025-06-10", dr.Result.DeadlineString())
}

func TestProcessDocument_Errors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		s := newTestService(t)
		_, err := s.ProcessDocument(context.Background(), Document{Name: "a.txt"}, Options{})
		assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentUnsupported))
	})

	t.Run("missing name", func(t *testing.T) {
		s := newTestService(t, WithTextExtractor(document.NewExtractor()))
		_, err := s.ProcessDocument(context.Background(), Document{Name: "  "}, Options{})
		assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
	})

	t.Run("extractor failure is returned", func(t *testing.T) {
		x := &MockExtractor{}
		x.On("Extract", mock.Anything, "scan.pdf", mock.Anything).
			Return("", errors.New(errors.ErrCodeDocumentExtractionFailed, "Could not extract text from file"))
		s := newTestService(t, WithTextExtractor(x))

		_, err := s.ProcessDocument(context.Background(), Document{Name: "scan.pdf", Content: []byte("%PDF")}, Options{})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentExtractionFailed))
		x.AssertExpectations(t)
	})
}

func TestProcessFolder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_dmr.txt", "To Do: DMR - declaração mensal de remunerações")
	writeFile(t, dir, "b_scan.png", "\x89PNG")
	writeFile(t, dir, "c_empty.txt", "   ")
	writeFile(t, dir, ".hidden.txt", "Modelo 22")
	writeFile(t, dir, "notes.docx", "Modelo 22")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.txt"), 0o700))

	logger := testutil.NewMockLogger()
	s := newTestService(t, WithTextExtractor(document.NewExtractor()), WithLogger(logger))

	summary, err := s.ProcessFolder(context.Background(), dir, Options{Reference: refDate})
	require.NoError(t, err)
	assert.NotEmpty(t, summary.BatchID)
	assert.Equal(t, fixedNow, summary.ProcessedAt)
	assert.Equal(t, 3, summary.TotalFiles)
	assert.Equal(t, 1, summary.SuccessfulExtractions)
	require.Len(t, summary.Results, 3)

	assert.Equal(t, "a_dmr.txt", summary.Results[0].FileName)
	assert.Equal(t, "2025-06-10", summary.Results[0].Result.DeadlineString())

	png := summary.Results[1]
	assert.Equal(t, "b_scan.png", png.FileName)
	assert.Equal(t, deadline.MethodFailed, png.Result.ProcessingMethod)
	assert.Equal(t, "Unsupported file type: .png", png.Result.Error)

	empty := summary.Results[2]
	assert.Equal(t, "Could not extract text from file", empty.Result.Error)
	assert.Empty(t, empty.ExtractedText)

	assert.True(t, logger.HasMessage("info", "folder processed"))
	assert.True(t, logger.HasMessage("warn", "file skipped"))

	flat := SummaryResults(summary)
	assert.Len(t, flat, 3)
}

func TestProcessFolder_NotFound(t *testing.T) {
	s := newTestService(t, WithTextExtractor(document.NewExtractor()))
	missing := filepath.Join(t.TempDir(), "nope")

	_, err := s.ProcessFolder(context.Background(), missing, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, "Folder not found: "+missing, errors.Message(err))
}

func TestProcessFolder_Empty(t *testing.T) {
	s := newTestService(t, WithTextExtractor(document.NewExtractor()))
	summary, err := s.ProcessFolder(context.Background(), t.TempDir(), Options{})
	require.NoError(t, err)
	assert.Zero(t, summary.TotalFiles)
	assert.Empty(t, summary.Results)
}

func TestIsSupportedFile(t *testing.T) {
	for name, want := range map[string]bool{
		"a.txt":  true,
		"B.PDF":  true,
		"c.jfif": true,
		"d.jpeg": true,
		"e.docx": false,
		".f.txt": false,
		"noext":  false,
	} {
		assert.Equal(t, want, isSupportedFile(name), name)
	}
}
