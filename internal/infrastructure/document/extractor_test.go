package document

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deadline-agent/pkg/errors"
)

type fakeOCR struct {
	text string
	err  error
}

func (f fakeOCR) ExtractText(context.Context, string, []byte) (string, error) {
	return f.text, f.err
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindText, KindOf("a.TXT"))
	assert.Equal(t, KindPDF, KindOf("dir/notice.pdf"))
	assert.Equal(t, KindImage, KindOf("scan.jfif"))
	assert.Equal(t, KindImage, KindOf("scan.JPEG"))
	assert.Equal(t, KindUnsupported, KindOf("sheet.xlsx"))
	assert.Equal(t, KindUnsupported, KindOf("README"))
	assert.True(t, Supported("x.png"))
	assert.False(t, Supported("x.docx"))
}

func TestExtract_Text(t *testing.T) {
	e := NewExtractor()
	text, err := e.Extract(context.Background(), "notice.txt", []byte("\xef\xbb\xbf  Prazo de 15 dias úteis \n"))
	require.NoError(t, err)
	assert.Equal(t, "Prazo de 15 dias úteis", text)
}

func TestExtract_TextInvalidUTF8(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), "bad.txt", []byte{0xff, 0xfe, 0xfd})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentExtractionFailed))
}

func TestExtract_EmptyText(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), "empty.txt", []byte("   \n"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentExtractionFailed))
	assert.Equal(t, "Could not extract text from file", errors.Message(err))
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), "sheet.XLSX", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentUnsupported))
	assert.Equal(t, "Unsupported file type: .xlsx", errors.Message(err))
}

func TestExtract_ImageNeedsExtractor(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), "scan.png", []byte{0x89, 'P', 'N', 'G'})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentUnsupported))

	e := NewExtractor(WithImageExtractor(fakeOCR{text: "SAF-T de maio"}))
	text, err := e.Extract(context.Background(), "scan.png", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	assert.Equal(t, "SAF-T de maio", text)

	e = NewExtractor(WithImageExtractor(fakeOCR{err: fmt.Errorf("ocr down")}))
	_, err = e.Extract(context.Background(), "scan.jpg", []byte{0xff})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentExtractionFailed))
	assert.Contains(t, err.Error(), "ocr down")
}

func TestExtract_TooLarge(t *testing.T) {
	e := NewExtractor(WithMaxBytes(8))
	assert.Equal(t, int64(8), e.MaxBytes())
	_, err := e.Extract(context.Background(), "big.txt", []byte(strings.Repeat("a", 9)))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentTooLarge))
}

func TestExtract_InvalidPDF(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), "notice.pdf", []byte("definitely not a pdf"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentExtractionFailed))
}

func TestExtract_TruncatedPDF(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), "cut.pdf", []byte("%PDF-1.4\n1 0 obj\n<<"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentExtractionFailed))
}
