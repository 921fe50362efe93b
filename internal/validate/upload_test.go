package validate

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pickscan/pickscan/pkg/logger"
)

// multipartHeader builds a real multipart.FileHeader carrying content.
func multipartHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["file"][0]
}

// pngBytes is a minimal valid PNG signature plus padding so content sniffing
// reports image/png.
func pngBytes() []byte {
	sig := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	return append(sig, make([]byte, 64)...)
}

func newValidator() *UploadValidator {
	return NewUploadValidator(logger.NewTestLogger(), 1024, 10)
}

func TestValidateAcceptsPNG(t *testing.T) {
	header := multipartHeader(t, "scan.png", pngBytes())

	result, err := newValidator().ValidateFile(header)
	require.NoError(t, err)

	assert.True(t, result.IsValid)
	assert.Equal(t, "image/png", result.MimeType)
	assert.Empty(t, result.Errors)
}

func TestValidateRejectsOversizedFile(t *testing.T) {
	big := append(pngBytes(), make([]byte, 2048)...)
	header := multipartHeader(t, "scan.png", big)

	result, err := newValidator().ValidateFile(header)
	require.NoError(t, err)

	require.False(t, result.IsValid)
	assert.Equal(t, "FILE_TOO_LARGE", result.Errors[0].Code)
}

func TestValidateRejectsUnknownExtension(t *testing.T) {
	header := multipartHeader(t, "orders.exe", []byte("MZ"))

	result, err := newValidator().ValidateFile(header)
	require.NoError(t, err)

	require.False(t, result.IsValid)
	assert.Equal(t, "INVALID_FILE_TYPE", result.Errors[0].Code)
}

func TestValidateRejectsMimeMismatch(t *testing.T) {
	// .png extension but plain text content.
	header := multipartHeader(t, "fake.png", []byte("just some text, not an image"))

	result, err := newValidator().ValidateFile(header)
	require.NoError(t, err)

	require.False(t, result.IsValid)
	assert.Equal(t, "INVALID_MIME_TYPE", result.Errors[0].Code)
}

func TestValidateRejectsUnparsablePDF(t *testing.T) {
	// Sniffs as application/pdf but the structure is garbage.
	content := append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte{0x00}, 32)...)
	header := multipartHeader(t, "broken.pdf", content)

	result, err := newValidator().ValidateFile(header)
	require.NoError(t, err)

	require.False(t, result.IsValid)
	assert.Equal(t, "INVALID_PDF", result.Errors[0].Code)
}

func TestValidateFilesReportsPerFile(t *testing.T) {
	headers := []*multipart.FileHeader{
		multipartHeader(t, "good.png", pngBytes()),
		multipartHeader(t, "bad.exe", []byte("MZ")),
	}

	results, err := newValidator().ValidateFiles(headers)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].IsValid)
	assert.False(t, results[1].IsValid)
}
