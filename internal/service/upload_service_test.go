package service

import (
	"context"
	"errors"
	"io"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/deal-desk-api/pkg/errors"
	"github.com/noah-isme/deal-desk-api/pkg/storage"
)

func newTestUploadService(t *testing.T, cfg UploadServiceConfig) *UploadService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Minute)
	return NewUploadService(store, signer, nil, nil, cfg)
}

func TestUploadServiceSaveAndOpen(t *testing.T) {
	svc := newTestUploadService(t, UploadServiceConfig{})

	file, err := svc.Save(context.Background(), "AAPL Term Sheet.PDF", strings.NewReader("%PDF-1.4 body"), 13)
	require.NoError(t, err)

	assert.Equal(t, "AAPL Term Sheet.PDF", file.Name)
	assert.Regexp(t, regexp.MustCompile(`^AAPL Term Sheet-[0-9a-f]{8}\.pdf$`), file.UniqueName)
	assert.Equal(t, int64(13), file.Size)
	assert.Equal(t, "13 B", file.SizeFormatted)
	require.True(t, strings.HasPrefix(file.DownloadURL, "/api/v1/uploads/download?token="))

	parsed, err := url.Parse(file.DownloadURL)
	require.NoError(t, err)
	download, err := svc.Open(parsed.Query().Get("token"))
	require.NoError(t, err)
	defer download.File.Close()
	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(body))
	assert.Equal(t, file.UniqueName, download.Filename)
}

func TestUploadServiceRejectsExtension(t *testing.T) {
	svc := newTestUploadService(t, UploadServiceConfig{})

	_, err := svc.Save(context.Background(), "deal.xlsx", strings.NewReader("x"), 1)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrUnsupportedFile.Code, appErr.Code)
	assert.True(t, svc.Allowed("memo.DOC"))
	assert.False(t, svc.Allowed("memo"))
}

func TestUploadServiceEnforcesSize(t *testing.T) {
	svc := newTestUploadService(t, UploadServiceConfig{MaxFileSize: 4})

	_, err := svc.Save(context.Background(), "deal.pdf", strings.NewReader("12345"), 5)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrFileTooLarge.Code, appErr.Code)

	_, err = svc.Save(context.Background(), "deal.pdf", strings.NewReader("123456789"), 0)
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrFileTooLarge.Code, appErr.Code)
}

func TestUploadServiceOpenRejectsBadToken(t *testing.T) {
	svc := newTestUploadService(t, UploadServiceConfig{})

	_, err := svc.Open("not-a-token")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErr.Code)
}

func TestUniqueUploadNameKeepsBase(t *testing.T) {
	a := UniqueUploadName("memo.docx")
	b := UniqueUploadName("memo.docx")
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^memo-[0-9a-f]{8}\.docx$`, a)
}
