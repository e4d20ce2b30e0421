package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/deal-desk-api/internal/models"
	appErrors "github.com/noah-isme/deal-desk-api/pkg/errors"
	"github.com/noah-isme/deal-desk-api/pkg/storage"
)

type uploadFileStorage interface {
	SaveStream(name string, r io.Reader, maxBytes int64) (int64, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
	Path(name string) string
}

type uploadSigner interface {
	Generate(name string) (string, time.Time, error)
	Parse(token string) (string, time.Time, error)
}

// UploadServiceConfig holds upload limits.
type UploadServiceConfig struct {
	MaxFileSize       int64
	AllowedExtensions []string
	RetentionTTL      time.Duration
	APIPrefix         string
}

// UploadDownload is an opened document ready to stream.
type UploadDownload struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// UploadService stores deal source documents.
type UploadService struct {
	storage uploadFileStorage
	signer  uploadSigner
	metrics *MetricsService
	logger  *zap.Logger
	cfg     UploadServiceConfig
	extSet  map[string]struct{}
}

// NewUploadService constructs the service with defaults.
func NewUploadService(storage uploadFileStorage, signer uploadSigner, metrics *MetricsService, logger *zap.Logger, cfg UploadServiceConfig) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 20 * 1024 * 1024
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{".pdf", ".docx", ".doc"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	extSet := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extSet[ext] = struct{}{}
	}
	return &UploadService{storage: storage, signer: signer, metrics: metrics, logger: logger, cfg: cfg, extSet: extSet}
}

// Allowed reports whether filename has an accepted extension.
func (s *UploadService) Allowed(filename string) bool {
	_, ok := s.extSet[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Save writes the document under a collision free name.
func (s *UploadService) Save(ctx context.Context, filename string, content io.Reader, size int64) (*models.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || strings.TrimSpace(name) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file name is required")
	}
	if !s.Allowed(name) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFile, fmt.Sprintf("only %s files are accepted", strings.Join(s.cfg.AllowedExtensions, ", ")))
	}
	if content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if size > s.cfg.MaxFileSize {
		return nil, s.tooLarge()
	}

	unique := UniqueUploadName(name)
	written, err := s.storage.SaveStream(unique, content, s.cfg.MaxFileSize)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, s.tooLarge()
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}
	s.metrics.AddUploadedBytes(written)

	file := &models.StoredFile{
		Name:          name,
		UniqueName:    unique,
		Path:          s.storage.Path(unique),
		Size:          written,
		SizeFormatted: humanize.IBytes(uint64(written)),
	}
	if err := s.sign(file); err != nil {
		s.logger.Warn("sign upload download url", zap.String("file", unique), zap.Error(err))
	}
	s.logger.Info("deal document stored", zap.String("file", unique), zap.Int64("bytes", written))
	return file, nil
}

// Open resolves a signed token to the stored document.
func (s *UploadService) Open(token string) (*UploadDownload, error) {
	if s.signer == nil {
		return nil, appErrors.ErrInvalidToken
	}
	name, expiresAt, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, err.Error())
	}
	file, err := s.storage.Open(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}
	return &UploadDownload{File: file, Filename: name, ExpiresAt: expiresAt}, nil
}

// Remove deletes a stored document.
func (s *UploadService) Remove(name string) error {
	if err := s.storage.Delete(name); err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	return nil
}

// Cleanup removes documents older than the retention window. A zero window
// keeps everything.
func (s *UploadService) Cleanup(ctx context.Context) error {
	if s.cfg.RetentionTTL <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	removed, err := s.storage.CleanupOlderThan(s.cfg.RetentionTTL)
	if len(removed) > 0 {
		s.logger.Info("expired deal documents removed", zap.Int("count", len(removed)))
	}
	return err
}

func (s *UploadService) sign(file *models.StoredFile) error {
	if s.signer == nil {
		return nil
	}
	token, expiresAt, err := s.signer.Generate(file.UniqueName)
	if err != nil {
		return err
	}
	file.DownloadURL = fmt.Sprintf("%s/uploads/download?token=%s", s.cfg.APIPrefix, url.QueryEscape(token))
	file.URLExpiresAt = expiresAt
	return nil
}

func (s *UploadService) tooLarge() error {
	return appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("file exceeds %s limit", humanize.IBytes(uint64(s.cfg.MaxFileSize))))
}

// UniqueUploadName appends eight random hex digits to the base name.
func UniqueUploadName(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s%s", base, suffix, strings.ToLower(ext))
}
