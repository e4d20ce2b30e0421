package service

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/deal-desk-api/internal/models"
	"github.com/noah-isme/deal-desk-api/internal/validation"
	appErrors "github.com/noah-isme/deal-desk-api/pkg/errors"
	"github.com/noah-isme/deal-desk-api/pkg/jobs"
)

const (
	ingestionJobType       = "deal_document"
	ingestionConfidenceMin = 30
	ingestionConfidenceMax = 99
)

var tickerPrefix = regexp.MustCompile(`^[A-Z0-9]{2,10}`)

type ingestionQueue interface {
	Enqueue(job jobs.Job) error
	Stats() jobs.Stats
}

// IngestionService turns uploaded documents into deals awaiting review. The
// extraction itself is a placeholder: it derives the ticker from the file
// name and fills a random confidence score.
type IngestionService struct {
	store   DealStore
	cache   dealCacheInvalidator
	metrics *MetricsService
	logger  *zap.Logger
	engine  *validation.Engine
	faker   *gofakeit.Faker
	now     func() time.Time

	queue ingestionQueue

	mu   sync.RWMutex
	jobs map[string]*models.IngestionJob
}

// NewIngestionService builds the service. Attach a queue with UseQueue, or
// documents are processed inline.
func NewIngestionService(store DealStore, cache dealCacheInvalidator, metrics *MetricsService, logger *zap.Logger) *IngestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestionService{
		store:   store,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		engine:  validation.MustNewEngine(nil),
		faker:   gofakeit.New(0),
		now:     time.Now,
		jobs:    make(map[string]*models.IngestionJob),
	}
}

// UseQueue routes submissions through q.
func (s *IngestionService) UseQueue(q ingestionQueue) {
	s.queue = q
}

// Submit records a job for file and queues it.
func (s *IngestionService) Submit(ctx context.Context, file models.StoredFile) (*models.IngestionJob, error) {
	now := s.now().UTC()
	job := &models.IngestionJob{
		ID:        uuid.NewString(),
		File:      file,
		Status:    models.IngestionQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	if s.queue == nil {
		if err := s.Process(ctx, jobs.Job{ID: job.ID, Type: ingestionJobType, Payload: file}); err != nil {
			s.Fail(jobs.Job{ID: job.ID}, err)
		}
		return s.Job(job.ID)
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: ingestionJobType, Payload: file, Enqueued: now}); err != nil {
		s.Fail(jobs.Job{ID: job.ID}, err)
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "ingestion queue unavailable")
	}
	s.metrics.RecordIngestion(string(models.IngestionQueued))
	return s.Job(job.ID)
}

// Process is the queue handler.
func (s *IngestionService) Process(ctx context.Context, job jobs.Job) error {
	file, ok := job.Payload.(models.StoredFile)
	if !ok {
		return fmt.Errorf("ingestion job %s: unexpected payload %T", job.ID, job.Payload)
	}

	deal := s.extract(file)
	if _, errs, _ := s.engine.ValidateRecord(*deal); len(errs) > 0 {
		// Reviewers correct extracted values before approval.
		s.logger.Warn("ingested deal needs review fixes",
			zap.String("job_id", job.ID),
			zap.String("ticker", deal.Ticker),
			zap.Int("field_errors", len(errs)),
		)
	}
	if err := s.store.Save(ctx, deal); err != nil {
		return fmt.Errorf("save ingested deal: %w", err)
	}
	if s.cache != nil {
		s.cache.InvalidateDeals(ctx)
	}

	s.update(job.ID, func(j *models.IngestionJob) {
		j.Status = models.IngestionCompleted
		j.DealID = deal.ID
		j.Error = ""
	})
	s.metrics.RecordIngestion(string(models.IngestionCompleted))
	s.logger.Info("deal document ingested",
		zap.String("job_id", job.ID),
		zap.String("deal_id", deal.ID),
		zap.String("ticker", deal.Ticker),
	)
	return nil
}

// Fail marks a job that exhausted its retries.
func (s *IngestionService) Fail(job jobs.Job, err error) {
	s.update(job.ID, func(j *models.IngestionJob) {
		j.Status = models.IngestionFailed
		j.Error = err.Error()
	})
	s.metrics.RecordIngestion(string(models.IngestionFailed))
	s.logger.Warn("deal document ingestion failed", zap.String("job_id", job.ID), zap.Error(err))
}

// Job returns a copy of the tracked job.
func (s *IngestionService) Job(id string) (*models.IngestionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "ingestion job not found")
	}
	cp := *job
	return &cp, nil
}

// QueueStats reports worker queue counters. Inline processing reports zeros.
func (s *IngestionService) QueueStats() jobs.Stats {
	if s.queue == nil {
		return jobs.Stats{}
	}
	return s.queue.Stats()
}

// Jobs lists tracked jobs, newest first.
func (s *IngestionService) Jobs() []models.IngestionJob {
	s.mu.RLock()
	out := make([]models.IngestionJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *IngestionService) update(id string, fn func(*models.IngestionJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = s.now().UTC()
}

func (s *IngestionService) extract(file models.StoredFile) *models.Deal {
	source := file.UniqueName
	deal := &models.Deal{
		Ticker:            tickerFromFilename(file.Name),
		Structure:         models.DealStructures[s.faker.Number(0, len(models.DealStructures)-1)],
		Status:            models.DealStatusPendingReview,
		AIConfidenceScore: s.faker.Number(ingestionConfidenceMin, ingestionConfidenceMax),
		SourceFile:        &source,
	}
	if deal.Ticker == "" {
		deal.Ticker = strings.ToUpper(s.faker.LetterN(4))
	}
	company := s.faker.Company()
	deal.CompanyName = &company
	return deal
}

// tickerFromFilename takes the leading ticker-shaped run of a document name,
// e.g. "AAPL_term_sheet.pdf" gives "AAPL".
func tickerFromFilename(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return tickerPrefix.FindString(base)
}
