package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/deal-desk-api/internal/models"
	"github.com/noah-isme/deal-desk-api/pkg/jobs"
)

type stubQueue struct {
	enqueued []jobs.Job
	err      error
}

func (q *stubQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, job)
	return nil
}

func (q *stubQueue) Stats() jobs.Stats {
	return jobs.Stats{Pending: len(q.enqueued)}
}

func TestIngestionCreatesPendingDeal(t *testing.T) {
	store := newMockDealStore()
	cache := &countingInvalidator{}
	svc := NewIngestionService(store, cache, nil, nil)
	queue := &stubQueue{}
	svc.UseQueue(queue)
	ctx := context.Background()

	job, err := svc.Submit(ctx, models.StoredFile{Name: "NVDA_prospectus.pdf", UniqueName: "NVDA_prospectus-1a2b3c4d.pdf"})
	require.NoError(t, err)
	assert.Equal(t, models.IngestionQueued, job.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, 1, svc.QueueStats().Pending)

	require.NoError(t, svc.Process(ctx, queue.enqueued[0]))

	done, err := svc.Job(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IngestionCompleted, done.Status)

	deal, err := store.GetByID(ctx, done.DealID)
	require.NoError(t, err)
	assert.Equal(t, "NVDA", deal.Ticker)
	assert.Equal(t, models.DealStatusPendingReview, deal.Status)
	assert.GreaterOrEqual(t, deal.AIConfidenceScore, 30)
	assert.LessOrEqual(t, deal.AIConfidenceScore, 99)
	require.NotNil(t, deal.SourceFile)
	assert.Equal(t, "NVDA_prospectus-1a2b3c4d.pdf", *deal.SourceFile)
	assert.Contains(t, models.DealStructures, deal.Structure)
	assert.Equal(t, 1, cache.calls)
}

func TestIngestionFailureIsTracked(t *testing.T) {
	store := newMockDealStore()
	store.saveErr = errors.New("db down")
	svc := NewIngestionService(store, nil, nil, nil)

	job, err := svc.Submit(context.Background(), models.StoredFile{Name: "memo.pdf", UniqueName: "memo-00000000.pdf"})
	require.NoError(t, err)
	assert.Equal(t, models.IngestionFailed, job.Status)
	assert.Contains(t, job.Error, "db down")
	assert.Len(t, svc.Jobs(), 1)
}

func TestIngestionQueueUnavailable(t *testing.T) {
	svc := NewIngestionService(newMockDealStore(), nil, nil, nil)
	svc.UseQueue(&stubQueue{err: errors.New("queue full")})

	_, err := svc.Submit(context.Background(), models.StoredFile{Name: "memo.pdf"})
	require.Error(t, err)
	require.Len(t, svc.Jobs(), 1)
	assert.Equal(t, models.IngestionFailed, svc.Jobs()[0].Status)
}

func TestTickerFromFilename(t *testing.T) {
	assert.Equal(t, "AAPL", tickerFromFilename("AAPL_term_sheet.pdf"))
	assert.Equal(t, "BRK", tickerFromFilename("BRK-memo.docx"))
	assert.Equal(t, "", tickerFromFilename("memo.pdf"))
}

func TestIngestionWithRealQueue(t *testing.T) {
	store := newMockDealStore()
	svc := NewIngestionService(store, nil, nil, nil)
	done := make(chan struct{})
	queue := jobs.NewQueue("ingestion", func(ctx context.Context, job jobs.Job) error {
		defer close(done)
		return svc.Process(ctx, job)
	}, jobs.QueueConfig{Workers: 1, OnFailure: svc.Fail})
	queue.Start(context.Background())
	defer queue.Stop()
	svc.UseQueue(queue)

	_, err := svc.Submit(context.Background(), models.StoredFile{Name: "TSLA.pdf", UniqueName: "TSLA-00000000.pdf"})
	require.NoError(t, err)
	<-done
	assert.Equal(t, 1, store.count())
}
