package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/deal-desk-api/internal/models"
)

// MemoryDealRepository keeps deals in process memory. It is seeded with
// synthetic deals on first access and is safe for concurrent use; concurrent
// writers to the same id resolve as last writer wins.
type MemoryDealRepository struct {
	mu    sync.RWMutex
	deals map[string]models.Deal

	seedOnce  sync.Once
	seedCount int
	seed      int64
	now       func() time.Time
}

// NewMemoryDealRepository constructs a repository that seeds seedCount deals
// lazily. A zero count yields an empty store.
func NewMemoryDealRepository(seedCount int, seed int64) *MemoryDealRepository {
	return &MemoryDealRepository{
		deals:     make(map[string]models.Deal),
		seedCount: seedCount,
		seed:      seed,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryDealRepository) ensureSeeded() {
	r.seedOnce.Do(func() {
		if r.seedCount <= 0 {
			return
		}
		generated := GenerateDeals(r.seedCount, r.seed)
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, deal := range generated {
			r.deals[deal.ID] = deal
		}
	})
}

// GetAll returns every deal, newest first.
func (r *MemoryDealRepository) GetAll(ctx context.Context) ([]models.Deal, error) {
	r.ensureSeeded()
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Deal, 0, len(r.deals))
	for _, deal := range r.deals {
		out = append(out, deal)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetByID fetches a deal by its surrogate id.
func (r *MemoryDealRepository) GetByID(ctx context.Context, id string) (*models.Deal, error) {
	r.ensureSeeded()
	r.mu.RLock()
	defer r.mu.RUnlock()

	deal, ok := r.deals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &deal, nil
}

// GetByTicker returns the most recently updated deal carrying ticker.
func (r *MemoryDealRepository) GetByTicker(ctx context.Context, ticker string) (*models.Deal, error) {
	r.ensureSeeded()
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *models.Deal
	for _, deal := range r.deals {
		if deal.Ticker != ticker {
			continue
		}
		if found == nil || deal.UpdatedAt.After(found.UpdatedAt) {
			d := deal
			found = &d
		}
	}
	if found == nil {
		return nil, sql.ErrNoRows
	}
	return found, nil
}

// Save inserts or replaces the deal keyed by id, assigning an id and
// timestamps as needed.
func (r *MemoryDealRepository) Save(ctx context.Context, deal *models.Deal) error {
	r.ensureSeeded()
	now := r.now()
	if deal.ID == "" {
		deal.ID = uuid.NewString()
	}
	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = now
	}
	deal.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.deals[deal.ID] = *deal
	return nil
}

// Delete removes the deal and reports whether it existed.
func (r *MemoryDealRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.ensureSeeded()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.deals[id]; !ok {
		return false, nil
	}
	delete(r.deals, id)
	return true, nil
}

// Ping always succeeds for the in-memory store.
func (r *MemoryDealRepository) Ping(ctx context.Context) error {
	return nil
}
