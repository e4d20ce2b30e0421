package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/deal-desk-api/internal/models"
)

type mockDealStore struct {
	mu      sync.Mutex
	items   map[string]*models.Deal
	nextID  int
	clock   time.Time
	saveErr error
	listErr error
	saves   int
	deletes []string
}

func newMockDealStore(deals ...models.Deal) *mockDealStore {
	m := &mockDealStore{items: map[string]*models.Deal{}, clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	for i := range deals {
		d := deals[i]
		if d.ID == "" {
			m.nextID++
			d.ID = fmt.Sprintf("deal-%d", m.nextID)
		}
		m.clock = m.clock.Add(time.Minute)
		d.CreatedAt, d.UpdatedAt = m.clock, m.clock
		m.items[d.ID] = &d
	}
	return m
}

func (m *mockDealStore) GetAll(ctx context.Context) ([]models.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.Deal, 0, len(m.items))
	for _, d := range m.items {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockDealStore) GetByID(ctx context.Context, id string) (*models.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.items[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDealStore) GetByTicker(ctx context.Context, ticker string) (*models.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *models.Deal
	for _, d := range m.items {
		if d.Ticker == ticker && (found == nil || d.UpdatedAt.After(found.UpdatedAt)) {
			found = d
		}
	}
	if found == nil {
		return nil, sql.ErrNoRows
	}
	cp := *found
	return &cp, nil
}

func (m *mockDealStore) Save(ctx context.Context, deal *models.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.clock = m.clock.Add(time.Minute)
	if deal.ID == "" {
		m.nextID++
		deal.ID = fmt.Sprintf("deal-%d", m.nextID)
		deal.CreatedAt = m.clock
	}
	deal.UpdatedAt = m.clock
	cp := *deal
	m.items[deal.ID] = &cp
	return nil
}

func (m *mockDealStore) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, id)
	if _, ok := m.items[id]; !ok {
		return false, nil
	}
	delete(m.items, id)
	return true, nil
}

func (m *mockDealStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) InvalidateDeals(ctx context.Context) {
	c.calls++
}

type recordedTransition struct {
	action string
	result string
}

type recordingMetrics struct {
	transitions []recordedTransition
	fieldErrors []map[string]string
}

func (r *recordingMetrics) RecordTransition(action, result string) {
	r.transitions = append(r.transitions, recordedTransition{action, result})
}

func (r *recordingMetrics) RecordFieldErrors(fieldErrors map[string]string) {
	r.fieldErrors = append(r.fieldErrors, fieldErrors)
}

func stringRef(s string) *string { return &s }

func floatRef(f float64) *float64 { return &f }

func intRef(i int) *int { return &i }
