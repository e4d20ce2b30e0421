package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/deal-desk-api/internal/models"
)

// DealRepository persists deals in PostgreSQL as JSONB documents.
type DealRepository struct {
	db *sqlx.DB
}

// NewDealRepository constructs a DealRepository.
func NewDealRepository(db *sqlx.DB) *DealRepository {
	return &DealRepository{db: db}
}

type dealRow struct {
	ID        string    `db:"id"`
	Ticker    string    `db:"ticker"`
	Status    string    `db:"status"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row dealRow) toModel() (models.Deal, error) {
	var deal models.Deal
	if err := json.Unmarshal(row.Payload, &deal); err != nil {
		return models.Deal{}, fmt.Errorf("decode deal %s: %w", row.ID, err)
	}
	deal.ID = row.ID
	deal.CreatedAt = row.CreatedAt
	deal.UpdatedAt = row.UpdatedAt
	return deal, nil
}

// GetAll returns every deal, newest first.
func (r *DealRepository) GetAll(ctx context.Context) ([]models.Deal, error) {
	const query = `SELECT id, ticker, status, payload, created_at, updated_at FROM deals ORDER BY created_at DESC, id`
	var rows []dealRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	deals := make([]models.Deal, 0, len(rows))
	for _, row := range rows {
		deal, err := row.toModel()
		if err != nil {
			return nil, err
		}
		deals = append(deals, deal)
	}
	return deals, nil
}

// GetByID fetches a deal by id.
func (r *DealRepository) GetByID(ctx context.Context, id string) (*models.Deal, error) {
	const query = `SELECT id, ticker, status, payload, created_at, updated_at FROM deals WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByTicker fetches the most recently updated deal with ticker.
func (r *DealRepository) GetByTicker(ctx context.Context, ticker string) (*models.Deal, error) {
	const query = `SELECT id, ticker, status, payload, created_at, updated_at FROM deals WHERE ticker = $1 ORDER BY updated_at DESC LIMIT 1`
	return r.getOne(ctx, query, ticker)
}

func (r *DealRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Deal, error) {
	var row dealRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		return nil, err
	}
	deal, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

// Save upserts the deal keyed by id.
func (r *DealRepository) Save(ctx context.Context, deal *models.Deal) error {
	if deal.ID == "" {
		deal.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = now
	}
	deal.UpdatedAt = now

	payload, err := json.Marshal(deal)
	if err != nil {
		return fmt.Errorf("encode deal: %w", err)
	}
	row := dealRow{
		ID:        deal.ID,
		Ticker:    deal.Ticker,
		Status:    string(deal.Status),
		Payload:   payload,
		CreatedAt: deal.CreatedAt,
		UpdatedAt: deal.UpdatedAt,
	}

	const query = `INSERT INTO deals (id, ticker, status, payload, created_at, updated_at)
		VALUES (:id, :ticker, :status, :payload, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET ticker = EXCLUDED.ticker, status = EXCLUDED.status, payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("save deal: %w", err)
	}
	return nil
}

// Delete removes a deal and reports whether a row existed.
func (r *DealRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM deals WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete deal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete deal: %w", err)
	}
	return affected > 0, nil
}

// Ping checks database connectivity.
func (r *DealRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
