package models

import "time"

// StoredFile describes an uploaded deal document.
type StoredFile struct {
	Name          string    `json:"name"`
	UniqueName    string    `json:"unique_name"`
	Path          string    `json:"path"`
	Size          int64     `json:"size"`
	SizeFormatted string    `json:"size_formatted"`
	DownloadURL   string    `json:"download_url,omitempty"`
	URLExpiresAt  time.Time `json:"url_expires_at,omitempty"`
}

// IngestionStatus reports progress of a queued document.
type IngestionStatus string

const (
	IngestionQueued    IngestionStatus = "queued"
	IngestionCompleted IngestionStatus = "completed"
	IngestionFailed    IngestionStatus = "failed"
)

// IngestionJob tracks a document queued for extraction into a deal.
type IngestionJob struct {
	ID        string          `json:"id"`
	File      StoredFile      `json:"file"`
	Status    IngestionStatus `json:"status"`
	DealID    string          `json:"deal_id,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
