package dto

import "github.com/noah-isme/deal-desk-api/internal/models"

// FieldValueRequest sets one form field.
type FieldValueRequest struct {
	Value interface{} `json:"value"`
}

// FormValuesRequest carries field values to merge before a lifecycle action.
type FormValuesRequest struct {
	Values models.FormValues `json:"values"`
}

// LoadFormRequest opens a stored deal in the form buffer.
type LoadFormRequest struct {
	Mode string `form:"mode" json:"mode" validate:"omitempty,oneof=add edit review"`
}

// UploadTabRequest switches the add flow tab.
type UploadTabRequest struct {
	Tab string `json:"tab" validate:"required,oneof=upload manual"`
}

// ExportRequest selects the export format and optional explicit deal ids.
type ExportRequest struct {
	Format string   `form:"format" json:"format" validate:"required,oneof=csv pdf"`
	IDs    []string `form:"ids" json:"ids"`
}

// SessionView is the form side of a session returned after form actions.
type SessionView struct {
	SessionID string              `json:"session_id"`
	Form      models.FormSnapshot `json:"form"`
	Review    *models.Deal        `json:"review_target,omitempty"`
	Upload    AddView             `json:"add"`
}

// AddView mirrors the add flow state.
type AddView struct {
	UploadTab    string             `json:"upload_tab"`
	StagedSource *models.StoredFile `json:"staged_source,omitempty"`
}

// UploadResponse describes a stored document and, when requested, its
// ingestion job.
type UploadResponse struct {
	File models.StoredFile    `json:"file"`
	Job  *models.IngestionJob `json:"job,omitempty"`
}

// WSMessage is a client event on the live form socket.
type WSMessage struct {
	Type  string      `json:"type" validate:"required,oneof=snapshot set_field touch reset"`
	Field string      `json:"field,omitempty"`
	Value interface{} `json:"value,omitempty"`
}

// WSReply answers every socket event with the current form and any error.
type WSReply struct {
	Type  string               `json:"type"`
	Form  *models.FormSnapshot `json:"form,omitempty"`
	Error string               `json:"error,omitempty"`
}
