package models

// FormMode identifies why the form buffer is open.
type FormMode string

const (
	FormModeAdd    FormMode = "add"
	FormModeEdit   FormMode = "edit"
	FormModeReview FormMode = "review"
)

// ParseFormMode converts raw input into a FormMode, defaulting to add.
func ParseFormMode(raw string) (FormMode, bool) {
	switch FormMode(raw) {
	case FormModeAdd, FormModeEdit, FormModeReview:
		return FormMode(raw), true
	}
	return FormModeAdd, false
}

// FieldResult is the verdict for a single field.
type FieldResult struct {
	IsValid bool   `json:"is_valid"`
	Message string `json:"message,omitempty"`
}

// FieldError attributes a validation failure to a field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// FieldWarning is an advisory finding that never blocks submission.
type FieldWarning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormSnapshot is the read-only view of a form buffer handed to clients.
type FormSnapshot struct {
	Mode          FormMode               `json:"mode"`
	Values        FormValues             `json:"values"`
	Results       map[string]FieldResult `json:"validation_results"`
	FieldErrors   map[string]string      `json:"field_errors"`
	VisibleErrors map[string]string      `json:"visible_errors"`
	Warnings      []FieldWarning         `json:"warnings,omitempty"`
	TouchedFields []string               `json:"touched_fields"`
	HasErrors     bool                   `json:"has_errors"`
	ErrorCount    int                    `json:"error_count"`
	CanSubmit     bool                   `json:"can_submit"`
	IsDirty       bool                   `json:"is_dirty"`
	IsSubmitting  bool                   `json:"is_submitting"`
	Generation    int                    `json:"form_key"`
}
