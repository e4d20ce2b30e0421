// Package form stages a single in-progress deal edit and tracks how the user
// has interacted with it.
package form

import (
	"errors"
	"fmt"
	"sort"

	"github.com/noah-isme/deal-desk-api/internal/models"
	"github.com/noah-isme/deal-desk-api/internal/validation"
)

var (
	// ErrUnknownField is returned when a caller addresses a field outside the deal schema.
	ErrUnknownField = errors.New("unknown deal field")
	// ErrReadOnlyField is returned when a caller tries to edit a system maintained field.
	ErrReadOnlyField = errors.New("field is maintained by the system")
)

// Buffer is the ephemeral edit state of one session. It is not safe for
// concurrent use; the owning session serialises access.
type Buffer struct {
	engine *validation.Engine

	mode       models.FormMode
	values     models.FormValues
	results    map[string]models.FieldResult
	touched    map[string]struct{}
	dirty      bool
	submitting bool
	generation int
}

// NewBuffer returns an empty buffer in add mode.
func NewBuffer(engine *validation.Engine) *Buffer {
	b := &Buffer{engine: engine}
	b.clear()
	return b
}

// SetFieldValue stores value as-is, marks the buffer dirty and re-validates
// the field together with every field that depends on it.
func (b *Buffer) SetFieldValue(field string, value interface{}) error {
	if err := checkEditable(field); err != nil {
		return err
	}
	b.values[field] = value
	b.dirty = true
	b.revalidate(append([]string{field}, validation.Dependents(field)...))
	return nil
}

// TouchField records user interaction with a field, validating it if it has
// no verdict yet.
func (b *Buffer) TouchField(field string) error {
	if !models.IsDealField(field) {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	b.touched[field] = struct{}{}
	if _, ok := b.results[field]; !ok {
		b.revalidate([]string{field})
	}
	return nil
}

// LoadForEdit replaces the buffer contents with record, validates it once and
// leaves every field untouched so errors stay hidden until interaction.
func (b *Buffer) LoadForEdit(record models.Deal, mode models.FormMode) {
	b.Reset()
	b.values = record.Values()
	b.mode = mode
	b.results = b.engine.ValidateAll(b.values)
	b.touched = make(map[string]struct{})
}

// Reset clears all state, returns to add mode and bumps the generation so
// clients drop stale input widgets.
func (b *Buffer) Reset() {
	b.clear()
	b.generation++
}

// ValidateAll re-validates the whole form and marks every field touched.
func (b *Buffer) ValidateAll() {
	b.results = b.engine.ValidateAll(b.values)
	for field := range b.results {
		b.touched[field] = struct{}{}
	}
}

// SetSubmitting toggles the in-flight flag used by CanSubmit.
func (b *Buffer) SetSubmitting(submitting bool) {
	b.submitting = submitting
}

// SetMode switches the buffer mode without touching values.
func (b *Buffer) SetMode(mode models.FormMode) {
	b.mode = mode
}

// Mode returns the current mode.
func (b *Buffer) Mode() models.FormMode { return b.mode }

// Generation returns the reset counter.
func (b *Buffer) Generation() int { return b.generation }

// IsDirty reports whether any field was edited since the last load or reset.
func (b *Buffer) IsDirty() bool { return b.dirty }

// IsSubmitting reports whether a submission is in flight.
func (b *Buffer) IsSubmitting() bool { return b.submitting }

// Values returns a copy of the staged values.
func (b *Buffer) Values() models.FormValues {
	return b.values.Clone()
}

// Value returns the staged value for field.
func (b *Buffer) Value(field string) (interface{}, bool) {
	v, ok := b.values[field]
	return v, ok
}

// HasErrors reports whether any validated field is currently invalid.
func (b *Buffer) HasErrors() bool {
	for _, res := range b.results {
		if !res.IsValid {
			return true
		}
	}
	return false
}

// ErrorCount returns the number of invalid fields.
func (b *Buffer) ErrorCount() int {
	count := 0
	for _, res := range b.results {
		if !res.IsValid {
			count++
		}
	}
	return count
}

// FieldErrors maps each invalid field to its message.
func (b *Buffer) FieldErrors() map[string]string {
	return validation.FieldErrors(b.results)
}

// VisibleErrors limits FieldErrors to fields the user has interacted with.
func (b *Buffer) VisibleErrors() map[string]string {
	out := make(map[string]string)
	for field, msg := range b.FieldErrors() {
		if _, ok := b.touched[field]; ok {
			out[field] = msg
		}
	}
	return out
}

// CanSubmit is true when there are no errors, nothing is in flight and both
// ticker and structure are filled in.
func (b *Buffer) CanSubmit() bool {
	if b.HasErrors() || b.submitting {
		return false
	}
	return b.values.String("ticker") != "" && b.values.String("structure") != ""
}

// Touched returns the touched fields in sorted order.
func (b *Buffer) Touched() []string {
	fields := make([]string, 0, len(b.touched))
	for field := range b.touched {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Snapshot returns a read-only copy of the buffer for the presentation layer.
func (b *Buffer) Snapshot() models.FormSnapshot {
	results := make(map[string]models.FieldResult, len(b.results))
	for field, res := range b.results {
		results[field] = res
	}
	return models.FormSnapshot{
		Mode:          b.mode,
		Values:        b.Values(),
		Results:       results,
		FieldErrors:   b.FieldErrors(),
		VisibleErrors: b.VisibleErrors(),
		Warnings:      b.engine.Warnings(b.values),
		TouchedFields: b.Touched(),
		HasErrors:     b.HasErrors(),
		ErrorCount:    b.ErrorCount(),
		CanSubmit:     b.CanSubmit(),
		IsDirty:       b.dirty,
		IsSubmitting:  b.submitting,
		Generation:    b.generation,
	}
}

func (b *Buffer) revalidate(fields []string) {
	for _, field := range fields {
		b.results[field] = b.engine.ValidateField(field, b.values[field], b.values)
	}
}

func (b *Buffer) clear() {
	b.mode = models.FormModeAdd
	b.values = models.FormValues{}
	b.results = make(map[string]models.FieldResult)
	b.touched = make(map[string]struct{})
	b.dirty = false
	b.submitting = false
}

func checkEditable(field string) error {
	if !models.IsDealField(field) {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	if models.IsSystemField(field) {
		return fmt.Errorf("%w: %s", ErrReadOnlyField, field)
	}
	return nil
}
