package validation

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"github.com/noah-isme/deal-desk-api/internal/models"
)

// sharesTolerance is the relative gap allowed between shares_amount and
// primary_shares + secondary_shares before a warning is raised.
const sharesTolerance = 0.01

// Engine validates deal fields one at a time or as a whole form. It holds no
// per-form state and is safe for concurrent use.
type Engine struct {
	validate *validator.Validate
}

// NewEngine builds an engine, registering the deal specific tags on validate.
func NewEngine(validate *validator.Validate) (*Engine, error) {
	if validate == nil {
		validate = validator.New()
	}
	if err := registerDealTags(validate); err != nil {
		return nil, fmt.Errorf("register deal validators: %w", err)
	}
	return &Engine{validate: validate}, nil
}

// MustNewEngine is NewEngine for wiring code where registration cannot fail.
func MustNewEngine(validate *validator.Validate) *Engine {
	engine, err := NewEngine(validate)
	if err != nil {
		panic(err)
	}
	return engine
}

// ValidateField returns the verdict for one field given its sibling values.
// Format and range checks run first; cross-field rules only run when the
// value itself is well formed, so a field reports at most one message.
func (e *Engine) ValidateField(name string, value interface{}, all models.FormValues) models.FieldResult {
	str := strings.TrimSpace(cast.ToString(value))

	if msg := e.checkFormat(name, str); msg != "" {
		return invalid(msg)
	}
	if msg := checkCrossField(name, str, all); msg != "" {
		return invalid(msg)
	}
	return models.FieldResult{IsValid: true}
}

// ValidateAll validates every provided field plus the fixed required set.
func (e *Engine) ValidateAll(all models.FormValues) map[string]models.FieldResult {
	results := make(map[string]models.FieldResult, len(all)+len(RequiredFields))
	for field, value := range all {
		results[field] = e.ValidateField(field, value, all)
	}
	for _, field := range RequiredFields {
		if _, done := results[field]; !done {
			results[field] = e.ValidateField(field, all[field], all)
		}
	}
	return results
}

// Warnings returns advisory findings that never block submission.
func (e *Engine) Warnings(all models.FormValues) []models.FieldWarning {
	total, okTotal := positiveNumber(all["shares_amount"])
	prim, okPrim := positiveNumber(all["primary_shares"])
	sec, okSec := positiveNumber(all["secondary_shares"])
	if !okTotal || !okPrim || !okSec {
		return nil
	}
	if math.Abs(total-(prim+sec)) > total*sharesTolerance {
		return []models.FieldWarning{{
			Field:   "shares_amount",
			Message: fmt.Sprintf("Total (%g) mismatch with Prim+Sec (%g)", total, prim+sec),
		}}
	}
	return nil
}

// ValidateRecord checks a complete deal. It returns a copy of the deal when
// every rule passes, otherwise the full list of field errors in schema order.
func (e *Engine) ValidateRecord(deal models.Deal) (*models.Deal, []models.FieldError, []models.FieldWarning) {
	values := deal.Values()
	results := e.ValidateAll(values)
	warnings := e.Warnings(values)

	var errs []models.FieldError
	for _, field := range models.DealFields() {
		if res, ok := results[field]; ok && !res.IsValid {
			errs = append(errs, models.FieldError{Field: field, Message: res.Message})
		}
	}
	if len(errs) > 0 {
		return nil, errs, warnings
	}
	validated := deal
	return &validated, nil, warnings
}

// FieldErrors keeps only the failing verdicts as field -> message.
func FieldErrors(results map[string]models.FieldResult) map[string]string {
	out := make(map[string]string)
	for field, res := range results {
		if !res.IsValid && res.Message != "" {
			out[field] = res.Message
		}
	}
	return out
}

// SortedFields returns the keys of a result map in a stable order.
func SortedFields(results map[string]models.FieldResult) []string {
	fields := make([]string, 0, len(results))
	for field := range results {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func (e *Engine) checkFormat(name, str string) string {
	switch name {
	case "ticker":
		if str == "" {
			return "Ticker is required"
		}
		if e.validate.Var(str, tagTicker) != nil {
			return "Ticker must be 2-10 uppercase alphanumeric characters"
		}
		return ""
	case "structure":
		if str == "" {
			return "Structure is required"
		}
		if e.validate.Var(str, tagStructure) != nil {
			return "Structure must be one of: " + strings.Join(models.DealStructures, ", ")
		}
		return ""
	case "status":
		if str != "" && !models.DealStatus(str).Valid() {
			return "Invalid status"
		}
		return ""
	}

	if str == "" {
		return ""
	}

	if _, ok := nonNegativeFields[name]; ok {
		num, ok := parseNumber(str)
		if !ok {
			return "Must be a valid number"
		}
		if e.validate.Var(num, "gte=0") != nil {
			return "Value must be positive"
		}
		if name == "shares_amount" && e.validate.Var(num, "lte=1000") != nil {
			return "Check units (expected millions)"
		}
		return ""
	}
	if _, ok := percentageFields[name]; ok {
		num, ok := parseNumber(str)
		if !ok {
			return "Must be a valid number"
		}
		if e.validate.Var(num, "gte=0,lte=100") != nil {
			return "Percentage must be between 0-100"
		}
		return ""
	}
	if _, ok := dateFields[name]; ok {
		if e.validate.Var(str, tagDate) != nil {
			return "Invalid date format (YYYY-MM-DD)"
		}
		return ""
	}

	switch name {
	case "country":
		if e.validate.Var(str, tagCountry) != nil {
			return "Invalid country selection"
		}
	case "sector":
		if e.validate.Var(str, tagSector) != nil {
			return "Invalid sector selection"
		}
	}
	return ""
}

func checkCrossField(name, str string, all models.FormValues) string {
	switch name {
	case "offering_price":
		if str == "" && models.IsTruthy(all["flag_bought"]) {
			return "Offering price is required for Bought Deals"
		}
	case "warrants_strike", "warrants_exp":
		if str == "" {
			if warrants, ok := parseNumber(all.String("warrants_min")); ok && warrants > 0 {
				return warrantLabel(name) + " required when warrants exist"
			}
		}
	case "pricing_date":
		announce := all.String("announce_date")
		if str == "" || announce == "" {
			return ""
		}
		pricing, errP := time.Parse(DateLayout, str)
		announced, errA := time.Parse(DateLayout, announce)
		if errP == nil && errA == nil && pricing.Before(announced) {
			return "Pricing date cannot be before announce date"
		}
	}
	return ""
}

func warrantLabel(field string) string {
	if field == "warrants_strike" {
		return "Warrants Strike"
	}
	return "Warrants Exp"
}

func parseNumber(str string) (float64, bool) {
	if str == "" {
		return 0, false
	}
	num, err := cast.ToFloat64E(str)
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, false
	}
	return num, true
}

func positiveNumber(value interface{}) (float64, bool) {
	num, ok := parseNumber(strings.TrimSpace(cast.ToString(value)))
	if !ok || num <= 0 {
		return 0, false
	}
	return num, true
}

func invalid(message string) models.FieldResult {
	return models.FieldResult{IsValid: false, Message: message}
}
