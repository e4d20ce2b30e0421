package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DealStatus tracks where a deal sits in the review lifecycle.
type DealStatus string

const (
	// DealStatusDraft marks a manually saved, incomplete deal.
	DealStatusDraft DealStatus = "draft"
	// DealStatusPendingReview marks a deal waiting for human review.
	DealStatusPendingReview DealStatus = "pending_review"
	// DealStatusActive marks an approved deal.
	DealStatusActive DealStatus = "active"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s DealStatus) Valid() bool {
	switch s {
	case DealStatusDraft, DealStatusPendingReview, DealStatusActive:
		return true
	}
	return false
}

// Allow-lists for classification fields.
var (
	DealStructures = []string{"IPO", "M&A", "Spin-off", "Follow-on", "Convertible"}
	DealSectors    = []string{"Technology", "Healthcare", "Finance", "Energy", "Consumer", "Industrials", "Materials", "Utilities", "Real Estate"}
	DealCountries  = []string{"USA", "UK", "Germany", "Canada", "Singapore", "France", "Japan", "China", "India", "Australia"}
)

// Deal is the canonical financial transaction record.
type Deal struct {
	ID     string `json:"id"`
	Ticker string `json:"ticker"`

	Structure   string  `json:"structure"`
	Concurrent  *string `json:"concurrent"`
	IDBBGlobal  *string `json:"id_bb_global"`
	IDSedol1    *string `json:"id_sedol1"`
	ActionID    *int    `json:"action_id"`
	Country     *string `json:"country"`
	Sector      *string `json:"sector"`
	BICSLevel   *string `json:"bics_level"`
	CDRExchCode *string `json:"cdr_exch_code"`
	RegID       *string `json:"reg_id"`

	FlagBought  bool `json:"flag_bought"`
	FlagCleanUp bool `json:"flag_clean_up"`
	FlagTopUp   bool `json:"flag_top_up"`

	PricingDate    *string `json:"pricing_date"`
	AnnounceDate   *string `json:"announce_date"`
	PMIDate        *string `json:"pmi_date"`
	FirstTradeDate *string `json:"first_trade_date"`
	InstOwnDate    *string `json:"inst_own_date"`

	SharesAmount       *float64 `json:"shares_amount"`
	OfferingPrice      *float64 `json:"offering_price"`
	PriceOnPricingDate *float64 `json:"price_on_pricing_date"`
	VolOnPricingDate   *float64 `json:"vol_on_pricing_date"`
	OfferPriceUSD      *float64 `json:"offer_price_usd"`
	MarketCap          *float64 `json:"market_cap"`
	FXRate             *float64 `json:"fx_rate"`
	GrossSpread        *float64 `json:"gross_spread"`
	NetPurchasePrice   *float64 `json:"net_purchase_price"`
	FeePercent         *float64 `json:"fee_percent"`
	ReportedShares     *float64 `json:"reported_shares"`
	BBGShares          *float64 `json:"bbg_shares"`
	PrimaryShares      *float64 `json:"primary_shares"`
	SecondaryShares    *float64 `json:"secondary_shares"`
	EqyShOut           *float64 `json:"eqy_sh_out"`
	EqyFloat           *float64 `json:"eqy_float"`
	InstOwnPct         *float64 `json:"inst_own_pct"`
	AvgVolume          *float64 `json:"avg_volume"`
	AvgDailyVal        *float64 `json:"avg_daily_val"`
	VIX                *float64 `json:"vix"`
	Vol90Day           *string  `json:"vol_90_day"`
	ShortInt           *float64 `json:"short_int"`

	WarrantsMin    *int     `json:"warrants_min"`
	WarrantsStrike *float64 `json:"warrants_strike"`
	WarrantsExp    *string  `json:"warrants_exp"`

	CompanyName     *string `json:"company_name"`
	DealDescription *string `json:"deal_description"`

	Status            DealStatus `json:"status"`
	AIConfidenceScore int        `json:"ai_confidence_score"`
	SourceFile        *string    `json:"source_file"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FormValues is the plain field-name to value representation used while editing.
type FormValues map[string]interface{}

// Clone returns a shallow copy of the values.
func (v FormValues) Clone() FormValues {
	out := make(FormValues, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// String returns the trimmed string form of a value, empty for nil.
func (v FormValues) String(field string) string {
	val, ok := v[field]
	if !ok || val == nil {
		return ""
	}
	switch typed := val.(type) {
	case string:
		return strings.TrimSpace(typed)
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

// Fields owned by the system rather than the editor.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

var (
	dealFieldsOnce sync.Once
	dealFieldList  []string
	dealFieldSet   map[string]struct{}
	numericFields  map[string]struct{}
)

func loadDealFields() {
	t := reflect.TypeOf(Deal{})
	dealFieldSet = make(map[string]struct{}, t.NumField())
	numericFields = make(map[string]struct{})
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		dealFieldList = append(dealFieldList, name)
		dealFieldSet[name] = struct{}{}

		kind := field.Type.Kind()
		if kind == reflect.Ptr {
			kind = field.Type.Elem().Kind()
		}
		switch kind {
		case reflect.Int, reflect.Int64, reflect.Float64:
			numericFields[name] = struct{}{}
		}
	}
}

// IsNumericField reports whether the schema field holds a number.
func IsNumericField(name string) bool {
	dealFieldsOnce.Do(loadDealFields)
	_, ok := numericFields[name]
	return ok
}

// DealFields lists every schema field in declaration order.
func DealFields() []string {
	dealFieldsOnce.Do(loadDealFields)
	out := make([]string, len(dealFieldList))
	copy(out, dealFieldList)
	return out
}

// IsDealField reports whether name belongs to the deal schema.
func IsDealField(name string) bool {
	dealFieldsOnce.Do(loadDealFields)
	_, ok := dealFieldSet[name]
	return ok
}

// IsSystemField reports whether the field is maintained by the system.
func IsSystemField(name string) bool {
	return name == FieldID || name == FieldCreatedAt || name == FieldUpdatedAt
}

// Values flattens the deal into plain values. Timestamps become RFC3339
// strings and the status becomes its string value.
func (d Deal) Values() FormValues {
	raw, err := json.Marshal(d)
	if err != nil {
		return FormValues{}
	}
	values := FormValues{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return FormValues{}
	}
	return values
}

// Apply overwrites the deal with every key present in values. Empty strings
// clear optional fields, unknown keys are ignored.
func (d *Deal) Apply(values FormValues) error {
	filtered := make(map[string]interface{}, len(values))
	for k, v := range values {
		if IsDealField(k) {
			filtered[k] = v
		}
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ZeroFields:       true,
		Result:           d,
		DecodeHook:       plainValueHook,
	})
	if err != nil {
		return fmt.Errorf("build deal decoder: %w", err)
	}
	if err := decoder.Decode(filtered); err != nil {
		return fmt.Errorf("decode deal values: %w", err)
	}
	return nil
}

// DealFromValues builds a new deal from plain values.
func DealFromValues(values FormValues) (*Deal, error) {
	deal := &Deal{}
	if err := deal.Apply(values); err != nil {
		return nil, err
	}
	return deal, nil
}

var timeType = reflect.TypeOf(time.Time{})

// plainValueHook normalises editor input before mapstructure's weak decoding:
// blank strings clear optional fields and zero required numerics, checkbox
// style strings become bools and timestamps are parsed from RFC3339.
func plainValueHook(from reflect.Value, to reflect.Value) (interface{}, error) {
	if from.Kind() != reflect.String {
		return from.Interface(), nil
	}
	str := strings.TrimSpace(from.String())
	target := to.Type()
	if target.Kind() == reflect.Ptr {
		if str == "" {
			return nil, nil
		}
		target = target.Elem()
	}
	switch target.Kind() {
	case reflect.Bool:
		return IsTruthy(str), nil
	case reflect.Int, reflect.Int64, reflect.Float64:
		if str == "" {
			// Non-pointer numerics have no null; a cleared value is zero.
			return reflect.Zero(target).Interface(), nil
		}
		return str, nil
	}
	if target == timeType {
		if str == "" {
			return time.Time{}, nil
		}
		return time.Parse(time.RFC3339, str)
	}
	return str, nil
}

// IsTruthy interprets checkbox and form style boolean input.
func IsTruthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "on", "1", "yes":
			return true
		}
		return false
	case float64:
		return v != 0
	case int:
		return v != 0
	}
	return false
}

// DealFilter captures list view query options.
type DealFilter struct {
	Search        string `form:"search" json:"search"`
	Status        string `form:"status" json:"status"`
	StartDate     string `form:"start_date" json:"start_date"`
	EndDate       string `form:"end_date" json:"end_date"`
	SortBy        string `form:"sort" json:"sort"`
	SortDirection string `form:"order" json:"order"`
	Page          int    `form:"page" json:"page"`
	PageSize      int    `form:"limit" json:"limit"`
}

// CacheKey returns a stable key fragment for the filter.
func (f DealFilter) CacheKey() string {
	parts := []string{
		"q=" + strings.ToLower(f.Search),
		"status=" + f.Status,
		"from=" + f.StartDate,
		"to=" + f.EndDate,
		"sort=" + f.SortBy,
		"order=" + f.SortDirection,
		fmt.Sprintf("page=%d", f.Page),
		fmt.Sprintf("size=%d", f.PageSize),
	}
	sort.Strings(parts)
	return strings.Join(parts, "&")
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// Default list view settings.
const (
	DefaultSortColumn    = "pricing_date"
	DefaultSortDirection = "desc"
	DefaultPageSize      = 10
	MaxPageSize          = 100
	StatusFilterAll      = "all"
)

// Normalize fills list defaults and clamps out of range values.
func (f DealFilter) Normalize() DealFilter {
	f.Search = strings.TrimSpace(f.Search)
	if f.Status == "" {
		f.Status = StatusFilterAll
	}
	if f.SortBy == "" || !IsDealField(f.SortBy) {
		f.SortBy = DefaultSortColumn
	}
	f.SortDirection = strings.ToLower(f.SortDirection)
	if f.SortDirection != "asc" && f.SortDirection != "desc" {
		f.SortDirection = DefaultSortDirection
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// DealPage is one page of the filtered, sorted deal list.
type DealPage struct {
	Deals       []Deal     `json:"deals"`
	Pagination  Pagination `json:"pagination"`
	Filter      DealFilter `json:"filter"`
	SelectedIDs []string   `json:"selected_ids"`
	AllSelected bool       `json:"all_selected"`
	ShowConfirm bool       `json:"show_delete_confirm"`
}

// DealSummary counts deals per lifecycle status.
type DealSummary struct {
	Total         int `json:"total"`
	Draft         int `json:"draft"`
	PendingReview int `json:"pending_review"`
	Active        int `json:"active"`
}
