package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/deal-desk-api/internal/models"
)

// Custom validator tags registered by the engine.
const (
	tagTicker    = "deal_ticker"
	tagStructure = "deal_structure"
	tagSector    = "deal_sector"
	tagCountry   = "deal_country"
	tagDate      = "datetime=" + DateLayout
)

// DateLayout is the only accepted date format for deal dates.
const DateLayout = "2006-01-02"

var tickerPattern = regexp.MustCompile(`^[A-Z0-9 ]{2,10}$`)

// RequiredFields always receive a verdict, even when absent from the input.
var RequiredFields = []string{"ticker", "structure", "offering_price", "warrants_strike", "warrants_exp", "pricing_date"}

// dependencies maps a changed field to the siblings whose verdict may change.
var dependencies = map[string][]string{
	"flag_bought":      {"offering_price"},
	"warrants_min":     {"warrants_strike", "warrants_exp"},
	"primary_shares":   {"shares_amount", "secondary_shares"},
	"secondary_shares": {"shares_amount", "primary_shares"},
	"shares_amount":    {"primary_shares", "secondary_shares"},
	"announce_date":    {"pricing_date"},
}

var nonNegativeFields = setOf(
	"shares_amount", "offering_price", "market_cap", "price_on_pricing_date",
	"vol_on_pricing_date", "offer_price_usd", "gross_spread", "net_purchase_price",
	"primary_shares", "secondary_shares", "warrants_min", "warrants_strike",
	"avg_volume", "avg_daily_val", "vix", "short_int", "fx_rate",
	"reported_shares", "bbg_shares", "eqy_sh_out", "eqy_float", "action_id",
)

var percentageFields = setOf("fee_percent", "inst_own_pct", "ai_confidence_score")

var dateFields = setOf("pricing_date", "announce_date", "pmi_date", "warrants_exp", "first_trade_date", "inst_own_date")

// Dependents returns the fields that must be re-validated when field changes.
func Dependents(field string) []string {
	deps := dependencies[field]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

func registerDealTags(v *validator.Validate) error {
	tags := map[string]validator.Func{
		tagTicker: func(fl validator.FieldLevel) bool {
			return tickerPattern.MatchString(fl.Field().String())
		},
		tagStructure: memberOf(models.DealStructures),
		tagSector:    memberOf(models.DealSectors),
		tagCountry:   memberOf(models.DealCountries),
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

func memberOf(allowed []string) validator.Func {
	set := setOf(allowed...)
	return func(fl validator.FieldLevel) bool {
		_, ok := set[fl.Field().String()]
		return ok
	}
}

func setOf(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
