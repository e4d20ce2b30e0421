package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/noah-isme/deal-desk-api/internal/models"
)

var seedStatuses = []models.DealStatus{
	models.DealStatusDraft,
	models.DealStatusPendingReview,
	models.DealStatusActive,
}

// GenerateDeals builds count synthetic deals that satisfy every field rule.
// A zero seed draws a random one.
func GenerateDeals(count int, seed int64) []models.Deal {
	faker := gofakeit.New(seed)
	now := time.Now().UTC()
	deals := make([]models.Deal, 0, count)
	used := make(map[string]struct{}, count)

	for len(deals) < count {
		ticker := strings.ToUpper(faker.LetterN(uint(faker.Number(3, 4))))
		if _, dup := used[ticker]; dup {
			continue
		}
		used[ticker] = struct{}{}
		deals = append(deals, fakeDeal(faker, ticker, now))
	}
	return deals
}

func fakeDeal(f *gofakeit.Faker, ticker string, now time.Time) models.Deal {
	announce := f.DateRange(now.AddDate(-1, 0, 0), now.AddDate(0, -1, 0))
	pricing := announce.AddDate(0, 0, f.Number(1, 30))
	created := announce.Add(-time.Duration(f.Number(1, 72)) * time.Hour)

	shares := round2(f.Float64Range(1, 500))
	primary := round2(shares * f.Float64Range(0.3, 0.7))
	secondary := round2(shares - primary)
	price := round2(f.Float64Range(5, 300))
	warrants := f.Number(0, 5)

	deal := models.Deal{
		ID:                 uuid.NewString(),
		Ticker:             ticker,
		Structure:          f.RandomString(models.DealStructures),
		Country:            strPtr(f.RandomString(models.DealCountries)),
		Sector:             strPtr(f.RandomString(models.DealSectors)),
		FlagBought:         f.Bool(),
		AnnounceDate:       strPtr(announce.Format("2006-01-02")),
		PricingDate:        strPtr(pricing.Format("2006-01-02")),
		SharesAmount:       &shares,
		PrimaryShares:      &primary,
		SecondaryShares:    &secondary,
		OfferingPrice:      &price,
		PriceOnPricingDate: floatPtr(round2(price * f.Float64Range(0.9, 1.1))),
		MarketCap:          floatPtr(round2(f.Float64Range(100, 250000))),
		GrossSpread:        floatPtr(round2(f.Float64Range(0.5, 7))),
		FeePercent:         floatPtr(round2(f.Float64Range(0.5, 7))),
		InstOwnPct:         floatPtr(round2(f.Float64Range(5, 95))),
		VIX:                floatPtr(round2(f.Float64Range(10, 40))),
		WarrantsMin:        &warrants,
		CompanyName:        strPtr(f.Company()),
		DealDescription:    strPtr(f.Sentence(12)),
		Status:             seedStatuses[f.Number(0, len(seedStatuses)-1)],
		AIConfidenceScore:  f.Number(30, 99),
		SourceFile:         strPtr(fmt.Sprintf(`\\fileserver\deals\%d\%s_term_sheet.pdf`, now.Year(), ticker)),
		CreatedAt:          created,
		UpdatedAt:          created,
	}
	if warrants > 0 {
		deal.WarrantsStrike = floatPtr(round2(price * f.Float64Range(1.1, 1.5)))
		deal.WarrantsExp = strPtr(pricing.AddDate(f.Number(1, 5), 0, 0).Format("2006-01-02"))
	}
	return deal
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
