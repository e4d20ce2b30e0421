package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/deal-desk-api/internal/models"
)

type controllerFixture struct {
	store   *mockDealStore
	cache   *countingInvalidator
	metrics *recordingMetrics
	ctrl    *LifecycleController
}

func newControllerFixture(deals ...models.Deal) *controllerFixture {
	f := &controllerFixture{
		store:   newMockDealStore(deals...),
		cache:   &countingInvalidator{},
		metrics: &recordingMetrics{},
	}
	f.ctrl = NewLifecycleController(LifecycleDeps{
		Store:   f.store,
		Cache:   f.cache,
		Metrics: f.metrics,
		Ticker:  func() string { return "ZZZZ" },
	})
	f.ctrl.Refresh(context.Background())
	return f
}

func TestSubmitCreatesPendingDeal(t *testing.T) {
	f := newControllerFixture()

	out := f.ctrl.Submit(context.Background(), models.FormValues{"ticker": "AAPL", "structure": "IPO"})

	require.True(t, out.Success, out.Message)
	assert.Equal(t, "Deal submitted for review.", out.Message)
	require.NotNil(t, out.Deal)
	assert.Equal(t, models.DealStatusPendingReview, out.Deal.Status)
	assert.GreaterOrEqual(t, out.Deal.AIConfidenceScore, 80)
	assert.LessOrEqual(t, out.Deal.AIConfidenceScore, 100)

	stored, err := f.store.GetByTicker(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, out.Deal.ID, stored.ID)
	assert.Equal(t, 1, f.cache.calls)
	assert.Len(t, f.ctrl.PendingDeals(), 1)

	snap := f.ctrl.Buffer().Snapshot()
	assert.Equal(t, models.FormModeAdd, snap.Mode)
	assert.Empty(t, snap.Values)
}

func TestSubmitBlockedByFieldErrors(t *testing.T) {
	f := newControllerFixture()

	out := f.ctrl.Submit(context.Background(), models.FormValues{"ticker": "AAPL", "fee_percent": "150"})

	assert.False(t, out.Success)
	assert.Equal(t, models.OutcomeError, out.Level)
	assert.Contains(t, out.FieldErrors, "structure")
	assert.Contains(t, out.FieldErrors, "fee_percent")
	assert.Equal(t, 0, f.store.count())
	require.Len(t, f.metrics.fieldErrors, 1)
	assert.Equal(t, recordedTransition{ActionSubmit, "blocked"}, f.metrics.transitions[0])

	v, _ := f.ctrl.Buffer().Value("ticker")
	assert.Equal(t, "AAPL", v)
}

func TestSubmitMergesByTicker(t *testing.T) {
	f := newControllerFixture(models.Deal{Ticker: "AAPL", Structure: "IPO", Status: models.DealStatusDraft, AIConfidenceScore: 100})

	out := f.ctrl.Submit(context.Background(), models.FormValues{"ticker": "AAPL", "structure": "M&A"})

	require.True(t, out.Success)
	assert.Equal(t, 1, f.store.count())
	stored, err := f.store.GetByTicker(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "deal-1", stored.ID)
	assert.Equal(t, "M&A", stored.Structure)
	assert.Equal(t, models.DealStatusPendingReview, stored.Status)
	assert.Equal(t, 100, stored.AIConfidenceScore)
}

func TestSaveDraftRoundTrip(t *testing.T) {
	f := newControllerFixture()
	ctx := context.Background()

	out := f.ctrl.SaveDraft(ctx, models.FormValues{"ticker": "MSFT", "company_name": "Microsoft"})
	require.True(t, out.Success, out.Message)
	assert.Equal(t, "Deal saved as draft.", out.Message)
	require.NotNil(t, out.Deal)
	assert.Equal(t, models.DealStatusDraft, out.Deal.Status)
	assert.Equal(t, 100, out.Deal.AIConfidenceScore)
	assert.Equal(t, models.FormModeEdit, f.ctrl.Buffer().Mode())

	id, _ := f.ctrl.Buffer().Value("id")
	assert.Equal(t, out.Deal.ID, id)

	out = f.ctrl.SaveDraft(ctx, models.FormValues{"deal_description": "Secondary placement"})
	require.True(t, out.Success)
	assert.Equal(t, 1, f.store.count())

	stored, err := f.store.GetByID(ctx, out.Deal.ID)
	require.NoError(t, err)
	assert.Equal(t, "Microsoft", *stored.CompanyName)
	assert.Equal(t, "Secondary placement", *stored.DealDescription)
	assert.Equal(t, "MSFT", stored.Ticker)
}

func TestSaveDraftWithoutTickerUsesPlaceholder(t *testing.T) {
	f := newControllerFixture()

	out := f.ctrl.SaveDraft(context.Background(), models.FormValues{"company_name": "Unnamed"})

	require.True(t, out.Success)
	assert.Contains(t, out.Message, "ZZZZ")
	assert.Equal(t, "ZZZZ", out.Deal.Ticker)
}

func TestSaveDraftRejectsUndecodableValues(t *testing.T) {
	f := newControllerFixture()

	out := f.ctrl.SaveDraft(context.Background(), models.FormValues{"ticker": "MSFT", "market_cap": "lots"})

	assert.False(t, out.Success)
	assert.Equal(t, "Must be a valid number", out.FieldErrors["market_cap"])
	assert.Equal(t, 0, f.store.count())
}

func TestSaveDraftUsesStagedSource(t *testing.T) {
	f := newControllerFixture()
	f.ctrl.StageSource(models.StoredFile{Name: "term.pdf", UniqueName: "term-0a1b2c3d.pdf"})
	staged, ok := f.ctrl.Buffer().Value("source_file")
	require.True(t, ok)
	assert.Equal(t, "term-0a1b2c3d.pdf", staged)

	out := f.ctrl.SaveDraft(context.Background(), models.FormValues{"ticker": "MSFT"})

	require.True(t, out.Success)
	require.NotNil(t, out.Deal.SourceFile)
	assert.Equal(t, "term-0a1b2c3d.pdf", *out.Deal.SourceFile)
}

func TestApproveWithoutTargetIsNoop(t *testing.T) {
	f := newControllerFixture(models.Deal{Ticker: "AAPL", Structure: "IPO", Status: models.DealStatusPendingReview})

	out := f.ctrl.Approve(context.Background())

	assert.Equal(t, models.Noop(), out)
	assert.Equal(t, 0, f.store.saves)
	assert.Equal(t, 0, f.cache.calls)
}

func TestReviewApproveActivatesDeal(t *testing.T) {
	f := newControllerFixture(models.Deal{Ticker: "AAPL", Structure: "IPO", Status: models.DealStatusPendingReview})
	ctx := context.Background()

	sel := f.ctrl.SelectForReview(ctx, "deal-1")
	assert.Equal(t, "/deals/review?id=deal-1", sel.Redirect)
	assert.Equal(t, models.FormModeReview, f.ctrl.Buffer().Mode())
	require.NoError(t, f.ctrl.Buffer().SetFieldValue("company_name", "Apple Inc."))

	out := f.ctrl.Approve(ctx)

	require.True(t, out.Success)
	assert.Equal(t, "Deal approved and activated.", out.Message)
	stored, err := f.store.GetByID(ctx, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, models.DealStatusActive, stored.Status)
	assert.Equal(t, "Apple Inc.", *stored.CompanyName)
	assert.Nil(t, f.ctrl.ReviewTarget())
	assert.Equal(t, 1, f.ctrl.ActiveCount())
	assert.Empty(t, f.ctrl.PendingDeals())
}

func TestApproveClearsBlankedFields(t *testing.T) {
	cases := []struct {
		field  string
		assert func(t *testing.T, d *models.Deal)
	}{
		{"offering_price", func(t *testing.T, d *models.Deal) { assert.Nil(t, d.OfferingPrice) }},
		{"company_name", func(t *testing.T, d *models.Deal) { assert.Nil(t, d.CompanyName) }},
		{"warrants_min", func(t *testing.T, d *models.Deal) { assert.Nil(t, d.WarrantsMin) }},
		{"ai_confidence_score", func(t *testing.T, d *models.Deal) { assert.Equal(t, 0, d.AIConfidenceScore) }},
	}

	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			f := newControllerFixture(models.Deal{
				Ticker:            "AAPL",
				Structure:         "IPO",
				Status:            models.DealStatusPendingReview,
				OfferingPrice:     floatRef(25),
				CompanyName:       stringRef("Apple Inc."),
				WarrantsMin:       intRef(2),
				WarrantsStrike:    floatRef(30),
				WarrantsExp:       stringRef("2027-01-01"),
				AIConfidenceScore: 88,
			})
			ctx := context.Background()

			f.ctrl.SelectForReview(ctx, "deal-1")
			require.NoError(t, f.ctrl.Buffer().SetFieldValue(tc.field, ""))

			var out models.Outcome
			require.NotPanics(t, func() { out = f.ctrl.Approve(ctx) })
			require.True(t, out.Success, out.Message)

			stored, err := f.store.GetByID(ctx, "deal-1")
			require.NoError(t, err)
			assert.Equal(t, models.DealStatusActive, stored.Status)
			tc.assert(t, stored)
		})
	}
}

func TestSaveDraftNormalizesBlankValues(t *testing.T) {
	f := newControllerFixture()
	ctx := context.Background()
	input := models.FormValues{
		"ticker":              "AAPL",
		"structure":           "IPO",
		"company_name":        "",
		"offering_price":      "",
		"warrants_min":        "",
		"ai_confidence_score": "",
	}

	var out models.Outcome
	require.NotPanics(t, func() { out = f.ctrl.SaveDraft(ctx, input) })
	require.True(t, out.Success, out.Message)

	stored, err := f.store.GetByID(ctx, out.Deal.ID)
	require.NoError(t, err)
	values := stored.Values()
	assert.Equal(t, "AAPL", values["ticker"])
	assert.Equal(t, "IPO", values["structure"])
	assert.Nil(t, values["company_name"])
	assert.Nil(t, values["offering_price"])
	assert.Nil(t, values["warrants_min"])
	assert.Equal(t, 100, stored.AIConfidenceScore)

	out = f.ctrl.SaveDraft(ctx, models.FormValues{"id": stored.ID, "ai_confidence_score": ""})
	require.True(t, out.Success, out.Message)
	stored, err = f.store.GetByID(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.AIConfidenceScore)
	assert.Equal(t, 1, f.store.count())
}

func TestSubmitWithBlankConfidenceDoesNotPanic(t *testing.T) {
	f := newControllerFixture()

	var out models.Outcome
	require.NotPanics(t, func() {
		out = f.ctrl.Submit(context.Background(), models.FormValues{"ticker": "AAPL", "structure": "IPO", "ai_confidence_score": ""})
	})
	require.True(t, out.Success, out.Message)
	assert.GreaterOrEqual(t, out.Deal.AIConfidenceScore, 80)
}

func TestApproveVanishedDealClearsTarget(t *testing.T) {
	f := newControllerFixture(models.Deal{Ticker: "AAPL", Structure: "IPO", Status: models.DealStatusPendingReview})
	ctx := context.Background()
	f.ctrl.SelectForReview(ctx, "deal-1")
	_, err := f.store.Delete(ctx, "deal-1")
	require.NoError(t, err)

	out := f.ctrl.Approve(ctx)

	assert.False(t, out.Success)
	assert.Equal(t, models.OutcomeWarning, out.Level)
	assert.Nil(t, f.ctrl.ReviewTarget())
	assert.Equal(t, 0, f.store.saves)
}

func TestRejectRemovesDeal(t *testing.T) {
	f := newControllerFixture(
		models.Deal{Ticker: "AAPL", Structure: "IPO", Status: models.DealStatusPendingReview},
		models.Deal{Ticker: "MSFT", Structure: "IPO", Status: models.DealStatusActive},
	)
	ctx := context.Background()

	assert.Equal(t, models.Noop(), f.ctrl.Reject(ctx))

	f.ctrl.SelectForReview(ctx, "deal-1")
	out := f.ctrl.Reject(ctx)

	require.True(t, out.Success)
	assert.Equal(t, "Deal rejected and removed.", out.Message)
	all, err := f.store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "MSFT", all[0].Ticker)
	assert.Nil(t, f.ctrl.ReviewTarget())
}

func TestSelectForReviewUnknownClearsTarget(t *testing.T) {
	f := newControllerFixture(models.Deal{Ticker: "AAPL", Structure: "IPO"})
	ctx := context.Background()
	f.ctrl.SelectForReview(ctx, "deal-1")

	out := f.ctrl.SelectForReview(ctx, "missing")

	assert.Equal(t, models.Noop(), out)
	assert.Nil(t, f.ctrl.ReviewTarget())

	f.ctrl.LoadFromURLParam(ctx, "deal-1")
	require.NotNil(t, f.ctrl.ReviewTarget())
	f.ctrl.LoadFromURLParam(ctx, "")
	assert.Nil(t, f.ctrl.ReviewTarget())
}

func TestEditSelectedRequiresExactlyOne(t *testing.T) {
	f := newControllerFixture(
		models.Deal{Ticker: "AAPL", Structure: "IPO"},
		models.Deal{Ticker: "MSFT", Structure: "IPO"},
	)
	ctx := context.Background()

	assert.Equal(t, "Select exactly one deal to edit.", f.ctrl.EditSelected(ctx).Message)

	f.ctrl.ToggleSelect("deal-1")
	f.ctrl.ToggleSelect("deal-2")
	assert.False(t, f.ctrl.EditSelected(ctx).Success)

	f.ctrl.ToggleSelect("deal-2")
	out := f.ctrl.EditSelected(ctx)
	assert.Equal(t, "/deals/add?mode=edit&id=deal-1", out.Redirect)
	assert.Equal(t, models.FormModeEdit, f.ctrl.Buffer().Mode())
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	f := newControllerFixture(
		models.Deal{Ticker: "AAPL", Structure: "IPO"},
		models.Deal{Ticker: "MSFT", Structure: "IPO"},
		models.Deal{Ticker: "GOOG", Structure: "IPO"},
	)
	ctx := context.Background()

	assert.Equal(t, "No deals selected.", f.ctrl.RequestDelete().Message)

	f.ctrl.ToggleSelect("deal-1")
	f.ctrl.ToggleSelect("deal-2")
	assert.False(t, f.ctrl.ConfirmDelete(ctx).Success)
	assert.Equal(t, 3, f.store.count())

	require.True(t, f.ctrl.RequestDelete().Success)
	assert.True(t, f.ctrl.Page().ShowConfirm)
	f.ctrl.CancelDelete()
	assert.False(t, f.ctrl.Page().ShowConfirm)
	assert.Equal(t, 3, f.store.count())

	f.ctrl.RequestDelete()
	out := f.ctrl.ConfirmDelete(ctx)
	require.True(t, out.Success)
	assert.Equal(t, "Selected deals deleted.", out.Message)
	assert.Equal(t, 1, f.store.count())
	assert.Empty(t, f.ctrl.Selected())
	assert.Len(t, f.ctrl.Page().Deals, 1)
}

func TestListPagingAndSorting(t *testing.T) {
	var deals []models.Deal
	for i := 0; i < 25; i++ {
		deals = append(deals, models.Deal{
			Ticker:        fmt.Sprintf("T%02d", i),
			Structure:     "IPO",
			OfferingPrice: floatRef(float64(i)),
		})
	}
	f := newControllerFixture(deals...)

	page := f.ctrl.Page()
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.Len(t, page.Deals, 10)

	f.ctrl.NextPage()
	f.ctrl.NextPage()
	f.ctrl.NextPage()
	page = f.ctrl.Page()
	assert.Equal(t, 3, page.Pagination.Page)
	assert.Len(t, page.Deals, 5)

	f.ctrl.PrevPage()
	assert.Equal(t, 2, f.ctrl.Page().Pagination.Page)

	f.ctrl.SortBy("offering_price")
	page = f.ctrl.Page()
	assert.Equal(t, "asc", page.Filter.SortDirection)
	assert.Equal(t, "T10", page.Deals[0].Ticker)

	f.ctrl.SortBy("offering_price")
	assert.Equal(t, "desc", f.ctrl.Page().Filter.SortDirection)

	f.ctrl.SetQuery(models.DealFilter{Search: "T2"})
	page = f.ctrl.Page()
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 5, page.Pagination.TotalCount)
	assert.Equal(t, "offering_price", page.Filter.SortBy)

	f.ctrl.ClearFilters()
	assert.Equal(t, 25, f.ctrl.Page().Pagination.TotalCount)
}

func TestToggleSelectAllWorksOnCurrentPage(t *testing.T) {
	var deals []models.Deal
	for i := 0; i < 12; i++ {
		deals = append(deals, models.Deal{Ticker: fmt.Sprintf("T%02d", i), Structure: "IPO"})
	}
	f := newControllerFixture(deals...)

	f.ctrl.ToggleSelectAll()
	page := f.ctrl.Page()
	assert.True(t, page.AllSelected)
	assert.Len(t, page.SelectedIDs, 10)

	f.ctrl.ToggleSelectAll()
	assert.Empty(t, f.ctrl.Selected())
}

func TestStoreFailureIsReported(t *testing.T) {
	f := newControllerFixture()
	f.store.saveErr = errors.New("disk full")

	out := f.ctrl.Submit(context.Background(), models.FormValues{"ticker": "AAPL", "structure": "IPO"})

	assert.False(t, out.Success)
	assert.Equal(t, models.OutcomeError, out.Level)
	assert.Equal(t, recordedTransition{ActionSubmit, "error"}, f.metrics.transitions[len(f.metrics.transitions)-1])
}

func TestExportSelectionFallsBackToFilter(t *testing.T) {
	f := newControllerFixture(
		models.Deal{Ticker: "AAPL", Structure: "IPO", Status: models.DealStatusActive},
		models.Deal{Ticker: "MSFT", Structure: "IPO", Status: models.DealStatusDraft},
	)
	f.ctrl.SetQuery(models.DealFilter{Status: "active"})
	require.Len(t, f.ctrl.ExportSelection(), 1)

	f.ctrl.ToggleSelect("deal-2")
	selection := f.ctrl.ExportSelection()
	require.Len(t, selection, 1)
	assert.Equal(t, "MSFT", selection[0].Ticker)
}
