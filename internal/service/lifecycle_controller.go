package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"github.com/noah-isme/deal-desk-api/internal/form"
	"github.com/noah-isme/deal-desk-api/internal/models"
	"github.com/noah-isme/deal-desk-api/internal/validation"
)

// Lifecycle actions, used as metric labels.
const (
	ActionSaveDraft = "save_draft"
	ActionSubmit    = "submit"
	ActionApprove   = "approve"
	ActionReject    = "reject"
	ActionDelete    = "delete"
)

// Confidence scores given to manually entered deals.
const (
	draftConfidence     = 100
	submitConfidenceMin = 80
	submitConfidenceMax = 100
)

// User facing messages.
const (
	msgDraftSaved        = "Deal saved as draft."
	msgSubmitted         = "Deal submitted for review."
	msgSubmitBlocked     = "Please fix the highlighted fields before submitting."
	msgApproved          = "Deal approved and activated."
	msgRejected          = "Deal rejected and removed."
	msgReviewGone        = "The deal under review no longer exists."
	msgNoSelection       = "No deals selected."
	msgSelectedDeleted   = "Selected deals deleted."
	msgSelectExactlyOne  = "Select exactly one deal to edit."
	msgRefreshed         = "Data refreshed successfully."
	msgNothingToDelete   = "Deletion was not requested."
	msgUndecodableFields = "Some fields could not be saved."
)

type transitionRecorder interface {
	RecordTransition(action, result string)
	RecordFieldErrors(fieldErrors map[string]string)
}

type dealCacheInvalidator interface {
	InvalidateDeals(ctx context.Context)
}

// LifecycleDeps are the shared collaborators of every controller.
type LifecycleDeps struct {
	Store   DealStore
	Engine  *validation.Engine
	Cache   dealCacheInvalidator
	Metrics transitionRecorder
	Logger  *zap.Logger
	// Score draws a placeholder confidence in [min, max].
	Score func(min, max int) int
	// Ticker invents a placeholder ticker for drafts saved without one.
	Ticker func() string
}

// ListState is the list view: query, selection and delete confirmation.
type ListState struct {
	deals       []models.Deal
	filter      models.DealFilter
	selected    []string
	showConfirm bool
}

// AddState is the add flow: active tab and the document staged for the
// next save.
type AddState struct {
	UploadTab    string             `json:"upload_tab"`
	StagedSource *models.StoredFile `json:"staged_source,omitempty"`
}

// ReviewState tracks the deal currently under review.
type ReviewState struct {
	target *models.Deal
}

// LifecycleController drives deal status transitions for one editing
// session and reconciles its form buffer with the store. It is not safe for
// concurrent use; callers serialise events per session.
type LifecycleController struct {
	deps   LifecycleDeps
	buffer *form.Buffer
	list   ListState
	add    AddState
	review ReviewState
}

// NewLifecycleController builds a controller with an empty add-mode buffer.
func NewLifecycleController(deps LifecycleDeps) *LifecycleController {
	if deps.Engine == nil {
		deps.Engine = validation.MustNewEngine(nil)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Score == nil {
		deps.Score = gofakeit.Number
	}
	if deps.Ticker == nil {
		deps.Ticker = func() string { return strings.ToUpper(gofakeit.LetterN(4)) }
	}
	return &LifecycleController{
		deps:   deps,
		buffer: form.NewBuffer(deps.Engine),
		list:   ListState{filter: models.DealFilter{}.Normalize()},
		add:    AddState{UploadTab: "upload"},
	}
}

// Buffer exposes the session form buffer.
func (c *LifecycleController) Buffer() *form.Buffer {
	return c.buffer
}

// SaveDraft upserts the buffer, overlaid with values, as a draft. Drafts are
// not validated, but values must decode into the deal schema.
func (c *LifecycleController) SaveDraft(ctx context.Context, values models.FormValues) models.Outcome {
	merged := c.mergedValues(values)
	c.applyToBuffer(values)

	if fieldErrs := c.decodeErrors(merged); len(fieldErrs) > 0 {
		c.record(ActionSaveDraft, "blocked")
		return models.Failed(msgUndecodableFields, fieldErrs)
	}

	message := msgDraftSaved
	if merged.String("ticker") == "" {
		placeholder := c.deps.Ticker()
		merged["ticker"] = placeholder
		message = fmt.Sprintf("Deal saved as draft with placeholder ticker %s.", placeholder)
		c.deps.Logger.Warn("draft saved without ticker, using placeholder", zap.String("ticker", placeholder))
	}

	deal, err := c.upsert(ctx, merged, models.DealStatusDraft)
	if err != nil {
		return c.storeFailure(ActionSaveDraft, err)
	}
	c.buffer.LoadForEdit(*deal, models.FormModeEdit)
	c.refresh(ctx)
	c.record(ActionSaveDraft, "ok")

	outcome := models.Succeeded(message)
	outcome.Deal = deal
	return outcome
}

// Submit validates the buffer, overlaid with values, and upserts it as
// pending review. Missing required fields or any field error block it.
func (c *LifecycleController) Submit(ctx context.Context, values models.FormValues) models.Outcome {
	merged := c.mergedValues(values)
	c.applyToBuffer(values)
	c.buffer.ValidateAll()

	fieldErrs := c.buffer.FieldErrors()
	if len(fieldErrs) == 0 {
		fieldErrs = c.decodeErrors(merged)
	}
	if len(fieldErrs) > 0 || !c.buffer.CanSubmit() {
		if c.deps.Metrics != nil {
			c.deps.Metrics.RecordFieldErrors(fieldErrs)
		}
		c.record(ActionSubmit, "blocked")
		return models.Failed(msgSubmitBlocked, fieldErrs)
	}

	c.buffer.SetSubmitting(true)
	deal, err := c.upsert(ctx, merged, models.DealStatusPendingReview)
	c.buffer.SetSubmitting(false)
	if err != nil {
		return c.storeFailure(ActionSubmit, err)
	}

	c.buffer.Reset()
	c.add.StagedSource = nil
	c.refresh(ctx)
	c.record(ActionSubmit, "ok")

	outcome := models.Succeeded(msgSubmitted)
	outcome.Deal = deal
	return outcome
}

// Approve merges the buffer onto the deal under review and activates it.
// Without a review target it does nothing.
func (c *LifecycleController) Approve(ctx context.Context) models.Outcome {
	if c.review.target == nil {
		return models.Noop()
	}
	id := c.review.target.ID

	values := c.buffer.Values()
	if fieldErrs := c.decodeErrors(values); len(fieldErrs) > 0 {
		c.record(ActionApprove, "blocked")
		return models.Failed(msgUndecodableFields, fieldErrs)
	}

	deal, err := c.deps.Store.GetByID(ctx, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return c.storeFailure(ActionApprove, err)
	}
	if deal == nil {
		c.clearReview()
		c.refresh(ctx)
		c.record(ActionApprove, "missing")
		return models.Notify(msgReviewGone)
	}

	if err := deal.Apply(editableValues(values)); err != nil {
		return c.storeFailure(ActionApprove, err)
	}
	deal.Status = models.DealStatusActive
	if err := c.deps.Store.Save(ctx, deal); err != nil {
		return c.storeFailure(ActionApprove, err)
	}

	c.clearReview()
	c.refresh(ctx)
	c.record(ActionApprove, "ok")

	outcome := models.Succeeded(msgApproved)
	outcome.Deal = deal
	return outcome
}

// Reject permanently deletes the deal under review. Without a review target
// it does nothing.
func (c *LifecycleController) Reject(ctx context.Context) models.Outcome {
	if c.review.target == nil {
		return models.Noop()
	}
	if _, err := c.deps.Store.Delete(ctx, c.review.target.ID); err != nil {
		return c.storeFailure(ActionReject, err)
	}
	c.clearReview()
	c.add.StagedSource = nil
	c.refresh(ctx)
	c.record(ActionReject, "ok")
	return models.Succeeded(msgRejected)
}

// SelectForReview loads the deal into the buffer in review mode and points
// the client at the review page. An unknown id clears the review target.
func (c *LifecycleController) SelectForReview(ctx context.Context, id string) models.Outcome {
	deal, err := c.lookup(ctx, id)
	if err != nil {
		return c.storeFailure("select_review", err)
	}
	if deal == nil {
		c.review.target = nil
		return models.Noop()
	}
	c.startReview(*deal)
	outcome := models.Noop()
	outcome.Redirect = "/deals/review?id=" + url.QueryEscape(deal.ID)
	outcome.Deal = deal
	return outcome
}

// LoadFromURLParam restores the review target from a page parameter. An
// empty or unknown id clears the target.
func (c *LifecycleController) LoadFromURLParam(ctx context.Context, id string) models.Outcome {
	if strings.TrimSpace(id) == "" {
		c.review.target = nil
		return models.Noop()
	}
	deal, err := c.lookup(ctx, id)
	if err != nil {
		return c.storeFailure("load_review", err)
	}
	if deal == nil {
		c.review.target = nil
		return models.Noop()
	}
	c.startReview(*deal)
	outcome := models.Noop()
	outcome.Deal = deal
	return outcome
}

// ReviewTarget returns the deal under review, if any.
func (c *LifecycleController) ReviewTarget() *models.Deal {
	if c.review.target == nil {
		return nil
	}
	d := *c.review.target
	return &d
}

// EditSelected opens the single selected deal in edit mode.
func (c *LifecycleController) EditSelected(ctx context.Context) models.Outcome {
	if len(c.list.selected) != 1 {
		return models.Notify(msgSelectExactlyOne)
	}
	id := c.list.selected[0]
	deal, err := c.lookup(ctx, id)
	if err != nil {
		return c.storeFailure("edit_selected", err)
	}
	if deal == nil {
		c.list.selected = nil
		return models.Notify(msgSelectExactlyOne)
	}
	c.buffer.LoadForEdit(*deal, models.FormModeEdit)
	outcome := models.Noop()
	outcome.Redirect = "/deals/add?mode=edit&id=" + url.QueryEscape(id)
	outcome.Deal = deal
	return outcome
}

// LoadForEdit opens any deal in the requested mode without touching the
// review target.
func (c *LifecycleController) LoadForEdit(ctx context.Context, id string, mode models.FormMode) models.Outcome {
	deal, err := c.lookup(ctx, id)
	if err != nil {
		return c.storeFailure("load_edit", err)
	}
	if deal == nil {
		return models.Notify("Deal not found.")
	}
	c.buffer.LoadForEdit(*deal, mode)
	outcome := models.Noop()
	outcome.Deal = deal
	return outcome
}

// ResetForm clears the buffer, staged document and review target.
func (c *LifecycleController) ResetForm() {
	c.buffer.Reset()
	c.add.StagedSource = nil
	c.review.target = nil
}

// SetUploadTab switches the add flow between upload and manual entry.
func (c *LifecycleController) SetUploadTab(tab string) {
	c.add.UploadTab = tab
}

// StageSource remembers an uploaded document for the next save.
func (c *LifecycleController) StageSource(file models.StoredFile) {
	f := file
	c.add.StagedSource = &f
	if err := c.buffer.SetFieldValue("source_file", file.UniqueName); err != nil {
		c.deps.Logger.Warn("stage source in form buffer failed", zap.String("file", file.UniqueName), zap.Error(err))
	}
}

// AddState returns a copy of the add flow state.
func (c *LifecycleController) AddState() AddState {
	return c.add
}

// Refresh reloads the list cache from the store.
func (c *LifecycleController) Refresh(ctx context.Context) models.Outcome {
	if err := c.reload(ctx); err != nil {
		return c.storeFailure("refresh", err)
	}
	return models.Outcome{Success: true, Level: models.OutcomeInfo, Message: msgRefreshed}
}

// SetQuery replaces the search and filter settings and returns to page one.
// Sorting follows the filter when given, otherwise it is kept.
func (c *LifecycleController) SetQuery(filter models.DealFilter) {
	if filter.SortBy == "" {
		filter.SortBy = c.list.filter.SortBy
		filter.SortDirection = c.list.filter.SortDirection
	}
	if filter.PageSize <= 0 {
		filter.PageSize = c.list.filter.PageSize
	}
	filter.Page = 1
	c.list.filter = filter.Normalize()
}

// SortBy sorts on column, toggling direction when it is already active.
func (c *LifecycleController) SortBy(column string) {
	if !models.IsDealField(column) {
		return
	}
	if c.list.filter.SortBy == column {
		if c.list.filter.SortDirection == "asc" {
			c.list.filter.SortDirection = "desc"
		} else {
			c.list.filter.SortDirection = "asc"
		}
		return
	}
	c.list.filter.SortBy = column
	c.list.filter.SortDirection = "asc"
}

// ClearFilters restores the default list query.
func (c *LifecycleController) ClearFilters() {
	c.list.filter = models.DealFilter{PageSize: c.list.filter.PageSize}.Normalize()
}

// Filtered returns every cached deal matching the query, sorted.
func (c *LifecycleController) Filtered() []models.Deal {
	filtered := FilterDeals(c.list.deals, c.list.filter)
	SortDeals(filtered, c.list.filter.SortBy, c.list.filter.SortDirection)
	return filtered
}

// Page returns the current page of the filtered list with selection state.
func (c *LifecycleController) Page() models.DealPage {
	deals, pagination := Paginate(c.Filtered(), c.list.filter.Page, c.list.filter.PageSize)
	c.list.filter.Page = pagination.Page
	selected := make([]string, len(c.list.selected))
	copy(selected, c.list.selected)
	return models.DealPage{
		Deals:       deals,
		Pagination:  pagination,
		Filter:      c.list.filter,
		SelectedIDs: selected,
		AllSelected: c.allSelected(deals),
		ShowConfirm: c.list.showConfirm,
	}
}

// NextPage advances unless already on the last page.
func (c *LifecycleController) NextPage() {
	_, pagination := Paginate(c.Filtered(), c.list.filter.Page, c.list.filter.PageSize)
	if pagination.Page < pagination.TotalPages {
		c.list.filter.Page = pagination.Page + 1
	}
}

// PrevPage goes back unless already on the first page.
func (c *LifecycleController) PrevPage() {
	if c.list.filter.Page > 1 {
		c.list.filter.Page--
	}
}

// ToggleSelect flips the selection of one deal.
func (c *LifecycleController) ToggleSelect(id string) {
	for i, selected := range c.list.selected {
		if selected == id {
			c.list.selected = append(c.list.selected[:i], c.list.selected[i+1:]...)
			return
		}
	}
	c.list.selected = append(c.list.selected, id)
}

// ToggleSelectAll selects every deal on the current page, or deselects them
// when all are already selected.
func (c *LifecycleController) ToggleSelectAll() {
	page := c.Page().Deals
	if c.allSelected(page) {
		onPage := make(map[string]struct{}, len(page))
		for _, d := range page {
			onPage[d.ID] = struct{}{}
		}
		kept := c.list.selected[:0]
		for _, id := range c.list.selected {
			if _, ok := onPage[id]; !ok {
				kept = append(kept, id)
			}
		}
		c.list.selected = kept
		return
	}
	for _, d := range page {
		if !c.isSelected(d.ID) {
			c.list.selected = append(c.list.selected, d.ID)
		}
	}
}

// Selected returns the selected deal ids in selection order.
func (c *LifecycleController) Selected() []string {
	out := make([]string, len(c.list.selected))
	copy(out, c.list.selected)
	return out
}

// RequestDelete opens the confirmation gate for the selected deals.
func (c *LifecycleController) RequestDelete() models.Outcome {
	if len(c.list.selected) == 0 {
		return models.Notify(msgNoSelection)
	}
	c.list.showConfirm = true
	return models.Outcome{
		Success: true,
		Level:   models.OutcomeInfo,
		Message: fmt.Sprintf("Delete %d selected deal(s)? This cannot be undone.", len(c.list.selected)),
	}
}

// CancelDelete closes the confirmation gate.
func (c *LifecycleController) CancelDelete() {
	c.list.showConfirm = false
}

// ConfirmDelete deletes the selected deals once the gate is open.
func (c *LifecycleController) ConfirmDelete(ctx context.Context) models.Outcome {
	if !c.list.showConfirm {
		return models.Notify(msgNothingToDelete)
	}
	c.list.showConfirm = false
	if len(c.list.selected) == 0 {
		return models.Notify(msgNoSelection)
	}
	for _, id := range c.list.selected {
		if _, err := c.deps.Store.Delete(ctx, id); err != nil {
			return c.storeFailure(ActionDelete, err)
		}
		if c.review.target != nil && c.review.target.ID == id {
			c.clearReview()
		}
	}
	c.list.selected = nil
	c.refresh(ctx)
	c.record(ActionDelete, "ok")
	return models.Succeeded(msgSelectedDeleted)
}

// ExportSelection returns the selected deals, or the filtered list when
// nothing is selected.
func (c *LifecycleController) ExportSelection() []models.Deal {
	return SelectForExport(c.list.deals, c.list.selected, c.list.filter)
}

// PendingDeals lists cached deals awaiting review.
func (c *LifecycleController) PendingDeals() []models.Deal {
	out := make([]models.Deal, 0)
	for _, d := range c.list.deals {
		if d.Status == models.DealStatusPendingReview {
			out = append(out, d)
		}
	}
	return out
}

// ActiveCount counts cached active deals.
func (c *LifecycleController) ActiveCount() int {
	n := 0
	for _, d := range c.list.deals {
		if d.Status == models.DealStatusActive {
			n++
		}
	}
	return n
}

func (c *LifecycleController) allSelected(page []models.Deal) bool {
	if len(page) == 0 {
		return false
	}
	for _, d := range page {
		if !c.isSelected(d.ID) {
			return false
		}
	}
	return true
}

func (c *LifecycleController) isSelected(id string) bool {
	for _, selected := range c.list.selected {
		if selected == id {
			return true
		}
	}
	return false
}

// mergedValues overlays request values on the buffer, keeping the buffer's
// identity when the request carries none.
func (c *LifecycleController) mergedValues(values models.FormValues) models.FormValues {
	merged := c.buffer.Values()
	for k, v := range values {
		if models.IsDealField(k) {
			merged[k] = v
		}
	}
	if merged.String("source_file") == "" && c.add.StagedSource != nil {
		merged["source_file"] = c.add.StagedSource.UniqueName
	}
	return merged
}

// applyToBuffer mirrors request values into the buffer so blocked actions
// report errors against what the client sent.
func (c *LifecycleController) applyToBuffer(values models.FormValues) {
	for k, v := range values {
		if models.IsDealField(k) && !models.IsSystemField(k) {
			// System fields are skipped, so the editable check cannot fail.
			_ = c.buffer.SetFieldValue(k, v)
		}
	}
}

// upsert resolves identity by id, then ticker, and merges or creates.
func (c *LifecycleController) upsert(ctx context.Context, values models.FormValues, status models.DealStatus) (*models.Deal, error) {
	current, err := c.resolve(ctx, values)
	if err != nil {
		return nil, err
	}
	editable := editableValues(values)

	if current != nil {
		if err := current.Apply(editable); err != nil {
			return nil, err
		}
		current.Status = status
		if err := c.deps.Store.Save(ctx, current); err != nil {
			return nil, err
		}
		return current, nil
	}

	deal, err := models.DealFromValues(editable)
	if err != nil {
		return nil, err
	}
	deal.Status = status
	if editable.String("ai_confidence_score") == "" {
		if status == models.DealStatusDraft {
			deal.AIConfidenceScore = draftConfidence
		} else {
			deal.AIConfidenceScore = c.deps.Score(submitConfidenceMin, submitConfidenceMax)
		}
	}
	if err := c.deps.Store.Save(ctx, deal); err != nil {
		return nil, err
	}
	return deal, nil
}

func (c *LifecycleController) resolve(ctx context.Context, values models.FormValues) (*models.Deal, error) {
	if id := values.String(models.FieldID); id != "" {
		deal, err := c.deps.Store.GetByID(ctx, id)
		if err == nil {
			return deal, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	ticker := values.String("ticker")
	if ticker == "" {
		return nil, nil
	}
	deal, err := c.deps.Store.GetByTicker(ctx, ticker)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return deal, err
}

func (c *LifecycleController) lookup(ctx context.Context, id string) (*models.Deal, error) {
	deal, err := c.deps.Store.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return deal, err
}

// decodeErrors reports fields whose values cannot be stored in the schema.
func (c *LifecycleController) decodeErrors(values models.FormValues) map[string]string {
	errs := map[string]string{}
	for field, value := range editableValues(values) {
		scratch := models.Deal{}
		if err := scratch.Apply(models.FormValues{field: value}); err != nil {
			msg := c.deps.Engine.ValidateField(field, value, values).Message
			if msg == "" {
				msg = "Invalid value"
			}
			errs[field] = msg
		}
	}
	return errs
}

func (c *LifecycleController) startReview(deal models.Deal) {
	d := deal
	c.review.target = &d
	c.buffer.LoadForEdit(deal, models.FormModeReview)
}

func (c *LifecycleController) clearReview() {
	c.review.target = nil
	c.buffer.Reset()
}

func (c *LifecycleController) reload(ctx context.Context) error {
	deals, err := c.deps.Store.GetAll(ctx)
	if err != nil {
		return err
	}
	c.list.deals = deals
	return nil
}

// refresh runs after every mutation: drop query caches and reload the list.
func (c *LifecycleController) refresh(ctx context.Context) {
	if c.deps.Cache != nil {
		c.deps.Cache.InvalidateDeals(ctx)
	}
	if err := c.reload(ctx); err != nil {
		c.deps.Logger.Warn("reload deals after mutation failed", zap.Error(err))
	}
}

func (c *LifecycleController) storeFailure(action string, err error) models.Outcome {
	c.deps.Logger.Error("deal lifecycle action failed", zap.String("action", action), zap.Error(err))
	c.record(action, "error")
	return models.Failed("The deal store could not complete the request.", nil)
}

func (c *LifecycleController) record(action, result string) {
	if c.deps.Metrics != nil {
		c.deps.Metrics.RecordTransition(action, result)
	}
}

func editableValues(values models.FormValues) models.FormValues {
	out := make(models.FormValues, len(values))
	for k, v := range values {
		if models.IsDealField(k) && !models.IsSystemField(k) && k != "status" {
			out[k] = v
		}
	}
	return out
}
