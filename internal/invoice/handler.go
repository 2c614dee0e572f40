package invoice

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/duewell/duewell/internal/platform/httpx"
	"github.com/duewell/duewell/internal/shared"
)

// Handler manages invoice endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency *shared.IdempotencyStore
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, idempotency: idempotency}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/mark-paid", h.markPaid)
	r.Post("/{id}/partial-payment", h.partialPayment)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/revert-paid", h.revertPaid)
	r.Put("/{id}/expected-date", h.updateExpectedDate)
	r.Post("/{id}/promise", h.recordPromise)
	r.Post("/{id}/contact", h.recordContact)
	r.Put("/{id}/amount", h.updateAmount)
	r.Put("/{id}/notes", h.updateNotes)
	r.Post("/bulk/mark-paid", h.bulkMarkPaid)
	r.Post("/bulk/expected-date", h.bulkExpectedDate)
}

const dateLayout = "2006-01-02"

type createRequest struct {
	CompanyID           string  `json:"company_id" validate:"required,uuid4"`
	Number              string  `json:"number" validate:"required"`
	Amount              string  `json:"amount" validate:"required"`
	Currency            string  `json:"currency" validate:"required"`
	IssueDate           string  `json:"issue_date" validate:"required"`
	DueDate             string  `json:"due_date" validate:"required"`
	Status              string  `json:"status" validate:"omitempty,oneof=DRAFT PENDING"`
	ExpectedPaymentDate *string `json:"expected_payment_date"`
	DateOrigin          *string `json:"date_origin"`
	Notes               string  `json:"notes"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())

	var body createRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	companyID, err := uuid.Parse(body.CompanyID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid company id")
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid amount")
		return
	}
	issue, err := time.Parse(dateLayout, body.IssueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid issue date")
		return
	}
	due, err := time.Parse(dateLayout, body.DueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid due date")
		return
	}

	input := CreateInput{
		CompanyID: companyID,
		Number:    body.Number,
		Amount:    amount,
		Currency:  body.Currency,
		IssueDate: issue,
		DueDate:   due,
		Status:    Status(body.Status),
		Notes:     body.Notes,
	}
	if body.ExpectedPaymentDate != nil {
		expected, err := time.Parse(dateLayout, *body.ExpectedPaymentDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid expected payment date")
			return
		}
		input.ExpectedPaymentDate = &expected
	}
	if body.DateOrigin != nil {
		origin := DateOrigin(*body.DateOrigin)
		input.DateOrigin = &origin
	}

	inv, err := h.service.Create(r.Context(), tc, input)
	if err != nil {
		h.logger.Error("create invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	q := r.URL.Query()

	f := ListFilter{Status: Status(q.Get("status"))}
	if raw := q.Get("company_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			f.CompanyID = id
		}
	}
	invoices, err := h.service.List(r.Context(), tc, f)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), tc, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var body struct {
		PaymentReference string `json:"payment_reference"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	inv, err := h.service.MarkAsPaid(r.Context(), tc, id, body.PaymentReference)
	if err != nil {
		h.logger.Error("mark paid", slog.Any("error", err), slog.String("id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) partialPayment(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var body struct {
		PaymentReference string `json:"payment_reference"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	inv, err := h.service.RecordPartialPayment(r.Context(), tc, id, body.PaymentReference)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	inv, err := h.service.Cancel(r.Context(), tc, id, body.Reason)
	if err != nil {
		h.logger.Error("cancel invoice", slog.Any("error", err), slog.String("id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) revertPaid(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	inv, err := h.service.RevertToPending(r.Context(), tc, id, body.Reason)
	if err != nil {
		h.logger.Error("revert paid", slog.Any("error", err), slog.String("id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) updateExpectedDate(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var body struct {
		Date   *string `json:"date"`
		Origin *string `json:"origin"`
		Reason string  `json:"reason"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	var (
		date   *time.Time
		origin *DateOrigin
	)
	if body.Date != nil {
		parsed, err := time.Parse(dateLayout, *body.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date")
			return
		}
		date = &parsed
	}
	if body.Origin != nil {
		o := DateOrigin(*body.Origin)
		origin = &o
	}
	inv, err := h.service.UpdateExpectedPaymentDate(r.Context(), tc, id, date, origin, body.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) recordPromise(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var body struct {
		PromiseDate string `json:"promise_date" validate:"required"`
		Reason      string `json:"reason"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	promise, err := time.Parse(dateLayout, body.PromiseDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid promise date")
		return
	}
	inv, err := h.service.RecordPaymentPromise(r.Context(), tc, id, promise, body.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) recordContact(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var body struct {
		Channel string `json:"channel" validate:"required"`
		Result  string `json:"result"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	inv, err := h.service.RecordContactAttempt(r.Context(), tc, id, body.Channel, body.Result)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) updateAmount(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var body struct {
		Amount string `json:"amount" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid amount")
		return
	}
	inv, err := h.service.UpdateAmount(r.Context(), tc, id, amount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) updateNotes(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var body struct {
		Notes string `json:"notes" validate:"max=10000"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	inv, err := h.service.UpdateNotes(r.Context(), tc, id, body.Notes)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) bulkMarkPaid(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	var body struct {
		IDs              []string `json:"ids" validate:"required,min=1"`
		PaymentReference string   `json:"payment_reference"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	ids, err := parseIDs(body.IDs)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	key, inserted, err := h.claimBulkKey(r)
	if err != nil {
		h.respondClaimError(w, err)
		return
	}
	res, err := h.service.BulkMarkAsPaid(r.Context(), tc, ids, body.PaymentReference)
	if err != nil {
		if inserted {
			_ = h.idempotency.Delete(r.Context(), key)
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// respondClaimError distinguishes a replayed key from the store being
// unreachable.
func (h *Handler) respondClaimError(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrIdempotencyConflict) {
		httpx.Problem(w, http.StatusConflict, "Conflict", "request already processed")
		return
	}
	if h.logger != nil {
		h.logger.Error("claim idempotency key", slog.Any("error", err))
	}
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

// claimBulkKey reserves the Idempotency-Key header, when present, so a
// retried bulk request is rejected rather than re-applied. The caller
// releases the key if processing fails.
func (h *Handler) claimBulkKey(r *http.Request) (string, bool, error) {
	key := r.Header.Get("Idempotency-Key")
	if key == "" || h.idempotency == nil {
		return "", false, nil
	}
	if err := h.idempotency.CheckAndInsert(r.Context(), key, "invoice.bulk"); err != nil {
		return "", false, err
	}
	return key, true, nil
}

func (h *Handler) bulkExpectedDate(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	var body struct {
		IDs    []string `json:"ids" validate:"required,min=1"`
		Date   *string  `json:"date"`
		Origin *string  `json:"origin"`
		Reason string   `json:"reason"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	ids, err := parseIDs(body.IDs)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	var (
		date   *time.Time
		origin *DateOrigin
	)
	if body.Date != nil {
		parsed, err := time.Parse(dateLayout, *body.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date")
			return
		}
		date = &parsed
	}
	if body.Origin != nil {
		o := DateOrigin(*body.Origin)
		origin = &o
	}
	key, inserted, err := h.claimBulkKey(r)
	if err != nil {
		h.respondClaimError(w, err)
		return
	}
	res, err := h.service.BulkUpdateExpectedDates(r.Context(), tc, ids, date, origin, body.Reason)
	if err != nil {
		if inserted {
			_ = h.idempotency.Delete(r.Context(), key)
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return uuid.Nil, false
	}
	return id, true
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, shared.Invalid("ids", "invalid id "+s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
