package customer

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/duewell/duewell/internal/platform/httpx"
	"github.com/duewell/duewell/internal/shared"
)

// Handler manages customer endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers customer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createCompany)
	r.Get("/", h.listCompanies)
	r.Get("/{id}", h.getCompany)
	r.Put("/{id}", h.updateCompany)
	r.Post("/{id}/contacts", h.createContact)
	r.Get("/{id}/contacts", h.listContacts)
}

type companyRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	VATNumber string `json:"vat_number" validate:"max=50"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"max=50"`
	Notes     string `json:"notes" validate:"max=2000"`
}

func (req companyRequest) input() CompanyInput {
	return CompanyInput{
		Name:      req.Name,
		VATNumber: req.VATNumber,
		Email:     req.Email,
		Phone:     req.Phone,
		Notes:     req.Notes,
	}
}

func (h *Handler) createCompany(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	var req companyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	company, err := h.service.CreateCompany(r.Context(), tc, req.input())
	if err != nil {
		h.logger.Error("create company", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, company)
}

func (h *Handler) listCompanies(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	companies, err := h.service.ListCompanies(r.Context(), tc, shared.PaginationFromQuery(r.URL.Query()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"companies": companies})
}

func (h *Handler) getCompany(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid company id")
		return
	}
	company, err := h.service.GetCompany(r.Context(), tc, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, company)
}

func (h *Handler) updateCompany(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid company id")
		return
	}
	var req companyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	company, err := h.service.UpdateCompany(r.Context(), tc, id, req.input())
	if err != nil {
		h.logger.Error("update company", slog.Any("error", err), slog.String("id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, company)
}

func (h *Handler) createContact(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid company id")
		return
	}
	var req struct {
		Name     string `json:"name" validate:"required,max=200"`
		Email    string `json:"email" validate:"omitempty,email"`
		Phone    string `json:"phone" validate:"max=50"`
		Position string `json:"position" validate:"max=100"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	contact, err := h.service.CreateContact(r.Context(), tc, ContactInput{
		CompanyID: companyID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Position:  req.Position,
	})
	if err != nil {
		h.logger.Error("create contact", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, contact)
}

func (h *Handler) listContacts(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	companyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid company id")
		return
	}
	contacts, err := h.service.ListContacts(r.Context(), tc, companyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}
