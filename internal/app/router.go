package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/duewell/duewell/internal/auth"
	"github.com/duewell/duewell/internal/authz"
	"github.com/duewell/duewell/internal/collection"
	"github.com/duewell/duewell/internal/customer"
	"github.com/duewell/duewell/internal/invoice"
	"github.com/duewell/duewell/internal/observability"
	"github.com/duewell/duewell/internal/org"
	"github.com/duewell/duewell/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Sessions          auth.Middleware
	Authz             authz.Middleware
	AuthHandler       *auth.Handler
	OrgHandler        *org.Handler
	InvoiceHandler    *invoice.Handler
	CollectionHandler *collection.Handler
	CustomerHandler   *customer.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Sessions: params.Sessions,
		Metrics:  params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/orgs", params.OrgHandler.MountRoutes)

	// Everything below needs a selected organization. Each resource group
	// is gated on its view action; the services enforce the finer-grained
	// mutation actions.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireTenant)
		r.With(params.Authz.Require(authz.ActionInvoicesView)).Route("/invoices", params.InvoiceHandler.MountRoutes)
		r.With(params.Authz.Require(authz.ActionCasesView)).Route("/cases", params.CollectionHandler.MountRoutes)
		r.With(params.Authz.Require(authz.ActionCustomersView)).Route("/customers", params.CustomerHandler.MountRoutes)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
