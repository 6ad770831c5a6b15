package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/arkabooks/arkabooks/internal/directory"
	"github.com/arkabooks/arkabooks/internal/finance"
	"github.com/arkabooks/arkabooks/internal/inventory"
	"github.com/arkabooks/arkabooks/internal/ledger"
	"github.com/arkabooks/arkabooks/internal/pos"
	"github.com/arkabooks/arkabooks/internal/reports"
	"github.com/arkabooks/arkabooks/internal/serviceorder"
	"github.com/arkabooks/arkabooks/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	LedgerHandler    *ledger.Handler
	InventoryHandler *inventory.Handler
	FinanceHandler   *finance.Handler
	POSHandler       *pos.Handler
	ReportsHandler   *reports.Handler
	DirectoryHandler *directory.Handler
	ServiceOrders    *serviceorder.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with the service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		if params.LedgerHandler != nil {
			api.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.InventoryHandler != nil {
			api.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.FinanceHandler != nil {
			api.Route("/finance", params.FinanceHandler.MountRoutes)
		}
		if params.POSHandler != nil {
			api.Route("/pos", params.POSHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			api.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.DirectoryHandler != nil {
			api.Route("/directory", params.DirectoryHandler.MountRoutes)
		}
		if params.ServiceOrders != nil {
			api.Route("/service", params.ServiceOrders.MountRoutes)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
