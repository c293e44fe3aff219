package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/integrityos/internal/api/middleware"
	"github.com/kiranshivaraju/integrityos/internal/api/response"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	// RateLimit is optional; without it requests are not limited.
	RateLimit *mw.RateLimit

	// Metrics serves the Prometheus exposition. Defaults to promhttp.Handler().
	Metrics http.Handler

	HealthHandler http.HandlerFunc

	ListAssets           http.HandlerFunc
	CreateAsset          http.HandlerFunc
	GetAsset             http.HandlerFunc
	UpdateAsset          http.HandlerFunc
	DeleteAsset          http.HandlerFunc
	ListAssetInspections http.HandlerFunc
	ListInspections      http.HandlerFunc
	CreateInspection     http.HandlerFunc
	GetInspection        http.HandlerFunc
	DashboardOverview    http.HandlerFunc
	DefectsByMethod      http.HandlerFunc
	DefectsByYear        http.HandlerFunc
	QualityStats         http.HandlerFunc
	PredictHandler       http.HandlerFunc
	PredictBatchHandler  http.HandlerFunc
	TrainHandler         http.HandlerFunc
	BootstrapHandler     http.HandlerFunc
	ModelInfoHandler     http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, response.CodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	// Operational endpoints are never rate limited
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	metrics := deps.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metrics)

	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Route("/api/v1/assets", func(r chi.Router) {
			r.Get("/", orNotImplemented(deps.ListAssets))
			r.Post("/", orNotImplemented(deps.CreateAsset))
			r.Get("/{assetID}", orNotImplemented(deps.GetAsset))
			r.Put("/{assetID}", orNotImplemented(deps.UpdateAsset))
			r.Delete("/{assetID}", orNotImplemented(deps.DeleteAsset))
			r.Get("/{assetID}/inspections", orNotImplemented(deps.ListAssetInspections))
		})

		r.Route("/api/v1/inspections", func(r chi.Router) {
			r.Get("/", orNotImplemented(deps.ListInspections))
			r.Post("/", orNotImplemented(deps.CreateInspection))
			r.Get("/{inspectionID}", orNotImplemented(deps.GetInspection))
		})

		r.Route("/api/v1/dashboard", func(r chi.Router) {
			r.Get("/", orNotImplemented(deps.DashboardOverview))
			r.Get("/defects-by-method", orNotImplemented(deps.DefectsByMethod))
			r.Get("/defects-by-year", orNotImplemented(deps.DefectsByYear))
			r.Get("/quality-stats", orNotImplemented(deps.QualityStats))
		})

		r.Route("/api/v1/predict", func(r chi.Router) {
			r.Post("/", orNotImplemented(deps.PredictHandler))
			r.Post("/batch", orNotImplemented(deps.PredictBatchHandler))
			r.Post("/train", orNotImplemented(deps.TrainHandler))
			r.Post("/bootstrap", orNotImplemented(deps.BootstrapHandler))
			r.Get("/model", orNotImplemented(deps.ModelInfoHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
