package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gkash/ussd/backend/internal/handler/simulator"
	ussdhandler "github.com/gkash/ussd/backend/internal/handler/ussd"
	"github.com/gkash/ussd/backend/pkg/utils"
)

const (
	serviceName = "GKash USSD Backend"
	version     = "1.0.0"
)

// Integrations describes the upstream services shown on /health.
type Integrations struct {
	GKashURL       string
	SMSConfigured  bool
	SMSShortcode   string
	SessionCounter func() int
}

// Deps carries everything the router wires.
type Deps struct {
	Dispatcher       ussdhandler.Dispatcher
	Integrations     Integrations
	Metrics          http.Handler
	SimulatorEnabled bool
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	ussdhandler.New(deps.Dispatcher).RegisterRoutes(r)

	if deps.SimulatorEnabled {
		simulator.New(deps.Dispatcher, deps.Integrations.SMSShortcode).RegisterRoutes(r)
	}

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Get("/health", handleHealth(deps.Integrations))
	r.Get("/", handleInfo(deps.Integrations.SMSShortcode))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

func handleHealth(in Integrations) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sessions := 0
		if in.SessionCounter != nil {
			sessions = in.SessionCounter()
		}

		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"service":   serviceName,
			"version":   version,
			"integrations": map[string]any{
				"gkashApi": map[string]any{
					"configured": in.GKashURL != "",
					"url":        in.GKashURL,
				},
				"tiaraConnect": map[string]any{
					"configured": in.SMSConfigured,
					"shortcode":  in.SMSShortcode,
				},
			},
			"sessions": sessions,
		})
	}
}

func handleInfo(ussdCode string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"message": "GKash USSD Fund Manager API",
			"version": version,
			"endpoints": map[string]string{
				"ussd":    "POST /ussd",
				"health":  "GET /health",
				"metrics": "GET /metrics",
			},
			"ussdCode": ussdCode,
		})
	}
}
