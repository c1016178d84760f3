package router

import (
	"net/http"
	"strings"

	"bid-broker/internal/auth"
	"bid-broker/internal/handler"
	"bid-broker/internal/middleware"
	"bid-broker/internal/realtime"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// New creates a new HTTP router with all routes and middleware configured.
func New(
	bidHandler *handler.BidHandler,
	hub *realtime.Hub,
	jwtManager *auth.JWTManager,
	logger zerolog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint (no authentication required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	// Prometheus metrics (no authentication required)
	mux.Handle("/metrics", promhttp.Handler())

	// Live record-change subscription
	mux.HandleFunc("/ws", hub.HandleWS)

	// Bid request handler function
	bidRouteHandler := func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Collection routes
		if path == "/api/bids" || path == "/api/bids/" {
			switch r.Method {
			case http.MethodPost:
				bidHandler.Create(w, r)
			case http.MethodGet:
				bidHandler.ListOpen(w, r)
			default:
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			}
			return
		}

		if path == "/api/bids/purchased" {
			if r.Method != http.MethodGet {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			bidHandler.ListPurchased(w, r)
			return
		}

		// Record action routes: /api/bids/{id}/{action}
		rest := strings.TrimPrefix(path, "/api/bids/")
		_, action, _ := strings.Cut(rest, "/")

		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		switch action {
		case "decide":
			bidHandler.Decide(w, r)
		case "respond":
			bidHandler.Respond(w, r)
		case "final-status":
			bidHandler.FinalStatus(w, r)
		case "confirm":
			bidHandler.Confirm(w, r)
		case "paid":
			bidHandler.Paid(w, r)
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}

	// Register bid routes (both with and without trailing slash)
	mux.HandleFunc("/api/bids", bidRouteHandler)
	mux.HandleFunc("/api/bids/", bidRouteHandler)

	// Apply middleware in order: Recovery -> Logging -> Metrics -> CORS -> JWTAuth
	var h http.Handler = mux
	h = middleware.JWTAuth(jwtManager, logger)(h)
	h = middleware.CORS(h)
	h = middleware.Metrics(h)
	h = middleware.Logging(logger)(h)
	h = middleware.Recovery(logger)(h)

	return h
}
