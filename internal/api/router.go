package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/dipscreener/internal/api/handlers"
	"github.com/wonny/dipscreener/pkg/logger"
)

// Handlers groups every endpoint handler
type Handlers struct {
	Pipeline *handlers.PipelineHandler
	Ranking  *handlers.RankingHandler
	Lists    *handlers.ListHandler
	Metrics  http.Handler // nil disables /metrics
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: routes are configured in this function only
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Pipeline endpoints
	api.HandleFunc("/status", h.Pipeline.GetStatus).Methods("GET")
	api.HandleFunc("/triggers/{id:[0-9a-f-]{36}}", h.Pipeline.GetTrigger).Methods("GET")
	api.HandleFunc("/triggers/{stage}", h.Pipeline.TriggerStage).Methods("POST")

	// Ranking endpoints
	api.HandleFunc("/records", h.Ranking.GetRecords).Methods("GET")
	api.HandleFunc("/records/export.csv", h.Ranking.ExportCSV).Methods("GET")
	api.HandleFunc("/records/{symbol}", h.Ranking.GetRecord).Methods("GET")

	// List endpoints
	api.HandleFunc("/lists/master", h.Lists.GetMasterList).Methods("GET")
	api.HandleFunc("/lists/screening", h.Lists.GetScreeningList).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "dipscreener",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
