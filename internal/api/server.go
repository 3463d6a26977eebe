// Package api serves read-only JSON views of a running city for a
// presentation layer to poll. It never mutates simulation state.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/talgya/city-builder/internal/engine"
)

// Server exposes city state over HTTP. The mutex must be the same one
// the host holds around AdvanceTurn; the city itself is not
// synchronized.
type Server struct {
	city   *engine.City
	mu     *sync.Mutex
	port   int
	logger *zap.Logger
	http   *http.Server
}

// NewServer builds a read-only API server for the given city.
func NewServer(city *engine.City, mu *sync.Mutex, port int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		city:   city,
		mu:     mu,
		port:   port,
		logger: logger.Named("api"),
	}
}

// Handler returns the configured route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/alerts", s.handleAlerts)
	mux.HandleFunc("/api/v1/finance", s.handleFinance)
	mux.HandleFunc("/api/v1/research", s.handleResearch)
	mux.HandleFunc("/healthz", s.handleHealth)
	return s.withCORS(mux)
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		s.logger.Info("api listening", zap.Int("port", s.port))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server stopped", zap.Error(err))
		}
	}()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s.http != nil {
		s.http.Close()
	}
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	summary := s.city.Summary()
	s.mu.Unlock()
	s.writeJSON(w, summary)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	s.mu.Lock()
	alerts := s.city.Alerts(limit)
	s.mu.Unlock()
	s.writeJSON(w, map[string]any{"alerts": alerts})
}

func (s *Server) handleFinance(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	credit := s.city.Credit()
	payload := map[string]any{
		"score":           credit.Score(),
		"rating":          credit.Rating().String(),
		"bankruptcy_risk": credit.BankruptcyRisk(),
		"debt":            credit.TotalDebt(),
		"monthly":         credit.MonthlyObligations(),
		"active_loans":    credit.ActiveLoans(),
		"advice":          credit.Advice(s.city.Ledger()),
	}
	if reports := credit.Reports(); len(reports) > 0 {
		payload["latest_report"] = reports[len(reports)-1]
	}
	s.mu.Unlock()
	s.writeJSON(w, payload)
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	queue := s.city.Research()
	payload := map[string]any{
		"available":  queue.Available(),
		"researched": queue.ResearchedList(),
		"unlocked":   queue.UnlockedBuildings(),
		"effects":    queue.Effects(),
	}
	if cur, ok := queue.Current(); ok {
		payload["current"] = cur
	}
	s.mu.Unlock()
	s.writeJSON(w, payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}
