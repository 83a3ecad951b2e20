// Package api serves the simulation over HTTP.
// GET endpoints are public (read-only observation).
// POST endpoints change state and are rate limited per IP; operator
// endpoints additionally require the admin bearer token.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/talgya/neurobank/internal/apperr"
	"github.com/talgya/neurobank/internal/engine"
	"github.com/talgya/neurobank/internal/persistence"
)

const (
	maxSSEConns   = 2
	catchUpEvents = 50
	heartbeat     = 15 * time.Second
)

// Server serves the simulation state over HTTP.
type Server struct {
	Sim         *engine.Simulation
	Eng         *engine.Engine
	DB          *persistence.DB // nil disables POST /snapshot
	Port        int
	AdminKey    string   // Bearer token for admin endpoints. Empty = admin disabled.
	RelayKey    string   // Bearer token for the SSE stream. Empty = streaming disabled.
	CORSOrigins []string // extra allowed origins beyond the localhost dev servers

	// WriteLimit caps POST requests per IP per minute. Zero uses 60.
	WriteLimit int

	// Active SSE connection count (atomic).
	sseConns int32
}

// Handler builds the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	limit := s.WriteLimit
	if limit <= 0 {
		limit = 60
	}
	writeLimiter := NewRateLimiter(limit, time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.CORSOrigins))

	r.Route("/api/v1", func(r chi.Router) {
		// Public observation.
		r.Get("/status", s.handleStatus)
		r.Get("/network", s.handleNetwork)
		r.Get("/market", s.handleMarket)
		r.Get("/sessions", s.handleSessions)
		r.Get("/wallet", s.handleWallet)
		r.Get("/achievements", s.handleAchievements)
		r.Get("/nfts", s.handleNFTs)
		r.Get("/marketplace", s.handleMarketplace)
		r.Get("/research/projects", s.handleProjects)
		r.Get("/research/requests", s.handleRequests)
		r.Get("/pools", s.handlePools)
		r.Get("/positions", s.handlePositions)
		r.Get("/transactions", s.handleTransactions)
		r.Get("/transactions/{hash}", s.handleTransaction)
		r.Get("/reputation/{address}", s.handleReputation)
		r.Get("/quotes/price", s.handlePriceQuote)
		r.Get("/quotes/staking", s.handleStakingQuote)
		r.Get("/contributions", s.handleContributions)
		r.Get("/earnings/summary", s.handleEarningsSummary)
		r.Get("/earnings/due", s.handleDueEarnings)
		r.Get("/events", s.handleEvents)

		// Live feeds.
		r.Get("/stream", s.handleStream)
		r.Get("/ws", s.handleWebSocket)

		// User actions.
		r.Group(func(r chi.Router) {
			r.Use(writeLimiter.Middleware)
			r.Post("/sessions", s.handleCreateSession)
			r.Post("/sessions/{id}/tokenize", s.handleTokenizeSession)
			r.Post("/sessions/{id}/submit", s.handleSubmitSession)
			r.Post("/nfts", s.handleMintNFT)
			r.Post("/nfts/{id}/list", s.handleListNFT)
			r.Post("/nfts/{id}/purchase", s.handlePurchaseNFT)
			r.Post("/nfts/{id}/submit", s.handleSubmitToResearch)
			r.Post("/pools/{id}/stake", s.handleStake)
			r.Post("/wallet/genesis", s.handleGenesis)
			r.Post("/contributions", s.handleContribute)
		})

		// Operator control plane.
		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Post("/speed", s.handleSpeed)
			r.Post("/snapshot", s.handleSnapshot)
			r.Post("/reputation/{address}", s.handleUpdateReputation)
			r.Post("/contributions/{id}/realize", s.handleRealize)
			r.Post("/contributions/{id}/expire", s.handleExpire)
		})
	})
	return r
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "relay_auth", s.RelayKey != "")

	handler := s.Handler()
	go func() {
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func allowedOrigins(extra []string) map[string]bool {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range extra {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowed[origin] = true
		}
	}
	return allowed
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(extra []string) func(http.Handler) http.Handler {
	allowed := allowedOrigins(extra)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerMatches(r *http.Request, key string) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == key
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !bearerMatches(r, s.AdminKey) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusFor maps a domain error code to an HTTP status.
func statusFor(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.ErrorInvalid:
		return http.StatusBadRequest
	case apperr.ErrorNotFound:
		return http.StatusNotFound
	case apperr.ErrorConflict, apperr.ErrorCapacityReached:
		return http.StatusConflict
	case apperr.ErrorInsufficientBalance:
		return http.StatusPaymentRequired
	case apperr.ErrorRequirementsNotMet:
		return http.StatusUnprocessableEntity
	case apperr.ErrorUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", code)
		return
	}
	http.Error(w, err.Error(), code)
}

// decodeBody decodes a JSON body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.NewInvalidError("invalid json: " + err.Error())
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Uses the relay key, not the admin key.
	if s.RelayKey == "" {
		http.Error(w, "streaming disabled (no relay key)", http.StatusForbidden)
		return
	}
	if !bearerMatches(r, s.RelayKey) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	current := atomic.AddInt32(&s.sseConns, 1)
	if current > maxSSEConns {
		atomic.AddInt32(&s.sseConns, -1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, backlog, ch := s.Sim.Subscribe(catchUpEvents)
	defer s.Sim.Unsubscribe(subID)

	for _, e := range backlog {
		writeSSEEvent(w, e)
	}
	flusher.Flush()

	slog.Info("SSE client connected", "sub_id", subID)

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			writeSSEEvent(w, e)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "sub_id", subID)
			return
		}
	}
}

// writeSSEEvent writes a single event in SSE format.
func writeSSEEvent(w http.ResponseWriter, e engine.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Category, data)
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
