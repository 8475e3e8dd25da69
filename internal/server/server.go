// Package server is the HTTP surface of the gateway: the chat proxy, the
// wallet endpoints and the operational endpoints.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrGarbonzo/secretforge/internal/assistant"
	"github.com/MrGarbonzo/secretforge/internal/chain"
	"github.com/MrGarbonzo/secretforge/internal/compose"
	"github.com/MrGarbonzo/secretforge/internal/credstore"
	"github.com/MrGarbonzo/secretforge/internal/events"
	"github.com/MrGarbonzo/secretforge/internal/storage"
	"github.com/MrGarbonzo/secretforge/internal/token"
	"github.com/MrGarbonzo/secretforge/internal/wallet"
)

const version = "1.0.0"

// Options configures the HTTP server.
type Options struct {
	Orchestrator *wallet.Orchestrator
	Coordinator  *token.Coordinator
	Catalog      *token.Catalog
	Assistant    *assistant.Client
	Store        *credstore.Store
	Hub          *events.Hub
	Audit        storage.AuditStore
	Logger       *log.Logger

	ChainCfg chain.Config
	Compose  compose.Options

	// ProviderBridge, when set, is mounted at /api/provider/bridge so the
	// page can attach its wallet extension.
	ProviderBridge http.Handler

	// APIKey is only used for the masked diagnostic preview.
	APIKey string

	EnableHistory       bool
	EnableSecretNetwork bool
}

// Server routes gateway requests.
type Server struct {
	opts    Options
	log     *log.Logger
	started time.Time
}

// New creates a server from options.
func New(opts Options) (*Server, error) {
	if opts.Orchestrator == nil {
		return nil, errors.New("server: orchestrator is required")
	}
	if opts.Coordinator == nil {
		return nil, errors.New("server: token coordinator is required")
	}
	if opts.Catalog == nil {
		opts.Catalog = token.DefaultCatalog()
	}
	if opts.Assistant == nil {
		return nil, errors.New("server: assistant client is required")
	}
	if opts.Hub == nil {
		opts.Hub = opts.Orchestrator.Hub()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Server{
		opts:    opts,
		log:     opts.Logger,
		started: time.Now(),
	}, nil
}

// Routes builds the request mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /secret_gptee/api/wallet/balance/{address}", s.handleNativeBalance)

	mux.HandleFunc("POST /api/wallet/connect", s.handleConnect)
	mux.HandleFunc("POST /api/wallet/disconnect", s.handleDisconnect)
	mux.HandleFunc("GET /api/wallet/balances", s.handleTokenBalances)
	mux.HandleFunc("POST /api/wallet/send", s.handleSend)

	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/diagnostic", s.handleDiagnostic)
	mux.HandleFunc("GET /api/deploy/compose", s.handleCompose)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	if s.opts.ProviderBridge != nil {
		mux.Handle("GET /api/provider/bridge", s.opts.ProviderBridge)
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Printf("[server] encode response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg, hint string) {
	s.respondJSON(w, status, errorResponse{Error: msg, Hint: hint})
}

type healthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	Wallet         string `json:"wallet"`
	HistoryEnabled bool   `json:"history_enabled"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		Version:        version,
		Wallet:         string(s.opts.Orchestrator.State().Status),
		HistoryEnabled: s.opts.EnableHistory,
	})
}

type statusResponse struct {
	Status      string       `json:"status"`
	Version     string       `json:"version"`
	Uptime      string       `json:"uptime"`
	Wallet      wallet.State `json:"wallet"`
	Subscribers int          `json:"event_subscribers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, statusResponse{
		Status:      "running",
		Version:     version,
		Uptime:      time.Since(s.started).String(),
		Wallet:      s.opts.Orchestrator.State(),
		Subscribers: s.opts.Hub.SubscriberCount(),
	})
}

type configResponse struct {
	SecretNetwork bool   `json:"secretNetwork"`
	ChainID       string `json:"chainId"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, configResponse{
		SecretNetwork: s.opts.EnableSecretNetwork,
		ChainID:       s.opts.ChainCfg.ChainID,
	})
}

func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="docker-compose.yml"`)
	if _, err := w.Write([]byte(compose.Generate(s.opts.Compose))); err != nil {
		s.log.Printf("[server] write compose: %v", err)
	}
}
