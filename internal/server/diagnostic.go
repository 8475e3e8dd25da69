package server

import (
	"net/http"
	"time"

	"github.com/MrGarbonzo/secretforge/internal/domain"
)

const diagnosticAuditWindow = 24 * time.Hour

type diagnosticResponse struct {
	APIKeySet     bool                `json:"api_key_set"`
	APIKeyPreview string              `json:"api_key_preview,omitempty"`
	Model         string              `json:"model,omitempty"`
	BaseURL       string              `json:"base_url,omitempty"`
	ChainID       string              `json:"chain_id"`
	NodeURL       string              `json:"node_url"`
	Wallet        string              `json:"wallet"`
	RecentEvents  []*domain.AuditEvent `json:"recent_events,omitempty"`
}

func (s *Server) handleDiagnostic(w http.ResponseWriter, r *http.Request) {
	resp := diagnosticResponse{
		APIKeySet:     s.opts.APIKey != "",
		APIKeyPreview: maskKey(s.opts.APIKey),
		Model:         s.opts.Assistant.Model(),
		BaseURL:       s.opts.Assistant.BaseURL(),
		ChainID:       s.opts.ChainCfg.ChainID,
		NodeURL:       s.opts.ChainCfg.Endpoint,
		Wallet:        string(s.opts.Orchestrator.State().Status),
	}

	if s.opts.Audit != nil {
		events, err := s.opts.Audit.GetRecent(r.Context(), time.Now().Add(-diagnosticAuditWindow), 20)
		if err != nil {
			s.log.Printf("[server] diagnostic audit: %v", err)
		} else {
			resp.RecentEvents = events
		}
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// maskKey keeps the first and last few characters of the API key.
func maskKey(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) > 8:
		return key[:4] + "..." + key[len(key)-4:]
	default:
		return key[:2] + "..." + key[len(key)-2:]
	}
}
