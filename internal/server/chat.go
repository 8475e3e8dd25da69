package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/MrGarbonzo/secretforge/internal/assistant"
	"github.com/MrGarbonzo/secretforge/internal/token"
)

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

const (
	maxMessageLength = 10000
	maxHistoryTurns  = 10
)

// ChatRequest is the body of POST /api/chat. The optional wallet fields let
// a front-end that queried balances itself pass them through for the answer.
type ChatRequest struct {
	Message       string                   `json:"message"`
	History       []assistant.Message      `json:"history"`
	Stream        bool                     `json:"stream"`
	WalletAddress string                   `json:"wallet_address,omitempty"`
	ViewingKeys   map[string]string        `json:"viewing_keys,omitempty"`
	SnipBalances  map[string]prefetchedBal `json:"snip_balances,omitempty"`
	ScrtBalance   *prefetchedBal           `json:"scrt_balance,omitempty"`
}

type prefetchedBal struct {
	Success   bool   `json:"success"`
	Formatted string `json:"formatted"`
	Token     string `json:"token,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ChatResponse is the non-streaming chat reply.
type ChatResponse struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.respondError(w, http.StatusBadRequest, "message is required", "")
		return
	}
	if len(req.Message) > maxMessageLength {
		s.respondError(w, http.StatusBadRequest, "message too long", "")
		return
	}

	// Viewing keys supplied by the front-end seed the cache so balance
	// queries skip the resolution chain.
	if req.WalletAddress != "" {
		for symbol, key := range req.ViewingKeys {
			s.opts.Store.Keys.Put(req.WalletAddress, symbol, key)
		}
	}

	// Balance questions are answered from wallet data, never forwarded to
	// the assistant.
	if answer, ok := s.answerBalanceQuery(r, req); ok {
		s.respondJSON(w, http.StatusOK, ChatResponse{
			Response:  answer,
			Timestamp: nowRFC3339(),
		})
		return
	}

	messages := s.buildMessages(req)

	if req.Stream {
		s.streamChat(w, r, messages)
		return
	}

	reply, err := s.opts.Assistant.Chat(r.Context(), messages)
	if err != nil {
		s.log.Printf("[server] chat: %v", err)
		s.respondError(w, http.StatusBadGateway, "failed to get response", "")
		return
	}

	s.respondJSON(w, http.StatusOK, ChatResponse{
		Response:  reply,
		Timestamp: nowRFC3339(),
	})
}

func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, messages []assistant.Message) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported", "")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	err := s.opts.Assistant.ChatStream(r.Context(), messages, func(chunk string) error {
		if _, err := w.Write([]byte(chunk)); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// Headers are gone; all we can do is log and cut the stream.
		s.log.Printf("[server] chat stream: %v", err)
	}
}

func (s *Server) buildMessages(req ChatRequest) []assistant.Message {
	system := "You are a helpful AI assistant for Secret Network users."
	if _, address, ok := s.opts.Orchestrator.Client(); ok {
		system += fmt.Sprintf(" The user has connected their Keplr wallet with address: %s.", address)
	} else if req.WalletAddress != "" {
		system += fmt.Sprintf(" The user has connected their Keplr wallet with address: %s.", req.WalletAddress)
	}

	messages := []assistant.Message{{Role: "system", Content: system}}

	history := req.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	for _, m := range history {
		switch m.Role {
		case "user", "assistant", "system":
			messages = append(messages, m)
		}
	}

	return append(messages, assistant.Message{Role: "user", Content: req.Message})
}

// nativeBalancePatterns match questions about the native SCRT balance.
var nativeBalancePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bscrt\s+balance\b`),
	regexp.MustCompile(`(?i)\bmy\s+scrt\b`),
	regexp.MustCompile(`(?i)\bbalance\s+of\s+scrt\b`),
	regexp.MustCompile(`(?i)\bhow\s+much\s+scrt\b`),
	regexp.MustCompile(`(?i)\b(my|check|show|query)\s+(native\s+)?balance\b`),
}

func detectNativeBalanceQuery(message string) bool {
	for _, p := range nativeBalancePatterns {
		if p.MatchString(message) {
			return true
		}
	}
	return false
}

// detectTokenBalanceQuery returns the catalog symbol the message asks about.
func detectTokenBalanceQuery(message string, catalog *token.Catalog) (string, bool) {
	for _, tok := range catalog.All() {
		symbol := regexp.QuoteMeta(tok.Key())
		patterns := []string{
			`(?i)\b` + symbol + `\s+balance\b`,
			`(?i)\bmy\s+` + symbol + `\b`,
			`(?i)\bbalance\s+of\s+` + symbol + `\b`,
			`(?i)\b(check|show|query)\s+` + symbol + `\b`,
			`(?i)\bhow\s+much\s+` + symbol + `\b`,
		}
		for _, p := range patterns {
			if regexp.MustCompile(p).MatchString(message) {
				return tok.Symbol, true
			}
		}
	}
	return "", false
}

// answerBalanceQuery resolves balance questions locally: pre-fetched data
// from the request wins, then the live wallet session, then a prompt to
// connect. The second return is false when the message is not a balance
// question.
func (s *Server) answerBalanceQuery(r *http.Request, req ChatRequest) (string, bool) {
	if symbol, ok := detectTokenBalanceQuery(req.Message, s.opts.Catalog); ok {
		if bal, ok := req.SnipBalances[strings.ToLower(symbol)]; ok {
			if bal.Success {
				return fmt.Sprintf("Your %s balance is %s %s", symbol, bal.Formatted, symbol), true
			}
			return fmt.Sprintf("Sorry, I couldn't retrieve your %s balance: %s", symbol, bal.Error), true
		}

		if client, address, ok := s.opts.Orchestrator.Client(); ok {
			res := s.opts.Coordinator.QueryBalance(r.Context(), client, address, symbol)
			if res.Success {
				return fmt.Sprintf("Your %s balance is %s %s", symbol, res.Formatted, symbol), true
			}
			return fmt.Sprintf("Sorry, I couldn't retrieve your %s balance: %s", symbol, res.ErrReason), true
		}

		return fmt.Sprintf("To check your %s balance, please connect your Keplr wallet.", symbol), true
	}

	if detectNativeBalanceQuery(req.Message) {
		if bal := req.ScrtBalance; bal != nil {
			if bal.Success {
				return fmt.Sprintf("Your SCRT balance is %s SCRT", bal.Formatted), true
			}
			return fmt.Sprintf("Sorry, I couldn't retrieve your SCRT balance: %s", bal.Error), true
		}

		if client, address, ok := s.opts.Orchestrator.Client(); ok {
			coin, err := client.BankBalance(r.Context(), address, s.opts.ChainCfg.Denom)
			if err != nil {
				return fmt.Sprintf("Sorry, I couldn't retrieve your SCRT balance: %v", err), true
			}
			formatted, err := token.FormatAmount(coin.Amount, 6)
			if err != nil {
				return fmt.Sprintf("Sorry, I couldn't retrieve your SCRT balance: %v", err), true
			}
			return fmt.Sprintf("Your SCRT balance is %s SCRT", formatted), true
		}

		return "To check your SCRT balance, please connect your Keplr wallet.", true
	}

	return "", false
}
