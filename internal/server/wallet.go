package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MrGarbonzo/secretforge/internal/chain"
	"github.com/MrGarbonzo/secretforge/internal/domain"
	"github.com/MrGarbonzo/secretforge/internal/events"
	"github.com/MrGarbonzo/secretforge/internal/provider"
	"github.com/MrGarbonzo/secretforge/internal/token"
	"github.com/MrGarbonzo/secretforge/internal/wallet"
)

type connectResponse struct {
	Address string `json:"address"`
	Status  string `json:"status"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	address, err := s.opts.Orchestrator.Connect(r.Context(), true)
	if err != nil {
		if errors.Is(err, wallet.ErrConnectBusy) {
			s.respondError(w, http.StatusConflict, "connect already in progress", "")
			return
		}

		var ce *wallet.ConnectError
		if errors.As(err, &ce) {
			s.respondError(w, connectErrorStatus(ce.Kind), ce.Error(), ce.Hint)
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	s.respondJSON(w, http.StatusOK, connectResponse{
		Address: address,
		Status:  string(wallet.StatusConnected),
	})
}

func connectErrorStatus(kind wallet.ErrKind) int {
	switch kind {
	case wallet.KindUserRejected:
		return http.StatusForbidden
	case wallet.KindProviderUnavailable, wallet.KindNoAccounts, wallet.KindConfigurationConflict:
		return http.StatusPreconditionFailed
	case wallet.KindTimeout:
		return http.StatusGatewayTimeout
	case wallet.KindNetworkError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Orchestrator.Disconnect(r.Context()); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": string(wallet.StatusDisconnected),
	})
}

type nativeBalanceResponse struct {
	Success bool         `json:"success"`
	Balance *domain.Coin `json:"balance,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// handleNativeBalance is the fallback path for front-ends whose direct node
// query failed: the gateway asks the LCD on their behalf.
func (s *Server) handleNativeBalance(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if !validAddress(address) {
		s.respondJSON(w, http.StatusBadRequest, nativeBalanceResponse{Error: "invalid address"})
		return
	}

	client, _, ok := s.opts.Orchestrator.Client()
	if !ok {
		s.respondJSON(w, http.StatusOK, nativeBalanceResponse{Error: "wallet not connected"})
		return
	}

	coin, err := client.BankBalance(r.Context(), address, s.opts.ChainCfg.Denom)
	if err != nil {
		if errors.Is(err, chain.ErrNotFound) {
			s.respondJSON(w, http.StatusOK, nativeBalanceResponse{
				Success: true,
				Balance: &domain.Coin{Amount: "0", Denom: s.opts.ChainCfg.Denom},
			})
			return
		}
		s.log.Printf("[server] bank balance: %v", err)
		s.respondJSON(w, http.StatusOK, nativeBalanceResponse{Error: err.Error()})
		return
	}

	s.respondJSON(w, http.StatusOK, nativeBalanceResponse{Success: true, Balance: &coin})
}

func validAddress(address string) bool {
	return strings.HasPrefix(address, "secret1") && len(address) == 45
}

// sendGasLimit covers a single bank send message.
const sendGasLimit = 50_000

type sendRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"` // whole SCRT, e.g. "2.5"
	Memo      string `json:"memo,omitempty"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash,omitempty"`
	Height  int64  `json:"height,omitempty"`
	GasUsed int64  `json:"gas_used,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleSend transfers native SCRT from the connected wallet. The amount is
// given in whole SCRT and converted to the minimal denomination before
// signing.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, sendResponse{Error: "invalid request body"})
		return
	}

	client, from, ok := s.opts.Orchestrator.Client()
	if !ok {
		s.respondJSON(w, http.StatusPreconditionFailed, sendResponse{Error: "wallet not connected"})
		return
	}

	if !validAddress(req.Recipient) {
		s.respondJSON(w, http.StatusBadRequest, sendResponse{Error: "Invalid recipient address format"})
		return
	}

	raw, err := token.ParseAmount(req.Amount, 6)
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, sendResponse{Error: fmt.Sprintf("invalid amount: %v", err)})
		return
	}

	res, err := client.BankSend(r.Context(), provider.SendDoc{
		From:     from,
		To:       req.Recipient,
		Amount:   raw,
		Denom:    s.opts.ChainCfg.Denom,
		Memo:     req.Memo,
		GasLimit: sendGasLimit,
	})
	if err != nil {
		status, msg := classifySendError(err)
		s.log.Printf("[server] bank send: %v", err)
		s.respondJSON(w, status, sendResponse{Error: msg})
		return
	}

	formatted, ferr := token.FormatAmount(raw, 6)
	if ferr != nil {
		formatted = req.Amount
	}
	s.opts.Hub.Publish(events.StatusEvent{
		Kind:    events.KindInfo,
		Address: from,
		Message: fmt.Sprintf("Sent %s SCRT to %s", formatted, req.Recipient),
	})
	s.log.Printf("[server] sent %s %s to %s: %s", raw, s.opts.ChainCfg.Denom, req.Recipient, res.TxHash)

	s.respondJSON(w, http.StatusOK, sendResponse{
		Success: true,
		TxHash:  res.TxHash,
		Height:  res.Height,
		GasUsed: res.GasUsed,
	})
}

// classifySendError maps signing and broadcast failures onto the messages
// the front-end shows. Node raw logs are matched by substring since the LCD
// does not return structured error codes for these cases.
func classifySendError(err error) (int, string) {
	if errors.Is(err, provider.ErrUserRejected) {
		return http.StatusForbidden, "Transaction rejected by user"
	}

	msg := err.Error()
	var te *chain.TxError
	if errors.As(err, &te) {
		msg = te.RawLog
	}
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "insufficient funds") || strings.Contains(lower, "insufficient coins"):
		return http.StatusBadRequest, "Insufficient SCRT balance to complete transaction"
	case strings.Contains(lower, "invalid sequence") || strings.Contains(lower, "account sequence mismatch"):
		return http.StatusConflict, "Account sequence error. Please try the transaction again."
	case strings.Contains(lower, "out of gas") || (strings.Contains(lower, "gas") && strings.Contains(lower, "exceed")):
		return http.StatusBadRequest, "Transaction requires more gas than provided"
	case strings.Contains(lower, "decoding bech32 failed") || strings.Contains(lower, "invalid address"):
		return http.StatusBadRequest, "Invalid recipient address format"
	default:
		return http.StatusBadGateway, msg
	}
}

type tokenBalancesResponse struct {
	Address  string                          `json:"address"`
	Balances map[string]domain.BalanceResult `json:"balances"`
}

// handleTokenBalances sweeps all catalog tokens, or the subset named by the
// tokens query parameter.
func (s *Server) handleTokenBalances(w http.ResponseWriter, r *http.Request) {
	client, address, ok := s.opts.Orchestrator.Client()
	if !ok {
		s.respondError(w, http.StatusPreconditionFailed, "wallet not connected", "Connect your wallet first.")
		return
	}

	var symbols []string
	if q := r.URL.Query().Get("tokens"); q != "" {
		for _, sym := range strings.Split(q, ",") {
			if sym = strings.TrimSpace(sym); sym != "" {
				symbols = append(symbols, sym)
			}
		}
	} else {
		for _, tok := range s.opts.Catalog.All() {
			symbols = append(symbols, tok.Symbol)
		}
	}

	s.respondJSON(w, http.StatusOK, tokenBalancesResponse{
		Address:  address,
		Balances: s.opts.Coordinator.QueryBalances(r.Context(), client, address, symbols),
	})
}
