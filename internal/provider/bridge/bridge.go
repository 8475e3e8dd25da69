// Package bridge implements provider.WalletProvider over a websocket to the
// browser page that holds the actual Keplr extension. The gateway sends one
// request frame per provider call and waits for the matching response; the
// page executes the call against window.keplr and replies.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrGarbonzo/secretforge/internal/provider"
)

const (
	writeTimeout = 10 * time.Second
	callTimeout  = 90 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// request is one provider call sent to the page.
type request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// response is the page's reply.
type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes the page maps extension failures to.
const (
	codeNotDetected   = "not_detected"
	codeUserRejected  = "user_rejected"
	codeNoAccounts    = "no_accounts"
	codeChainExists   = "chain_exists"
	codeChainConflict = "chain_conflict"
	codeNoViewingKey  = "no_viewing_key"
)

func (e *rpcError) toProviderError() error {
	switch e.Code {
	case codeNotDetected:
		return provider.ErrNotDetected
	case codeUserRejected:
		return provider.ErrUserRejected
	case codeNoAccounts:
		return provider.ErrNoAccounts
	case codeChainExists:
		return provider.ErrChainAlreadyAdded
	case codeChainConflict:
		return provider.ErrChainConflict
	case codeNoViewingKey:
		return provider.ErrNoViewingKey
	default:
		return fmt.Errorf("provider error %s: %s", e.Code, e.Message)
	}
}

// Bridge holds the page connection and pending calls. At most one page is
// attached; a new connection replaces the old one and fails its pending
// calls.
type Bridge struct {
	log *log.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[uint64]chan response
	nextID  uint64
}

// New creates a bridge with no page attached.
func New(logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.Default()
	}
	return &Bridge{
		log:     logger,
		pending: make(map[uint64]chan response),
	}
}

// Handler accepts the page's websocket connection.
func (b *Bridge) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.log.Printf("[bridge] upgrade: %v", err)
			return
		}
		b.attach(conn)
		b.readLoop(conn)
	}
}

func (b *Bridge) attach(conn *websocket.Conn) {
	b.mu.Lock()
	old := b.conn
	b.conn = conn
	b.failPendingLocked(errors.New("bridge connection replaced"))
	b.mu.Unlock()

	if old != nil {
		old.Close()
	}
	b.log.Printf("[bridge] page attached from %s", conn.RemoteAddr())
}

// readLoop dispatches responses to their waiting calls until the connection
// drops.
func (b *Bridge) readLoop(conn *websocket.Conn) {
	defer func() {
		b.mu.Lock()
		if b.conn == conn {
			b.conn = nil
			b.failPendingLocked(provider.ErrNotDetected)
		}
		b.mu.Unlock()
		conn.Close()
		b.log.Printf("[bridge] page detached")
	}()

	for {
		var resp response
		if err := conn.ReadJSON(&resp); err != nil {
			return
		}

		b.mu.Lock()
		ch, ok := b.pending[resp.ID]
		if ok {
			delete(b.pending, resp.ID)
		}
		b.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

func (b *Bridge) failPendingLocked(err error) {
	for id, ch := range b.pending {
		delete(b.pending, id)
		ch <- response{Error: &rpcError{Code: "bridge_closed", Message: err.Error()}}
	}
}

// call sends one request and waits for its response or ctx expiry.
func (b *Bridge) call(ctx context.Context, method string, params, result interface{}) error {
	var rawParams json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		rawParams = data
	}

	b.mu.Lock()
	conn := b.conn
	if conn == nil {
		b.mu.Unlock()
		return provider.ErrNotDetected
	}
	b.nextID++
	id := b.nextID
	ch := make(chan response, 1)
	b.pending[id] = ch

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := conn.WriteJSON(request{ID: id, Method: method, Params: rawParams})
	b.mu.Unlock()

	if err != nil {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		return fmt.Errorf("send %s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		return ctx.Err()
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error.toProviderError()
		}
		if result != nil && resp.Result != nil {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("unmarshal %s result: %w", method, err)
			}
		}
		return nil
	}
}

// Attached reports whether a page is currently connected.
func (b *Bridge) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Detect reports whether the page is attached and sees the extension.
func (b *Bridge) Detect(ctx context.Context) error {
	if !b.Attached() {
		return provider.ErrNotDetected
	}
	return b.call(ctx, "detect", nil, nil)
}

type chainParams struct {
	ChainID string             `json:"chain_id"`
	Info    provider.ChainInfo `json:"info,omitempty"`
}

// SuggestChain forwards the chain registration to the extension.
func (b *Bridge) SuggestChain(ctx context.Context, info provider.ChainInfo) error {
	return b.call(ctx, "suggest_chain", chainParams{ChainID: info.ChainID, Info: info}, nil)
}

// Enable asks the extension to unlock the chain.
func (b *Bridge) Enable(ctx context.Context, chainID string) error {
	return b.call(ctx, "enable", chainParams{ChainID: chainID}, nil)
}

// Signer returns a signing handle routed through the bridge.
func (b *Bridge) Signer(ctx context.Context, chainID string) (provider.Signer, error) {
	if !b.Attached() {
		return nil, provider.ErrNotDetected
	}
	return &bridgeSigner{b: b, chainID: chainID}, nil
}

// EncryptionUtils returns an opaque handle; encryption happens on the page.
func (b *Bridge) EncryptionUtils(ctx context.Context, chainID string) (provider.EncryptionUtils, error) {
	if !b.Attached() {
		return nil, provider.ErrNotDetected
	}
	return struct{}{}, nil
}

type tokenParams struct {
	ChainID  string `json:"chain_id"`
	Contract string `json:"contract"`
}

// SuggestToken registers the token contract with the extension.
func (b *Bridge) SuggestToken(ctx context.Context, chainID, contract string) error {
	return b.call(ctx, "suggest_token", tokenParams{ChainID: chainID, Contract: contract}, nil)
}

// ViewingKey fetches the key registered in the extension.
func (b *Bridge) ViewingKey(ctx context.Context, chainID, contract string) (string, error) {
	var result struct {
		Key string `json:"key"`
	}
	if err := b.call(ctx, "viewing_key", tokenParams{ChainID: chainID, Contract: contract}, &result); err != nil {
		return "", err
	}
	if result.Key == "" {
		return "", provider.ErrNoViewingKey
	}
	return result.Key, nil
}

var _ provider.WalletProvider = (*Bridge)(nil)

// bridgeSigner routes signing calls through the page.
type bridgeSigner struct {
	b       *Bridge
	chainID string
}

func (s *bridgeSigner) Accounts(ctx context.Context) ([]provider.Account, error) {
	var result struct {
		Accounts []provider.Account `json:"accounts"`
	}
	if err := s.b.call(ctx, "accounts", chainParams{ChainID: s.chainID}, &result); err != nil {
		return nil, err
	}
	return result.Accounts, nil
}

type signParams struct {
	ChainID string              `json:"chain_id"`
	Doc     provider.ExecuteDoc `json:"doc"`
}

func (s *bridgeSigner) SignExecute(ctx context.Context, chainID string, doc provider.ExecuteDoc) ([]byte, error) {
	var result struct {
		TxBytes []byte `json:"tx_bytes"`
	}
	if err := s.b.call(ctx, "sign_execute", signParams{ChainID: chainID, Doc: doc}, &result); err != nil {
		return nil, err
	}
	if len(result.TxBytes) == 0 {
		return nil, errors.New("empty signed tx")
	}
	return result.TxBytes, nil
}

type sendParams struct {
	ChainID string           `json:"chain_id"`
	Doc     provider.SendDoc `json:"doc"`
}

func (s *bridgeSigner) SignSend(ctx context.Context, chainID string, doc provider.SendDoc) ([]byte, error) {
	var result struct {
		TxBytes []byte `json:"tx_bytes"`
	}
	if err := s.b.call(ctx, "sign_send", sendParams{ChainID: chainID, Doc: doc}, &result); err != nil {
		return nil, err
	}
	if len(result.TxBytes) == 0 {
		return nil, errors.New("empty signed tx")
	}
	return result.TxBytes, nil
}

var _ provider.Signer = (*bridgeSigner)(nil)
