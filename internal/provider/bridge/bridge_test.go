package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrGarbonzo/secretforge/internal/provider"
)

const pageAddr = "secret1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq"

func newTestBridge(t *testing.T) (*Bridge, string) {
	t.Helper()

	b := New(log.New(io.Discard, "", 0))
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)

	return b, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// attachPage connects a scripted page that answers every request with
// handle. It returns the connection so tests can drop it.
func attachPage(t *testing.T, b *Bridge, url string, handle func(req request) response) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial bridge: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		for {
			var req request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := handle(req)
			resp.ID = req.ID
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}()

	waitAttached(t, b)
	return conn
}

func waitAttached(t *testing.T, b *Bridge) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !b.Attached() {
		if time.Now().After(deadline) {
			t.Fatal("page never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func okPage(t *testing.T) func(req request) response {
	return func(req request) response {
		switch req.Method {
		case "detect", "suggest_chain", "enable", "suggest_token":
			return response{}
		case "accounts":
			result, _ := json.Marshal(map[string]interface{}{
				"accounts": []provider.Account{{Address: pageAddr}},
			})
			return response{Result: result}
		case "viewing_key":
			result, _ := json.Marshal(map[string]string{"key": "api_key_x"})
			return response{Result: result}
		case "sign_execute":
			result, _ := json.Marshal(map[string][]byte{"tx_bytes": []byte("signed-tx")})
			return response{Result: result}
		case "sign_send":
			result, _ := json.Marshal(map[string][]byte{"tx_bytes": []byte("signed-send")})
			return response{Result: result}
		default:
			t.Errorf("unexpected method %q", req.Method)
			return response{Error: &rpcError{Code: "internal", Message: "unexpected method"}}
		}
	}
}

func TestDetect_NoPageAttached(t *testing.T) {
	b, _ := newTestBridge(t)

	if err := b.Detect(context.Background()); !errors.Is(err, provider.ErrNotDetected) {
		t.Fatalf("expected ErrNotDetected, got %v", err)
	}
}

func TestFullProviderFlow(t *testing.T) {
	b, url := newTestBridge(t)
	attachPage(t, b, url, okPage(t))
	ctx := context.Background()

	if err := b.Detect(ctx); err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if err := b.SuggestChain(ctx, provider.ChainInfo{ChainID: "secret-4"}); err != nil {
		t.Fatalf("SuggestChain: %v", err)
	}
	if err := b.Enable(ctx, "secret-4"); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	signer, err := b.Signer(ctx, "secret-4")
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}
	accounts, err := signer.Accounts(ctx)
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Address != pageAddr {
		t.Errorf("unexpected accounts: %+v", accounts)
	}

	txBytes, err := signer.SignExecute(ctx, "secret-4", provider.ExecuteDoc{Sender: pageAddr})
	if err != nil {
		t.Fatalf("SignExecute: %v", err)
	}
	if string(txBytes) != "signed-tx" {
		t.Errorf("unexpected tx bytes: %q", txBytes)
	}

	sendBytes, err := signer.SignSend(ctx, "secret-4", provider.SendDoc{From: pageAddr, Amount: "1000000", Denom: "uscrt"})
	if err != nil {
		t.Fatalf("SignSend: %v", err)
	}
	if string(sendBytes) != "signed-send" {
		t.Errorf("unexpected send bytes: %q", sendBytes)
	}

	key, err := b.ViewingKey(ctx, "secret-4", "secret1contract")
	if err != nil {
		t.Fatalf("ViewingKey: %v", err)
	}
	if key != "api_key_x" {
		t.Errorf("unexpected key: %q", key)
	}
}

func TestErrorCodeMapping(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{codeNotDetected, provider.ErrNotDetected},
		{codeUserRejected, provider.ErrUserRejected},
		{codeNoAccounts, provider.ErrNoAccounts},
		{codeChainExists, provider.ErrChainAlreadyAdded},
		{codeChainConflict, provider.ErrChainConflict},
		{codeNoViewingKey, provider.ErrNoViewingKey},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			b, url := newTestBridge(t)
			attachPage(t, b, url, func(req request) response {
				return response{Error: &rpcError{Code: tt.code, Message: tt.code}}
			})

			err := b.Enable(context.Background(), "secret-4")
			if !errors.Is(err, tt.want) {
				t.Errorf("code %q mapped to %v, want %v", tt.code, err, tt.want)
			}
		})
	}
}

func TestViewingKey_EmptyIsNoKey(t *testing.T) {
	b, url := newTestBridge(t)
	attachPage(t, b, url, func(req request) response {
		result, _ := json.Marshal(map[string]string{"key": ""})
		return response{Result: result}
	})

	_, err := b.ViewingKey(context.Background(), "secret-4", "secret1contract")
	if !errors.Is(err, provider.ErrNoViewingKey) {
		t.Fatalf("expected ErrNoViewingKey, got %v", err)
	}
}

func TestPageDetachFailsCalls(t *testing.T) {
	b, url := newTestBridge(t)
	conn := attachPage(t, b, url, okPage(t))

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for b.Attached() {
		if time.Now().After(deadline) {
			t.Fatal("bridge never noticed the detach")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := b.Detect(context.Background()); !errors.Is(err, provider.ErrNotDetected) {
		t.Fatalf("expected ErrNotDetected after detach, got %v", err)
	}
}

func TestCallHonorsContext(t *testing.T) {
	b, url := newTestBridge(t)
	// A page that answers far too late.
	attachPage(t, b, url, func(req request) response {
		time.Sleep(5 * time.Second)
		return response{}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Enable(ctx, "secret-4")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewConnectionReplacesOld(t *testing.T) {
	b, url := newTestBridge(t)
	attachPage(t, b, url, func(req request) response {
		return response{Error: &rpcError{Code: "internal", Message: "old page"}}
	})

	attachPage(t, b, url, okPage(t))

	// The replacement attach races the test goroutine; retry until the new
	// page answers.
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := b.Detect(context.Background())
		if err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Detect via replacement page: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
