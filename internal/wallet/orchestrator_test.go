package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrGarbonzo/secretforge/internal/chain"
	chainstub "github.com/MrGarbonzo/secretforge/internal/chain/stub"
	"github.com/MrGarbonzo/secretforge/internal/credstore"
	"github.com/MrGarbonzo/secretforge/internal/events"
	"github.com/MrGarbonzo/secretforge/internal/provider"
	provstub "github.com/MrGarbonzo/secretforge/internal/provider/stub"
	"github.com/MrGarbonzo/secretforge/internal/storage/memory"
)

const testAddress = "secret1testaddr000000000000000000000000000000"

func newTestOrchestrator(t *testing.T, prov *provstub.Provider) (*Orchestrator, *credstore.Store) {
	t.Helper()

	store := credstore.New(memory.NewSessionStore())
	orch, err := NewOrchestrator(Options{
		Provider:       prov,
		Factory:        &chainstub.Factory{Client: chainstub.New()},
		ChainCfg:       chain.Config{ChainID: "secret-4", Endpoint: "http://localhost", Denom: "uscrt"},
		Store:          store,
		Hub:            events.NewHub(),
		Audit:          memory.NewAuditStore(),
		ProfileID:      "test",
		DetectCeiling:  200 * time.Millisecond,
		DetectInterval: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}
	return orch, store
}

func TestConnect_Success(t *testing.T) {
	prov := provstub.New(testAddress)
	orch, store := newTestOrchestrator(t, prov)
	ctx := context.Background()

	address, err := orch.Connect(ctx, true)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if address != testAddress {
		t.Errorf("address mismatch: expected %s, got %s", testAddress, address)
	}

	state := orch.State()
	if state.Status != StatusConnected {
		t.Errorf("expected status connected, got %s", state.Status)
	}
	if state.Address != testAddress {
		t.Errorf("state address mismatch: got %s", state.Address)
	}

	// Durable record written
	rec, ok, err := store.LoadPersistedConnection(ctx, "test")
	if err != nil {
		t.Fatalf("LoadPersistedConnection failed: %v", err)
	}
	if !ok || !rec.Connected || rec.Address != testAddress {
		t.Errorf("unexpected persisted record: %+v (ok=%v)", rec, ok)
	}
}

func TestConnect_StateResetOnFailure(t *testing.T) {
	prov := provstub.New(testAddress)
	prov.EnableErr = provider.ErrUserRejected
	orch, _ := newTestOrchestrator(t, prov)

	_, err := orch.Connect(context.Background(), true)
	if err == nil {
		t.Fatal("expected error")
	}

	state := orch.State()
	if state.Status != StatusDisconnected {
		t.Errorf("expected disconnected after failure, got %s", state.Status)
	}
	if state.Address != "" {
		t.Errorf("expected empty address, got %s", state.Address)
	}
}

func TestConnect_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		prep func(*provstub.Provider)
		kind ErrKind
	}{
		{
			name: "user rejected",
			prep: func(p *provstub.Provider) { p.EnableErr = provider.ErrUserRejected },
			kind: KindUserRejected,
		},
		{
			name: "provider not detected",
			prep: func(p *provstub.Provider) { p.Detected = false },
			kind: KindProviderUnavailable,
		},
		{
			name: "no accounts",
			prep: func(p *provstub.Provider) { p.AccountList = nil },
			kind: KindNoAccounts,
		},
		{
			name: "chain conflict",
			prep: func(p *provstub.Provider) { p.SuggestChainErr = provider.ErrChainConflict },
			kind: KindConfigurationConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prov := provstub.New(testAddress)
			tt.prep(prov)
			orch, _ := newTestOrchestrator(t, prov)

			_, err := orch.Connect(context.Background(), true)
			if err == nil {
				t.Fatal("expected error")
			}

			var ce *ConnectError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *ConnectError, got %T: %v", err, err)
			}
			if ce.Kind != tt.kind {
				t.Errorf("kind mismatch: expected %s, got %s", tt.kind, ce.Kind)
			}
			if ce.Hint == "" {
				t.Error("expected a remediation hint")
			}
		})
	}
}

func TestConnect_ChainAlreadyAddedIsBenign(t *testing.T) {
	prov := provstub.New(testAddress)
	prov.SuggestChainErr = provider.ErrChainAlreadyAdded
	orch, _ := newTestOrchestrator(t, prov)

	if _, err := orch.Connect(context.Background(), true); err != nil {
		t.Fatalf("Connect failed on already-added chain: %v", err)
	}
}

func TestConnect_BusyRejectsSecondAttempt(t *testing.T) {
	prov := provstub.New(testAddress)
	prov.EnableBlock = make(chan struct{})
	orch, _ := newTestOrchestrator(t, prov)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		_, err := orch.Connect(ctx, true)
		firstDone <- err
	}()

	// Wait until the first attempt is inside Enable.
	deadline := time.After(2 * time.Second)
	for orch.State().Status != StatusConnecting {
		select {
		case <-deadline:
			t.Fatal("first connect never reached connecting state")
		case <-time.After(5 * time.Millisecond):
		}
	}

	_, err := orch.Connect(ctx, true)
	if !errors.Is(err, ErrConnectBusy) {
		t.Fatalf("expected ErrConnectBusy, got %v", err)
	}

	close(prov.EnableBlock)
	if err := <-firstDone; err != nil {
		t.Fatalf("first connect failed: %v", err)
	}

	// Only one enable sequence ran.
	if prov.EnableCalls != 1 {
		t.Errorf("expected 1 enable call, got %d", prov.EnableCalls)
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	prov := provstub.New(testAddress)
	orch, store := newTestOrchestrator(t, prov)
	ctx := context.Background()

	if _, err := orch.Connect(ctx, true); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// Key cache must survive disconnect.
	store.Keys.Put(testAddress, "sscrt", "api_key_1")

	for i := 0; i < 3; i++ {
		if err := orch.Disconnect(ctx); err != nil {
			t.Fatalf("Disconnect (%d) failed: %v", i, err)
		}
	}

	if orch.State().Status != StatusDisconnected {
		t.Errorf("expected disconnected, got %s", orch.State().Status)
	}
	if _, ok := store.Keys.Get(testAddress, "sscrt"); !ok {
		t.Error("viewing key cache was cleared by disconnect")
	}

	rec, ok, err := store.LoadPersistedConnection(ctx, "test")
	if err != nil {
		t.Fatalf("LoadPersistedConnection failed: %v", err)
	}
	if !ok || rec.Connected {
		t.Errorf("expected persisted record with connected=false, got %+v (ok=%v)", rec, ok)
	}
}

func TestAutoConnect_NoRecordIsNoOp(t *testing.T) {
	prov := provstub.New(testAddress)
	orch, _ := newTestOrchestrator(t, prov)

	orch.AutoConnect(context.Background())

	if orch.State().Status != StatusDisconnected {
		t.Errorf("expected disconnected, got %s", orch.State().Status)
	}
	if prov.EnableCalls != 0 {
		t.Errorf("expected no enable calls, got %d", prov.EnableCalls)
	}
}

func TestAutoConnect_ReconnectsPersistedSession(t *testing.T) {
	prov := provstub.New(testAddress)
	orch, store := newTestOrchestrator(t, prov)
	ctx := context.Background()

	if err := store.PersistConnection(ctx, "test", testAddress); err != nil {
		t.Fatalf("PersistConnection failed: %v", err)
	}

	orch.AutoConnect(ctx)

	state := orch.State()
	if state.Status != StatusConnected || state.Address != testAddress {
		t.Errorf("expected connected as %s, got %+v", testAddress, state)
	}
}

func TestAutoConnect_DisconnectedRecordIsNoOp(t *testing.T) {
	prov := provstub.New(testAddress)
	orch, store := newTestOrchestrator(t, prov)
	ctx := context.Background()

	if err := store.PersistConnection(ctx, "test", testAddress); err != nil {
		t.Fatalf("PersistConnection failed: %v", err)
	}
	if err := store.ClearConnection(ctx, "test"); err != nil {
		t.Fatalf("ClearConnection failed: %v", err)
	}

	orch.AutoConnect(ctx)

	if orch.State().Status != StatusDisconnected {
		t.Errorf("expected disconnected, got %s", orch.State().Status)
	}
}

func TestAutoConnect_ProviderMissingStaysSilent(t *testing.T) {
	prov := provstub.New(testAddress)
	prov.Detected = false
	orch, store := newTestOrchestrator(t, prov)
	ctx := context.Background()

	if err := store.PersistConnection(ctx, "test", testAddress); err != nil {
		t.Fatalf("PersistConnection failed: %v", err)
	}

	orch.AutoConnect(ctx)

	if orch.State().Status != StatusDisconnected {
		t.Errorf("expected disconnected, got %s", orch.State().Status)
	}
	if prov.EnableCalls != 0 {
		t.Errorf("expected no enable calls, got %d", prov.EnableCalls)
	}
	// Detection polled more than once before giving up.
	if prov.DetectCalls < 2 {
		t.Errorf("expected repeated detect polls, got %d", prov.DetectCalls)
	}
}

func TestConnect_PublishesStatusEvents(t *testing.T) {
	prov := provstub.New(testAddress)
	orch, _ := newTestOrchestrator(t, prov)

	ch, cancel := orch.Hub().Subscribe()
	defer cancel()

	if _, err := orch.Connect(context.Background(), true); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	kinds := make(map[string]bool)
	for len(kinds) < 2 {
		select {
		case ev := <-ch:
			kinds[ev.Kind] = true
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for events, saw %v", kinds)
		}
	}
	if !kinds[events.KindConnecting] || !kinds[events.KindConnected] {
		t.Errorf("expected connecting and connected events, saw %v", kinds)
	}
}
