package wallet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/MrGarbonzo/secretforge/internal/chain"
	"github.com/MrGarbonzo/secretforge/internal/credstore"
	"github.com/MrGarbonzo/secretforge/internal/domain"
	"github.com/MrGarbonzo/secretforge/internal/events"
	"github.com/MrGarbonzo/secretforge/internal/observability"
	"github.com/MrGarbonzo/secretforge/internal/provider"
	"github.com/MrGarbonzo/secretforge/internal/storage"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultDetectCeiling  = 10 * time.Second
	defaultDetectInterval = 250 * time.Millisecond
	defaultWarmupTimeout  = 20 * time.Second
	auditTimeout          = 3 * time.Second
)

// Options configures the connection orchestrator.
type Options struct {
	Provider  provider.WalletProvider
	Factory   chain.Factory
	ChainCfg  chain.Config
	ChainInfo provider.ChainInfo
	Store     *credstore.Store
	Hub       *events.Hub
	Audit     storage.AuditStore
	Logger    *log.Logger

	// ProfileID keys the durable session record.
	ProfileID string

	// ConnectTimeout bounds one full connect sequence.
	ConnectTimeout time.Duration

	// DetectCeiling bounds provider detection during auto-connect.
	DetectCeiling time.Duration

	// DetectInterval is the pause between detect polls. Must be shorter
	// than DetectCeiling or auto-connect only ever probes once.
	DetectInterval time.Duration

	// Warmup, when set, runs asynchronously after a successful connect.
	// Failures are logged, never surfaced to the connect caller.
	Warmup func(ctx context.Context, address string, client chain.Client)
}

// Orchestrator drives the wallet connection lifecycle. At most one connect
// attempt is in flight at any time; a second attempt fails fast with
// ErrConnectBusy instead of queueing.
type Orchestrator struct {
	opts Options
	log  *log.Logger

	mu         sync.Mutex
	connecting bool
	address    string
	client     chain.Client
}

// NewOrchestrator creates an orchestrator from options, filling defaults.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Provider == nil {
		return nil, errors.New("wallet: provider is required")
	}
	if opts.Factory == nil {
		return nil, errors.New("wallet: chain factory is required")
	}
	if opts.Store == nil {
		return nil, errors.New("wallet: credential store is required")
	}
	if opts.Hub == nil {
		opts.Hub = events.NewHub()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.ProfileID == "" {
		opts.ProfileID = "default"
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.DetectCeiling <= 0 {
		opts.DetectCeiling = defaultDetectCeiling
	}
	if opts.DetectInterval <= 0 {
		opts.DetectInterval = defaultDetectInterval
	}

	return &Orchestrator{opts: opts, log: opts.Logger}, nil
}

// State returns a snapshot of the connection state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case o.connecting:
		return State{Status: StatusConnecting}
	case o.client != nil:
		return State{Status: StatusConnected, Address: o.address}
	default:
		return State{Status: StatusDisconnected}
	}
}

// Client returns the chain client and address of the current connection.
func (o *Orchestrator) Client() (chain.Client, string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.client == nil {
		return nil, "", false
	}
	return o.client, o.address, true
}

// Hub returns the status event hub.
func (o *Orchestrator) Hub() *events.Hub {
	return o.opts.Hub
}

// Connect runs the full connection sequence: suggest chain, enable, fetch
// signer and accounts, build the chain client, persist the session. It
// returns the connected address, or ErrConnectBusy when an attempt is
// already running, or a *ConnectError classifying the failure.
//
// explicit marks a user-initiated attempt; failures of implicit attempts
// (auto-connect) are logged but never published as error events.
func (o *Orchestrator) Connect(ctx context.Context, explicit bool) (string, error) {
	o.mu.Lock()
	if o.connecting {
		o.mu.Unlock()
		return "", ErrConnectBusy
	}
	o.connecting = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.connecting = false
		o.mu.Unlock()
	}()

	start := time.Now()
	address, err := o.connect(ctx)

	observability.ConnectDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		ce := classify(err)
		observability.ConnectAttempts.WithLabelValues(string(ce.Kind)).Inc()
		o.audit(domain.AuditConnectAttempt, "", string(ce.Kind), ce.Error(), time.Since(start))
		if explicit {
			o.opts.Hub.Publish(events.StatusEvent{
				Kind:    events.KindConnectError,
				Message: ce.Error(),
				Hint:    ce.Hint,
			})
		}
		o.log.Printf("[wallet] connect failed: %v", ce)
		return "", ce
	}

	observability.ConnectAttempts.WithLabelValues("ok").Inc()
	o.audit(domain.AuditConnectAttempt, address, "ok", "", time.Since(start))
	o.log.Printf("[wallet] connected: %s", address)
	return address, nil
}

func (o *Orchestrator) connect(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.ConnectTimeout)
	defer cancel()

	o.opts.Hub.Publish(events.StatusEvent{
		Kind:    events.KindConnecting,
		Message: "Connecting wallet",
	})

	p := o.opts.Provider
	chainID := o.opts.ChainCfg.ChainID

	if err := p.Detect(ctx); err != nil {
		observability.ProviderCalls.WithLabelValues("detect", "error").Inc()
		return "", fmt.Errorf("detect provider: %w", err)
	}
	observability.ProviderCalls.WithLabelValues("detect", "ok").Inc()

	if err := p.SuggestChain(ctx, o.opts.ChainInfo); err != nil && !errors.Is(err, provider.ErrChainAlreadyAdded) {
		observability.ProviderCalls.WithLabelValues("suggest_chain", "error").Inc()
		return "", fmt.Errorf("suggest chain: %w", err)
	}
	observability.ProviderCalls.WithLabelValues("suggest_chain", "ok").Inc()

	if err := p.Enable(ctx, chainID); err != nil {
		observability.ProviderCalls.WithLabelValues("enable", "error").Inc()
		return "", fmt.Errorf("enable chain: %w", err)
	}
	observability.ProviderCalls.WithLabelValues("enable", "ok").Inc()

	signer, err := p.Signer(ctx, chainID)
	if err != nil {
		return "", fmt.Errorf("get signer: %w", err)
	}

	accounts, err := signer.Accounts(ctx)
	if err != nil {
		return "", fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return "", provider.ErrNoAccounts
	}
	address := accounts[0].Address

	enc, err := p.EncryptionUtils(ctx, chainID)
	if err != nil {
		return "", fmt.Errorf("get encryption utils: %w", err)
	}

	client, err := o.opts.Factory.New(o.opts.ChainCfg, signer, enc)
	if err != nil {
		return "", fmt.Errorf("build chain client: %w", err)
	}

	if err := o.opts.Store.PersistConnection(ctx, o.opts.ProfileID, address); err != nil {
		// The live connection still works; losing the record only costs
		// auto-connect after a restart.
		o.log.Printf("[wallet] persist connection: %v", err)
	}

	o.mu.Lock()
	o.address = address
	o.client = client
	o.mu.Unlock()

	o.opts.Hub.Publish(events.StatusEvent{
		Kind:    events.KindConnected,
		Address: address,
		Message: "Wallet connected",
	})

	if o.opts.Warmup != nil {
		go func() {
			wctx, wcancel := context.WithTimeout(context.Background(), defaultWarmupTimeout)
			defer wcancel()
			o.opts.Warmup(wctx, address, client)
		}()
	}

	return address, nil
}

// Disconnect tears down the connection. Calling it while disconnected is a
// no-op. Cached viewing keys are kept so a reconnect of the same address
// does not repeat key creation.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	o.mu.Lock()
	wasConnected := o.client != nil
	address := o.address
	o.address = ""
	o.client = nil
	o.mu.Unlock()

	if err := o.opts.Store.ClearConnection(ctx, o.opts.ProfileID); err != nil {
		o.log.Printf("[wallet] clear connection: %v", err)
	}

	if wasConnected {
		o.audit(domain.AuditDisconnect, address, "ok", "", 0)
		o.opts.Hub.Publish(events.StatusEvent{
			Kind:    events.KindDisconnected,
			Address: address,
			Message: "Wallet disconnected",
		})
		o.log.Printf("[wallet] disconnected: %s", address)
	}
	return nil
}

// AutoConnect reconnects a previously connected session. It is silent on
// every failure path: no persisted session, provider missing, or a connect
// error all leave the orchestrator disconnected without surfacing an error
// to the caller.
func (o *Orchestrator) AutoConnect(ctx context.Context) {
	rec, ok, err := o.opts.Store.LoadPersistedConnection(ctx, o.opts.ProfileID)
	if err != nil {
		o.log.Printf("[wallet] auto-connect: load session: %v", err)
		return
	}
	if !ok || !rec.Connected {
		return
	}

	if err := o.awaitProvider(ctx); err != nil {
		o.log.Printf("[wallet] auto-connect: provider not detected: %v", err)
		return
	}

	if _, err := o.Connect(ctx, false); err != nil {
		o.log.Printf("[wallet] auto-connect: %v", err)
	}
}

// awaitProvider polls Detect until it succeeds or the ceiling elapses. The
// extension injects itself asynchronously, so the first probes may miss it.
func (o *Orchestrator) awaitProvider(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.opts.DetectCeiling)
	defer cancel()

	ticker := time.NewTicker(o.opts.DetectInterval)
	defer ticker.Stop()

	for {
		err := o.opts.Provider.Detect(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, provider.ErrNotDetected) {
			return err
		}

		select {
		case <-ctx.Done():
			return provider.ErrNotDetected
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) audit(kind domain.AuditKind, address, outcome, detail string, latency time.Duration) {
	if o.opts.Audit == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	ev := &domain.AuditEvent{
		Kind:      kind,
		Address:   address,
		Outcome:   outcome,
		Detail:    detail,
		LatencyMs: latency.Milliseconds(),
		At:        time.Now().UTC(),
	}
	if err := o.opts.Audit.Insert(ctx, ev); err != nil {
		o.log.Printf("[wallet] audit insert: %v", err)
	}
}
