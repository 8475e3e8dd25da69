package token

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/sync/singleflight"

	"github.com/MrGarbonzo/secretforge/internal/chain"
	"github.com/MrGarbonzo/secretforge/internal/credstore"
	"github.com/MrGarbonzo/secretforge/internal/domain"
	"github.com/MrGarbonzo/secretforge/internal/events"
	"github.com/MrGarbonzo/secretforge/internal/observability"
	"github.com/MrGarbonzo/secretforge/internal/provider"
)

// ErrCredentialUnavailable means every step of the viewing key resolution
// chain was exhausted without producing a key.
var ErrCredentialUnavailable = errors.New("viewing key unavailable")

const (
	defaultCreateGasLimit = 150_000
	defaultCreateKeyWait  = 2 * time.Second
	auditTimeout          = 3 * time.Second
)

// Options configures the token query coordinator.
type Options struct {
	Catalog  *Catalog
	Provider provider.WalletProvider
	Store    *credstore.Store
	Hub      *events.Hub
	Audit    AuditSink
	Logger   *log.Logger
	ChainID  string

	// CreateGasLimit bounds the create_viewing_key transaction.
	CreateGasLimit uint64

	// CreateKeyWait is the pause before re-querying the provider when the
	// creation transaction succeeded but its log carried no key. The
	// extension needs a moment to observe the new key on chain.
	CreateKeyWait time.Duration
}

// AuditSink receives audit events. Satisfied by storage.AuditStore.
type AuditSink interface {
	Insert(ctx context.Context, ev *domain.AuditEvent) error
}

// Coordinator resolves viewing keys and queries SNIP-20 balances. Key
// resolution walks a fallback chain: local cache, provider registry, key
// creation on chain, then a delayed provider re-query. Concurrent
// resolutions for the same address and token collapse into one.
type Coordinator struct {
	opts  Options
	log   *log.Logger
	group singleflight.Group
}

// NewCoordinator creates a coordinator from options, filling defaults.
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.Provider == nil {
		return nil, errors.New("token: provider is required")
	}
	if opts.Store == nil {
		return nil, errors.New("token: credential store is required")
	}
	if opts.Hub == nil {
		opts.Hub = events.NewHub()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.CreateGasLimit == 0 {
		opts.CreateGasLimit = defaultCreateGasLimit
	}
	if opts.CreateKeyWait <= 0 {
		opts.CreateKeyWait = defaultCreateKeyWait
	}

	return &Coordinator{opts: opts, log: opts.Logger}, nil
}

// ResolveViewingKey returns a viewing key for the token, walking the
// fallback chain and caching whatever it finds. A user rejection of the
// creation prompt is terminal: it comes back as provider.ErrUserRejected
// and is never retried here.
func (c *Coordinator) ResolveViewingKey(ctx context.Context, client chain.Client, address, symbol string) (string, error) {
	tok, err := c.opts.Catalog.Lookup(symbol)
	if err != nil {
		return "", err
	}

	if key, ok := c.opts.Store.Keys.Get(address, tok.Key()); ok {
		observability.KeyResolutions.WithLabelValues("cache").Inc()
		return key, nil
	}

	v, err, _ := c.group.Do(address+"|"+tok.Key(), func() (interface{}, error) {
		return c.resolveSlow(ctx, client, address, tok)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Coordinator) resolveSlow(ctx context.Context, client chain.Client, address string, tok domain.Token) (string, error) {
	start := time.Now()

	// Another caller may have filled the cache while we queued.
	if key, ok := c.opts.Store.Keys.Get(address, tok.Key()); ok {
		observability.KeyResolutions.WithLabelValues("cache").Inc()
		return key, nil
	}

	if err := c.opts.Provider.SuggestToken(ctx, c.opts.ChainID, tok.Contract); err != nil {
		// The token may already be registered; the follow-up query decides.
		c.log.Printf("[token] suggest %s: %v", tok.Symbol, err)
	}

	key, err := c.opts.Provider.ViewingKey(ctx, c.opts.ChainID, tok.Contract)
	if err == nil && key != "" {
		c.opts.Store.Keys.Put(address, tok.Key(), key)
		observability.KeyResolutions.WithLabelValues("provider").Inc()
		c.audit(domain.AuditKeyResolution, address, tok.Symbol, "provider", "", time.Since(start))
		return key, nil
	}
	if err != nil && !errors.Is(err, provider.ErrNoViewingKey) {
		observability.KeyResolutions.WithLabelValues("failed").Inc()
		c.audit(domain.AuditKeyResolution, address, tok.Symbol, "failed", err.Error(), time.Since(start))
		return "", fmt.Errorf("query provider viewing key: %w", err)
	}

	key, err = c.createViewingKey(ctx, client, address, tok)
	if err != nil {
		observability.KeyResolutions.WithLabelValues("failed").Inc()
		c.audit(domain.AuditKeyResolution, address, tok.Symbol, "failed", err.Error(), time.Since(start))
		return "", err
	}
	if key != "" {
		c.opts.Store.Keys.Put(address, tok.Key(), key)
		observability.KeyResolutions.WithLabelValues("created").Inc()
		c.audit(domain.AuditKeyResolution, address, tok.Symbol, "created", "", time.Since(start))
		c.opts.Hub.Publish(events.StatusEvent{
			Kind:    events.KindKeyCreated,
			Address: address,
			Message: fmt.Sprintf("Viewing key created for %s", tok.Symbol),
		})
		return key, nil
	}

	// The transaction succeeded but its log carried no key. Give the
	// extension a moment to observe the chain, then ask it again.
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(c.opts.CreateKeyWait):
	}

	key, err = c.opts.Provider.ViewingKey(ctx, c.opts.ChainID, tok.Contract)
	if err == nil && key != "" {
		c.opts.Store.Keys.Put(address, tok.Key(), key)
		observability.KeyResolutions.WithLabelValues("recovered").Inc()
		c.audit(domain.AuditKeyResolution, address, tok.Symbol, "recovered", "", time.Since(start))
		return key, nil
	}

	observability.KeyResolutions.WithLabelValues("failed").Inc()
	c.audit(domain.AuditKeyResolution, address, tok.Symbol, "failed", ErrCredentialUnavailable.Error(), time.Since(start))
	return "", fmt.Errorf("%s: %w", tok.Symbol, ErrCredentialUnavailable)
}

// createViewingKey executes create_viewing_key on the token contract and
// extracts the generated key from the transaction log. An empty key with a
// nil error means the transaction landed but the log shape carried no key.
func (c *Coordinator) createViewingKey(ctx context.Context, client chain.Client, address string, tok domain.Token) (string, error) {
	entropy := make([]byte, 32)
	if _, err := rand.Read(entropy); err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}

	msg, err := json.Marshal(map[string]interface{}{
		"create_viewing_key": map[string]string{
			"entropy": base58.Encode(entropy),
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal create_viewing_key: %w", err)
	}

	res, err := client.ExecuteContract(ctx, provider.ExecuteDoc{
		Sender:   address,
		Contract: tok.Contract,
		CodeHash: tok.CodeHash,
		Msg:      msg,
		GasLimit: c.opts.CreateGasLimit,
	})
	if err != nil {
		if errors.Is(err, provider.ErrUserRejected) {
			return "", fmt.Errorf("create viewing key for %s: %w", tok.Symbol, provider.ErrUserRejected)
		}
		return "", fmt.Errorf("create viewing key for %s: %w", tok.Symbol, err)
	}

	if key, ok := res.EventAttribute("wasm", "viewing_key"); ok {
		return key, nil
	}
	return "", nil
}

// snip20BalanceQuery is the SNIP-20 balance query message.
type snip20BalanceQuery struct {
	Balance struct {
		Address string `json:"address"`
		Key     string `json:"key"`
	} `json:"balance"`
}

// snip20BalanceResponse covers both the success and the viewing key error
// response shapes.
type snip20BalanceResponse struct {
	Balance *struct {
		Amount string `json:"amount"`
	} `json:"balance"`
	ViewingKeyError *struct {
		Msg string `json:"msg"`
	} `json:"viewing_key_error"`
}

// QueryBalance queries one token balance. It never returns an error: every
// failure is folded into the result so a multi-token sweep can render
// partial data.
func (c *Coordinator) QueryBalance(ctx context.Context, client chain.Client, address, symbol string) domain.BalanceResult {
	start := time.Now()
	res := c.queryBalance(ctx, client, address, symbol, true)

	outcome := "ok"
	if !res.Success {
		outcome = "error"
	}
	observability.BalanceQueries.WithLabelValues(outcome).Inc()
	c.audit(domain.AuditBalanceQuery, address, symbol, outcome, res.ErrReason, time.Since(start))
	return res
}

func (c *Coordinator) queryBalance(ctx context.Context, client chain.Client, address, symbol string, retryStaleKey bool) domain.BalanceResult {
	tok, err := c.opts.Catalog.Lookup(symbol)
	if err != nil {
		return domain.BalanceResult{ErrReason: err.Error()}
	}

	key, err := c.ResolveViewingKey(ctx, client, address, symbol)
	if err != nil {
		return domain.BalanceResult{Decimals: tok.Decimals, ErrReason: err.Error()}
	}

	var query snip20BalanceQuery
	query.Balance.Address = address
	query.Balance.Key = key

	var resp snip20BalanceResponse
	if err := client.QueryContract(ctx, tok.Contract, tok.CodeHash, query, &resp); err != nil {
		return domain.BalanceResult{Decimals: tok.Decimals, ErrReason: fmt.Sprintf("query %s: %v", tok.Symbol, err)}
	}

	if resp.ViewingKeyError != nil {
		// The cached key no longer matches the contract. Drop it and walk
		// the resolution chain once more.
		c.opts.Store.Keys.Drop(address, tok.Key())
		if retryStaleKey {
			return c.queryBalance(ctx, client, address, symbol, false)
		}
		return domain.BalanceResult{Decimals: tok.Decimals, ErrReason: fmt.Sprintf("viewing key rejected: %s", resp.ViewingKeyError.Msg)}
	}

	if resp.Balance == nil {
		return domain.BalanceResult{Decimals: tok.Decimals, ErrReason: fmt.Sprintf("query %s: malformed response", tok.Symbol)}
	}

	formatted, err := FormatAmount(resp.Balance.Amount, tok.Decimals)
	if err != nil {
		return domain.BalanceResult{Decimals: tok.Decimals, ErrReason: fmt.Sprintf("format %s amount: %v", tok.Symbol, err)}
	}

	return domain.BalanceResult{
		Success:   true,
		RawAmount: resp.Balance.Amount,
		Formatted: formatted,
		Decimals:  tok.Decimals,
	}
}

// QueryBalances queries every requested token. Failures are isolated per
// token: one bad credential never blanks the rest of the sweep.
func (c *Coordinator) QueryBalances(ctx context.Context, client chain.Client, address string, symbols []string) map[string]domain.BalanceResult {
	out := make(map[string]domain.BalanceResult, len(symbols))
	for _, symbol := range symbols {
		res := c.QueryBalance(ctx, client, address, symbol)
		out[symbol] = res

		if res.Success {
			c.opts.Hub.Publish(events.StatusEvent{
				Kind:    events.KindBalance,
				Address: address,
				Message: fmt.Sprintf("%s balance: %s", symbol, res.Formatted),
			})
		}
	}
	return out
}

func (c *Coordinator) audit(kind domain.AuditKind, address, symbol, outcome, detail string, latency time.Duration) {
	if c.opts.Audit == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	ev := &domain.AuditEvent{
		Kind:      kind,
		Address:   address,
		Token:     symbol,
		Outcome:   outcome,
		Detail:    detail,
		LatencyMs: latency.Milliseconds(),
		At:        time.Now().UTC(),
	}
	if err := c.opts.Audit.Insert(ctx, ev); err != nil {
		c.log.Printf("[token] audit insert: %v", err)
	}
}
