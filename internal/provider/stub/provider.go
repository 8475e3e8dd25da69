// Package stub implements provider.WalletProvider for testing and local
// development.
package stub

import (
	"context"
	"sync"

	"github.com/MrGarbonzo/secretforge/internal/provider"
)

// Signer implements provider.Signer over a fixed account list.
type Signer struct {
	AccountList []string

	// SignErr, when set, is returned by the signing methods. Set to
	// provider.ErrUserRejected to simulate a declined prompt.
	SignErr error
}

// Accounts returns the configured accounts.
func (s *Signer) Accounts(_ context.Context) ([]provider.Account, error) {
	out := make([]provider.Account, len(s.AccountList))
	for i, a := range s.AccountList {
		out[i] = provider.Account{Address: a}
	}
	return out, nil
}

// SignExecute returns placeholder tx bytes or the configured error.
func (s *Signer) SignExecute(_ context.Context, _ string, _ provider.ExecuteDoc) ([]byte, error) {
	if s.SignErr != nil {
		return nil, s.SignErr
	}
	return []byte("signed-tx"), nil
}

// SignSend returns placeholder tx bytes or the configured error.
func (s *Signer) SignSend(_ context.Context, _ string, _ provider.SendDoc) ([]byte, error) {
	if s.SignErr != nil {
		return nil, s.SignErr
	}
	return []byte("signed-send"), nil
}

// Provider is a scriptable in-memory wallet provider.
//
// Zero value is a detected provider with one account and no viewing keys.
// Error fields, when set, are returned by the corresponding method. The
// counters record how many times each capability was invoked.
type Provider struct {
	mu sync.Mutex

	Detected    bool
	AccountList []string
	ViewingKeys map[string]string // contract -> key

	DetectErr       error
	SuggestChainErr error
	EnableErr       error
	SignerErr       error
	SuggestTokenErr error

	// EnableBlock, when non-nil, is closed by the test to release a blocked
	// Enable call. Used to hold a connect attempt in flight.
	EnableBlock chan struct{}

	DetectCalls       int
	EnableCalls       int
	SuggestTokenCalls int
	ViewingKeyCalls   int
}

// New returns a detected provider with a single default account.
func New(address string) *Provider {
	return &Provider{
		Detected:    true,
		AccountList: []string{address},
		ViewingKeys: make(map[string]string),
	}
}

var _ provider.WalletProvider = (*Provider)(nil)

// Detect reports provider availability.
func (p *Provider) Detect(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DetectCalls++
	if p.DetectErr != nil {
		return p.DetectErr
	}
	if !p.Detected {
		return provider.ErrNotDetected
	}
	return nil
}

// SuggestChain registers the chain.
func (p *Provider) SuggestChain(_ context.Context, _ provider.ChainInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.SuggestChainErr
}

// Enable unlocks the chain, optionally blocking until EnableBlock is closed.
func (p *Provider) Enable(ctx context.Context, _ string) error {
	p.mu.Lock()
	p.EnableCalls++
	block := p.EnableBlock
	err := p.EnableErr
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Signer returns a stub signer over the configured accounts.
func (p *Provider) Signer(_ context.Context, _ string) (provider.Signer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SignerErr != nil {
		return nil, p.SignerErr
	}
	return &Signer{AccountList: append([]string(nil), p.AccountList...)}, nil
}

// EncryptionUtils returns a placeholder handle.
func (p *Provider) EncryptionUtils(_ context.Context, _ string) (provider.EncryptionUtils, error) {
	return struct{}{}, nil
}

// SuggestToken registers a token contract.
func (p *Provider) SuggestToken(_ context.Context, _, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SuggestTokenCalls++
	return p.SuggestTokenErr
}

// ViewingKey returns the registered key for the contract or ErrNoViewingKey.
func (p *Provider) ViewingKey(_ context.Context, _, contract string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ViewingKeyCalls++
	if key, ok := p.ViewingKeys[contract]; ok && key != "" {
		return key, nil
	}
	return "", provider.ErrNoViewingKey
}

// SetViewingKey registers a key, simulating the extension learning about a
// freshly created viewing key.
func (p *Provider) SetViewingKey(contract, key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ViewingKeys == nil {
		p.ViewingKeys = make(map[string]string)
	}
	p.ViewingKeys[contract] = key
}
