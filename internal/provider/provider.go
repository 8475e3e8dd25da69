// Package provider defines the capability surface consumed from a
// browser-injected wallet extension. The real implementation lives outside
// this process; the interfaces here let the orchestration layer be driven by
// a test double or by a bridge to the extension.
package provider

import (
	"context"
	"encoding/json"
	"errors"
)

// Typed provider errors. Implementations must return these (wrapped is fine)
// instead of free-form message text so callers can classify failures without
// substring matching.
var (
	// ErrNotDetected means the wallet extension is not installed or not
	// loaded yet.
	ErrNotDetected = errors.New("wallet provider not detected")

	// ErrUserRejected means the user explicitly declined an approval prompt.
	// Callers must never retry automatically on this.
	ErrUserRejected = errors.New("request rejected by user")

	// ErrNoAccounts means the provider is available but holds no usable
	// account.
	ErrNoAccounts = errors.New("no accounts available in wallet")

	// ErrChainAlreadyAdded is returned by SuggestChain when the chain is
	// already registered. Treated as benign by callers.
	ErrChainAlreadyAdded = errors.New("chain already added")

	// ErrChainConflict is returned by SuggestChain when a different chain
	// config is already registered under the same chain ID.
	ErrChainConflict = errors.New("conflicting chain registration")

	// ErrNoViewingKey means no viewing key is registered for the requested
	// token contract.
	ErrNoViewingKey = errors.New("no viewing key registered")
)

// Account is one signing identity exposed by the provider.
type Account struct {
	Address string // bech32 address
	Pubkey  []byte
}

// ExecuteDoc is a contract execution awaiting signature.
type ExecuteDoc struct {
	Sender   string
	Contract string
	CodeHash string
	Msg      json.RawMessage
	GasLimit uint64
}

// SendDoc is a native coin transfer awaiting signature. Amount is the raw
// integer amount in the minimum denomination.
type SendDoc struct {
	From     string
	To       string
	Amount   string
	Denom    string
	Memo     string
	GasLimit uint64
}

// Signer is the signing handle handed to the chain client.
//
// Both signing calls open an approval prompt in the extension; they return
// the signed raw transaction bytes ready for broadcast, or ErrUserRejected.
type Signer interface {
	Accounts(ctx context.Context) ([]Account, error)
	SignExecute(ctx context.Context, chainID string, doc ExecuteDoc) ([]byte, error)
	SignSend(ctx context.Context, chainID string, doc SendDoc) ([]byte, error)
}

// EncryptionUtils is the opaque encryption handle for confidential compute
// queries, also passed straight through to the chain client.
type EncryptionUtils interface{}

// ChainInfo is the chain registration suggested to the provider.
type ChainInfo struct {
	ChainID      string
	ChainName    string
	RPCEndpoint  string
	RESTEndpoint string
	Bech32Prefix string
	CoinDenom    string
	CoinMinDenom string
	CoinDecimals int
}

// WalletProvider is the capability surface of the wallet extension.
//
// All methods take a context; calls that open an approval prompt (Enable,
// the viewing-key operations) may block until the user responds, so callers
// bound them with a deadline.
type WalletProvider interface {
	// Detect reports whether the provider capability is present. It is the
	// only call the orchestrator bounds with its own fixed ceiling.
	Detect(ctx context.Context) error

	// SuggestChain registers the chain with the provider. Idempotent:
	// ErrChainAlreadyAdded is not a failure.
	SuggestChain(ctx context.Context, info ChainInfo) error

	// Enable asks the provider to unlock the chain for this origin.
	Enable(ctx context.Context, chainID string) error

	// Signer returns the offline signer for the chain.
	Signer(ctx context.Context, chainID string) (Signer, error)

	// EncryptionUtils returns the encryption handle for the chain.
	EncryptionUtils(ctx context.Context, chainID string) (EncryptionUtils, error)

	// SuggestToken registers a token contract with the provider. Idempotent.
	SuggestToken(ctx context.Context, chainID, contract string) error

	// ViewingKey returns the viewing key registered for the contract, or
	// ErrNoViewingKey.
	ViewingKey(ctx context.Context, chainID, contract string) (string, error)
}
