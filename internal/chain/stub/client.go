// Package stub implements chain.Client for testing.
package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/MrGarbonzo/secretforge/internal/chain"
	"github.com/MrGarbonzo/secretforge/internal/domain"
	"github.com/MrGarbonzo/secretforge/internal/provider"
)

// Client is a scriptable in-memory chain client.
type Client struct {
	mu sync.Mutex

	// Balances maps address|denom to a coin amount.
	Balances map[string]string

	// ContractResponses maps contract address to the JSON document returned
	// by QueryContract.
	ContractResponses map[string]json.RawMessage

	// ExecuteResults maps contract address to the TxResult returned by
	// ExecuteContract.
	ExecuteResults map[string]*chain.TxResult

	// SendResult is returned by BankSend when set.
	SendResult *chain.TxResult

	BankErr     error
	QueryErr    error
	ExecuteErr  error
	SendErr     error
	ExecuteDocs []provider.ExecuteDoc // records every execution request
	SendDocs    []provider.SendDoc    // records every transfer request
	QueryCalls  int
}

// New creates an empty stub client.
func New() *Client {
	return &Client{
		Balances:          make(map[string]string),
		ContractResponses: make(map[string]json.RawMessage),
		ExecuteResults:    make(map[string]*chain.TxResult),
	}
}

var _ chain.Client = (*Client)(nil)

// SetBalance scripts a bank balance.
func (c *Client) SetBalance(address, denom, amount string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Balances[address+"|"+denom] = amount
}

// SetContractResponse scripts the QueryContract response for a contract.
func (c *Client) SetContractResponse(contract string, doc interface{}) {
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ContractResponses[contract] = raw
}

// BankBalance returns the scripted balance, zero when unset.
func (c *Client) BankBalance(_ context.Context, address, denom string) (domain.Coin, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BankErr != nil {
		return domain.Coin{}, c.BankErr
	}
	amount, ok := c.Balances[address+"|"+denom]
	if !ok {
		amount = "0"
	}
	return domain.Coin{Amount: amount, Denom: denom}, nil
}

// QueryContract decodes the scripted response for the contract.
func (c *Client) QueryContract(_ context.Context, contract, _ string, _, result interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.QueryCalls++
	if c.QueryErr != nil {
		return c.QueryErr
	}
	raw, ok := c.ContractResponses[contract]
	if !ok {
		return fmt.Errorf("no scripted response for contract %s", contract)
	}
	return json.Unmarshal(raw, result)
}

// ExecuteContract records the doc and returns the scripted result.
func (c *Client) ExecuteContract(_ context.Context, doc provider.ExecuteDoc) (*chain.TxResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ExecuteDocs = append(c.ExecuteDocs, doc)
	if c.ExecuteErr != nil {
		return nil, c.ExecuteErr
	}
	if res, ok := c.ExecuteResults[doc.Contract]; ok {
		return res, nil
	}
	return &chain.TxResult{TxHash: "stub-tx", Code: 0}, nil
}

// BankSend records the doc and returns the scripted result.
func (c *Client) BankSend(_ context.Context, doc provider.SendDoc) (*chain.TxResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SendDocs = append(c.SendDocs, doc)
	if c.SendErr != nil {
		return nil, c.SendErr
	}
	if c.SendResult != nil {
		return c.SendResult, nil
	}
	return &chain.TxResult{TxHash: "stub-send", Code: 0}, nil
}

// Factory implements chain.Factory returning a fixed stub client.
type Factory struct {
	Client *Client
	Err    error
}

// New returns the configured stub client.
func (f *Factory) New(_ chain.Config, _ provider.Signer, _ provider.EncryptionUtils) (chain.Client, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Client == nil {
		f.Client = New()
	}
	return f.Client, nil
}

var _ chain.Factory = (*Factory)(nil)
