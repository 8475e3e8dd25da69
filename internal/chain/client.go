// Package chain defines the client surface for talking to a Secret Network
// node. The orchestration layer depends only on the Client interface; the
// LCD implementation in this package and the test stub in chain/stub both
// satisfy it.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrGarbonzo/secretforge/internal/domain"
	"github.com/MrGarbonzo/secretforge/internal/provider"
)

// Client turns signed intents into network queries and transactions.
type Client interface {
	// BankBalance queries the native balance of an address.
	BankBalance(ctx context.Context, address, denom string) (domain.Coin, error)

	// QueryContract issues a read-only contract query and decodes the
	// response into result.
	QueryContract(ctx context.Context, contract, codeHash string, query, result interface{}) error

	// ExecuteContract signs, broadcasts and awaits a contract execution.
	ExecuteContract(ctx context.Context, doc provider.ExecuteDoc) (*TxResult, error)

	// BankSend signs, broadcasts and awaits a native coin transfer.
	BankSend(ctx context.Context, doc provider.SendDoc) (*TxResult, error)
}

// Factory builds a Client bound to a signing handle. The orchestrator calls
// it once per successful connect.
type Factory interface {
	New(cfg Config, signer provider.Signer, enc provider.EncryptionUtils) (Client, error)
}

// Config identifies the target chain and endpoint.
type Config struct {
	ChainID  string
	Endpoint string // LCD REST endpoint
	Denom    string // native fee denom, e.g. "uscrt"
}

// ErrNotFound is returned for balances or transactions the node does not know.
var ErrNotFound = errors.New("not found")

// TxError is a transaction that was included on chain but failed.
type TxError struct {
	Code   uint32
	RawLog string
}

func (e *TxError) Error() string {
	return fmt.Sprintf("tx failed with code %d: %s", e.Code, e.RawLog)
}

// Attribute is one key/value pair emitted by a contract event.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is one event emitted during message execution.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// MsgLog groups the events of one message, the structured log shape.
type MsgLog struct {
	MsgIndex int     `json:"msg_index"`
	Events   []Event `json:"events"`
}

// FlatAttr is one entry of the flattened log shape some node versions emit.
type FlatAttr struct {
	MsgIndex  int    `json:"msg_index"`
	EventType string `json:"type"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

// TxResult is the outcome of a broadcast transaction.
//
// Depending on node version the event log arrives either as structured
// per-message logs (JSONLog) or as a flattened attribute list (ArrayLog);
// consumers must check both.
type TxResult struct {
	TxHash    string
	Height    int64
	Code      uint32
	GasUsed   int64
	GasWanted int64
	RawLog    string
	JSONLog   []MsgLog
	ArrayLog  []FlatAttr
}

// EventAttribute scans both log shapes for the first attribute matching
// eventType and key.
func (r *TxResult) EventAttribute(eventType, key string) (string, bool) {
	for _, ml := range r.JSONLog {
		for _, ev := range ml.Events {
			if ev.Type != eventType {
				continue
			}
			for _, attr := range ev.Attributes {
				if attr.Key == key {
					return attr.Value, true
				}
			}
		}
	}
	for _, fa := range r.ArrayLog {
		if fa.EventType == eventType && fa.Key == key {
			return fa.Value, true
		}
	}
	return "", false
}
