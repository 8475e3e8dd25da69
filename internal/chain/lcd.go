package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/MrGarbonzo/secretforge/internal/domain"
	"github.com/MrGarbonzo/secretforge/internal/observability"
	"github.com/MrGarbonzo/secretforge/internal/provider"
)

// Default configuration values.
const (
	DefaultTimeout      = 15 * time.Second
	DefaultMaxRetries   = 2
	DefaultRetryDelay   = 500 * time.Millisecond
	DefaultMaxDelay     = 5 * time.Second
	DefaultBackoffMult  = 2.0
	DefaultPollInterval = 2 * time.Second
)

// LCDClient implements Client against a Cosmos LCD REST endpoint.
type LCDClient struct {
	cfg          Config
	client       *http.Client
	signer       provider.Signer
	maxRetries   int
	retryDelay   time.Duration
	maxDelay     time.Duration
	backoffMult  float64
	pollInterval time.Duration
}

// LCDOption configures LCDClient.
type LCDOption func(*LCDClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) LCDOption {
	return func(c *LCDClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for transient failures.
func WithMaxRetries(n int) LCDOption {
	return func(c *LCDClient) {
		c.maxRetries = n
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) LCDOption {
	return func(c *LCDClient) {
		c.client = client
	}
}

// WithPollInterval sets the delay between tx confirmation polls.
func WithPollInterval(d time.Duration) LCDOption {
	return func(c *LCDClient) {
		c.pollInterval = d
	}
}

// NewLCDClient creates an LCD client. Signer may be nil for read-only use;
// ExecuteContract then fails.
func NewLCDClient(cfg Config, signer provider.Signer, opts ...LCDOption) *LCDClient {
	c := &LCDClient{
		cfg:          cfg,
		client:       &http.Client{Timeout: DefaultTimeout},
		signer:       signer,
		maxRetries:   DefaultMaxRetries,
		retryDelay:   DefaultRetryDelay,
		maxDelay:     DefaultMaxDelay,
		backoffMult:  DefaultBackoffMult,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LCDFactory implements Factory for LCDClient.
type LCDFactory struct {
	Opts []LCDOption
}

// New builds an LCD client bound to the signer.
func (f *LCDFactory) New(cfg Config, signer provider.Signer, _ provider.EncryptionUtils) (Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("lcd endpoint is required")
	}
	return NewLCDClient(cfg, signer, f.Opts...), nil
}

var _ Factory = (*LCDFactory)(nil)

// get performs a GET with retries and exponential backoff for transport
// failures. Application-level errors (4xx, tx failures) are not retried.
func (c *LCDClient) get(ctx context.Context, path string, result interface{}) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+path, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
			continue
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		if result != nil {
			if err := json.Unmarshal(body, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// post performs a single POST, no retries: broadcasts must not be repeated.
func (c *LCDClient) post(ctx context.Context, path string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// bankBalanceResponse is the raw LCD response for a by-denom balance query.
type bankBalanceResponse struct {
	Balance *struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"balance"`
}

// observe records the latency of one LCD operation.
func (c *LCDClient) observe(operation string, start time.Time) {
	observability.ChainRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// BankBalance queries the native balance of an address.
func (c *LCDClient) BankBalance(ctx context.Context, address, denom string) (domain.Coin, error) {
	defer c.observe("bank_balance", time.Now())

	path := fmt.Sprintf("/cosmos/bank/v1beta1/balances/%s/by_denom?denom=%s",
		url.PathEscape(address), url.QueryEscape(denom))

	var result bankBalanceResponse
	if err := c.get(ctx, path, &result); err != nil {
		return domain.Coin{}, err
	}
	if result.Balance == nil {
		// Account with no history: zero balance, not an error.
		return domain.Coin{Amount: "0", Denom: denom}, nil
	}
	return domain.Coin{Amount: result.Balance.Amount, Denom: result.Balance.Denom}, nil
}

// contractQueryResponse is the raw LCD response for a smart query.
type contractQueryResponse struct {
	Data json.RawMessage `json:"data"`
}

// QueryContract issues a read-only contract query and decodes the response.
func (c *LCDClient) QueryContract(ctx context.Context, contract, codeHash string, query, result interface{}) error {
	defer c.observe("query_contract", time.Now())

	qb, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	path := fmt.Sprintf("/compute/v1beta1/query/%s?query=%s",
		url.PathEscape(contract), url.QueryEscape(base64.StdEncoding.EncodeToString(qb)))
	if codeHash != "" {
		path += "&code_hash=" + url.QueryEscape(codeHash)
	}

	var resp contractQueryResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return err
	}
	if result != nil && resp.Data != nil {
		if err := json.Unmarshal(resp.Data, result); err != nil {
			return fmt.Errorf("unmarshal contract response: %w", err)
		}
	}
	return nil
}

// broadcastResponse is the raw LCD response for a tx broadcast.
type broadcastResponse struct {
	TxResponse struct {
		TxHash string `json:"txhash"`
		Code   uint32 `json:"code"`
		RawLog string `json:"raw_log"`
	} `json:"tx_response"`
}

// txStatusResponse is the raw LCD response for a tx lookup.
type txStatusResponse struct {
	TxResponse struct {
		TxHash    string          `json:"txhash"`
		Height    string          `json:"height"`
		Code      uint32          `json:"code"`
		GasUsed   string          `json:"gas_used"`
		GasWanted string          `json:"gas_wanted"`
		RawLog    string          `json:"raw_log"`
		Logs      []MsgLog        `json:"logs"`
		Events    json.RawMessage `json:"events"`
	} `json:"tx_response"`
}

// ExecuteContract signs the execution with the bound signer, broadcasts it
// and polls until the transaction is found or ctx expires.
func (c *LCDClient) ExecuteContract(ctx context.Context, doc provider.ExecuteDoc) (*TxResult, error) {
	defer c.observe("execute_contract", time.Now())

	if c.signer == nil {
		return nil, fmt.Errorf("client has no signer")
	}

	txBytes, err := c.signer.SignExecute(ctx, c.cfg.ChainID, doc)
	if err != nil {
		return nil, fmt.Errorf("sign execute: %w", err)
	}
	return c.broadcastAndAwait(ctx, txBytes)
}

// BankSend signs the transfer with the bound signer, broadcasts it and polls
// until the transaction is found or ctx expires.
func (c *LCDClient) BankSend(ctx context.Context, doc provider.SendDoc) (*TxResult, error) {
	defer c.observe("bank_send", time.Now())

	if c.signer == nil {
		return nil, fmt.Errorf("client has no signer")
	}

	txBytes, err := c.signer.SignSend(ctx, c.cfg.ChainID, doc)
	if err != nil {
		return nil, fmt.Errorf("sign send: %w", err)
	}
	return c.broadcastAndAwait(ctx, txBytes)
}

// broadcastAndAwait submits signed tx bytes and waits for inclusion.
func (c *LCDClient) broadcastAndAwait(ctx context.Context, txBytes []byte) (*TxResult, error) {
	payload := map[string]string{
		"tx_bytes": base64.StdEncoding.EncodeToString(txBytes),
		"mode":     "BROADCAST_MODE_SYNC",
	}
	var bres broadcastResponse
	if err := c.post(ctx, "/cosmos/tx/v1beta1/txs", payload, &bres); err != nil {
		return nil, fmt.Errorf("broadcast tx: %w", err)
	}
	if bres.TxResponse.Code != 0 {
		return nil, &TxError{Code: bres.TxResponse.Code, RawLog: bres.TxResponse.RawLog}
	}

	return c.awaitTx(ctx, bres.TxResponse.TxHash)
}

// awaitTx polls the node until the transaction is included in a block.
func (c *LCDClient) awaitTx(ctx context.Context, txHash string) (*TxResult, error) {
	for {
		var sres txStatusResponse
		err := c.get(ctx, "/cosmos/tx/v1beta1/txs/"+url.PathEscape(txHash), &sres)
		switch {
		case errors.Is(err, ErrNotFound):
			// Not yet included, keep polling.
		case err != nil:
			return nil, fmt.Errorf("poll tx %s: %w", txHash, err)
		default:
			return txResultFromStatus(&sres)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// txResultFromStatus maps the LCD tx lookup into a TxResult, decoding
// whichever log shape the node emitted.
func txResultFromStatus(sres *txStatusResponse) (*TxResult, error) {
	tr := &TxResult{
		TxHash:  sres.TxResponse.TxHash,
		Code:    sres.TxResponse.Code,
		RawLog:  sres.TxResponse.RawLog,
		JSONLog: sres.TxResponse.Logs,
	}
	tr.Height, _ = strconv.ParseInt(sres.TxResponse.Height, 10, 64)
	tr.GasUsed, _ = strconv.ParseInt(sres.TxResponse.GasUsed, 10, 64)
	tr.GasWanted, _ = strconv.ParseInt(sres.TxResponse.GasWanted, 10, 64)

	// Older nodes omit structured logs and put a flattened attribute list
	// into raw_log instead.
	if len(tr.JSONLog) == 0 && len(sres.TxResponse.RawLog) > 0 {
		var flat []FlatAttr
		if err := json.Unmarshal([]byte(sres.TxResponse.RawLog), &flat); err == nil {
			tr.ArrayLog = flat
		}
	}

	if tr.Code != 0 {
		return tr, &TxError{Code: tr.Code, RawLog: tr.RawLog}
	}
	return tr, nil
}

var _ Client = (*LCDClient)(nil)
