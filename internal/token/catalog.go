package token

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MrGarbonzo/secretforge/internal/domain"
)

// Catalog is the set of SNIP-20 tokens the coordinator can query, keyed by
// lower-cased symbol.
type Catalog struct {
	tokens map[string]domain.Token
}

// DefaultCatalog returns the mainnet (secret-4) token set.
func DefaultCatalog() *Catalog {
	return NewCatalog([]domain.Token{
		{
			Symbol:   "SHD",
			Name:     "Shade",
			Contract: "secret153wu605vvp934xhd4k9dtd640zsep5jkesstdm",
			CodeHash: "638a3e1d50175fbcb8373cf801565283e3eb23d88a9b7b7f99fcc5eb1e6b561e",
			Decimals: 8,
		},
		{
			Symbol:   "SILK",
			Name:     "Silk",
			Contract: "secret1fl449muk5yq8dlad7a22nje4p5d2pnsgymhjfd",
			CodeHash: "638a3e1d50175fbcb8373cf801565283e3eb23d88a9b7b7f99fcc5eb1e6b561e",
			Decimals: 6,
		},
		{
			Symbol:   "sSCRT",
			Name:     "Secret SCRT",
			Contract: "secret1k0jntykt7e4g3y88ltc60czgjuqdy4c9e8fzek",
			CodeHash: "af74387e276be8874f07bec3a87023ee49b0e7ebe08178c49d0a49c3c98ed60e",
			Decimals: 6,
		},
		{
			Symbol:   "stkd-SCRT",
			Name:     "Staked SCRT",
			Contract: "secret1k6u0cy4feepm6pehnz804zmwakuwdapm69tuc4",
			CodeHash: "638a3e1d50175fbcb8373cf801565283e3eb23d88a9b7b7f99fcc5eb1e6b561e",
			Decimals: 6,
		},
		{
			Symbol:   "sINJ",
			Name:     "Secret INJ",
			Contract: "secret1cxf4xuy6tcuuykwpcvts2c7g6tghzy2xkrkkgu",
			CodeHash: "638a3e1d50175fbcb8373cf801565283e3eb23d88a9b7b7f99fcc5eb1e6b561e",
			Decimals: 18,
		},
		{
			Symbol:   "sWBTC",
			Name:     "Secret WBTC",
			Contract: "secret1g7jfnxmxkjgqdts9wlmn238mrzxz5r92zwqv4a",
			CodeHash: "638a3e1d50175fbcb8373cf801565283e3eb23d88a9b7b7f99fcc5eb1e6b561e",
			Decimals: 8,
		},
		{
			Symbol:   "sUSDT",
			Name:     "Secret USDT",
			Contract: "secret18wpjn83dayu4meu6wnn29khfkwdxs7kyrz9c8f",
			CodeHash: "638a3e1d50175fbcb8373cf801565283e3eb23d88a9b7b7f99fcc5eb1e6b561e",
			Decimals: 6,
		},
		{
			Symbol:   "snobleUSDC",
			Name:     "Secret Noble USDC",
			Contract: "secret1vkq022x0q03ung5myy5g4p3yk8y5ch3klx8dpx",
			CodeHash: "638a3e1d50175fbcb8373cf801565283e3eb23d88a9b7b7f99fcc5eb1e6b561e",
			Decimals: 6,
		},
	})
}

// NewCatalog builds a catalog from a token list.
func NewCatalog(tokens []domain.Token) *Catalog {
	c := &Catalog{tokens: make(map[string]domain.Token, len(tokens))}
	for _, t := range tokens {
		c.tokens[t.Key()] = t
	}
	return c
}

// Lookup finds a token by symbol, case-insensitively.
func (c *Catalog) Lookup(symbol string) (domain.Token, error) {
	t, ok := c.tokens[strings.ToLower(symbol)]
	if !ok {
		return domain.Token{}, fmt.Errorf("unknown token %q", symbol)
	}
	return t, nil
}

// All returns every token, sorted by symbol for stable iteration.
func (c *Catalog) All() []domain.Token {
	out := make([]domain.Token, 0, len(c.tokens))
	for _, t := range c.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key() < out[j].Key()
	})
	return out
}
