package domain

import "strings"

// Token is a static catalog entry for a SNIP-20 token.
// Defined at process start, immutable afterwards.
type Token struct {
	Symbol   string // display symbol, e.g. "sSCRT"
	Name     string // display name, e.g. "Secret SCRT"
	Contract string // on-chain contract address (bech32)
	CodeHash string // integrity hash of the contract code
	Decimals int    // base-unit scaling, amount = raw / 10^Decimals
}

// Key returns the case-folded identifier the token is looked up and
// cached under. Token identifiers are case-insensitive.
func (t Token) Key() string {
	return strings.ToLower(t.Symbol)
}
