package domain

// Coin is a bank-module balance in base units.
type Coin struct {
	Amount string // decimal-string integer, base units
	Denom  string // e.g. "uscrt"
}

// BalanceResult is the per-token outcome of a balance query.
// Transient: consumed once by the caller, never persisted.
type BalanceResult struct {
	Success   bool
	RawAmount string // decimal-string integer in base units
	Formatted string // RawAmount scaled by 10^Decimals, presentation only
	Decimals  int
	ErrReason string // set when Success is false
}
