package token

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatAmount renders a raw integer amount string as a decimal string with
// the given number of fractional digits. Amounts are arbitrary-precision;
// float conversion would lose digits on 18-decimal tokens.
func FormatAmount(raw string, decimals int) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "0"
	}

	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return "", fmt.Errorf("invalid amount %q", raw)
	}
	if n.Sign() < 0 {
		return "", fmt.Errorf("negative amount %q", raw)
	}
	if decimals < 0 {
		return "", fmt.Errorf("negative decimals %d", decimals)
	}
	if decimals == 0 {
		return n.String(), nil
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(n, scale, new(big.Int))

	return fmt.Sprintf("%s.%0*s", whole.String(), decimals, frac.String()), nil
}

// ParseAmount converts a decimal string back to the raw integer amount
// string. More fractional digits than decimals is an error rather than a
// silent truncation.
func ParseAmount(s string, decimals int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty amount")
	}
	if decimals < 0 {
		return "", fmt.Errorf("negative decimals %d", decimals)
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return "", fmt.Errorf("amount %q has more than %d fractional digits", s, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	n, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return "", fmt.Errorf("invalid amount %q", s)
	}
	if n.Sign() < 0 {
		return "", fmt.Errorf("negative amount %q", s)
	}
	return n.String(), nil
}
