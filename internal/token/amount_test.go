package token

import "testing"

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		raw      string
		decimals int
		want     string
	}{
		{"1234567890", 6, "1234.567890"},
		{"5000000", 6, "5.000000"},
		{"0", 6, "0.000000"},
		{"", 6, "0.000000"},
		{"1", 6, "0.000001"},
		{"999999", 6, "0.999999"},
		{"100", 0, "100"},
		{"123456789012345678901234567890", 18, "123456789012.345678901234567890"},
	}

	for _, tt := range tests {
		got, err := FormatAmount(tt.raw, tt.decimals)
		if err != nil {
			t.Errorf("FormatAmount(%q, %d) failed: %v", tt.raw, tt.decimals, err)
			continue
		}
		if got != tt.want {
			t.Errorf("FormatAmount(%q, %d) = %q, want %q", tt.raw, tt.decimals, got, tt.want)
		}
	}
}

func TestFormatAmount_Invalid(t *testing.T) {
	if _, err := FormatAmount("12.5", 6); err == nil {
		t.Error("expected error for non-integer raw amount")
	}
	if _, err := FormatAmount("-5", 6); err == nil {
		t.Error("expected error for negative amount")
	}
	if _, err := FormatAmount("abc", 6); err == nil {
		t.Error("expected error for non-numeric amount")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		s        string
		decimals int
		want     string
	}{
		{"1234.567890", 6, "1234567890"},
		{"5", 6, "5000000"},
		{"0.000001", 6, "1"},
		{"5.5", 6, "5500000"},
		{".5", 6, "500000"},
	}

	for _, tt := range tests {
		got, err := ParseAmount(tt.s, tt.decimals)
		if err != nil {
			t.Errorf("ParseAmount(%q, %d) failed: %v", tt.s, tt.decimals, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAmount(%q, %d) = %q, want %q", tt.s, tt.decimals, got, tt.want)
		}
	}
}

func TestParseAmount_TooManyFractionDigits(t *testing.T) {
	if _, err := ParseAmount("1.1234567", 6); err == nil {
		t.Error("expected error for excess fractional digits")
	}
}

func TestAmountRoundTrip(t *testing.T) {
	raw := "1234567890"
	formatted, err := FormatAmount(raw, 6)
	if err != nil {
		t.Fatalf("FormatAmount failed: %v", err)
	}
	back, err := ParseAmount(formatted, 6)
	if err != nil {
		t.Fatalf("ParseAmount failed: %v", err)
	}
	if back != raw {
		t.Errorf("round trip mismatch: %s -> %s -> %s", raw, formatted, back)
	}
}

func TestCatalogLookup(t *testing.T) {
	catalog := DefaultCatalog()

	for _, symbol := range []string{"sSCRT", "sscrt", "SSCRT"} {
		tok, err := catalog.Lookup(symbol)
		if err != nil {
			t.Fatalf("Lookup(%q) failed: %v", symbol, err)
		}
		if tok.Contract != "secret1k0jntykt7e4g3y88ltc60czgjuqdy4c9e8fzek" {
			t.Errorf("Lookup(%q) returned wrong contract: %s", symbol, tok.Contract)
		}
	}

	if _, err := catalog.Lookup("doge"); err == nil {
		t.Error("expected error for unknown token")
	}

	if n := len(catalog.All()); n != 8 {
		t.Errorf("expected 8 tokens in default catalog, got %d", n)
	}
}
