package asset

import (
	"errors"
	"math/big"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw      string
		decimals int
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"0.1", 18, "100000000000000000"},
		{"1.001", 18, "1001000000000000000"},
		{"0.000001", 8, "100"},
		{"21000000", 8, "2100000000000000"},
		{"0.50", 6, "500000"},
		{".5", 6, "500000"},
		{"1.230000", 2, "123"}, // extra trailing zeros are fine
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.raw, tc.decimals)
		if err != nil {
			t.Errorf("ParseAmount(%q, %d) failed: %v", tc.raw, tc.decimals, err)
			continue
		}
		if got.String() != tc.want {
			t.Errorf("ParseAmount(%q, %d) = %s, want %s", tc.raw, tc.decimals, got, tc.want)
		}
	}
}

func TestParseAmountRejects(t *testing.T) {
	cases := []struct {
		raw      string
		decimals int
		want     error
	}{
		{"", 18, ErrEmptyAmount},
		{"   ", 18, ErrEmptyAmount},
		{"0", 18, ErrNonPositive},
		{"0.000", 18, ErrNonPositive},
		{"-1", 18, ErrNonPositive},
		{"1.2.3", 18, ErrMalformedAmount},
		{"1.", 18, ErrMalformedAmount},
		{"abc", 18, ErrMalformedAmount},
		{"1,5", 18, ErrMalformedAmount},
		{"0.0000001", 6, ErrTooPrecise},
	}
	for _, tc := range cases {
		if _, err := ParseAmount(tc.raw, tc.decimals); !errors.Is(err, tc.want) {
			t.Errorf("ParseAmount(%q, %d): err = %v, want %v", tc.raw, tc.decimals, err, tc.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		base     string
		decimals int
		want     string
	}{
		{"1000000000000000000", 18, "1"},
		{"1001000000000000000", 18, "1.001"},
		{"100", 8, "0.000001"},
		{"0", 8, "0"},
	}
	for _, tc := range cases {
		v, _ := new(big.Int).SetString(tc.base, 10)
		if got := FormatAmount(v, tc.decimals); got != tc.want {
			t.Errorf("FormatAmount(%s, %d) = %q, want %q", tc.base, tc.decimals, got, tc.want)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, raw := range []string{"1", "0.5", "123.456", "0.00000001"} {
		parsed, err := ParseAmount(raw, 8)
		if err != nil {
			t.Fatalf("ParseAmount(%q) failed: %v", raw, err)
		}
		back, err := ParseAmount(FormatAmount(parsed, 8), 8)
		if err != nil {
			t.Fatalf("re-parse of %q failed: %v", FormatAmount(parsed, 8), err)
		}
		if parsed.Cmp(back) != 0 {
			t.Errorf("round trip of %q: %s != %s", raw, parsed, back)
		}
	}
}

func TestAssetValidate(t *testing.T) {
	if err := (Asset{Symbol: "ETH", Chain: "evm", Decimals: 18}).Validate(); err != nil {
		t.Errorf("valid asset rejected: %v", err)
	}
	if err := (Asset{Symbol: "", Decimals: 18}).Validate(); err == nil {
		t.Error("empty symbol accepted")
	}
	if err := (Asset{Symbol: "X", Decimals: 100}).Validate(); err == nil {
		t.Error("absurd decimals accepted")
	}
}
