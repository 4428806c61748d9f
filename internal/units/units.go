// Package units converts raw ERC-20 integer balances into human-readable amounts.
package units

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/Fantasim/tokenidx/internal/config"
)

// ParseQuantity decodes a JSON-RPC hex quantity into a 256-bit unsigned integer.
// Indexing APIs commonly return balances left-padded to 32 bytes
// ("0x00...01"), which uint256.FromHex rejects, so leading zeros are stripped first.
func ParseQuantity(hex string) (*uint256.Int, error) {
	s := strings.TrimSpace(hex)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, fmt.Errorf("quantity %q: missing 0x prefix", hex)
	}
	digits := strings.TrimLeft(s[2:], "0")
	if digits == "" {
		return new(uint256.Int), nil
	}
	if len(digits) > 64 {
		return nil, fmt.Errorf("quantity %q: exceeds 256 bits", hex)
	}
	v, err := uint256.FromHex("0x" + digits)
	if err != nil {
		return nil, fmt.Errorf("quantity %q: %w", hex, err)
	}
	return v, nil
}

// FormatUnits scales a base-10 integer balance by 10^(-decimals).
func FormatUnits(raw string, decimals int) (decimal.Decimal, error) {
	if decimals < 0 {
		return decimal.Zero, fmt.Errorf("negative decimals %d", decimals)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse raw balance %q: %w", raw, err)
	}
	if !d.Equal(d.Truncate(0)) || d.IsNegative() {
		return decimal.Zero, fmt.Errorf("raw balance %q is not a non-negative integer", raw)
	}
	return d.Shift(-int32(decimals)), nil
}

// DisplayBalance renders a raw balance the way token cards show it: scaled by decimals,
// rounded half-up to four places, printed with exactly four places and cut to twelve
// characters. Unknown decimals (nil) are treated as zero.
func DisplayBalance(raw string, decimals *int) string {
	places := 0
	if decimals != nil {
		places = *decimals
	}

	amount, err := FormatUnits(raw, places)
	if err != nil {
		return config.UnknownSymbol
	}

	s := amount.Round(config.DisplayDecimals).StringFixed(config.DisplayDecimals)
	if len(s) > config.DisplayMaxChars {
		s = s[:config.DisplayMaxChars]
	}
	return s
}
