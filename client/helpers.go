package client

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// weiPerPony converts whole PONY amounts to the token's base units.
var weiPerPony = big.NewInt(params.Ether)

// BetOption is one entry of the fixed bet menu.
type BetOption struct {
	Label  string
	Amount *big.Int
}

func ponies(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), weiPerPony)
}

// BetAmounts returns the allowed wager menu, smallest first.
func BetAmounts() []BetOption {
	return []BetOption{
		{Label: "100M", Amount: ponies(100_000_000)},
		{Label: "500M", Amount: ponies(500_000_000)},
		{Label: "1B", Amount: ponies(1_000_000_000)},
		{Label: "10B", Amount: ponies(10_000_000_000)},
		{Label: "25B", Amount: ponies(25_000_000_000)},
		{Label: "50B", Amount: ponies(50_000_000_000)},
	}
}

// ValidBet reports whether amount is one of the menu entries.
func ValidBet(amount *big.Int) bool {
	if amount == nil {
		return false
	}
	for _, opt := range BetAmounts() {
		if opt.Amount.Cmp(amount) == 0 {
			return true
		}
	}
	return false
}

// FormatPony renders a base-unit token amount the way the site does:
// whole-token value with a K/M/B/T suffix.
func FormatPony(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), new(big.Float).SetInt(weiPerPony)).Float64()
	if f < 0 {
		f = -f
	}
	switch {
	case f >= 1e12:
		return trimZero(f/1e12) + "T"
	case f >= 1e9:
		return trimZero(f/1e9) + "B"
	case f >= 1e6:
		return trimZero(f/1e6) + "M"
	case f >= 1e3:
		return trimZero(f/1e3) + "K"
	default:
		return trimZero(f)
	}
}

// trimZero renders v with one decimal, dropping a trailing ".0".
func trimZero(v float64) string {
	return strings.TrimSuffix(fmt.Sprintf("%.1f", v), ".0")
}

// FormatEth renders a wei amount as ETH with four decimals.
func FormatEth(wei *big.Int) string {
	if wei == nil {
		return "0.0000"
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()
	return fmt.Sprintf("%.4f", f)
}
