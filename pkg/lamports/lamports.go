// Package lamports converts between SOL decimal strings and lamports, the
// ledger's minor unit. Conversions go through math/big so configured amounts
// like "0.000005" map to exact integers.
package lamports

import (
	"fmt"
	"math/big"
	"strings"
)

// PerSOL is the number of lamports in one SOL.
const PerSOL = 1_000_000_000

// ParseSOL parses a non-negative SOL amount and returns it in lamports,
// rounding any sub-lamport remainder up.
func ParseSOL(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, fmt.Errorf("invalid SOL amount %q", s)
	}
	if r.Sign() < 0 {
		return 0, fmt.Errorf("negative SOL amount %q", s)
	}

	r.Mul(r, new(big.Rat).SetInt64(PerSOL))
	q, rem := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if rem.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	if !q.IsUint64() {
		return 0, fmt.Errorf("SOL amount %q overflows", s)
	}
	return q.Uint64(), nil
}

// FormatSOL renders lamports as a SOL decimal string without trailing zeros.
func FormatSOL(amount uint64) string {
	whole := amount / PerSOL
	frac := amount % PerSOL
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	return strings.TrimRight(fmt.Sprintf("%d.%09d", whole, frac), "0")
}
