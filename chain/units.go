package chain

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseUnits converts a decimal string such as "0.0001" into base units.
// More fractional digits than decimals is an error.
func ParseUnits(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("parse amount %q", s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt(pow10(decimals)))
	if !r.IsInt() {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	return new(big.Int).Set(r.Num()), nil
}

// FormatUnits renders base units as a decimal string without trailing zeros.
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(v, pow10(decimals))
	s := r.FloatString(decimals)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

// ToFloat is lossy and meant for display and price math only.
func ToFloat(v *big.Int, decimals int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(v, pow10(decimals)).Float64()
	return f
}

// FromFloat rounds an amount down to whole base units.
func FromFloat(f float64, decimals int) *big.Int {
	if f <= 0 {
		return new(big.Int)
	}
	bf := new(big.Float).SetFloat64(f)
	bf.Mul(bf, new(big.Float).SetInt(pow10(decimals)))
	out, _ := bf.Int(nil)
	return out
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
