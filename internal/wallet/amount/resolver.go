package amount

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var amountPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ResolveFixedAmount converts a non-negative base-10 decimal string into minor units.
// Trailing fractional zeros are insignificant; any other fractional digit beyond
// decimals is rejected, never truncated.
func ResolveFixedAmount(s string, decimals uint8) (*big.Int, error) {
	d, err := parseDecimal(s, decimals)
	if err != nil {
		return nil, err
	}

	return d.Shift(int32(decimals)).BigInt(), nil
}

// FormatUnits renders minor units as a normalized decimal string
// (no leading zeros, no trailing fractional zeros).
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}

	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

// ResolveMaxSendableNative returns balance minus the cost of gasUnits at costPerGas,
// clamped to zero.
func ResolveMaxSendableNative(balance *big.Int, gasUnits uint64, costPerGas *big.Int) *big.Int {
	if balance == nil {
		return new(big.Int)
	}

	cost := new(big.Int).SetUint64(gasUnits)
	if costPerGas != nil {
		cost.Mul(cost, costPerGas)
	} else {
		cost.SetInt64(0)
	}

	rest := new(big.Int).Sub(balance, cost)
	if rest.Sign() < 0 {
		return new(big.Int)
	}

	return rest
}

func parseDecimal(s string, decimals uint8) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if !amountPattern.MatchString(s) {
		return decimal.Zero, errors.Wrapf(ErrInvalidAmountFormat, "%q is not a non-negative decimal", s)
	}

	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		frac := strings.TrimRight(s[dot+1:], "0")
		if len(frac) > int(decimals) {
			return decimal.Zero, errors.Wrapf(ErrInvalidAmountFormat,
				"%q has %d fractional digits, at most %d allowed", s, len(frac), decimals)
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrInvalidAmountFormat, "%q: %v", s, err)
	}

	return d, nil
}
