package amount

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

const (
	// NativeDecimals is the minor-unit exponent of every EVM base currency.
	NativeDecimals uint8 = 18

	// DirectiveAll requests the whole sendable balance.
	DirectiveAll = "ALL"
)

var (
	ErrInvalidAmountFormat   = errors.New("invalid amount format")
	ErrRatioCountMismatch    = errors.New("ratio count does not match recipient count")
	ErrZeroRatioSum          = errors.New("ratios sum to zero")
	ErrInvalidRecipientCount = errors.New("recipient count must be at least 1")
)

// IsAll reports whether s is the ALL directive (case-insensitive).
func IsAll(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), DirectiveAll)
}

// SplitPlan holds one share per recipient, in recipient order.
type SplitPlan []*big.Int

// Sum returns the total of all shares.
func (p SplitPlan) Sum() *big.Int {
	sum := new(big.Int)
	for _, share := range p {
		sum.Add(sum, share)
	}

	return sum
}
