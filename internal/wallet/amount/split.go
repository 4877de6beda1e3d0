package amount

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ResolveSplitPlan divides total among count recipients. Without ratios every
// recipient gets total/count. With ratios (one non-negative weight per recipient)
// recipient i gets floor(total*ratios[i]/sum). In both cases the last recipient
// absorbs the rounding remainder, so the plan always sums to total.
func ResolveSplitPlan(total *big.Int, count int, ratios []*big.Int) (SplitPlan, error) {
	if total == nil || total.Sign() < 0 {
		return nil, errors.Wrap(ErrInvalidAmountFormat, "split total must not be negative")
	}
	if count < 1 {
		return nil, errors.Wrapf(ErrInvalidRecipientCount, "got %d recipients", count)
	}

	if ratios == nil {
		return evenSplit(total, count), nil
	}

	if len(ratios) != count {
		return nil, errors.Wrapf(ErrRatioCountMismatch, "%d ratios for %d recipients", len(ratios), count)
	}

	sum := new(big.Int)
	for i, r := range ratios {
		if r == nil || r.Sign() < 0 {
			return nil, errors.Wrapf(ErrInvalidAmountFormat, "ratio #%d must not be negative", i+1)
		}
		sum.Add(sum, r)
	}
	if sum.Sign() == 0 {
		return nil, ErrZeroRatioSum
	}

	plan := make(SplitPlan, count)
	assigned := new(big.Int)
	for i, r := range ratios {
		share := new(big.Int).Mul(total, r)
		share.Quo(share, sum)
		plan[i] = share
		assigned.Add(assigned, share)
	}
	plan[count-1].Add(plan[count-1], new(big.Int).Sub(total, assigned))

	return plan, nil
}

func evenSplit(total *big.Int, count int) SplitPlan {
	n := big.NewInt(int64(count))
	each, rem := new(big.Int).QuoRem(total, n, new(big.Int))

	plan := make(SplitPlan, count)
	for i := range plan {
		plan[i] = new(big.Int).Set(each)
	}
	plan[count-1].Add(plan[count-1], rem)

	return plan
}

// ParseRatios turns decimal weights such as "1.5", "2", "0.25" into integers scaled by
// the same power of ten, preserving their proportions exactly.
func ParseRatios(values []string) ([]*big.Int, error) {
	if len(values) == 0 {
		return nil, nil
	}

	parsed := make([]decimal.Decimal, len(values))
	scale := 0
	for i, v := range values {
		d, err := parseDecimal(v, ^uint8(0))
		if err != nil {
			return nil, errors.Wrapf(err, "ratio #%d", i+1)
		}
		parsed[i] = d

		if dot := strings.IndexByte(strings.TrimSpace(v), '.'); dot >= 0 {
			scale = max(scale, len(strings.TrimRight(strings.TrimSpace(v)[dot+1:], "0")))
		}
	}

	ratios := make([]*big.Int, len(parsed))
	for i, d := range parsed {
		ratios[i] = d.Shift(int32(scale)).BigInt()
	}

	return ratios, nil
}
