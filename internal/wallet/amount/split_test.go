package amount_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/batch-sender/internal/wallet/amount"
)

func ints(values ...int64) []*big.Int {
	res := make([]*big.Int, len(values))
	for i, v := range values {
		res[i] = big.NewInt(v)
	}

	return res
}

func planStrings(p amount.SplitPlan) []string {
	res := make([]string, len(p))
	for i, v := range p {
		res[i] = v.String()
	}

	return res
}

func TestResolveSplitPlanEqual(t *testing.T) {
	plan, err := amount.ResolveSplitPlan(big.NewInt(10), 4, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "2", "2", "4"}, planStrings(plan))
	assert.Equal(t, int64(10), plan.Sum().Int64())

	plan, err = amount.ResolveSplitPlan(big.NewInt(0), 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "0", "0"}, planStrings(plan))

	plan, err = amount.ResolveSplitPlan(big.NewInt(2), 5, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "0", "0", "0", "2"}, planStrings(plan))

	plan, err = amount.ResolveSplitPlan(big.NewInt(7), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, planStrings(plan))
}

func TestResolveSplitPlanRatios(t *testing.T) {
	plan, err := amount.ResolveSplitPlan(big.NewInt(100), 3, ints(1, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"33", "33", "34"}, planStrings(plan))

	plan, err = amount.ResolveSplitPlan(big.NewInt(100), 3, ints(1, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"33", "66", "1"}, planStrings(plan))
	assert.Equal(t, int64(100), plan.Sum().Int64())

	plan, err = amount.ResolveSplitPlan(big.NewInt(1000), 2, ints(0, 5))
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1000"}, planStrings(plan))
}

func TestResolveSplitPlanSumsToTotal(t *testing.T) {
	total, ok := new(big.Int).SetString("123456789012345678901234567", 10)
	require.True(t, ok)

	for count := 1; count <= 25; count++ {
		plan, err := amount.ResolveSplitPlan(total, count, nil)
		require.NoError(t, err)
		require.Len(t, plan, count)
		assert.Zero(t, total.Cmp(plan.Sum()), "equal split of %d", count)

		ratios := make([]*big.Int, count)
		for i := range ratios {
			ratios[i] = big.NewInt(int64(i*7%5 + 1))
		}
		plan, err = amount.ResolveSplitPlan(total, count, ratios)
		require.NoError(t, err)
		assert.Zero(t, total.Cmp(plan.Sum()), "weighted split of %d", count)

		for _, share := range plan {
			assert.GreaterOrEqual(t, share.Sign(), 0)
		}
	}
}

func TestResolveSplitPlanErrors(t *testing.T) {
	_, err := amount.ResolveSplitPlan(big.NewInt(100), 3, ints(1, 1))
	require.ErrorIs(t, err, amount.ErrRatioCountMismatch)

	_, err = amount.ResolveSplitPlan(big.NewInt(100), 3, []*big.Int{})
	require.ErrorIs(t, err, amount.ErrRatioCountMismatch)

	_, err = amount.ResolveSplitPlan(big.NewInt(100), 2, ints(0, 0))
	require.ErrorIs(t, err, amount.ErrZeroRatioSum)

	_, err = amount.ResolveSplitPlan(big.NewInt(100), 2, ints(1, -1))
	require.ErrorIs(t, err, amount.ErrInvalidAmountFormat)

	_, err = amount.ResolveSplitPlan(big.NewInt(100), 0, nil)
	require.ErrorIs(t, err, amount.ErrInvalidRecipientCount)

	_, err = amount.ResolveSplitPlan(big.NewInt(-1), 2, nil)
	require.ErrorIs(t, err, amount.ErrInvalidAmountFormat)
}

func TestParseRatios(t *testing.T) {
	ratios, err := amount.ParseRatios([]string{"1.5", "2", "0.25"})
	require.NoError(t, err)
	assert.Equal(t, []string{"150", "200", "25"}, planStrings(ratios))

	ratios, err = amount.ParseRatios([]string{"1", "1", "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "1", "2"}, planStrings(ratios))

	ratios, err = amount.ParseRatios([]string{"0.10", "0.3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, planStrings(ratios))

	ratios, err = amount.ParseRatios(nil)
	require.NoError(t, err)
	assert.Nil(t, ratios)

	_, err = amount.ParseRatios([]string{"1", "-2"})
	require.ErrorIs(t, err, amount.ErrInvalidAmountFormat)

	_, err = amount.ParseRatios([]string{"abc"})
	require.ErrorIs(t, err, amount.ErrInvalidAmountFormat)
}

func TestParseRatiosFeedSplit(t *testing.T) {
	ratios, err := amount.ParseRatios([]string{"0.5", "0.25", "0.25"})
	require.NoError(t, err)

	plan, err := amount.ResolveSplitPlan(big.NewInt(1001), 3, ratios)
	require.NoError(t, err)
	assert.Equal(t, []string{"500", "250", "251"}, planStrings(plan))
}
