package amount

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DecimalsFetcher reads decimals() of an ERC20 contract.
type DecimalsFetcher interface {
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
}

// DecimalsCache resolves token decimals once per contract and run. Concurrent callers
// for the same contract share one fetch; a failed fetch caches NativeDecimals.
type DecimalsCache struct {
	fetcher DecimalsFetcher
	group   singleflight.Group

	mu     sync.RWMutex
	values map[common.Address]uint8
}

func NewDecimalsCache(fetcher DecimalsFetcher) *DecimalsCache {
	return &DecimalsCache{
		fetcher: fetcher,
		values:  make(map[common.Address]uint8),
	}
}

// Decimals returns the cached decimals of token, fetching them on first use.
func (c *DecimalsCache) Decimals(ctx context.Context, token common.Address) uint8 {
	if d, ok := c.lookup(token); ok {
		return d
	}

	v, _, _ := c.group.Do(token.Hex(), func() (any, error) {
		if d, ok := c.lookup(token); ok {
			return d, nil
		}

		d, err := c.fetcher.TokenDecimals(ctx, token)
		if err != nil {
			log.Warn().
				Err(err).
				Str("token", token.Hex()).
				Uint8("decimals", NativeDecimals).
				Msg("Failed to fetch token decimals, using default")
			d = NativeDecimals
		}

		c.mu.Lock()
		c.values[token] = d
		c.mu.Unlock()

		return d, nil
	})

	return v.(uint8) //nolint:forcetypeassert
}

func (c *DecimalsCache) lookup(token common.Address) (uint8, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.values[token]
	return d, ok
}
