package cointax

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/etnz/cointax/date"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// PriceSource fetches the fiat unit price of an asset on a day from an external
// provider. It returns ErrPriceNotFound when the provider has no quote.
type PriceSource interface {
	Fetch(ctx context.Context, asset Asset, day date.Date) (decimal.Decimal, error)
}

// PriceCache holds daily fiat unit prices per asset.
//
// It is safe for concurrent use.
type PriceCache struct {
	mu     sync.RWMutex
	series map[Asset]*date.History[decimal.Decimal]
}

// NewPriceCache returns an empty cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{series: make(map[Asset]*date.History[decimal.Decimal])}
}

// Set records the price of asset on day, replacing any previous quote.
func (c *PriceCache) Set(asset Asset, day date.Date, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.series[asset]
	if !ok {
		h = new(date.History[decimal.Decimal])
		c.series[asset] = h
	}
	h.Set(day, price)
}

// Get returns the price of asset on day.
func (c *PriceCache) Get(asset Asset, day date.Date) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.series[asset]
	if !ok {
		return decimal.Decimal{}, false
	}
	return h.Get(day)
}

// Bracket returns the nearest quotes of asset strictly before and strictly after day.
func (c *PriceCache) Bracket(asset Asset, day date.Date) (before date.Point[decimal.Decimal], hasBefore bool, after date.Point[decimal.Decimal], hasAfter bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.series[asset]
	if !ok {
		return
	}
	return h.Bracket(day)
}

// Assets returns the assets with at least one quote, sorted.
func (c *PriceCache) Assets() []Asset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.series))
}

// Points returns a copy of the quotes of asset, in chronological order.
func (c *PriceCache) Points(asset Asset) []date.Point[decimal.Decimal] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.series[asset]
	if !ok {
		return nil
	}
	return h.Points()
}

// Len returns the number of quotes in the cache.
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, h := range c.series {
		n += h.Len()
	}
	return n
}

// PriceResolver maps (asset, timestamp) to a fiat unit price.
//
// Lookups go to the cache first, then to the Source when Refetch is set, then to a
// linear interpolation between the neighbour quotes when GapFill is set. Fetched
// prices are written back to the cache. Concurrent misses on the same (asset, day)
// share a single fetch.
//
// A PriceResolver must not be copied after first use.
type PriceResolver struct {
	Fiat    Asset
	Cache   *PriceCache
	Source  PriceSource // optional
	Refetch bool
	GapFill bool
	Logger  *slog.Logger

	group singleflight.Group
}

// NewPriceResolver returns a resolver over cache that only interpolates.
func NewPriceResolver(fiat Asset, cache *PriceCache) *PriceResolver {
	return &PriceResolver{Fiat: fiat, Cache: cache, GapFill: true}
}

func (r *PriceResolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Price returns the fiat unit price of asset at time at.
//
// The error wraps ErrPriceUnknown or ErrPriceUnavailable when no price can be
// resolved, the price is then zero.
func (r *PriceResolver) Price(ctx context.Context, asset Asset, at time.Time) (decimal.Decimal, error) {
	if asset == r.Fiat {
		return decimal.NewFromInt(1), nil
	}
	day := date.Of(at)
	if p, ok := r.Cache.Get(asset, day); ok {
		return p, nil
	}

	if r.Source != nil && r.Refetch {
		p, err := r.fetch(ctx, asset, day)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrPriceNotFound) {
			r.logger().Warn("price fetch failed", "asset", asset, "day", day, "err", err)
		}
	}

	if !r.GapFill {
		return decimal.Zero, fmt.Errorf("%w: %s on %s", ErrPriceUnknown, asset, day)
	}
	return r.interpolate(asset, day)
}

// fetch gets the price from the source, once per (asset, day) among concurrent callers.
func (r *PriceResolver) fetch(ctx context.Context, asset Asset, day date.Date) (decimal.Decimal, error) {
	key := string(asset) + "|" + day.String()
	v, err, shared := r.group.Do(key, func() (any, error) {
		// A concurrent flight may have completed between the miss and now.
		if p, ok := r.Cache.Get(asset, day); ok {
			return p, nil
		}
		p, err := r.Source.Fetch(ctx, asset, day)
		if err != nil {
			return nil, err
		}
		r.Cache.Set(asset, day, p)
		r.logger().Debug("price fetched", "asset", asset, "day", day, "price", p)
		return p, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	if shared {
		r.logger().Debug("price fetch shared", "asset", asset, "day", day)
	}
	return v.(decimal.Decimal), nil
}

// interpolate returns the linear interpolation, by elapsed days, between the quotes
// strictly before and strictly after day.
func (r *PriceResolver) interpolate(asset Asset, day date.Date) (decimal.Decimal, error) {
	before, hasBefore, after, hasAfter := r.Cache.Bracket(asset, day)
	if !hasBefore || !hasAfter {
		return decimal.Zero, fmt.Errorf("%w: %s on %s has no quote on both sides", ErrPriceUnavailable, asset, day)
	}
	total := decimal.NewFromInt(int64(before.Day.DaysUntil(after.Day)))
	elapsed := decimal.NewFromInt(int64(before.Day.DaysUntil(day)))
	delta := after.Value.Sub(before.Value)
	return before.Value.Add(delta.Mul(elapsed).Div(total)), nil
}

// Value returns the fiat value of q units of asset at time at.
func (r *PriceResolver) Value(ctx context.Context, asset Asset, at time.Time, q Quantity) (Money, error) {
	p, err := r.Price(ctx, asset, at)
	if err != nil {
		return M(0, string(r.Fiat)), err
	}
	return M(p.Mul(q.Abs().Decimal()), string(r.Fiat)), nil
}

// PriceRequest is an (asset, day) pair an evaluation needs a price for.
type PriceRequest struct {
	Asset Asset
	Day   date.Date
}

func comparePriceRequests(a, b PriceRequest) int {
	if c := cmp.Compare(a.Asset, b.Asset); c != 0 {
		return c
	}
	return a.Day.Compare(b.Day)
}
