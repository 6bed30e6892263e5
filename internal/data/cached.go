package data

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/dualmomentum/internal/data/cache"
)

// DefaultBarTTL bounds how long fetched price bars are reused before the
// provider is consulted again.
const DefaultBarTTL = time.Hour

// CachedProvider wraps a Provider with a byte cache so repeated runs over
// the same tickers skip the upstream fetch. A decode failure is treated
// as a miss, never surfaced.
type CachedProvider struct {
	Inner Provider
	Cache cache.Cache
	TTL   time.Duration
}

// NewCachedProvider wraps inner with c using DefaultBarTTL.
func NewCachedProvider(inner Provider, c cache.Cache) *CachedProvider {
	return &CachedProvider{Inner: inner, Cache: c, TTL: DefaultBarTTL}
}

// Fetch implements Provider.
func (p *CachedProvider) Fetch(ctx context.Context, ticker string) (Series, error) {
	key := "bars:" + ticker
	if b, ok := p.Cache.Get(key); ok {
		var s Series
		if err := json.Unmarshal(b, &s); err == nil {
			return s, nil
		}
		log.Warn().Str("ticker", ticker).Msg("undecodable cached bars, refetching")
	}

	s, err := p.Inner.Fetch(ctx, ticker)
	if err != nil {
		return Series{}, err
	}
	if b, err := json.Marshal(s); err == nil {
		p.Cache.Set(key, b, p.TTL)
	}
	return s, nil
}
