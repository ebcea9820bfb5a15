package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"OutcomeLedger/internal/observability"

	"github.com/redis/go-redis/v9"
)

// CachedStore wraps a primary Store with a Redis read-through cache for
// market metadata only. Market rows are immutable except for outcome
// resolution, which invalidates. Balances, positions, and ledger
// entries pass straight through: the engine must re-read those inside
// its own transaction on every operation, so caching them would be a
// correctness bug, not an optimization.
type CachedStore struct {
	Store
	rdb     *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedStore creates a cached wrapper around a primary store.
// metrics may be nil.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration, metrics *observability.Metrics) *CachedStore {
	return &CachedStore{
		Store:   primary,
		rdb:     rdb,
		ttl:     ttl,
		metrics: metrics,
	}
}

func (s *CachedStore) MarketExists(ctx context.Context, marketID string) (bool, error) {
	if _, err := s.rdb.Get(ctx, marketKey(marketID)).Result(); err == nil {
		s.hit()
		return true, nil
	}

	// A cache miss proves nothing either way; ask the primary.
	s.miss()
	m, err := s.Store.GetMarket(ctx, marketID)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}

	s.cacheMarket(ctx, m)
	return true, nil
}

func (s *CachedStore) GetMarket(ctx context.Context, id string) (*Market, error) {
	data, err := s.rdb.Get(ctx, marketKey(id)).Bytes()
	if err == nil {
		var m Market
		if json.Unmarshal(data, &m) == nil {
			s.hit()
			return &m, nil
		}
	}

	s.miss()
	m, err := s.Store.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheMarket(ctx, m)
	return m, nil
}

func (s *CachedStore) CreateMarket(ctx context.Context, m *Market) error {
	if err := s.Store.CreateMarket(ctx, m); err != nil {
		return err
	}
	s.cacheMarket(ctx, m)
	return nil
}

func (s *CachedStore) SetMarketOutcome(ctx context.Context, id, outcome string) error {
	if err := s.Store.SetMarketOutcome(ctx, id, outcome); err != nil {
		return err
	}
	// Invalidate; next read re-populates with the resolved row.
	s.rdb.Del(ctx, marketKey(id))
	return nil
}

func (s *CachedStore) cacheMarket(ctx context.Context, m *Market) {
	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, marketKey(m.ID), data, s.ttl)
	}
}

func (s *CachedStore) hit() {
	if s.metrics != nil {
		s.metrics.MarketCacheHits.Inc()
	}
}

func (s *CachedStore) miss() {
	if s.metrics != nil {
		s.metrics.MarketCacheMisses.Inc()
	}
}

func marketKey(id string) string { return fmt.Sprintf("market:%s", id) }
