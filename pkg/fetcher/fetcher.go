// Package fetcher runs the dashboard query end to end: credential, cache,
// remote call, normalization.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/canopy-network/txdash/pkg/cache"
	"github.com/canopy-network/txdash/pkg/flipside"
	"github.com/canopy-network/txdash/pkg/metrics"
	"github.com/canopy-network/txdash/pkg/models"
	"github.com/canopy-network/txdash/pkg/normalize"
	"github.com/canopy-network/txdash/pkg/secrets"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrMissingCredential means no store holds the API key for the configured mode.
var ErrMissingCredential = errors.New("missing API credential")

// DefaultFetchTimeout bounds one remote fetch including SDK polling.
const DefaultFetchTimeout = 5 * time.Minute

// Series is one fetched hourly series plus what produced it.
type Series struct {
	Days      int               `json:"days"`
	SQL       string            `json:"sql"`
	Mode      string            `json:"mode"`
	FetchedAt time.Time         `json:"fetchedAt"`
	Cached    bool              `json:"cached"`
	Total     int64             `json:"total"`
	Peak      int64             `json:"peak"`
	Data      []models.HourlyTx `json:"data"`
}

// Empty reports whether the query returned no rows.
func (s *Series) Empty() bool { return len(s.Data) == 0 }

// Opts configures New.
type Opts struct {
	Querier      flipside.Querier
	Secrets      secrets.Store
	Cache        cache.Cache
	TTL          time.Duration
	FetchTimeout time.Duration
	Logger       *zap.Logger
}

// Service fetches hourly series and caches them for TTL.
type Service struct {
	querier      flipside.Querier
	secrets      secrets.Store
	cache        cache.Cache
	ttl          time.Duration
	fetchTimeout time.Duration
	logger       *zap.Logger
	group        singleflight.Group
	now          func() time.Time
}

// New builds a Service. A nil cache means a fresh in-process one.
func New(o Opts) *Service {
	if o.Cache == nil {
		o.Cache = cache.NewMemory()
	}
	if o.TTL <= 0 {
		o.TTL = cache.DefaultTTL
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Service{
		querier:      o.Querier,
		secrets:      o.Secrets,
		cache:        o.Cache,
		ttl:          o.TTL,
		fetchTimeout: o.FetchTimeout,
		logger:       o.Logger,
		now:          time.Now,
	}
}

// Mode is the configured querier mode.
func (s *Service) Mode() flipside.Mode { return s.querier.Mode() }

// Cache exposes the result cache for health checks and purges.
func (s *Service) Cache() cache.Cache { return s.cache }

// Fetch returns the series for days, clamped to the allowed range. A cached
// series is returned without contacting the remote service.
func (s *Service) Fetch(ctx context.Context, days int) (*Series, error) {
	return s.fetch(ctx, days, false)
}

// Refresh fetches days from the remote service even when a cached copy
// exists, and stores the result.
func (s *Service) Refresh(ctx context.Context, days int) (*Series, error) {
	return s.fetch(ctx, days, true)
}

func (s *Service) fetch(ctx context.Context, days int, force bool) (*Series, error) {
	days = flipside.ClampDays(days)
	sql := flipside.HourlyTxSQL(days)
	mode := string(s.querier.Mode())

	apiKey, err := s.credential(ctx)
	if err != nil {
		if errors.Is(err, ErrMissingCredential) {
			metrics.FetchTotal.WithLabelValues(mode, metrics.OutcomeNoCredential).Inc()
		}
		return nil, err
	}

	key := cache.Key(sql, apiKey, s.querier.Endpoint())
	if !force {
		if series, ok := s.cached(ctx, key); ok {
			return series, nil
		}
	}

	ch := s.group.DoChan(key, func() (any, error) {
		// Shared by every waiter, so it must not die with the first caller.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.remote(fctx, key, sql, apiKey, days)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			metrics.CacheTotal.WithLabelValues(metrics.CacheShared).Inc()
		}
		series := *res.Val.(*Series)
		return &series, nil
	}
}

func (s *Service) credential(ctx context.Context) (string, error) {
	name := s.querier.Mode().SecretName()
	if s.secrets == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingCredential, name)
	}
	v, err := secrets.Require(ctx, s.secrets, name)
	if errors.Is(err, secrets.ErrMissing) {
		return "", fmt.Errorf("%w: %s", ErrMissingCredential, name)
	}
	return v, err
}

func (s *Service) cached(ctx context.Context, key string) (*Series, bool) {
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheTotal.WithLabelValues(metrics.CacheError).Inc()
		s.logger.Warn("result cache read failed", zap.String("backend", s.cache.Name()), zap.Error(err))
		return nil, false
	}
	if !ok {
		metrics.CacheTotal.WithLabelValues(metrics.CacheMiss).Inc()
		return nil, false
	}

	var series Series
	if err := json.Unmarshal(b, &series); err != nil {
		metrics.CacheTotal.WithLabelValues(metrics.CacheError).Inc()
		s.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	metrics.CacheTotal.WithLabelValues(metrics.CacheHit).Inc()
	series.Cached = true
	return &series, true
}

func (s *Service) remote(ctx context.Context, key, sql, apiKey string, days int) (*Series, error) {
	mode := string(s.querier.Mode())
	start := time.Now()
	raw, err := s.querier.Query(ctx, sql, apiKey)
	metrics.FetchDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchTotal.WithLabelValues(mode, metrics.OutcomeError).Inc()
		s.logger.Error("query failed", zap.String("mode", mode), zap.Int("days", days), zap.Error(err))
		return nil, fmt.Errorf("query: %w", err)
	}

	rows, err := normalize.Rows(raw)
	if err != nil {
		metrics.FetchTotal.WithLabelValues(mode, metrics.OutcomeError).Inc()
		s.logger.Error("unexpected query result", zap.String("mode", mode), zap.Error(err))
		return nil, fmt.Errorf("normalize: %w", err)
	}
	metrics.FetchTotal.WithLabelValues(mode, metrics.OutcomeOK).Inc()

	series := &Series{
		Days:      days,
		SQL:       sql,
		Mode:      mode,
		FetchedAt: s.now().UTC(),
		Data:      rows,
	}
	series.Total, series.Peak = Summarize(rows)

	s.logger.Info("query fetched",
		zap.String("mode", mode),
		zap.Int("days", days),
		zap.Int("rows", len(rows)),
		zap.Duration("took", time.Since(start)))

	if b, err := json.Marshal(series); err == nil {
		if err := s.cache.Set(ctx, key, b, s.ttl); err != nil {
			s.logger.Warn("result cache write failed", zap.String("backend", s.cache.Name()), zap.Error(err))
		}
	}
	return series, nil
}

// Summarize returns the sum and the maximum of the hourly counts.
func Summarize(rows []models.HourlyTx) (total, peak int64) {
	for _, r := range rows {
		total += r.TxCount
		if r.TxCount > peak {
			peak = r.TxCount
		}
	}
	return total, peak
}

// Purge empties the result cache.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	n, err := s.cache.Purge(ctx)
	if err != nil {
		return n, fmt.Errorf("purge %s cache: %w", s.cache.Name(), err)
	}
	s.logger.Info("result cache purged", zap.String("backend", s.cache.Name()), zap.Int64("entries", n))
	return n, nil
}
