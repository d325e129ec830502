package geocode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"media-index/internal/database"
	"media-index/internal/logging"
	"media-index/internal/metrics"
)

// ErrRateLimited is returned by a Resolver when the upstream service asked
// us to back off. Lookups retry it with exponential delays.
var ErrRateLimited = errors.New("geocode: rate limited by upstream")

// Resolver turns coordinates into a place. Implementations talk to an
// external service; the Service wraps them with caching and rate limiting.
type Resolver interface {
	Resolve(ctx context.Context, lat, lng float64) (*database.Place, error)
}

// Stats counts lookup outcomes since the last Reset.
type Stats struct {
	CacheHits   int64
	CacheMisses int64
	Errors      int64
}

const (
	// Nominatim's usage policy allows one request per second.
	requestsPerSecond = 1
	maxRetries        = 3
	initialBackoff    = time.Second

	// Counters are flushed to the catalog every flushEvery lookups and at
	// the end of every walk, never per lookup.
	flushEvery = 100
)

// Service resolves coordinates to places, consulting the persistent cache
// before the upstream resolver and never exceeding the upstream rate limit.
type Service struct {
	db       *database.DB
	resolver Resolver
	limiter  *rate.Limiter
	backoff  time.Duration

	mu      sync.Mutex
	stats   Stats
	flushed Stats
}

// New builds a Service over the catalog's geocode cache.
func New(db *database.DB, resolver Resolver) *Service {
	return &Service{
		db:       db,
		resolver: resolver,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		backoff:  initialBackoff,
	}
}

// Lookup resolves coordinates to a place. Coordinates within the cache
// rounding radius of a previous lookup are served from the catalog without
// touching the upstream service.
func (s *Service) Lookup(ctx context.Context, lat, lng float64) (*database.Place, error) {
	place, hit, err := s.db.CachedPlace(lat, lng)
	if err != nil {
		return nil, err
	}
	if hit {
		s.count(func(st *Stats) { st.CacheHits++ })
		metrics.GeocodeLookupsTotal.WithLabelValues("hit").Inc()
		return place, nil
	}
	s.count(func(st *Stats) { st.CacheMisses++ })
	metrics.GeocodeLookupsTotal.WithLabelValues("miss").Inc()
	s.maybeFlush()

	place, err = s.resolveWithRetry(ctx, lat, lng)
	if err != nil {
		s.count(func(st *Stats) { st.Errors++ })
		metrics.GeocodeLookupsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if err := s.db.StorePlace(lat, lng, place); err != nil {
		logging.Warn("Failed to cache geocode result for %.3f,%.3f: %v", lat, lng, err)
	}
	return place, nil
}

func (s *Service) resolveWithRetry(ctx context.Context, lat, lng float64) (*database.Place, error) {
	backoff := s.backoff
	for attempt := 0; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		place, err := s.resolver.Resolve(ctx, lat, lng)
		if err == nil {
			return place, nil
		}
		if !errors.Is(err, ErrRateLimited) || attempt >= maxRetries {
			return nil, fmt.Errorf("resolving %.3f,%.3f: %w", lat, lng, err)
		}

		logging.Warn("Geocode upstream throttled, retrying in %s (attempt %d/%d)",
			backoff, attempt+1, maxRetries)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
}

func (s *Service) count(f func(*Stats)) {
	s.mu.Lock()
	f(&s.stats)
	s.mu.Unlock()
}

// Snapshot returns the counters accumulated since the last Reset.
func (s *Service) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Reset flushes and zeroes the counters, typically at the start of a scan.
func (s *Service) Reset() {
	s.Flush()
	s.mu.Lock()
	s.stats = Stats{}
	s.flushed = Stats{}
	s.mu.Unlock()
}

// Flush writes the counters accumulated since the previous flush through to
// the catalog.
func (s *Service) Flush() {
	s.mu.Lock()
	delta := Stats{
		CacheHits:   s.stats.CacheHits - s.flushed.CacheHits,
		CacheMisses: s.stats.CacheMisses - s.flushed.CacheMisses,
		Errors:      s.stats.Errors - s.flushed.Errors,
	}
	s.flushed = s.stats
	s.mu.Unlock()

	if delta == (Stats{}) {
		return
	}
	if err := s.db.AddGeocodeStats(delta.CacheHits, delta.CacheMisses, delta.Errors); err != nil {
		logging.Warn("Failed to flush geocode stats: %v", err)
	}
}

func (s *Service) maybeFlush() {
	s.mu.Lock()
	due := (s.stats.CacheHits+s.stats.CacheMisses)%flushEvery == 0
	s.mu.Unlock()
	if due {
		s.Flush()
	}
}

// LogSummary writes the accumulated counters to the log, used at scan end
// and periodically during long walks.
func (s *Service) LogSummary() {
	st := s.Snapshot()
	logging.Info("Geocoding: %d cache hits, %d lookups, %d errors",
		st.CacheHits, st.CacheMisses, st.Errors)
}
