// Package session owns the per-client stores. A Session bundles one basket
// and one favorites store; the Registry creates sessions on first use and
// expires them after a period of inactivity.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dyagdi/PriceLess/internal/basket"
	"github.com/dyagdi/PriceLess/internal/favorites"
	"github.com/dyagdi/PriceLess/internal/storage"
)

// DefaultIdleTTL is how long an untouched session is kept.
const DefaultIdleTTL = 30 * time.Minute

var activeSessions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "storefront_active_sessions",
		Help: "Number of sessions currently held in memory",
	},
)

// Session is the state of one client session.
type Session struct {
	ID        string
	Basket    *basket.Store
	Favorites *favorites.Store
	CreatedAt time.Time
}

// Registry hands out sessions by id.
type Registry struct {
	mu          sync.Mutex
	cache       *ttlcache.Cache[string, *Session]
	kv          storage.KV
	keyPrefix   string
	idleTTL     time.Duration
	basketOpts  []basket.Option
	favOpts     []favorites.Option
	logger      *slog.Logger
	unsubscribe func()
}

// Option configures a Registry.
type Option func(*Registry)

// WithIdleTTL sets how long a session survives without being accessed.
func WithIdleTTL(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.idleTTL = d
		}
	}
}

// WithKeyPrefix sets the storage prefix under which each client's favorites
// record is kept.
func WithKeyPrefix(prefix string) Option {
	return func(r *Registry) {
		r.keyPrefix = prefix
	}
}

// WithBasketOptions passes options to every new basket store.
func WithBasketOptions(opts ...basket.Option) Option {
	return func(r *Registry) {
		r.basketOpts = append(r.basketOpts, opts...)
	}
}

// WithFavoritesOptions passes options to every new favorites store.
func WithFavoritesOptions(opts ...favorites.Option) Option {
	return func(r *Registry) {
		r.favOpts = append(r.favOpts, opts...)
	}
}

// NewRegistry creates a registry whose favorites stores persist to kv.
// Call Start to run background expiry and Stop to end it.
func NewRegistry(kv storage.KV, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		kv:        kv,
		keyPrefix: "storefront:",
		idleTTL:   DefaultIdleTTL,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.cache = ttlcache.New[string, *Session](
		ttlcache.WithTTL[string, *Session](r.idleTTL),
	)
	r.unsubscribe = r.cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		activeSessions.Set(float64(r.cache.Len()))
		if reason == ttlcache.EvictionReasonExpired {
			r.logger.Info("session expired",
				slog.String("session_id", item.Key()),
				slog.Int("basket_entries", item.Value().Basket.Len()),
			)
		}
	})
	return r
}

// Get returns the session for id, creating it on first use. A new session has
// an empty basket and favorites hydrated from storage. Every call extends the
// session's idle deadline.
func (r *Registry) Get(ctx context.Context, id string) *Session {
	if item := r.cache.Get(id); item != nil {
		return item.Value()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another request may have created it while we waited for the lock.
	if item := r.cache.Get(id); item != nil {
		return item.Value()
	}

	logger := r.logger.With(slog.String("session_id", id))
	s := &Session{
		ID:        id,
		Basket:    basket.NewStore(logger, r.basketOpts...),
		Favorites: favorites.Load(ctx, r.favoritesKV(id), logger, r.favOpts...),
		CreatedAt: time.Now().UTC(),
	}
	r.cache.Set(id, s, ttlcache.DefaultTTL)
	activeSessions.Set(float64(r.cache.Len()))

	logger.InfoContext(ctx, "session created",
		slog.Int("favorites", s.Favorites.Len()),
	)
	return s
}

// Drop discards the in-memory session for id. Persisted favorites are kept,
// so the next Get re-hydrates them. It reports whether a session existed.
func (r *Registry) Drop(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cache.Has(id) {
		return false
	}
	r.cache.Delete(id)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Start runs the expiry loop. It blocks until Stop is called.
func (r *Registry) Start() {
	r.cache.Start()
}

// Stop ends the expiry loop. It must only be called after Start.
func (r *Registry) Stop() {
	r.cache.Stop()
	r.unsubscribe()
}

func (r *Registry) favoritesKV(id string) storage.KV {
	return storage.Prefixed(r.kv, storage.ClientPrefix(r.keyPrefix, id))
}
