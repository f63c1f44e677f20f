// Package favorites holds a client's favorite products. The collection is
// hydrated from a storage.KV when the store is created and written back to it
// after every mutation.
package favorites

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dyagdi/PriceLess/internal/domain"
	"github.com/dyagdi/PriceLess/internal/storage"
)

// StorageKey is the key the collection is persisted under.
const StorageKey = "favorites"

// Store is the favorites collection of one client.
type Store struct {
	mu        sync.Mutex
	entries   []domain.FavoriteEntry
	kv        storage.KV
	newID     domain.IDGenerator
	stableIDs bool
	onPersist func(op string, err error)
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the token generator used for id-less products.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(s *Store) {
		s.newID = g
	}
}

// WithStableIDs derives ids for id-less products from their content instead
// of generating a fresh token, which makes Toggle a true toggle for them.
func WithStableIDs() Option {
	return func(s *Store) {
		s.stableIDs = true
	}
}

// WithPersistErrorHook registers a callback invoked when writing the
// collection back to storage fails.
func WithPersistErrorHook(fn func(op string, err error)) Option {
	return func(s *Store) {
		s.onPersist = fn
	}
}

// Load creates a store hydrated from the StorageKey record in kv. A missing
// record yields an empty store. A read error or an unparsable record is
// logged and the store starts empty; the bad record is replaced on the next
// mutation.
func Load(ctx context.Context, kv storage.KV, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		entries: []domain.FavoriteEntry{},
		kv:      kv,
		newID:   domain.NewTempID,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, found, err := kv.Get(ctx, StorageKey)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read favorites from storage",
			slog.String("error", err.Error()),
		)
		return s
	}
	if !found {
		return s
	}

	var entries []domain.FavoriteEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		logger.ErrorContext(ctx, "failed to parse stored favorites, starting empty",
			slog.String("error", err.Error()),
		)
		return s
	}
	if entries != nil {
		s.entries = entries
	}
	return s
}

// IsFavorite reports whether a favorite with p's id exists. It is false for a
// nil product or one without an id.
func (s *Store) IsFavorite(p *domain.Product) bool {
	if p == nil || p.ID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.indexOf(p.ID) >= 0
}

// Toggle adds p to the favorites when absent and removes it when present. An
// id-less product gets a freshly synthesized id first, so unless stable ids
// are enabled it is always added. Toggle returns the entry it acted on and
// whether the product is a favorite afterwards.
func (s *Store) Toggle(ctx context.Context, p *domain.Product) (domain.FavoriteEntry, bool) {
	if p == nil {
		s.logger.WarnContext(ctx, "attempted to toggle nil product in favorites")
		return domain.FavoriteEntry{}, false
	}

	product := p.Clone()
	if product.Normalize() {
		s.logger.WarnContext(ctx, "product has no usable price, defaulting to zero",
			slog.String("product_id", string(product.ID)),
			slog.String("name", product.Name),
		)
	}
	if product.ID == "" {
		if s.stableIDs {
			product.ID = domain.StableID(product)
		} else {
			product.ID = domain.ProductID(s.newID(domain.FavoriteIDPrefix))
		}
	}
	entry := domain.FavoriteEntry{Product: product}

	s.mu.Lock()
	defer s.mu.Unlock()

	var next []domain.FavoriteEntry
	added := false
	if i := s.indexOf(product.ID); i >= 0 {
		entry = s.entries[i]
		next = make([]domain.FavoriteEntry, 0, len(s.entries))
		for _, e := range s.entries {
			if e.ID != product.ID {
				next = append(next, e)
			}
		}
	} else {
		next = make([]domain.FavoriteEntry, len(s.entries), len(s.entries)+1)
		copy(next, s.entries)
		next = append(next, entry)
		added = true
	}

	s.entries = next
	s.persist(ctx, "toggle")
	return entry, added
}

// Clear removes every favorite and deletes the persisted record.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = []domain.FavoriteEntry{}
	if err := s.kv.Delete(ctx, StorageKey); err != nil {
		s.persistFailed(ctx, "clear", err)
	}
}

// Entries returns a copy of the favorites in insertion order.
func (s *Store) Entries() []domain.FavoriteEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.FavoriteEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of favorites.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

func (s *Store) indexOf(id domain.ProductID) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// persist writes the committed collection. Called with s.mu held.
func (s *Store) persist(ctx context.Context, op string) {
	data, err := json.Marshal(s.entries)
	if err != nil {
		s.persistFailed(ctx, op, err)
		return
	}
	if err := s.kv.Set(ctx, StorageKey, string(data)); err != nil {
		s.persistFailed(ctx, op, err)
	}
}

func (s *Store) persistFailed(ctx context.Context, op string, err error) {
	s.logger.ErrorContext(ctx, "failed to persist favorites",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	if s.onPersist != nil {
		s.onPersist(op, err)
	}
}
