// Package basket holds the per-session shopping basket. The basket lives only
// in memory and is discarded together with its session.
package basket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dyagdi/PriceLess/internal/domain"
)

// Store is the basket of one session. All mutations go through its methods;
// each one builds the new collection from the latest committed one under the
// store lock, so rapid consecutive calls never lose an update.
type Store struct {
	mu      sync.Mutex
	entries []domain.BasketEntry
	newID   domain.IDGenerator
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the token generator used for id-less products.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(s *Store) {
		s.newID = g
	}
}

// NewStore creates an empty basket.
func NewStore(logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		entries: []domain.BasketEntry{},
		newID:   domain.NewTempID,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add puts a product into the basket. A product with the same id and name as
// an existing entry increments that entry's quantity; otherwise a new entry
// with quantity 1 is appended. A nil product is ignored. Add returns the
// resulting entry and whether the product was accepted.
func (s *Store) Add(ctx context.Context, p *domain.Product) (domain.BasketEntry, bool) {
	if p == nil {
		s.logger.WarnContext(ctx, "attempted to add nil product to basket")
		return domain.BasketEntry{}, false
	}

	product := p.Clone()
	if product.Normalize() {
		s.logger.WarnContext(ctx, "product has no usable price, defaulting to zero",
			slog.String("product_id", string(product.ID)),
			slog.String("name", product.Name),
		)
	}

	basketID := string(product.ID)
	if basketID == "" {
		basketID = s.newID(domain.BasketIDPrefix)
	}
	candidate := domain.NewBasketEntry(product, basketID)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.BasketEntry, len(s.entries), len(s.entries)+1)
	copy(next, s.entries)

	result := candidate
	found := false
	for i := range next {
		if next[i].SameItem(candidate.Product) {
			next[i].Quantity++
			result = next[i]
			found = true
			break
		}
	}
	if !found {
		next = append(next, candidate)
	}

	s.commit(ctx, next)
	return result, true
}

// Remove deletes entries named by ref. A numeric ref that no entry carries as
// its id is read as a position and removes that slot; any other ref removes
// every entry whose product id or basket id equals it. Remove returns the
// number of entries removed.
func (s *Store) Remove(ctx context.Context, ref Ref) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ref.numeric && !s.hasProductID(ref.key) {
		return s.removeAt(ctx, ref.index)
	}
	return s.removeByKey(ctx, ref.key)
}

// RemoveByKey deletes every entry whose product id or basket id equals key.
func (s *Store) RemoveByKey(ctx context.Context, key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeByKey(ctx, key)
}

// RemoveAt deletes the entry at index. Out-of-range indexes remove nothing.
func (s *Store) RemoveAt(ctx context.Context, index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeAt(ctx, index) == 1
}

// UpdateQuantity overwrites the quantity of every entry named by key. The
// quantity is taken as given; zero and negative values are stored as is.
// It returns the number of entries updated.
func (s *Store) UpdateQuantity(ctx context.Context, key string, quantity int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.BasketEntry, len(s.entries))
	copy(next, s.entries)

	updated := 0
	for i := range next {
		if next[i].MatchesKey(key) {
			next[i].Quantity = quantity
			updated++
		}
	}
	if updated > 0 {
		s.commit(ctx, next)
	}
	return updated
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commit(ctx, []domain.BasketEntry{})
}

// TotalPrice returns the sum of price * quantity over all entries.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	return totalPrice(s.entries)
}

// Count returns the sum of quantities, which differs from Len once an entry
// has a quantity above one.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return count(s.entries)
}

// Len returns the number of distinct entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// Entries returns a copy of the basket in insertion order.
func (s *Store) Entries() []domain.BasketEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.BasketEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// --- helpers, called with s.mu held ---

func (s *Store) hasProductID(id string) bool {
	for _, e := range s.entries {
		if string(e.ID) == id {
			return true
		}
	}
	return false
}

func (s *Store) removeAt(ctx context.Context, index int) int {
	if index < 0 || index >= len(s.entries) {
		return 0
	}
	next := make([]domain.BasketEntry, 0, len(s.entries)-1)
	next = append(next, s.entries[:index]...)
	next = append(next, s.entries[index+1:]...)
	s.commit(ctx, next)
	return 1
}

func (s *Store) removeByKey(ctx context.Context, key string) int {
	next := make([]domain.BasketEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.MatchesKey(key) {
			next = append(next, e)
		}
	}
	removed := len(s.entries) - len(next)
	if removed > 0 {
		s.commit(ctx, next)
	}
	return removed
}

func (s *Store) commit(ctx context.Context, next []domain.BasketEntry) {
	s.entries = next
	s.logger.DebugContext(ctx, "basket updated",
		slog.Int("entries", len(next)),
		slog.Int("count", count(next)),
		slog.String("total", totalPrice(next).String()),
	)
}

func totalPrice(entries []domain.BasketEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.LineTotal())
	}
	return total
}

func count(entries []domain.BasketEntry) int {
	var n int
	for _, e := range entries {
		n += e.Quantity
	}
	return n
}
