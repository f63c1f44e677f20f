package basket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyagdi/PriceLess/internal/domain"
)

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sequentialIDs() domain.IDGenerator {
	var mu sync.Mutex
	n := 0
	return func(prefix string) string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newTestStore() *Store {
	return NewStore(newTestLogger(), WithIDGenerator(sequentialIDs()))
}

func product(id, name string, price int64) *domain.Product {
	return &domain.Product{
		ID:    domain.ProductID(id),
		Name:  name,
		Price: decimal.NewNullDecimal(decimal.NewFromInt(price)),
	}
}

// ============================================================================
// Add
// ============================================================================

func TestAdd_SameProductTwice(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.Add(ctx, product("a1", "Milk", 10))
	entry, ok := s.Add(ctx, product("a1", "Milk", 10))

	require.True(t, ok)
	assert.Equal(t, 2, entry.Quantity)
	assert.Equal(t, 1, s.Len())
	assert.True(t, decimal.NewFromInt(20).Equal(s.TotalPrice()))
	assert.Equal(t, 2, s.Count())
}

func TestAdd_NilProductIsNoop(t *testing.T) {
	s := newTestStore()

	_, ok := s.Add(context.Background(), nil)

	assert.False(t, ok)
	assert.Empty(t, s.Entries())
}

func TestAdd_BasketIDFromProductID(t *testing.T) {
	s := newTestStore()

	entry, _ := s.Add(context.Background(), product("a1", "Milk", 10))

	assert.Equal(t, "a1", entry.BasketID)
	assert.Equal(t, 1, entry.Quantity)
}

func TestAdd_SynthesizesBasketIDWithoutProductID(t *testing.T) {
	s := newTestStore()

	entry, _ := s.Add(context.Background(), product("", "Loose apples", 4))

	assert.Equal(t, "temp-id-1", entry.BasketID)
	assert.Empty(t, entry.ID)
}

func TestAdd_SameIDDifferentNameAreDistinct(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.Add(ctx, product("a1", "Milk", 10))
	s.Add(ctx, product("a1", "Milk 2L", 18))

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2, s.Count())
}

func TestAdd_CollapseIgnoresOtherFields(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.Add(ctx, product("a1", "Milk", 10))
	other := product("a1", "Milk", 99)
	other.Image = "different.png"
	s.Add(ctx, other)

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Quantity)
	assert.True(t, decimal.NewFromInt(10).Equal(entries[0].Price.Decimal), "first entry's fields are kept")
}

func TestAdd_IDLessSameNameCollapseKeepsFirstBasketID(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	first, _ := s.Add(ctx, product("", "Loose apples", 4))
	second, _ := s.Add(ctx, product("", "Loose apples", 4))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, first.BasketID, second.BasketID)
	assert.Equal(t, 2, second.Quantity)
}

func TestAdd_MissingPriceDefaultsToZero(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.Add(ctx, &domain.Product{ID: "x", Name: "Mystery"})
	s.Add(ctx, product("y", "Known", 7))

	assert.True(t, decimal.NewFromInt(7).Equal(s.TotalPrice()))
}

func TestAdd_DoesNotAliasCallerProduct(t *testing.T) {
	s := newTestStore()
	p := product("a1", "Milk", 10)
	p.Extra = map[string]json.RawMessage{"market_name": json.RawMessage(`"A101"`)}

	s.Add(context.Background(), p)
	p.Name = "Changed"
	p.Extra["market_name"] = json.RawMessage(`"BIM"`)

	entries := s.Entries()
	assert.Equal(t, "Milk", entries[0].Name)
	assert.Equal(t, `"A101"`, string(entries[0].Extra["market_name"]))
}

func TestAdd_DistinctPairsProperty(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	adds := []struct{ id, name string }{
		{"1", "A"}, {"2", "B"}, {"1", "A"}, {"3", "C"}, {"2", "B"}, {"1", "A2"}, {"", "D"}, {"", "D"},
	}
	for _, a := range adds {
		s.Add(ctx, product(a.id, a.name, 1))
	}

	entries := s.Entries()
	assert.Len(t, entries, 5)
	sum := 0
	for _, e := range entries {
		sum += e.Quantity
	}
	assert.Equal(t, len(adds), sum)
	assert.Equal(t, sum, s.Count())
}

func TestAdd_ConcurrentAddsAreNotLost(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(ctx, product("a1", "Milk", 10))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 50, s.Count())
}

// ============================================================================
// Remove
// ============================================================================

func TestRemove_ScenarioEmptiesBasket(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.Add(ctx, product("x", "Egg", 5))
	s.Add(ctx, product("x", "Egg", 5))
	removed := s.Remove(ctx, KeyRef("x"))

	assert.Equal(t, 1, removed)
	assert.Empty(t, s.Entries())
	assert.True(t, s.TotalPrice().IsZero())
	assert.Equal(t, 0, s.Count())
}

func TestRemove_ByKeyRemovesOnlyMatching(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.Add(ctx, product("a", "A", 1))
	s.Add(ctx, product("a", "A variant", 1))
	s.Add(ctx, product("b", "B", 1))
	loose, _ := s.Add(ctx, product("", "Loose", 1))

	assert.Equal(t, 2, s.Remove(ctx, KeyRef("a")))
	assert.Equal(t, 1, s.Remove(ctx, KeyRef(loose.BasketID)))

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ProductID("b"), entries[0].ID)
}

func TestRemove_NumericRefAsIndex(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.Add(ctx, product("a", "A", 1))
	s.Add(ctx, product("b", "B", 1))
	s.Add(ctx, product("c", "C", 1))

	assert.Equal(t, 1, s.Remove(ctx, NumericRef(1)))

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ProductID("a"), entries[0].ID)
	assert.Equal(t, domain.ProductID("c"), entries[1].ID)
}

func TestRemove_FloatSpelledIndex(t *testing.T) {
	for _, raw := range []string{`1e0`, `1.0`} {
		t.Run(raw, func(t *testing.T) {
			s := newTestStore()
			ctx := context.Background()
			s.Add(ctx, product("a", "A", 1))
			s.Add(ctx, product("b", "B", 1))
			s.Add(ctx, product("c", "C", 1))

			ref, err := ParseRef(json.RawMessage(raw))
			require.NoError(t, err)

			assert.Equal(t, 1, s.Remove(ctx, ref))
			entries := s.Entries()
			require.Len(t, entries, 2)
			assert.Equal(t, domain.ProductID("a"), entries[0].ID)
			assert.Equal(t, domain.ProductID("c"), entries[1].ID)
		})
	}
}

func TestRemove_NumericRefMatchingIDRemovesByID(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.Add(ctx, product("10", "Ten", 1))
	s.Add(ctx, product("1", "One", 1))
	s.Add(ctx, product("20", "Twenty", 1))

	// An entry carries id 1, so the number is read as an id and not as position 1.
	assert.Equal(t, 1, s.Remove(ctx, NumericRef(1)))

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ProductID("10"), entries[0].ID)
	assert.Equal(t, domain.ProductID("20"), entries[1].ID)
}

func TestRemove_NumericRefOutOfRange(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Add(ctx, product("a", "A", 1))

	assert.Equal(t, 0, s.Remove(ctx, NumericRef(5)))
	assert.Equal(t, 0, s.Remove(ctx, NumericRef(-1)))
	assert.Equal(t, 1, s.Len())
}

func TestRemove_EmptyKeyRemovesNothing(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Add(ctx, product("", "Loose", 1))

	assert.Equal(t, 0, s.Remove(ctx, KeyRef("")))
	assert.Equal(t, 1, s.Len())
}

func TestRemoveAt(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Add(ctx, product("1", "One", 1))
	s.Add(ctx, product("2", "Two", 1))

	// Unlike Remove, RemoveAt never reads the index as an id.
	assert.True(t, s.RemoveAt(ctx, 1))
	assert.False(t, s.RemoveAt(ctx, 3))

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ProductID("1"), entries[0].ID)
}

func TestRemoveByKey(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Add(ctx, product("1", "One", 1))
	s.Add(ctx, product("2", "Two", 1))

	assert.Equal(t, 1, s.RemoveByKey(ctx, "2"))
	assert.Equal(t, 0, s.RemoveByKey(ctx, "2"))
	assert.Equal(t, 1, s.Len())
}

// ============================================================================
// UpdateQuantity / aggregates
// ============================================================================

func TestUpdateQuantity_ByProductIDAndBasketID(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.Add(ctx, product("a1", "Milk", 10))
	loose, _ := s.Add(ctx, product("", "Loose", 3))

	assert.Equal(t, 1, s.UpdateQuantity(ctx, "a1", 4))
	assert.Equal(t, 1, s.UpdateQuantity(ctx, loose.BasketID, 2))

	assert.Equal(t, 6, s.Count())
	assert.True(t, decimal.NewFromInt(46).Equal(s.TotalPrice()))
}

func TestUpdateQuantity_NoValidation(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.Add(ctx, product("a1", "Milk", 10))
	s.Add(ctx, product("b1", "Bread", 5))

	s.UpdateQuantity(ctx, "a1", 0)
	s.UpdateQuantity(ctx, "b1", -2)

	assert.Equal(t, 2, s.Len(), "zero and negative quantities keep the entry")
	assert.Equal(t, -2, s.Count())
	assert.True(t, decimal.NewFromInt(-10).Equal(s.TotalPrice()))
}

func TestAggregates_ZeroQuantityAddsNothing(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.Add(ctx, product("a", "A", 4))
	s.Add(ctx, product("b", "B", 6))
	s.Add(ctx, product("c", "C", 10))
	s.UpdateQuantity(ctx, "b", 0)

	assert.Equal(t, 2, s.Count())
	assert.True(t, decimal.NewFromInt(14).Equal(s.TotalPrice()))
}

func TestUpdateQuantity_UnknownKey(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Add(ctx, product("a1", "Milk", 10))

	assert.Equal(t, 0, s.UpdateQuantity(ctx, "zzz", 9))
	assert.Equal(t, 1, s.Count())
}

func TestUpdateQuantity_ThenAddIncrements(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.Add(ctx, product("a1", "Milk", 10))
	s.UpdateQuantity(ctx, "a1", 5)
	entry, _ := s.Add(ctx, product("a1", "Milk", 10))

	assert.Equal(t, 6, entry.Quantity)
}

func TestTotalPrice_Decimals(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	s.Add(ctx, &domain.Product{ID: "a", Name: "A", Price: decimal.NewNullDecimal(decimal.RequireFromString("0.10"))})
	s.Add(ctx, &domain.Product{ID: "b", Name: "B", Price: decimal.NewNullDecimal(decimal.RequireFromString("0.20"))})

	assert.Equal(t, "0.3", s.TotalPrice().String())
}

func TestEmptyBasketAggregates(t *testing.T) {
	s := newTestStore()

	assert.True(t, s.TotalPrice().IsZero())
	assert.Equal(t, 0, s.Count())
	assert.NotNil(t, s.Entries())
}

func TestClear(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Add(ctx, product("a1", "Milk", 10))

	s.Clear(ctx)

	assert.Equal(t, 0, s.Len())
}

func TestEntries_ReturnsCopy(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	s.Add(ctx, product("a1", "Milk", 10))

	entries := s.Entries()
	entries[0].Quantity = 99

	assert.Equal(t, 1, s.Count())
}
