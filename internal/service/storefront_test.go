package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dyagdi/PriceLess/internal/basket"
	"github.com/dyagdi/PriceLess/internal/domain"
	"github.com/dyagdi/PriceLess/internal/event"
	"github.com/dyagdi/PriceLess/internal/favorites"
	"github.com/dyagdi/PriceLess/internal/session"
	"github.com/dyagdi/PriceLess/internal/storage"
	"github.com/dyagdi/PriceLess/internal/storage/memory"
	apperrors "github.com/dyagdi/PriceLess/pkg/errors"
)

// --- Mock Publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishBasketUpdated(ctx context.Context, sessionID string, snap event.BasketSnapshot) error {
	return m.Called(ctx, sessionID, snap).Error(0)
}

func (m *mockPublisher) PublishBasketCleared(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockPublisher) PublishFavoriteToggled(ctx context.Context, sessionID string, entry domain.FavoriteEntry, favorite bool, count int) error {
	return m.Called(ctx, sessionID, entry, favorite, count).Error(0)
}

func (m *mockPublisher) PublishFavoritesCleared(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

// --- Failing storage ---

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (failingKV) Set(context.Context, string, string) error       { return errors.New("disk full") }
func (failingKV) Delete(context.Context, string) error            { return errors.New("disk full") }

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(t *testing.T, kv storage.KV, pub event.Publisher) *StorefrontService {
	t.Helper()
	reg := session.NewRegistry(kv, newTestLogger(),
		session.WithFavoritesOptions(favorites.WithPersistErrorHook(PersistFailureHook)),
	)
	return NewStorefrontService(reg, pub, newTestLogger())
}

func product(id, name, price string) *domain.Product {
	p := &domain.Product{ID: domain.ProductID(id), Name: name}
	if price != "" {
		p.Price = decimal.NewNullDecimal(decimal.RequireFromString(price))
	}
	return p
}

func snapshotWith(action string, count int, total string) any {
	return mock.MatchedBy(func(s event.BasketSnapshot) bool {
		return s.Action == action && s.Count == count && s.Total == total
	})
}

// ============================================================================
// Session handling
// ============================================================================

func TestService_EmptySessionIDRejected(t *testing.T) {
	svc := newTestService(t, memory.New(), event.Noop{})
	ctx := context.Background()

	_, err := svc.GetBasket(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = svc.ToggleFavorite(ctx, "", product("1", "Milk", "10"))
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = svc.ResetSession(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestService_SessionsAreIsolated(t *testing.T) {
	svc := newTestService(t, memory.New(), event.Noop{})
	ctx := context.Background()

	_, err := svc.AddToBasket(ctx, "a", product("1", "Milk", "10"))
	require.NoError(t, err)

	view, err := svc.GetBasket(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, view.Entries)
	assert.True(t, view.Total.IsZero())
}

func TestService_ResetSessionKeepsFavorites(t *testing.T) {
	svc := newTestService(t, memory.New(), event.Noop{})
	ctx := context.Background()

	_, err := svc.AddToBasket(ctx, "a", product("1", "Milk", "10"))
	require.NoError(t, err)
	_, err = svc.ToggleFavorite(ctx, "a", product("2", "Bread", "5"))
	require.NoError(t, err)

	existed, err := svc.ResetSession(ctx, "a")
	require.NoError(t, err)
	assert.True(t, existed)

	view, _ := svc.GetBasket(ctx, "a")
	assert.Empty(t, view.Entries)

	favs, _ := svc.ListFavorites(ctx, "a")
	require.Len(t, favs, 1)
	assert.Equal(t, "Bread", favs[0].Name)

	existed, _ = svc.ResetSession(ctx, "never-seen")
	assert.False(t, existed)
}

// ============================================================================
// Basket
// ============================================================================

func TestService_AddToBasket_PublishesAndCounts(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishBasketUpdated", mock.Anything, "s1", snapshotWith(OpAdd, 1, "10.5")).Return(nil).Once()
	pub.On("PublishBasketUpdated", mock.Anything, "s1", snapshotWith(OpAdd, 2, "21")).Return(nil).Once()

	svc := newTestService(t, memory.New(), pub)
	before := testutil.ToFloat64(basketOperations.WithLabelValues(OpAdd))

	res, err := svc.AddToBasket(context.Background(), "s1", product("p1", "Milk", "10.5"))
	require.NoError(t, err)
	require.NotNil(t, res.Entry)
	assert.Equal(t, 1, res.Entry.Quantity)

	res, err = svc.AddToBasket(context.Background(), "s1", product("p1", "Milk", "10.5"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Entry.Quantity)
	assert.Len(t, res.Basket.Entries, 1)
	assert.Equal(t, 2, res.Basket.Count)
	assert.True(t, decimal.RequireFromString("21").Equal(res.Basket.Total))

	pub.AssertExpectations(t)
	assert.Equal(t, before+2, testutil.ToFloat64(basketOperations.WithLabelValues(OpAdd)))
}

func TestService_AddToBasket_NilProductIsNoop(t *testing.T) {
	pub := new(mockPublisher)
	svc := newTestService(t, memory.New(), pub)

	res, err := svc.AddToBasket(context.Background(), "s1", nil)

	require.NoError(t, err)
	assert.Nil(t, res.Entry)
	assert.Empty(t, res.Basket.Entries)
	pub.AssertNotCalled(t, "PublishBasketUpdated", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_AddToBasket_PublishFailureIsNotFatal(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishBasketUpdated", mock.Anything, "s1", mock.Anything).Return(errors.New("broker down"))

	svc := newTestService(t, memory.New(), pub)
	res, err := svc.AddToBasket(context.Background(), "s1", product("p1", "Milk", "3"))

	require.NoError(t, err)
	assert.Equal(t, 1, res.Basket.Count)
}

func TestService_RemoveFromBasket_DualMode(t *testing.T) {
	svc := newTestService(t, memory.New(), event.Noop{})
	ctx := context.Background()

	_, _ = svc.AddToBasket(ctx, "s1", product("7", "Milk", "1"))
	_, _ = svc.AddToBasket(ctx, "s1", product("x", "Eggs", "2"))
	_, _ = svc.AddToBasket(ctx, "s1", product("y", "Tea", "3"))

	// 7 is an id, so it removes by key rather than position.
	res, err := svc.RemoveFromBasket(ctx, "s1", basket.NumericRef(7))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)
	require.Len(t, res.Basket.Entries, 2)

	// 1 is no entry's id, so it removes position 1.
	res, err = svc.RemoveFromBasket(ctx, "s1", basket.NumericRef(1))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)
	require.Len(t, res.Basket.Entries, 1)
	assert.Equal(t, "Eggs", res.Basket.Entries[0].Name)

	res, err = svc.RemoveFromBasket(ctx, "s1", basket.KeyRef("x"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)
	assert.Empty(t, res.Basket.Entries)
}

func TestService_RemoveNothingDoesNotPublish(t *testing.T) {
	pub := new(mockPublisher)
	svc := newTestService(t, memory.New(), pub)
	ctx := context.Background()

	res, err := svc.RemoveFromBasketByKey(ctx, "s1", "missing")
	require.NoError(t, err)
	assert.Zero(t, res.Affected)

	res, err = svc.RemoveFromBasketAt(ctx, "s1", 4)
	require.NoError(t, err)
	assert.Zero(t, res.Affected)

	pub.AssertNotCalled(t, "PublishBasketUpdated", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_RemoveFromBasketAt(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishBasketUpdated", mock.Anything, "s1", mock.Anything).Return(nil)

	svc := newTestService(t, memory.New(), pub)
	ctx := context.Background()
	_, _ = svc.AddToBasket(ctx, "s1", product("a", "Milk", "1"))
	_, _ = svc.AddToBasket(ctx, "s1", product("b", "Eggs", "2"))

	res, err := svc.RemoveFromBasketAt(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)
	require.Len(t, res.Basket.Entries, 1)
	assert.Equal(t, "Eggs", res.Basket.Entries[0].Name)
}

func TestService_UpdateQuantity(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishBasketUpdated", mock.Anything, "s1", snapshotWith(OpAdd, 1, "4")).Return(nil).Once()
	pub.On("PublishBasketUpdated", mock.Anything, "s1", snapshotWith(OpUpdateQuantity, 5, "20")).Return(nil).Once()

	svc := newTestService(t, memory.New(), pub)
	ctx := context.Background()
	_, _ = svc.AddToBasket(ctx, "s1", product("a", "Milk", "4"))

	res, err := svc.UpdateQuantity(ctx, "s1", "a", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)
	assert.Equal(t, 5, res.Basket.Count)

	res, err = svc.UpdateQuantity(ctx, "s1", "zzz", 9)
	require.NoError(t, err)
	assert.Zero(t, res.Affected)

	pub.AssertExpectations(t)
}

func TestService_UpdateQuantity_AcceptsNegative(t *testing.T) {
	svc := newTestService(t, memory.New(), event.Noop{})
	ctx := context.Background()
	_, _ = svc.AddToBasket(ctx, "s1", product("a", "Milk", "4"))

	res, err := svc.UpdateQuantity(ctx, "s1", "a", -2)
	require.NoError(t, err)
	assert.Equal(t, -2, res.Basket.Count)
	assert.True(t, decimal.NewFromInt(-8).Equal(res.Basket.Total))
}

func TestService_ClearBasket(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishBasketUpdated", mock.Anything, "s1", mock.Anything).Return(nil)
	pub.On("PublishBasketCleared", mock.Anything, "s1").Return(nil).Once()

	svc := newTestService(t, memory.New(), pub)
	ctx := context.Background()
	_, _ = svc.AddToBasket(ctx, "s1", product("a", "Milk", "4"))
	before := testutil.ToFloat64(basketOperations.WithLabelValues(OpClear))

	require.NoError(t, svc.ClearBasket(ctx, "s1"))

	summary, err := svc.GetBasketSummary(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, summary.Count)
	assert.True(t, summary.Total.IsZero())
	assert.Equal(t, before+1, testutil.ToFloat64(basketOperations.WithLabelValues(OpClear)))
	pub.AssertExpectations(t)
}

// ============================================================================
// Favorites
// ============================================================================

func TestService_ToggleFavorite(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishFavoriteToggled", mock.Anything, "s1", mock.Anything, true, 1).Return(nil).Once()
	pub.On("PublishFavoriteToggled", mock.Anything, "s1", mock.Anything, false, 0).Return(nil).Once()

	kv := memory.New()
	svc := newTestService(t, kv, pub)
	ctx := context.Background()
	milk := product("p1", "Milk", "10")

	res, err := svc.ToggleFavorite(ctx, "s1", milk)
	require.NoError(t, err)
	assert.True(t, res.Favorite)
	assert.Equal(t, 1, res.Count)

	fav, err := svc.IsFavorite(ctx, "s1", milk)
	require.NoError(t, err)
	assert.True(t, fav)

	_, found, _ := kv.Get(ctx, "storefront:s1:favorites")
	assert.True(t, found)

	res, err = svc.ToggleFavorite(ctx, "s1", milk)
	require.NoError(t, err)
	assert.False(t, res.Favorite)
	assert.Zero(t, res.Count)

	pub.AssertExpectations(t)
}

func TestService_ToggleFavorite_NilProduct(t *testing.T) {
	pub := new(mockPublisher)
	svc := newTestService(t, memory.New(), pub)

	res, err := svc.ToggleFavorite(context.Background(), "s1", nil)

	require.NoError(t, err)
	assert.False(t, res.Favorite)
	pub.AssertNotCalled(t, "PublishFavoriteToggled", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_ClearFavorites(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishFavoriteToggled", mock.Anything, "s1", mock.Anything, true, 1).Return(nil)
	pub.On("PublishFavoritesCleared", mock.Anything, "s1").Return(nil).Once()

	kv := memory.New()
	svc := newTestService(t, kv, pub)
	ctx := context.Background()
	_, _ = svc.ToggleFavorite(ctx, "s1", product("p1", "Milk", "10"))

	require.NoError(t, svc.ClearFavorites(ctx, "s1"))

	favs, _ := svc.ListFavorites(ctx, "s1")
	assert.Empty(t, favs)
	_, found, _ := kv.Get(ctx, "storefront:s1:favorites")
	assert.False(t, found)
	pub.AssertExpectations(t)
}

func TestService_PersistFailuresAreCounted(t *testing.T) {
	svc := newTestService(t, failingKV{}, event.Noop{})
	ctx := context.Background()
	toggleBefore := testutil.ToFloat64(favoritesPersistFailures.WithLabelValues("toggle"))
	clearBefore := testutil.ToFloat64(favoritesPersistFailures.WithLabelValues("clear"))

	res, err := svc.ToggleFavorite(ctx, "s1", product("p1", "Milk", "10"))
	require.NoError(t, err)
	assert.True(t, res.Favorite, "in-memory state still changes when storage fails")

	require.NoError(t, svc.ClearFavorites(ctx, "s1"))

	assert.Equal(t, toggleBefore+1, testutil.ToFloat64(favoritesPersistFailures.WithLabelValues("toggle")))
	assert.Equal(t, clearBefore+1, testutil.ToFloat64(favoritesPersistFailures.WithLabelValues("clear")))
}

func TestNewStorefrontService_NilPublisherUsesNoop(t *testing.T) {
	reg := session.NewRegistry(memory.New(), newTestLogger())
	svc := NewStorefrontService(reg, nil, newTestLogger())

	_, err := svc.AddToBasket(context.Background(), "s1", product("a", "Milk", "1"))
	assert.NoError(t, err)
}
