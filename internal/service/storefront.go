// Package service runs storefront operations against a client's session and
// reports each change as an event and a metric.
package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/dyagdi/PriceLess/internal/basket"
	"github.com/dyagdi/PriceLess/internal/domain"
	"github.com/dyagdi/PriceLess/internal/event"
	"github.com/dyagdi/PriceLess/internal/session"
	apperrors "github.com/dyagdi/PriceLess/pkg/errors"
	"github.com/dyagdi/PriceLess/pkg/logger"
)

// Basket operation labels, also used as the action of basket.updated events.
const (
	OpAdd            = "add"
	OpRemove         = "remove"
	OpUpdateQuantity = "update_quantity"
	OpClear          = "clear"
	OpToggle         = "toggle"
)

// BasketView is the basket as the storefront renders it.
type BasketView struct {
	Entries []domain.BasketEntry `json:"entries"`
	Total   decimal.Decimal      `json:"total"`
	Count   int                  `json:"count"`
}

// BasketSummary feeds the basket badge.
type BasketSummary struct {
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// AddResult is the outcome of AddToBasket.
type AddResult struct {
	Entry  *domain.BasketEntry `json:"entry,omitempty"`
	Basket BasketView          `json:"basket"`
}

// RemoveResult is the outcome of the removal and quantity operations.
// Affected counts removed or updated entries.
type RemoveResult struct {
	Affected int        `json:"affected"`
	Basket   BasketView `json:"basket"`
}

// ToggleResult is the outcome of ToggleFavorite.
type ToggleResult struct {
	Favorite bool                 `json:"favorite"`
	Entry    domain.FavoriteEntry `json:"entry"`
	Count    int                  `json:"count"`
}

// StorefrontService implements the storefront operations.
type StorefrontService struct {
	sessions *session.Registry
	events   event.Publisher
	logger   *slog.Logger
}

// NewStorefrontService creates a storefront service.
func NewStorefrontService(sessions *session.Registry, events event.Publisher, logger *slog.Logger) *StorefrontService {
	if events == nil {
		events = event.Noop{}
	}
	return &StorefrontService{
		sessions: sessions,
		events:   events,
		logger:   logger,
	}
}

func (s *StorefrontService) session(ctx context.Context, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, apperrors.Unauthorized("session id is required")
	}
	return s.sessions.Get(ctx, sessionID), nil
}

func (s *StorefrontService) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, s.logger)
}

// ============================================================================
// Basket
// ============================================================================

// GetBasket returns the entries, total and item count of the basket.
func (s *StorefrontService) GetBasket(ctx context.Context, sessionID string) (BasketView, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return BasketView{}, err
	}
	return viewOf(sess.Basket), nil
}

// GetBasketSummary returns only the total and item count.
func (s *StorefrontService) GetBasketSummary(ctx context.Context, sessionID string) (BasketSummary, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return BasketSummary{}, err
	}
	return BasketSummary{Total: sess.Basket.TotalPrice(), Count: sess.Basket.Count()}, nil
}

// AddToBasket adds p to the basket. A nil product leaves the basket unchanged
// and the result has no entry.
func (s *StorefrontService) AddToBasket(ctx context.Context, sessionID string, p *domain.Product) (AddResult, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return AddResult{}, err
	}

	entry, ok := sess.Basket.Add(ctx, p)
	if !ok {
		return AddResult{Basket: viewOf(sess.Basket)}, nil
	}

	view := viewOf(sess.Basket)
	s.basketChanged(ctx, sessionID, OpAdd, view)
	s.log(ctx).InfoContext(ctx, "product added to basket",
		slog.String("basket_id", entry.BasketID),
		slog.String("product_id", string(entry.ID)),
		slog.Int("quantity", entry.Quantity),
	)
	return AddResult{Entry: &entry, Basket: view}, nil
}

// RemoveFromBasket removes entries named by ref. A numeric ref that is not
// the id of any entry is read as a position; any other ref removes every
// entry whose basket id or product id equals it.
func (s *StorefrontService) RemoveFromBasket(ctx context.Context, sessionID string, ref basket.Ref) (RemoveResult, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return RemoveResult{}, err
	}
	return s.afterRemove(ctx, sessionID, sess, ref.String(), sess.Basket.Remove(ctx, ref)), nil
}

// RemoveFromBasketByKey removes every entry whose basket id or product id is key.
func (s *StorefrontService) RemoveFromBasketByKey(ctx context.Context, sessionID, key string) (RemoveResult, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return RemoveResult{}, err
	}
	return s.afterRemove(ctx, sessionID, sess, key, sess.Basket.RemoveByKey(ctx, key)), nil
}

// RemoveFromBasketAt removes the entry at index. Out-of-range indexes are
// ignored.
func (s *StorefrontService) RemoveFromBasketAt(ctx context.Context, sessionID string, index int) (RemoveResult, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return RemoveResult{}, err
	}
	removed := 0
	if sess.Basket.RemoveAt(ctx, index) {
		removed = 1
	}
	return s.afterRemove(ctx, sessionID, sess, basket.NumericRef(index).String(), removed), nil
}

func (s *StorefrontService) afterRemove(ctx context.Context, sessionID string, sess *session.Session, ref string, removed int) RemoveResult {
	view := viewOf(sess.Basket)
	if removed == 0 {
		s.log(ctx).DebugContext(ctx, "basket remove matched nothing", slog.String("ref", ref))
		return RemoveResult{Basket: view}
	}

	s.basketChanged(ctx, sessionID, OpRemove, view)
	s.log(ctx).InfoContext(ctx, "removed from basket",
		slog.String("ref", ref),
		slog.Int("removed", removed),
	)
	return RemoveResult{Affected: removed, Basket: view}
}

// UpdateQuantity sets the quantity of every entry matching key. The quantity
// is not range checked.
func (s *StorefrontService) UpdateQuantity(ctx context.Context, sessionID, key string, quantity int) (RemoveResult, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return RemoveResult{}, err
	}

	updated := sess.Basket.UpdateQuantity(ctx, key, quantity)
	view := viewOf(sess.Basket)
	if updated == 0 {
		return RemoveResult{Basket: view}, nil
	}

	s.basketChanged(ctx, sessionID, OpUpdateQuantity, view)
	s.log(ctx).InfoContext(ctx, "basket quantity updated",
		slog.String("key", key),
		slog.Int("quantity", quantity),
		slog.Int("updated", updated),
	)
	return RemoveResult{Affected: updated, Basket: view}, nil
}

// ClearBasket empties the basket.
func (s *StorefrontService) ClearBasket(ctx context.Context, sessionID string) error {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return err
	}

	sess.Basket.Clear(ctx)
	basketOperations.WithLabelValues(OpClear).Inc()

	if err := s.events.PublishBasketCleared(ctx, sessionID); err != nil {
		s.log(ctx).ErrorContext(ctx, "failed to publish basket.cleared event",
			slog.String("error", err.Error()),
		)
	}
	s.log(ctx).InfoContext(ctx, "basket cleared")
	return nil
}

func (s *StorefrontService) basketChanged(ctx context.Context, sessionID, op string, view BasketView) {
	basketOperations.WithLabelValues(op).Inc()

	snap := event.BasketSnapshot{
		Action:  op,
		Entries: view.Entries,
		Count:   view.Count,
		Total:   view.Total.String(),
	}
	if err := s.events.PublishBasketUpdated(ctx, sessionID, snap); err != nil {
		s.log(ctx).ErrorContext(ctx, "failed to publish basket.updated event",
			slog.String("action", op),
			slog.String("error", err.Error()),
		)
	}
}

func viewOf(b *basket.Store) BasketView {
	return BasketView{
		Entries: b.Entries(),
		Total:   b.TotalPrice(),
		Count:   b.Count(),
	}
}

// ============================================================================
// Favorites
// ============================================================================

// ListFavorites returns the favorites in insertion order.
func (s *StorefrontService) ListFavorites(ctx context.Context, sessionID string) ([]domain.FavoriteEntry, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Favorites.Entries(), nil
}

// IsFavorite reports whether p is in the favorites.
func (s *StorefrontService) IsFavorite(ctx context.Context, sessionID string, p *domain.Product) (bool, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return sess.Favorites.IsFavorite(p), nil
}

// ToggleFavorite adds p to the favorites or removes it when already present.
// A nil product is ignored.
func (s *StorefrontService) ToggleFavorite(ctx context.Context, sessionID string, p *domain.Product) (ToggleResult, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return ToggleResult{}, err
	}
	if p == nil {
		return ToggleResult{Count: sess.Favorites.Len()}, nil
	}

	entry, added := sess.Favorites.Toggle(ctx, p)
	count := sess.Favorites.Len()
	favoritesOperations.WithLabelValues(OpToggle).Inc()

	if err := s.events.PublishFavoriteToggled(ctx, sessionID, entry, added, count); err != nil {
		s.log(ctx).ErrorContext(ctx, "failed to publish favorites.updated event",
			slog.String("error", err.Error()),
		)
	}
	s.log(ctx).InfoContext(ctx, "favorite toggled",
		slog.String("product_id", string(entry.ID)),
		slog.Bool("favorite", added),
		slog.Int("favorites", count),
	)
	return ToggleResult{Favorite: added, Entry: entry, Count: count}, nil
}

// ClearFavorites empties the favorites and removes the stored record.
func (s *StorefrontService) ClearFavorites(ctx context.Context, sessionID string) error {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return err
	}

	sess.Favorites.Clear(ctx)
	favoritesOperations.WithLabelValues(OpClear).Inc()

	if err := s.events.PublishFavoritesCleared(ctx, sessionID); err != nil {
		s.log(ctx).ErrorContext(ctx, "failed to publish favorites.cleared event",
			slog.String("error", err.Error()),
		)
	}
	s.log(ctx).InfoContext(ctx, "favorites cleared")
	return nil
}

// ============================================================================
// Session
// ============================================================================

// ResetSession drops the in-memory session. The basket is lost; favorites are
// re-read from storage on the next request. It reports whether a session
// existed.
func (s *StorefrontService) ResetSession(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, apperrors.Unauthorized("session id is required")
	}
	dropped := s.sessions.Drop(sessionID)
	s.log(ctx).InfoContext(ctx, "session reset", slog.Bool("existed", dropped))
	return dropped, nil
}
