package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dyagdi/PriceLess/internal/domain"
	pkgkafka "github.com/dyagdi/PriceLess/pkg/kafka"
	"github.com/dyagdi/PriceLess/pkg/logger"
)

// Kafka topics for storefront session events.
var (
	TopicBasketUpdated    = pkgkafka.Topic("basket", "updated")
	TopicBasketCleared    = pkgkafka.Topic("basket", "cleared")
	TopicFavoritesUpdated = pkgkafka.Topic("favorites", "updated")
	TopicFavoritesCleared = pkgkafka.Topic("favorites", "cleared")
)

// Aggregate types.
const (
	AggregateTypeBasket    = "basket"
	AggregateTypeFavorites = "favorites"
)

// SourceStorefront identifies events emitted by this service.
const SourceStorefront = "storefront-service"

// BasketUpdatedData is the payload of a basket.updated event.
type BasketUpdatedData struct {
	SessionID string           `json:"session_id"`
	Action    string           `json:"action"`
	Items     []BasketItemData `json:"items"`
	Count     int              `json:"count"`
	Total     string           `json:"total"`
}

// BasketItemData is one basket line within an event.
type BasketItemData struct {
	ProductID string `json:"product_id,omitempty"`
	BasketID  string `json:"basket_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
}

// FavoritesUpdatedData is the payload of a favorites.updated event.
type FavoritesUpdatedData struct {
	SessionID string `json:"session_id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Favorite  bool   `json:"favorite"`
	Count     int    `json:"count"`
}

// SessionData is the payload of the cleared events.
type SessionData struct {
	SessionID string `json:"session_id"`
}

// BasketSnapshot is what a basket.updated event reports.
type BasketSnapshot struct {
	Action  string
	Entries []domain.BasketEntry
	Count   int
	Total   string
}

// Publisher is the event sink the service layer depends on.
type Publisher interface {
	PublishBasketUpdated(ctx context.Context, sessionID string, snap BasketSnapshot) error
	PublishBasketCleared(ctx context.Context, sessionID string) error
	PublishFavoriteToggled(ctx context.Context, sessionID string, entry domain.FavoriteEntry, favorite bool, count int) error
	PublishFavoritesCleared(ctx context.Context, sessionID string) error
}

// EnvelopePublisher writes an envelope to a topic. *pkgkafka.Producer
// implements it.
type EnvelopePublisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront events to Kafka.
type Producer struct {
	kafka EnvelopePublisher
	log   *slog.Logger
}

// NewProducer creates an event producer.
func NewProducer(kafka EnvelopePublisher, log *slog.Logger) *Producer {
	return &Producer{
		kafka: kafka,
		log:   log,
	}
}

// PublishBasketUpdated publishes a basket.updated event.
func (p *Producer) PublishBasketUpdated(ctx context.Context, sessionID string, snap BasketSnapshot) error {
	items := make([]BasketItemData, len(snap.Entries))
	for i, e := range snap.Entries {
		items[i] = BasketItemData{
			ProductID: string(e.ID),
			BasketID:  e.BasketID,
			Name:      e.Name,
			Price:     e.Price.Decimal.String(),
			Quantity:  e.Quantity,
		}
	}

	data := BasketUpdatedData{
		SessionID: sessionID,
		Action:    snap.Action,
		Items:     items,
		Count:     snap.Count,
		Total:     snap.Total,
	}
	return p.publish(ctx, TopicBasketUpdated, sessionID, AggregateTypeBasket, data)
}

// PublishBasketCleared publishes a basket.cleared event.
func (p *Producer) PublishBasketCleared(ctx context.Context, sessionID string) error {
	return p.publish(ctx, TopicBasketCleared, sessionID, AggregateTypeBasket, SessionData{SessionID: sessionID})
}

// PublishFavoriteToggled publishes a favorites.updated event.
func (p *Producer) PublishFavoriteToggled(ctx context.Context, sessionID string, entry domain.FavoriteEntry, favorite bool, count int) error {
	data := FavoritesUpdatedData{
		SessionID: sessionID,
		ProductID: string(entry.ID),
		Name:      entry.Name,
		Favorite:  favorite,
		Count:     count,
	}
	return p.publish(ctx, TopicFavoritesUpdated, sessionID, AggregateTypeFavorites, data)
}

// PublishFavoritesCleared publishes a favorites.cleared event.
func (p *Producer) PublishFavoritesCleared(ctx context.Context, sessionID string) error {
	return p.publish(ctx, TopicFavoritesCleared, sessionID, AggregateTypeFavorites, SessionData{SessionID: sessionID})
}

func (p *Producer) publish(ctx context.Context, topic, sessionID, aggregateType string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, sessionID, aggregateType, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.log.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("session_id", sessionID),
	)
	return nil
}

// Noop discards events. It is used when publishing is disabled.
type Noop struct{}

func (Noop) PublishBasketUpdated(context.Context, string, BasketSnapshot) error { return nil }
func (Noop) PublishBasketCleared(context.Context, string) error                 { return nil }
func (Noop) PublishFavoriteToggled(context.Context, string, domain.FavoriteEntry, bool, int) error {
	return nil
}
func (Noop) PublishFavoritesCleared(context.Context, string) error { return nil }
