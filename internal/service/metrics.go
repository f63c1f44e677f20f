package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	basketOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_basket_operations_total",
			Help: "Basket operations that changed a basket",
		},
		[]string{"op"},
	)

	favoritesOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_favorites_operations_total",
			Help: "Favorites operations that changed a favorites list",
		},
		[]string{"op"},
	)

	favoritesPersistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_favorites_persist_failures_total",
			Help: "Favorites writes that storage rejected",
		},
		[]string{"op"},
	)
)

// PersistFailureHook counts favorites persistence failures. Pass it to
// favorites.WithPersistErrorHook.
func PersistFailureHook(op string, _ error) {
	favoritesPersistFailures.WithLabelValues(op).Inc()
}
