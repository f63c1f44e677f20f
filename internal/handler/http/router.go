package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dyagdi/PriceLess/internal/service"
	apperrors "github.com/dyagdi/PriceLess/pkg/errors"
	"github.com/dyagdi/PriceLess/pkg/health"
	"github.com/dyagdi/PriceLess/pkg/httputil"
	"github.com/dyagdi/PriceLess/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the router.
const ServiceName = "storefront"

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	svc *service.StorefrontService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cors middleware.CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cors))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, r, apperrors.NotFound("route", r.URL.Path), logger)
	})

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	basketHandler := NewBasketHandler(svc, logger)
	favoritesHandler := NewFavoritesHandler(svc, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(SessionFromHeader)

		r.Route("/basket", func(r chi.Router) {
			r.Get("/", basketHandler.GetBasket)
			r.Delete("/", basketHandler.ClearBasket)
			r.Get("/summary", basketHandler.GetSummary)
			r.Post("/items", basketHandler.AddItem)
			r.Delete("/items/{key}", basketHandler.RemoveByKey)
			r.Put("/items/{key}/quantity", basketHandler.UpdateQuantity)
			r.Delete("/positions/{index}", basketHandler.RemoveAt)
			r.Post("/remove", basketHandler.Remove)
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", favoritesHandler.ListFavorites)
			r.Delete("/", favoritesHandler.ClearFavorites)
			r.Post("/toggle", favoritesHandler.Toggle)
			r.Post("/check", favoritesHandler.Check)
		})

		r.Delete("/session", favoritesHandler.ResetSession)
	})

	return r
}
