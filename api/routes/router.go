package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/siamgems/inventory-backend/api/controllers"
	"github.com/siamgems/inventory-backend/api/middleware"
	"github.com/siamgems/inventory-backend/internal/carts"
	"github.com/siamgems/inventory-backend/internal/customers"
	"github.com/siamgems/inventory-backend/internal/images"
	"github.com/siamgems/inventory-backend/internal/pairing"
	"github.com/siamgems/inventory-backend/internal/products"
	"github.com/siamgems/inventory-backend/pkg/config"
	"github.com/siamgems/inventory-backend/pkg/db"
	"github.com/siamgems/inventory-backend/pkg/logger"
	"github.com/siamgems/inventory-backend/pkg/redis"
	"github.com/siamgems/inventory-backend/pkg/storage/local"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	storeP local.Pinger,
	metricsRegistry *prometheus.Registry,
	productService products.Service,
	imageService images.Service,
	customerService customers.Service,
	cartService carts.Service,
	pairingService pairing.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient, storeP))
	})

	if metricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(productService, logg))
			r.Post("/", controllers.ProductCreate(productService, logg))
			r.Get("/lookup", controllers.ProductLookup(productService, logg))
			r.Post("/import", controllers.ProductImport(productService, cfg, logg))
			r.Get("/export", controllers.ProductExport(productService, logg))
			r.Post("/export", controllers.ProductExport(productService, logg))
			r.Post("/bulk-delete", controllers.ProductDeleteBatch(productService, logg))
			r.Delete("/", controllers.ProductDeleteAll(productService, logg))
			r.Get("/{productId}", controllers.ProductDetail(productService, logg))
			r.Put("/{productId}", controllers.ProductUpdate(productService, logg))
			r.Delete("/{productId}", controllers.ProductDelete(productService, logg))
		})

		r.Route("/images", func(r chi.Router) {
			r.Get("/", controllers.ImageList(imageService, logg))
			r.Get("/unlinked", controllers.ImageUnlinkedList(imageService, logg))
			r.Post("/upload", controllers.ImageUpload(imageService, cfg, logg))
			r.Post("/actions", controllers.ImageAction(imageService, logg))
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", controllers.CustomerList(customerService, logg))
			r.Post("/", controllers.CustomerCreate(customerService, logg))
			r.Get("/locked", controllers.CustomerLockedSummary(customerService, logg))
			r.Post("/bulk-delete", controllers.CustomerDeleteBatch(customerService, logg))
			r.Post("/bulk-lock", controllers.CustomerLockBatch(customerService, logg))
			r.Route("/{customerId}", func(r chi.Router) {
				r.Get("/", controllers.CustomerDetail(customerService, cartService, logg))
				r.Put("/", controllers.CustomerUpdate(customerService, logg))
				r.Delete("/", controllers.CustomerDelete(customerService, logg))
				r.Post("/lock", controllers.CustomerLock(customerService, logg))

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", controllers.CartFetch(cartService, logg))
					r.Post("/actions", controllers.CartAction(cartService, logg))
					r.Get("/print", controllers.CartPrint(cartService, logg))
					r.Get("/export", controllers.CartExport(cartService, logg))
					r.Post("/import", controllers.CartImport(cartService, cfg, logg))
				})
			})
		})

		r.Post("/cart/broadcast", controllers.CartBroadcast(cartService, logg))

		r.Route("/pairing-sets", func(r chi.Router) {
			r.Get("/", controllers.PairingSetList(pairingService, logg))
			r.Post("/", controllers.PairingSetCreate(pairingService, logg))
			r.Post("/bulk-delete", controllers.PairingSetDeleteBatch(pairingService, logg))
			r.Post("/import", controllers.PairingSetImport(pairingService, cfg, logg))
			r.Get("/export", controllers.PairingSetExport(pairingService, logg))
			r.Delete("/{pairingSetId}", controllers.PairingSetDelete(pairingService, logg))
		})
	})

	return r
}
