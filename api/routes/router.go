package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keyward/licensing-backend/api/controllers"
	"github.com/keyward/licensing-backend/api/middleware"
	"github.com/keyward/licensing-backend/internal/activations"
	"github.com/keyward/licensing-backend/internal/brands"
	"github.com/keyward/licensing-backend/internal/licenses"
	"github.com/keyward/licensing-backend/pkg/config"
	"github.com/keyward/licensing-backend/pkg/db"
	"github.com/keyward/licensing-backend/pkg/logger"
	"github.com/keyward/licensing-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	brandResolver *brands.Resolver,
	licenseService licenses.Service,
	activationService activations.Service,
	gatherer prometheus.Gatherer,
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
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/brand", func(r chi.Router) {
		r.Use(middleware.BrandAuth(brandResolver, logg))
		r.Route("/licenses", func(r chi.Router) {
			r.Post("/", controllers.BrandProvisionLicenses(licenseService, logg))
			r.Get("/", controllers.BrandListLicenses(licenseService, logg))
			r.Patch("/{licenseId}", controllers.BrandUpdateLicense(licenseService, logg))
		})
	})

	r.Route("/api/v1/product/licenses", func(r chi.Router) {
		r.Post("/activate", controllers.ProductActivate(activationService, logg))
		r.Post("/deactivate", controllers.ProductDeactivate(activationService, logg))
		r.Get("/check", controllers.ProductCheckStatus(activationService, logg))
	})

	return r
}
