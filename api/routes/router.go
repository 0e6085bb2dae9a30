package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/abcxyz-forecast/api/controllers"
	abcxyzcontrollers "github.com/angelmondragon/abcxyz-forecast/api/controllers/abcxyz"
	forecastcontrollers "github.com/angelmondragon/abcxyz-forecast/api/controllers/forecast"
	"github.com/angelmondragon/abcxyz-forecast/api/middleware"
	"github.com/angelmondragon/abcxyz-forecast/internal/abcxyz"
	"github.com/angelmondragon/abcxyz-forecast/internal/forecast"
	"github.com/angelmondragon/abcxyz-forecast/pkg/config"
	"github.com/angelmondragon/abcxyz-forecast/pkg/db"
	"github.com/angelmondragon/abcxyz-forecast/pkg/enums"
	"github.com/angelmondragon/abcxyz-forecast/pkg/logger"
	"github.com/angelmondragon/abcxyz-forecast/pkg/redis"
)

// NewRouter wires every HTTP route. redisClient and gatherer are optional.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	abcxyzService abcxyz.Service,
	forecastService forecast.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	// typed nil pointers must not leak into the interfaces below
	var redisP controllers.Pinger
	var limiter middleware.RateLimitStore
	if redisClient != nil {
		redisP = redisClient
		limiter = redisClient
	}

	uploadPolicy := middleware.NewRateLimitPolicy("abcxyz-import", cfg.RateLimit.Window, cfg.RateLimit.UploadLimit)
	forecastPolicy := middleware.NewRateLimitPolicy("forecast", cfg.RateLimit.Window, cfg.RateLimit.ForecastLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAnyRole(logg, enums.RoleAdmin, enums.RoleUser))

		r.Route("/abcxyz", func(r chi.Router) {
			r.Get("/precheck", abcxyzcontrollers.Precheck(abcxyzService, logg))
			r.Get("/template", abcxyzcontrollers.Template(abcxyzService, logg))
			r.Post("/run", abcxyzcontrollers.Run(abcxyzService, logg))
			r.With(middleware.RateLimit(uploadPolicy, limiter, logg)).
				Post("/import", abcxyzcontrollers.Import(abcxyzService, cfg.App.MaxUploadBytes(), logg))
			r.Get("/last", abcxyzcontrollers.Last(abcxyzService, logg))
			r.Get("/results/{resultId}", abcxyzcontrollers.Result(abcxyzService, logg))
			r.Get("/config", abcxyzcontrollers.GetConfig(abcxyzService, logg))
			r.Put("/config", abcxyzcontrollers.UpdateConfig(abcxyzService, logg))
		})

		r.Route("/forecasts", func(r chi.Router) {
			r.With(middleware.RateLimit(forecastPolicy, limiter, logg)).
				Post("/", forecastcontrollers.Create(forecastService, logg))
			r.Get("/model", forecastcontrollers.Model(forecastService, logg))
			r.Get("/runs", forecastcontrollers.ListRuns(forecastService, logg))
			r.Get("/runs/{runId}", forecastcontrollers.GetRun(forecastService, logg))
			r.With(middleware.RequireAnyRole(logg, enums.RoleAdmin)).
				Delete("/runs/{runId}", forecastcontrollers.DeleteRun(forecastService, logg))
		})
	})

	return r
}
