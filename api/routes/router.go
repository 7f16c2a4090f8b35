package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mateovaldes/idp-registry-backend/api/controllers"
	"github.com/mateovaldes/idp-registry-backend/api/middleware"
	"github.com/mateovaldes/idp-registry-backend/internal/applications"
	"github.com/mateovaldes/idp-registry-backend/internal/permits"
	"github.com/mateovaldes/idp-registry-backend/internal/staff"
	"github.com/mateovaldes/idp-registry-backend/internal/uploads"
	"github.com/mateovaldes/idp-registry-backend/internal/verify"
	"github.com/mateovaldes/idp-registry-backend/pkg/auth/session"
	"github.com/mateovaldes/idp-registry-backend/pkg/config"
	"github.com/mateovaldes/idp-registry-backend/pkg/db"
	"github.com/mateovaldes/idp-registry-backend/pkg/logger"
	"github.com/mateovaldes/idp-registry-backend/pkg/redis"
	"github.com/mateovaldes/idp-registry-backend/pkg/storage/gcs"
)

// NewRouter assembles the full HTTP surface: the public application and
// verification endpoints, the staff registry behind JWT auth, and the
// health probes.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gcsClient gcs.Pinger,
	sessionVerifier session.AccessSessionChecker,
	staffService staff.Service,
	applicationsService applications.Service,
	uploadsService uploads.Service,
	permitsService permits.Service,
	verifyService verify.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewRateLimitPolicy(
		"login",
		cfg.RateLimit.LoginWindow,
		cfg.RateLimit.LoginIPLimit,
		cfg.RateLimit.LoginEmailLimit,
	)
	publicFormPolicy := middleware.NewRateLimitPolicy(
		"public-form",
		cfg.RateLimit.PublicFormWindow,
		cfg.RateLimit.PublicFormIPLimit,
		0,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient, gcsClient))
	})

	r.Route("/api/public/v1", func(r chi.Router) {
		r.Route("/applications", func(r chi.Router) {
			r.With(middleware.RateLimit(publicFormPolicy, redisClient, logg)).Post("/", controllers.ApplicationOpen(applicationsService, logg))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", controllers.ApplicationSnapshot(applicationsService, logg))
				r.With(middleware.RateLimit(publicFormPolicy, redisClient, logg)).Post("/uploads/{slot}", controllers.UploadPresign(uploadsService, logg))
				r.With(middleware.RateLimit(publicFormPolicy, redisClient, logg)).Post("/submit", controllers.ApplicationSubmit(applicationsService, logg))
			})
		})

		r.Route("/uploads/{id}", func(r chi.Router) {
			r.Post("/progress", controllers.UploadProgress(uploadsService, logg))
			r.Post("/complete", controllers.UploadComplete(uploadsService, logg))
			r.Post("/fail", controllers.UploadFail(uploadsService, logg))
			r.Delete("/", controllers.UploadRemove(uploadsService, logg))
		})

		r.Get("/verify/{number}", controllers.VerifyPermit(verifyService, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(staffService, logg))
		r.Post("/logout", controllers.AuthLogout(staffService, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(staffService, logg))
	})

	r.Route("/api/v1/permits", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionVerifier, logg))
		r.Get("/", controllers.PermitList(permitsService, logg))
		r.Post("/", controllers.PermitCreate(permitsService, logg))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", controllers.PermitGet(permitsService, logg))
			r.Patch("/", controllers.PermitUpdate(permitsService, logg))
			r.Post("/status", controllers.PermitSetStatus(permitsService, logg))
		})
	})

	return r
}
