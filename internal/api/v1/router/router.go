package router

import (
	"net/http"

	"github.com/samuelysliu/pdf-editor/internal/api/v1/handler"
	"github.com/samuelysliu/pdf-editor/internal/config"
	"github.com/samuelysliu/pdf-editor/internal/middleware"
	"github.com/samuelysliu/pdf-editor/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Services are the business services the API exposes.
type Services struct {
	Users         service.UserService
	Quota         service.QuotaService
	PDFs          service.PDFService
	Annotations   service.AnnotationService
	Payments      service.PaymentService
	Subscriptions service.SubscriptionService
}

// New builds the HTTP handler. db may be nil when no database backs the store.
func New(cfg *config.Config, svc Services, db handler.Pinger, logger zerolog.Logger) http.Handler {
	validate := validator.New(validator.WithRequiredStructEnabled())
	maxUpload := cfg.MaxUploadMB << 20

	userHandler := handler.NewUserHandler(svc.Users, validate, logger)
	pdfHandler := handler.NewPDFHandler(svc.PDFs, svc.Quota, validate, maxUpload, logger)
	annotationHandler := handler.NewAnnotationHandler(svc.Annotations, validate, maxUpload, logger)
	paymentHandler := handler.NewPaymentHandler(svc.Payments, svc.Subscriptions, validate, logger)
	healthHandler := handler.NewHealthHandler(db, logger)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	// Throttling runs after auth so authenticated requests are keyed by user.
	authed := func(next http.Handler) http.Handler {
		return authMiddleware(limiter.Middleware(next))
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.LoggerMiddleware(logger))

	r.Route("/v1", func(r chi.Router) {
		healthHandler.RegisterRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			userHandler.RegisterRoutes(r, authMiddleware)
		})
		pdfHandler.RegisterRoutes(r, authed)
		annotationHandler.RegisterRoutes(r, authed)
		paymentHandler.RegisterRoutes(r, authed)
	})
	r.Get("/health", healthHandler.ServeHTTP)

	// Redirect /api/* to /v1/* for older clients
	r.HandleFunc("/api/*", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/v1/"+chi.URLParam(r, "*"), http.StatusPermanentRedirect)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
	})
	return c.Handler(r)
}
