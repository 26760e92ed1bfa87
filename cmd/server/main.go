package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/trpi/scheduling-server-go/internal/config"
	"github.com/trpi/scheduling-server-go/internal/database"
	"github.com/trpi/scheduling-server-go/internal/email"
	"github.com/trpi/scheduling-server-go/internal/handler"
	"github.com/trpi/scheduling-server-go/internal/jobs"
	"github.com/trpi/scheduling-server-go/internal/middleware"
	"github.com/trpi/scheduling-server-go/internal/model"
	"github.com/trpi/scheduling-server-go/internal/redis"
	"github.com/trpi/scheduling-server-go/internal/repository"
	"github.com/trpi/scheduling-server-go/internal/service"
	"github.com/trpi/scheduling-server-go/internal/sse"
	"github.com/trpi/scheduling-server-go/internal/video"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	isProduction := cfg.IsProduction()
	if err := cfg.Validate(isProduction); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), config.DBPingTimeout)
	err = db.Ping(pingCtx)
	cancelPing()
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	log.Info().Msg("database connected")

	if cfg.AutoMigrate {
		if err := db.Migrate(context.Background()); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info().Msg("migrations applied")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	repos := struct {
		users        repository.UserRepository
		availability repository.AvailabilityRepository
		sessions     repository.SessionRepository
		magicLinks   repository.MagicLinkRepository
		authSessions repository.AuthSessionRepository
	}{
		users:        repository.NewUserRepository(db.DB),
		availability: repository.NewAvailabilityRepository(db.DB),
		sessions:     repository.NewSessionRepository(db.DB),
		magicLinks:   repository.NewMagicLinkRepository(db.DB),
		authSessions: repository.NewAuthSessionRepository(db.DB),
	}

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	rateLimiter := service.NewRateLimiter(redisClient.Client)

	authService := service.NewAuthService(
		db, repos.users, repos.magicLinks, repos.authSessions, rateLimiter,
		email.NewClient(cfg.PostmarkServerToken, cfg.EmailFrom),
		service.AuthOptions{
			SessionSecret:     cfg.SessionSecret,
			AdminPasswordHash: cfg.AdminPasswordHash,
			AppBaseURL:        cfg.AppBaseURL,
			MagicLinkTTL:      cfg.MagicLinkTTL(),
			AdminMagicLinkTTL: cfg.AdminMagicLinkTTL(),
			SessionTTL:        cfg.SessionTTL(),
		},
	)
	availabilityService := service.NewAvailabilityService(db, repos.users, repos.availability, repos.sessions, cfg.Location())
	bookingService := service.NewBookingService(
		repos.sessions, availabilityService, redisClient, broker,
		video.NewClient(cfg.DailyAPIKey, cfg.DailyAPIURL, video.WithFallbackURL(cfg.VideoFallbackURL)),
		cfg.BookingRequiresApproval,
	)
	adminService := service.NewAdminService(repos.users, repos.sessions)

	health := handler.NewHealthHandler(config.HealthCheckTimeout, map[string]handler.Pinger{
		"database": db,
		"redis": handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
	})

	authMiddleware := middleware.NewAuthMiddleware(authService)
	router := newRouter(routerDeps{
		cfg:          cfg,
		isProduction: isProduction,
		auth:         authMiddleware,
		apiLimit:     middleware.NewRateLimitMiddleware(rateLimiter, "api", config.APIRateLimit, config.APIRateWindow),
		health:       health,
		authH:        handler.NewAuthHandler(authService, authMiddleware.Require(), isProduction),
		therapists:   handler.NewTherapistHandler(availabilityService),
		availability: handler.NewAvailabilityHandler(availabilityService),
		sessions: handler.NewSessionHandler(bookingService,
			middleware.NewRateLimitMiddleware(rateLimiter, "booking", config.BookingRateLimit, config.BookingRateWindow).Handler),
		events:  handler.NewEventsHandler(broker),
		partner: handler.NewPartnerHandler(adminService),
		webhook: handler.NewWebhookHandler(bookingService),
		admin: handler.NewAdminHandler(
			authService, adminService, availabilityService, bookingService,
			authMiddleware.Require(model.UserTypeAdmin), isProduction,
		),
	})

	cleanup := jobs.NewCleanupJob(
		repos.authSessions, repos.magicLinks, bookingService,
		config.MagicLinkRetention, config.CleanupJobInterval,
	)
	cleanup.Start()
	defer cleanup.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     router,
		ReadTimeout: config.ServerReadTimeout,
		// Event streams stay open indefinitely; handlers below /api carry
		// their own request timeout.
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}
	server.RegisterOnShutdown(broker.Close)

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr()).Bool("production", isProduction).Msg("starting server")
		serveErr <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
	return nil
}

type routerDeps struct {
	cfg          *config.Config
	isProduction bool
	auth         *middleware.AuthMiddleware
	apiLimit     *middleware.RateLimitMiddleware

	health       *handler.HealthHandler
	authH        *handler.AuthHandler
	therapists   *handler.TherapistHandler
	availability *handler.AvailabilityHandler
	sessions     *handler.SessionHandler
	events       *handler.EventsHandler
	partner      *handler.PartnerHandler
	webhook      *handler.WebhookHandler
	admin        *handler.AdminHandler
}

func newRouter(d routerDeps) chi.Router {
	timeout := chimiddleware.Timeout(config.ServerRequestTimeout)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(d.isProduction, d.cfg.VideoFrameOrigin)
	csrf := middleware.NewCSRFMiddleware(d.isProduction)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewBodyLimitMiddleware(0).Handler)

	r.Get("/health", d.health.ServeHTTP)

	r.With(timeout, middleware.NewWebhookSignatureMiddleware(d.cfg.DailyWebhookSecret).Handler).
		Post("/webhooks/video", d.webhook.Video)

	r.Route("/api", func(r chi.Router) {
		r.Use(securityHeaders.Handler)
		r.Use(csrf.Handler)

		r.With(timeout).Mount("/auth", d.authH.Routes())

		// Browsing therapists does not require a session.
		r.With(timeout, d.auth.Optional, d.apiLimit.Handler).Mount("/therapists", d.therapists.Routes())

		r.With(timeout, d.auth.Require(), d.apiLimit.Handler).Mount("/sessions", d.sessions.Routes())
		r.With(timeout, d.auth.Require(model.UserTypeTherapist), d.apiLimit.Handler).Mount("/availability", d.availability.Routes())
		r.With(timeout, d.auth.Require(model.UserTypePartner), d.apiLimit.Handler).Mount("/partner", d.partner.Routes())

		// Long-lived stream, no request timeout.
		r.With(d.auth.Require()).Get("/events", d.events.ServeHTTP)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(timeout)
		r.Use(securityHeaders.Handler)
		r.Use(csrf.Handler)
		r.Mount("/", d.admin.Routes())
	})

	return r
}
