package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/paysync/backend/internal/config"
	"github.com/paysync/backend/internal/handler"
	appMiddleware "github.com/paysync/backend/internal/middleware"
	"github.com/paysync/backend/internal/repository"
	"github.com/paysync/backend/internal/service"
	"github.com/paysync/backend/pkg/payment"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load .env file if present (for local development)
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config error")
	}

	ctx := context.Background()

	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("database error")
	}
	defer db.Close()

	if err := repository.RunMigrations(ctx, db); err != nil {
		log.WithError(err).Fatal("migration error")
	}
	log.Info("database connected and migrated")

	if cfg.StripeWebhookSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET not set, webhook deliveries will be rejected with 5xx")
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	// Processor client and webhook verifier
	processor := payment.NewStripeClient(cfg.StripeSecretKey)
	verifier := payment.NewVerifier(cfg.StripeWebhookSecret)

	// Services
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.AdminEmail, cfg.AdminPassword, userRepo, log)
	if err := authSvc.SeedAdmin(ctx); err != nil {
		log.WithError(err).Fatal("admin seed error")
	}

	guard := service.NewIdempotencyGuard(subRepo, paymentRepo, log)
	notifier := service.NewLogNotifier(log)
	reconciler := service.NewPaymentReconciler(guard, subRepo, paymentRepo, notifier, log)
	dispatcher := service.NewEventDispatcher(reconciler, log)
	subSvc := service.NewSubscriptionService(subRepo, paymentRepo, userRepo, processor, log)

	sweeper := service.NewSweeper(subRepo, log)
	if err := sweeper.Start(); err != nil {
		log.WithError(err).Fatal("sweeper error")
	}
	defer sweeper.Stop()

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	healthHandler := handler.NewHealthHandler(db)
	plansHandler := handler.NewPlansHandler()
	webhookHandler := handler.NewWebhookHandler(verifier, dispatcher, log)
	subHandler := handler.NewSubscriptionHandler(subSvc)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.Recovery)
	r.Use(appMiddleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global rate limiter (20 req/sec per IP, burst of 40)
	globalRL := appMiddleware.NewRateLimiter(20, 40)
	r.Use(globalRL.Middleware())

	// Health check and public routes (no auth)
	r.Get("/health", healthHandler.Check)
	r.Get("/api/plans", plansHandler.List)
	// Processor webhook: authenticated by signature, not by JWT
	r.Post("/api/billing/webhook", webhookHandler.HandleBilling)

	// Auth routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.StrictRateLimiter())
		r.Post("/api/auth/login", authHandler.Login)
	})

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(authSvc))

		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/auth/me", authHandler.Me)

		r.Get("/api/billing/subscription", subHandler.Get)
		r.Post("/api/billing/subscription", subHandler.Create)
		r.Put("/api/billing/subscription", subHandler.Update)
		r.Delete("/api/billing/subscription", subHandler.Delete)
	})

	// Start server
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.WithField("addr", addr).Info("paysync backend listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("server error")
	}
}
