package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/kvshvl/platform-core/internal/config"
	"github.com/kvshvl/platform-core/internal/domain"
	"github.com/kvshvl/platform-core/internal/handler"
	appMiddleware "github.com/kvshvl/platform-core/internal/middleware"
	"github.com/kvshvl/platform-core/internal/repository"
	"github.com/kvshvl/platform-core/internal/service"
	"github.com/kvshvl/platform-core/pkg/clock"
	"github.com/kvshvl/platform-core/pkg/payment"
)

func main() {
	// Load .env file if present (for local development)
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config error", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database error", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := repository.RunMigrations(ctx, db); err != nil {
		log.Error("migration error", "error", err)
		os.Exit(1)
	}
	log.Info("database connected & migrated")

	clk := clock.NewSystem()
	catalog := buildCatalog(cfg)

	userRepo := repository.NewUserRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	verifier := service.NewTokenVerifier(cfg.AuthSecretA, cfg.AuthSecretB)
	authSvc := service.NewAuthService(verifier, userRepo, clk, cfg.TrialDuration, log)

	// A nil gateway makes the payment routes refuse with 503 until
	// provider credentials are configured.
	var gateway payment.PaymentGateway
	if cfg.PaymentsConfigured() {
		gateway = payment.NewRazorpayGateway(cfg.PaymentKeyID, cfg.PaymentKeySecret, cfg.PaymentWebhookSecret)
		log.Info("payment gateway configured")
	} else {
		log.Warn("payment credentials missing, payment routes disabled")
	}

	txRunner := func(ctx context.Context, fn func(users service.UserStore, payments service.PaymentStore) error) error {
		return repository.InTx(ctx, db, func(users *repository.UserRepository, payments *repository.PaymentRepository) error {
			return fn(users, payments)
		})
	}
	subSvc := service.NewSubscriptionService(
		userRepo, paymentRepo, txRunner, gateway, catalog, clk,
		cfg.TrialDuration, cfg.PaymentKeyID, log,
	)

	authHandler := handler.NewAuthHandler()
	healthHandler := handler.NewHealthHandler(db)
	plansHandler := handler.NewPlansHandler(catalog)
	paymentHandler := handler.NewPaymentHandler(subSvc)
	webhookHandler := handler.NewWebhookHandler(gateway, subSvc)
	adminHandler := handler.NewAdminHandler(authSvc, subSvc)

	r := chi.NewRouter()

	r.Use(appMiddleware.Recovery(log))
	r.Use(appMiddleware.Logger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global rate limiter (20 req/sec per IP, burst of 40)
	globalRL := appMiddleware.NewRateLimiter(20, 40)
	r.Use(globalRL.Middleware())

	// Public routes
	r.Get("/health", healthHandler.Check)
	r.Get("/api/plans", plansHandler.List)
	r.Post("/api/payments/webhook", webhookHandler.HandleProvider)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(authSvc))

		r.Get("/api/auth/me", authHandler.Me)
		r.Get("/api/subscription", paymentHandler.GetSubscription)
		r.With(appMiddleware.RequireSubscription(authSvc)).Get("/api/access", authHandler.Access)
		r.Post("/api/payments/checkout", paymentHandler.Checkout)
		r.Get("/api/payments/history", paymentHandler.History)
		r.Post("/api/payments/subscription/cancel", paymentHandler.CancelSubscription)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.AdminOnly(cfg))
			r.Get("/api/admin/users", adminHandler.ListUsers)
			r.Post("/api/admin/users/{id}/deactivate", adminHandler.DeactivateUser)
			r.Post("/api/admin/users/{id}/activate", adminHandler.ActivateUser)
			r.Get("/api/admin/fees", adminHandler.Fees)
			r.Get("/api/admin/alerts", adminHandler.Alerts)
		})
	})

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

	log.Info("platform-core listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func buildCatalog(cfg *config.Config) *domain.PlanCatalog {
	return domain.NewPlanCatalog([]domain.Plan{
		{Tier: domain.TierWeek, AmountMinor: cfg.WeekAmountMinor, Currency: "INR", ProviderPlanID: cfg.PlanWeekly, DurationDays: 7},
		{Tier: domain.TierMonth, AmountMinor: cfg.MonthAmountMinor, Currency: "INR", ProviderPlanID: cfg.PlanMonthly, DurationDays: 30},
		{Tier: domain.TierYear, AmountMinor: cfg.YearAmountMinor, Currency: "INR", ProviderPlanID: cfg.PlanYearly, DurationDays: 365},
	})
}
