package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"excursion-booking/internal/config"
	"excursion-booking/internal/database"
	"excursion-booking/internal/handlers"
	"excursion-booking/internal/logging"
	"excursion-booking/internal/middleware"
	"excursion-booking/internal/repositories"
	"excursion-booking/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", false)
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.New(cfg.Server.LogLevel, !cfg.IsProduction())

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server stopped with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, database.Config{
		URL:      cfg.Database.URL,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		return err
	}

	healthChecks := map[string]handlers.HealthCheck{
		"database": db.PingContext,
	}

	// Price documents are cached in Redis when it is configured
	var priceCache services.PriceCache
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return err
		}
		client := redis.NewClient(opts)
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("Redis is unreachable, price lookups will not be cached until it recovers")
		}
		priceCache = services.NewRedisPriceCache(client)
		healthChecks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	} else {
		logger.Info().Msg("REDIS_URL not set, price cache disabled")
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db.DB)
	sessionRepo := repositories.NewSessionRepository(db.DB)
	cartRepo := repositories.NewCartRepository(db.DB)
	orderRepo := repositories.NewOrderRepository(db.DB)
	paymentRepo := repositories.NewPaymentRepository(db.DB)

	// Services
	gateway, err := services.NewGPWebPayService(services.GPWebPayConfig{
		MerchantNumber: cfg.GPWebPay.MerchantNumber,
		RequestURL:     cfg.GPWebPay.RequestURL,
		ResponseURL:    cfg.GPWebPay.ResponseURL,
		Currency:       cfg.GPWebPay.Currency,
		PrivateKey:     cfg.GPWebPay.PrivateKey,
		Passphrase:     cfg.GPWebPay.Passphrase,
		PublicKey:      cfg.GPWebPay.PublicKey,
	}, logger)
	if err != nil {
		return err
	}

	tokenService, err := services.NewTokenService(services.TokenConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	})
	if err != nil {
		return err
	}

	priceService := services.NewContentPriceService(services.ContentPriceConfig{
		APIURL:   cfg.Content.APIURL,
		APIToken: cfg.Content.APIToken,
		Timeout:  cfg.Content.Timeout,
		CacheTTL: cfg.Content.PriceCacheTTL,
	}, priceCache, logger)

	notifier := services.NewTelegramNotifier(services.TelegramConfig{
		BotToken: cfg.Telegram.BotToken,
		ChatID:   cfg.Telegram.ChatID,
		APIURL:   cfg.Telegram.APIURL,
		Timeout:  cfg.Telegram.Timeout,
	}, logger)

	strategies := services.NewDefaultPaymentStrategyFactory(paymentRepo, gateway, logger)

	authService := services.NewAuthService(userRepo, sessionRepo, tokenService, cfg.JWT.SessionTTL, logger)
	cartService := services.NewCartService(cartRepo, logger)
	orderService := services.NewOrderService(userRepo, cartRepo, orderRepo, priceService, notifier, strategies, logger)
	paymentService := services.NewPaymentService(paymentRepo, orderRepo, userRepo, strategies, logger)

	// HTTP
	sessionStore := middleware.NewCookieStore(cfg.Session.Secret, cfg.Session.GuestMaxAge, cfg.Session.SecureCookie)
	loginLimiter := middleware.NewLoginRateLimiter(10, 15*time.Minute)
	limiterStop := make(chan struct{})
	defer close(limiterStop)
	go loginLimiter.RunCleanup(time.Minute, limiterStop)

	router := handlers.NewRouter(handlers.RouterConfig{
		Logger:            logger,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		RequestTimeout:    cfg.Server.RequestTimeout,
		AuthMiddleware:    middleware.NewAuthMiddleware(authService, logger),
		SessionMiddleware: middleware.NewSessionMiddleware(sessionStore, cfg.Session.GuestMaxAge, logger),
		LoginRateLimiter:  loginLimiter,
		Auth:              handlers.NewAuthHandler(authService, logger),
		Cart:              handlers.NewCartHandler(cartService, logger),
		Order:             handlers.NewOrderHandler(orderService, logger),
		Payment:           handlers.NewPaymentHandler(paymentService, cfg.Frontend.PaymentResultURL, logger),
		Health:            handlers.NewHealthHandler(healthChecks),
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("env", cfg.Server.Env).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}

	// Let in-flight order notifications finish before the process exits
	orderService.Wait()
	logger.Info().Msg("Server stopped")
	return nil
}
