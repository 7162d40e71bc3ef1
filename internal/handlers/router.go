package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"excursion-booking/internal/middleware"
)

// RouterConfig holds everything the HTTP router is built from
type RouterConfig struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	RequestTimeout time.Duration

	AuthMiddleware    *middleware.AuthMiddleware
	SessionMiddleware *middleware.SessionMiddleware
	LoginRateLimiter  *middleware.LoginRateLimiter

	Auth    *AuthHandler
	Cart    *CartHandler
	Order   *OrderHandler
	Payment *PaymentHandler
	Health  *HealthHandler
}

// NewRouter wires the API routes
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.LoggingMiddleware(cfg.Logger))
	r.Use(middleware.ErrorHandlingMiddleware(cfg.Logger))
	r.Use(middleware.CORSMiddleware(middleware.DefaultCORSConfig(cfg.AllowedOrigins)))
	r.Use(middleware.SecurityHeadersMiddleware)
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	r.NotFound(middleware.NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(middleware.MethodNotAllowedHandler().ServeHTTP)

	r.Get("/health", cfg.Health.Health)

	r.Route("/auth", func(r chi.Router) {
		if cfg.LoginRateLimiter != nil {
			r.With(middleware.LoginRateLimit(cfg.LoginRateLimiter)).Post("/login", cfg.Auth.Login)
			r.With(middleware.LoginRateLimit(cfg.LoginRateLimiter)).Post("/register", cfg.Auth.Register)
		} else {
			r.Post("/login", cfg.Auth.Login)
			r.Post("/register", cfg.Auth.Register)
		}
		r.Post("/refresh", cfg.Auth.Refresh)
		r.Post("/logout", cfg.Auth.Logout)
	})

	// Cart and checkout work for registered users and guest sessions alike
	r.Group(func(r chi.Router) {
		r.Use(cfg.AuthMiddleware.LoadUser)
		r.Use(cfg.SessionMiddleware.GuestSession)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cfg.Cart.GetCart)
			r.Delete("/", cfg.Cart.ClearCart)
			r.Post("/items", cfg.Cart.AddItem)
			r.Put("/items/{itemID}", cfg.Cart.UpdateItem)
			r.Delete("/items/{itemID}", cfg.Cart.RemoveItem)
		})

		r.Post("/orders", cfg.Order.CreateOrder)
	})

	r.Group(func(r chi.Router) {
		r.Use(cfg.AuthMiddleware.LoadUser)
		r.Use(middleware.RequireAuth)
		r.Get("/orders", cfg.Order.GetUserOrders)
	})

	r.Route("/payment", func(r chi.Router) {
		r.Get("/return", cfg.Payment.PaymentReturn)
		r.Post("/return", cfg.Payment.PaymentReturn)
		r.Get("/status/{token}", cfg.Payment.GetStatus)
		r.Post("/retry/{token}", cfg.Payment.Retry)
	})

	return r
}
