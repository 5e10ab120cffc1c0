package router

import (
	"net/http"

	"grandexchange-api/internal/handler"
	"grandexchange-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler           *handler.Handler
	MarketHandler     *handler.MarketHandler
	CollectionHandler *handler.CollectionHandler
	BankHandler       *handler.BankHandler
	HistoryHandler    *handler.HistoryHandler
	AdminHandler      *handler.AdminHandler
	AuthHandler       *handler.AuthHandler
	HistoryFeed       http.Handler
	AuthMiddleware    func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key", "X-Token", "X-Player-Name"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// The history feed authenticates inside its HELLO handshake.
	if cfg.HistoryFeed != nil {
		r.Handle("/ws/history", cfg.HistoryFeed)
	}

	// AUTHENTICATED routes
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/ready", cfg.Handler.Ready)
			}

			if cfg.AuthHandler != nil {
				r.Route("/auth", func(r chi.Router) {
					r.Post("/token", cfg.AuthHandler.GenerateToken)
					r.Post("/revoke", cfg.AuthHandler.RevokeToken)
					r.Post("/refresh", cfg.AuthHandler.RefreshToken)
				})
			}

			if cfg.MarketHandler != nil {
				r.Route("/market/items/{item_id}", func(r chi.Router) {
					r.Get("/listings", cfg.MarketHandler.GetListings)
					r.Get("/depth", cfg.MarketHandler.GetDepth)
					r.Get("/summary", cfg.MarketHandler.GetSummary)
				})
			}

			r.Route("/players/{player_id}", func(r chi.Router) {
				if cfg.MarketHandler != nil {
					r.Get("/offers", cfg.MarketHandler.GetPlayerOffers)
					r.Post("/sell-offers", cfg.MarketHandler.CreateSellOffer)
					r.Post("/sell-offers/{offer_id}/{action}", cfg.MarketHandler.SellOfferAction)
					r.Post("/buy-orders", cfg.MarketHandler.CreateBuyOrder)
					r.Put("/buy-orders/{order_id}", cfg.MarketHandler.ConfigureBuyOrder)
					r.Post("/buy-orders/{order_id}/{action}", cfg.MarketHandler.BuyOrderAction)
				}

				if cfg.CollectionHandler != nil {
					r.Get("/collection", cfg.CollectionHandler.GetPage)
					r.Post("/collection", cfg.CollectionHandler.Add)
					r.Post("/collection/claim", cfg.CollectionHandler.Claim)
					r.Post("/collection/claim-all", cfg.CollectionHandler.ClaimAll)
				}

				if cfg.BankHandler != nil {
					r.Get("/bank", cfg.BankHandler.GetBalance)
					r.Post("/bank/deposit", cfg.BankHandler.Deposit)
					r.Post("/bank/withdraw", cfg.BankHandler.Withdraw)
				}

				if cfg.HistoryHandler != nil {
					r.Get("/history", cfg.HistoryHandler.GetSnapshot)
					r.Get("/history/badge", cfg.HistoryHandler.GetBadge)
					r.Post("/history/ack", cfg.HistoryHandler.Acknowledge)
				}
			})

			if cfg.AdminHandler != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Use(handler.ServerOnly)
					r.Get("/stats", cfg.AdminHandler.GetStats)
					r.Get("/orderbook", cfg.AdminHandler.GetOrderBook)
					r.Post("/expire", cfg.AdminHandler.RunExpiry)
					r.Get("/audit/recent", cfg.AdminHandler.GetRecentTrades)
					r.Get("/audit/suspicious", cfg.AdminHandler.GetSuspiciousTrades)
					r.Get("/audit/players/{player_id}", cfg.AdminHandler.GetPlayerAudit)
					r.Delete("/cooldowns/{player_id}", cfg.AdminHandler.ClearCooldowns)
				})
			}
		})
	})

	return r
}
