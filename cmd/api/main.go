package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"grandexchange-api/internal/cache"
	"grandexchange-api/internal/config"
	"grandexchange-api/internal/handler"
	"grandexchange-api/internal/inventory"
	"grandexchange-api/internal/middleware"
	"grandexchange-api/internal/repository"
	"grandexchange-api/internal/router"
	"grandexchange-api/internal/service"
	"grandexchange-api/internal/transport/ws"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Grand Exchange API...")

	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize the market store based on config
	var store repository.MarketStore
	var err error
	switch cfg.Store.Type {
	case "memory":
		log.Println("Running without persistence")
	case "mongodb", "mongo":
		store, err = repository.NewMongoStore(cfg.Store.MongoURI, cfg.Store.MongoDatabase)
	case "postgres", "postgresql":
		store, err = repository.NewSQLStore(repository.DialectPostgres, cfg.Store.PostgresDSN())
	case "mysql":
		store, err = repository.NewSQLStore(repository.DialectMySQL, cfg.Store.MySQLDSN())
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
		store, err = repository.NewSQLiteStore(cfg.Store.Path)
	}
	if err != nil {
		log.Fatalf("Failed to initialize %s store: %v", cfg.Store.Type, err)
	}

	// Initialize cache; Redis also backs the player state buffer
	var appCache cache.Cache
	var buffer *cache.RedisStateBuffer
	if cfg.Cache.Type == "redis" {
		redisClient, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddress(),
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.KeyPrefix,
		})
		if err != nil {
			log.Printf("Warning: Redis connection failed, using memory cache: %v", err)
		} else {
			appCache = cache.NewRedisCache(redisClient, cfg.Cache.KeyPrefix)
			if store != nil {
				buffer = cache.NewRedisStateBuffer(redisClient, cache.RedisBufferConfig{
					FlushInterval: cfg.Market.FlushInterval,
					KeyPrefix:     cfg.Cache.KeyPrefix,
				}, service.CreateFlushFunc(store))
			}
			log.Println("Redis cache initialized")
		}
	}
	if appCache == nil {
		appCache = cache.NewMemoryCache()
		log.Println("Memory cache initialized")
	}

	// Restore market state
	repo := repository.NewInMemoryOfferRepository()
	registry := inventory.NewRegistry(cfg.Market.MaxHistoryEntries)
	persist := service.NewPersistence(store)
	if buffer != nil {
		persist.SetBuffer(buffer)
	}

	var restored service.BootstrapResult
	if store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		restored, err = service.Bootstrap(ctx, store, repo, registry)
		cancel()
		if err != nil {
			log.Fatalf("Failed to restore market: %v", err)
		}
	}

	// Initialize services
	history := service.NewHistoryService(registry, persist)
	bank := service.NewBankService(registry, persist)
	market := service.NewMarketService(repo, registry, history, persist, bank, appCache, cfg.Market, cfg.Cache.TTL)
	market.SeedIDs(restored.MaxID)

	limiter := service.NewRateLimiter(appCache, cfg.Market.CreateCooldown)
	market.SetRateLimiter(limiter)
	analytics := service.NewMarketAnalytics(cfg.Market.PriceHistorySize)
	audit := service.NewAuditLog(cfg.Market.AuditLogSize, cfg.Market.FraudDetection)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if n, err := audit.Load(ctx, appCache); err != nil {
			log.Printf("Warning: failed to restore audit log: %v", err)
		} else if n > 0 {
			log.Printf("Audit log restored: %d trades", n)
		}
		cancel()
	}
	market.SetInsights(analytics, audit)
	collection := service.NewCollectionService(registry, persist, cfg.Market.CollectionPageSize)
	tokenService := service.NewTokenService(appCache, cfg.Auth.TokenTTL)

	hub := ws.NewHub(64)
	history.SetPublisher(hub)
	feed := ws.NewServer(hub, history, tokenService)

	expiry := service.NewExpiryScheduler(market, service.ExpiryConfig{Interval: cfg.Market.ExpiryInterval})
	expiry.Start()

	// Initialize handlers
	checks := []handler.ReadyCheck{{
		Name: "cache",
		Check: func(ctx context.Context) error {
			_, err := appCache.Exists(ctx, "ready")
			return err
		},
	}}
	if store != nil {
		checks = append(checks, handler.ReadyCheck{
			Name: "store",
			Check: func(ctx context.Context) error {
				_, err := store.GetStats(ctx)
				return err
			},
		})
	}

	adminCfg := handler.AdminConfig{
		Store:       store,
		Market:      market,
		Expiry:      expiry,
		Connections: hub,
		Analytics:   analytics,
		Audit:       audit,
		Limiter:     limiter,
		StoreType:   cfg.Store.Type,
	}
	if buffer != nil {
		adminCfg.Buffer = buffer
	}
	if len(cfg.Auth.APIKeys) == 0 {
		if cfg.App.IsProduction() {
			log.Fatal("API_KEYS must be set in production")
		}
		log.Println("Warning: API_KEYS is empty, only session tokens will authenticate")
	}

	r := router.New(router.Config{
		Handler:           handler.New(cfg.App.Name, cfg.App.Version, checks...),
		MarketHandler:     handler.NewMarketHandler(market),
		CollectionHandler: handler.NewCollectionHandler(collection),
		BankHandler:       handler.NewBankHandler(bank),
		HistoryHandler:    handler.NewHistoryHandler(history),
		AdminHandler:      handler.NewAdminHandler(adminCfg),
		AuthHandler:       handler.NewAuthHandler(tokenService),
		HistoryFeed:       feed.Handler(),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{
			TokenService: tokenService,
			APIKeys:      cfg.Auth.APIKeys,
		}),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	expiry.Stop()

	// Drain the buffer, then write every player straight to the store
	if buffer != nil {
		log.Println("Closing state buffer...")
		buffer.Close()
	}
	if err := persist.Flush(ctx, registry); err != nil {
		log.Printf("Failed to flush player states: %v", err)
	}
	if err := audit.Save(ctx, appCache); err != nil {
		log.Printf("Failed to save audit log: %v", err)
	}
	if store != nil {
		store.Close()
	}
	appCache.Close()

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}

