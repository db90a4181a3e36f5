package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"card-optimiser/internal/cache"
	"card-optimiser/internal/catalog"
	"card-optimiser/internal/config"
	"card-optimiser/internal/events"
	"card-optimiser/internal/features"
	"card-optimiser/internal/handler"
	"card-optimiser/internal/middleware"
	"card-optimiser/internal/profile"
	"card-optimiser/internal/service"
	"card-optimiser/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Path to JSON config file")
	port := flag.String("port", "", "Server port (overrides config)")
	dbPath := flag.String("db", "", "Database file path (overrides config)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Tracing
	if _, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer tracing.Shutdown(context.Background())

	// Cache: Redis if configured, in-memory otherwise
	var appCache cache.Cache
	if cfg.Cache.RedisEnabled {
		redisCache, err := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		appCache = redisCache
		log.Printf("Cache: redis (%s)", cfg.Cache.RedisAddr)
	} else {
		appCache = cache.NewInMemoryCache()
		log.Printf("Cache: in-memory")
	}

	// Feature flags
	flags := features.NewManager()
	flags.Register(features.FeatureCatalogCache, true, "Cache link in the catalog fallback chain")
	flags.Register(features.FeatureEventHooks, true, "Event-driven hooks")
	flags.Register(features.FeatureManualCalculation, true, "Manual calculation endpoint")
	flags.Register(features.FeatureScrapedContext, true, "Scraped context ingestion endpoint")

	// Catalog store with fallback-chained loader and periodic refresh
	var catalogCache cache.Cache
	if flags.IsEnabled(features.FeatureCatalogCache) {
		catalogCache = appCache
	}
	loader := catalog.NewLoader(catalog.LoaderOptions{
		CardsURL:   cfg.Catalog.CardsURL,
		RulesURL:   cfg.Catalog.RulesURL,
		OffersURL:  cfg.Catalog.OffersURL,
		BundledDir: cfg.Catalog.BundledDir,
		Cache:      catalogCache,
		CacheTTL:   time.Duration(cfg.Catalog.CacheTTLSeconds) * time.Second,
	})
	catalogs, loadResult, err := catalog.NewStore(context.Background(), loader)
	if err != nil {
		log.Fatalf("Failed to load catalogs: %v", err)
	}
	log.Printf("Catalogs loaded (cards=%s rules=%s offers=%s)",
		loadResult.Cards, loadResult.Rules, loadResult.Offers)

	if cfg.Catalog.RefreshCron != "" {
		if err := catalogs.StartRefresh(cfg.Catalog.RefreshCron); err != nil {
			log.Fatalf("Failed to schedule catalog refresh: %v", err)
		}
		defer catalogs.StopRefresh()
	}

	// Held-card profile store
	profiles, err := profile.NewStore(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer profiles.Close()

	// Events
	eventManager := events.NewManager(flags.IsEnabled(features.FeatureEventHooks))
	defer eventManager.Shutdown()
	eventManager.Subscribe(events.EventRecommendationComputed, func(ctx context.Context, ev events.Event) error {
		if data, ok := ev.Data.(events.RecommendationComputedData); ok {
			log.Printf("Computed %d recommendation(s) for user %s (merchant=%s amount=%.2f)",
				len(data.Results), data.UserID, data.Context.MerchantSlug, data.Context.Amount)
		}
		return nil
	})
	eventManager.Subscribe(events.EventCatalogRefreshed, func(ctx context.Context, ev events.Event) error {
		if data, ok := ev.Data.(events.CatalogRefreshedData); ok {
			log.Printf("Catalog refreshed (cards=%s rules=%s offers=%s)",
				data.Cards, data.Rules, data.Offers)
		}
		return nil
	})

	// Service and handlers
	svc := service.NewService(catalogs, profiles, appCache, eventManager, flags,
		time.Duration(cfg.Cache.ContextTTLSeconds)*time.Second)
	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
	})

	// Rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate,
		time.Duration(cfg.RateLimit.Window)*time.Second)
	defer rateLimiter.Stop()

	// Router
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.TracingMiddleware())

	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Security.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Group(h.Routes)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting HTTP server on %s", addr)
	log.Printf("Database: %s", cfg.Database.Path)
	log.Printf("Rate limit: %d requests per %d seconds", cfg.RateLimit.Rate, cfg.RateLimit.Window)

	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}
