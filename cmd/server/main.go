package main // Entry point package

import (
	"context"
	"errors"
	"log" // Logging library
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4" // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/cinema-booking-client/internal/api"
	"github.com/iliyamo/cinema-booking-client/internal/booking"
	"github.com/iliyamo/cinema-booking-client/internal/cache"
	"github.com/iliyamo/cinema-booking-client/internal/config" // Internal config loader
	"github.com/iliyamo/cinema-booking-client/internal/database"
	"github.com/iliyamo/cinema-booking-client/internal/handler"
	"github.com/iliyamo/cinema-booking-client/internal/middleware"
	"github.com/iliyamo/cinema-booking-client/internal/queue"
	"github.com/iliyamo/cinema-booking-client/internal/registry"
	"github.com/iliyamo/cinema-booking-client/internal/repository"
	"github.com/iliyamo/cinema-booking-client/internal/router" // Internal router setup
	queue_publisher "github.com/iliyamo/cinema-booking-client/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config
	cacheCfg := config.LoadCacheConfig()
	rdb := config.NewRedisClient() // nil when Redis is not reachable; caches and limits turn off

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pricing, err := booking.NewPricingPolicy(cfg.Prices)
	if err != nil {
		log.Fatalf("invalid prices: %v", err)
	}

	client := api.New(cfg.BookingAPIURL, cfg.BookingAPITimeout)
	newService := func(token string) booking.Service {
		return cache.NewAvailability(client.WithToken(token), rdb, cacheCfg)
	}
	apiFor := func(token string) handler.BookingAPI { return client.WithToken(token) }

	sink := &handler.ConfirmationSink{}
	if p := queue_publisher.New(cfg.RabbitURL); p != nil {
		sink.Publisher = p
	}
	var receipts handler.ReceiptStore
	if cfg.DBHost != "" {
		db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Fatalf("db open: %v", err)
		}
		defer db.Close()
		repo := repository.NewReceiptRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("receipts schema: %v", err)
		}
		receipts = repo
		sink.Receipts = repo
	} else {
		log.Printf("receipt ledger disabled (DB_HOST not set)")
	}

	sessions := registry.New(cfg.SessionIdleTTL, cfg.MaxSessionsPerUser)
	go sessions.Run(ctx, cfg.SessionSweepEvery)

	if cfg.ConsumeLog {
		go func() {
			if err := queue.StartBookingConsumer(ctx, cfg.RabbitURL, cfg.LogDir); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("booking-consumer: stopped: %v", err)
			}
		}()
	}

	opts := booking.Options{
		Prices:               cfg.Prices,
		MaxSeatsPerBooking:   cfg.MaxSeatsPerBooking,
		DegradeOnUnavailable: cfg.DegradeOnLoadFail,
	}
	sh := handler.NewSessionHandler(sessions, newService, opts, sink)
	bh := handler.NewBookingHandler(apiFor, newService, receipts, pricing)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Recover())
	router.RegisterRoutes(e, sessions) // Register application routes
	router.RegisterBooking(e, sh, bh, cfg.JWTSecret, router.Middlewares{
		RateLimit:       middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		SubmitRateLimit: middleware.NewTokenBucket(config.LoadSubmitRateLimitConfig(), rdb),
		ResponseCache:   middleware.NewRedisCache(cacheCfg, rdb),
	})

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	sessions.Close()
	if rdb != nil {
		_ = rdb.Close()
	}
}
