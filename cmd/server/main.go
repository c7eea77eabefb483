package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rentora/service-booking/internal/application"
	"github.com/rentora/service-booking/internal/cache"
	"github.com/rentora/service-booking/internal/clients"
	"github.com/rentora/service-booking/internal/config"
	bookingDomain "github.com/rentora/service-booking/internal/domain/booking"
	bookingEvents "github.com/rentora/service-booking/internal/events"
	"github.com/rentora/service-booking/internal/handler"
	"github.com/rentora/service-booking/internal/lock"
	"github.com/rentora/service-booking/internal/platform/auth"
	"github.com/rentora/service-booking/internal/platform/database"
	"github.com/rentora/service-booking/internal/platform/health"
	"github.com/rentora/service-booking/internal/platform/kafka"
	"github.com/rentora/service-booking/internal/platform/logger"
	"github.com/rentora/service-booking/internal/platform/middleware"
	"github.com/rentora/service-booking/internal/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.BookingModel{},
			&repository.StatusHistoryModel{},
			&repository.AvailabilityModel{},
			&repository.PriceRecordModel{},
			&repository.ConditionReportModel{},
		); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		15*time.Minute,
		7*24*time.Hour,
	)

	// Creation locks and read cache share Redis when configured
	var (
		locker    lock.Locker
		respCache cache.Cache
	)
	if cfg.RedisConfig.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			pingCancel()
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		pingCancel()

		locker = lock.NewRedisLocker(rdb)
		respCache = cache.NewRedisCache(rdb)
		log.Info("using redis for locks and cache", zap.String("addr", cfg.RedisConfig.Addr))
	} else {
		locker = lock.NewMemoryLocker()
		respCache = cache.NewMemoryCache()
		log.Warn("REDIS_ADDR not set, locks and cache are process-local")
	}

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Upstream clients
	kycClient := clients.NewKYCClient(cfg.Upstreams.KYCURL, cfg.Upstreams.Timeout, log)
	catalogClient := clients.NewCatalogClient(cfg.Upstreams.CatalogURL, cfg.Upstreams.Timeout, log)
	paymentClient := clients.NewPaymentClient(cfg.Upstreams.PaymentURL, cfg.Upstreams.Timeout, log)

	// Initialize repositories
	bookingRepo := repository.NewGormBookingRepository(db)
	ledger := repository.NewGormAvailabilityLedger(db)
	priceRepo := repository.NewGormPriceRecordRepository(db)
	conditionRepo := repository.NewGormConditionRepository(db)
	transactor := repository.NewGormTransactor(db)

	// Initialize pricing strategy
	pricingStrategy := bookingDomain.NewStandardPricingStrategy()

	opts := application.BookingOptions{
		LockTTL:       cfg.Booking.LockTTL,
		CacheTTL:      cfg.Booking.CacheTTL,
		PaymentWindow: cfg.Booking.PaymentWindow,
	}

	// Initialize application services
	bookingService := application.NewBookingService(application.BookingDeps{
		Bookings: bookingRepo,
		Ledger:   ledger,
		Prices:   priceRepo,
		Tx:       transactor,
		Locker:   locker,
		Cache:    respCache,
		Pricing:  pricingStrategy,
		KYC:      kycClient,
		Catalog:  catalogClient,
		Payments: paymentClient,
		Events:   kafkaProducer,
	}, opts, log)
	availabilityService := application.NewAvailabilityService(ledger, catalogClient, locker, transactor, respCache, opts, log)
	priceService := application.NewPriceService(priceRepo, catalogClient, pricingStrategy, log)
	conditionService := application.NewConditionService(conditionRepo, bookingRepo, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize and start payment event consumer in a goroutine
	groupID := cfg.KafkaConfig.GroupPrefix + "booking-service"
	paymentConsumer := bookingEvents.NewPaymentEventConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		bookingService,
		log,
	)
	defer func() { _ = paymentConsumer.Close() }()

	go func() {
		log.Info("starting payment event consumer")
		if err := paymentConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("payment event consumer error", zap.Error(err))
		}
	}()

	// Past availability rows are released periodically
	go availabilityService.RunSweeper(ctx, cfg.Booking.SweepInterval)

	// Initialize HTTP handlers
	bookingHandler := handler.NewBookingHandler(bookingService)
	adminBookingHandler := handler.NewAdminBookingHandler(bookingService)
	productHandler := handler.NewProductHandler(availabilityService, priceService)
	conditionHandler := handler.NewConditionHandler(conditionService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-booking")
	healthHandler.RegisterRoutes(router)

	// Register routes
	bookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	adminBookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	productHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	conditionHandler.RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	// Stop the consumer and the sweeper
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}
