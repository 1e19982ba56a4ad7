package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goride/internal/app"
	"goride/internal/config"
	"goride/internal/gateway"
	"goride/internal/handler"
	"goride/internal/invoice"
	"goride/internal/mailer"
	"goride/internal/middleware"
	"goride/internal/repository/postgres"
	"goride/internal/service"
	"goride/internal/storage"
	"goride/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := app.NewLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic goes first so the database and Redis clients can be instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	s3Client, err := storage.NewS3Client(ctx, storageConfig(cfg.Storage))
	if err != nil {
		logger.Fatal("failed to configure S3", zap.Error(err))
	}

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	srv, err := wireServer(runCtx, db, redisClient, s3Client, nrApp, cfg, logger)
	if err != nil {
		logger.Fatal("failed to wire server", zap.Error(err))
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := srv.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.http.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	// Stop the hub and bus subscription, then let queued invoice jobs finish.
	stop()
	if err := srv.queue.Shutdown(shutdownCtx); err != nil {
		logger.Warn("job queue did not drain", zap.Error(err))
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

type server struct {
	http  *http.Server
	queue *worker.Queue
}

// wireServer wires all dependencies and returns the HTTP server with its job queue.
func wireServer(
	ctx context.Context,
	db *sql.DB,
	redisClient *redis.Client,
	s3Client *s3.Client,
	nrApp *newrelic.Application,
	cfg *config.Config,
	logger *zap.Logger,
) (*server, error) {
	tokens := middleware.NewTokenParser(cfg.Auth.JWTSecret)

	rt := app.NewRealtime(cfg.Realtime, redisClient, tokens.Parse, logger)
	if err := rt.Start(ctx); err != nil {
		return nil, err
	}

	// Repositories.
	tx := postgres.NewTransactor(db)
	userRepo := postgres.NewUserRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	rideRepo := postgres.NewRideRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)

	// Adapters.
	queue := worker.NewQueue(worker.Config{
		Workers:    cfg.Worker.Workers,
		Buffer:     cfg.Worker.Buffer,
		JobTimeout: cfg.Worker.JobTimeout,
	}, logger)
	smtp, err := mailer.NewSMTP(mailer.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
	}, logger)
	if err != nil {
		return nil, err
	}
	objects := storage.NewS3(s3Client, storageConfig(cfg.Storage))
	renderer := invoice.NewRenderer(cfg.Invoice.CompanyName, cfg.Invoice.Currency)
	callbacks := cfg.Gateway.CallbackBase + "/v1/payments"
	sslcommerz := gateway.NewSSLCommerz(gateway.Config{
		BaseURL:        cfg.Gateway.BaseURL,
		StoreID:        cfg.Gateway.StoreID,
		StorePassword:  cfg.Gateway.StorePassword,
		Currency:       cfg.Gateway.Currency,
		SuccessURL:     callbacks + "/success",
		FailURL:        callbacks + "/fail",
		CancelURL:      callbacks + "/cancel",
		DefaultAddress: cfg.Gateway.DefaultAddress,
		DefaultPhone:   cfg.Gateway.DefaultPhone,
		Timeout:        cfg.Gateway.Timeout,
	}, nil, logger)

	// Services.
	driverService := service.NewDriverService(driverRepo, userRepo, logger)
	rideService := service.NewRideService(tx, rideRepo, driverRepo, rt.Notifier, logger, service.RideOptions{
		CancelWindow: cfg.Ride.CancelWindow,
		TimeZone:     cfg.Ride.Location(),
	})
	matchingService := service.NewMatchingService(tx, rideRepo, driverRepo, rt.Notifier, logger)
	invoiceService := service.NewInvoiceService(paymentRepo, rideRepo, userRepo, renderer, objects, smtp, queue, logger)
	paymentService := service.NewPaymentService(tx, rideRepo, paymentRepo, userRepo, sslcommerz, invoiceService, rt.Notifier, logger)

	router := app.NewRouter(app.RouterDeps{
		RideHandler:    handler.NewRideHandler(rideService, logger),
		DriverHandler:  handler.NewDriverHandler(driverService, rideService, matchingService, logger),
		AdminHandler:   handler.NewAdminHandler(driverService, logger),
		PaymentHandler: handler.NewPaymentHandler(paymentService, cfg.Server.FrontendURL, logger),
		Hub:            rt.Hub,
		Tokens:         tokens,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		Logger:         logger,
		AllowedOrigin:  cfg.Server.FrontendURL,
	})

	return &server{
		http: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		queue: queue,
	}, nil
}

func storageConfig(c config.StorageConfig) storage.Config {
	return storage.Config{
		Region:        c.Region,
		AccessKey:     c.AccessKey,
		SecretKey:     c.SecretKey,
		Bucket:        c.Bucket,
		Prefix:        c.Prefix,
		Endpoint:      c.Endpoint,
		PublicBaseURL: c.PublicBaseURL,
		LinkExpiry:    c.LinkExpiry,
	}
}
