package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashendes/kitchen-pos/internal/api"
	"github.com/ashendes/kitchen-pos/internal/backend"
	"github.com/ashendes/kitchen-pos/internal/config"
	"github.com/ashendes/kitchen-pos/internal/events"
	"github.com/ashendes/kitchen-pos/internal/kitchen"
	"github.com/ashendes/kitchen-pos/internal/menu"
	"github.com/ashendes/kitchen-pos/internal/metrics"
	"github.com/ashendes/kitchen-pos/internal/mongo"
	"github.com/ashendes/kitchen-pos/internal/settlement"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const (
	serviceName     = "kitchen-service"
	startupTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func init() {
	// Initialize logger
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)
}

func main() {
	cfg, err := config.Load("kitchen")
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, keeping info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := backend.New(backend.Options{
		BaseURL: cfg.BackendURL,
		Token:   cfg.BackendToken,
		Timeout: cfg.BackendTimeout,
		Logger:  log.WithField("component", "backend"),
	})

	catalog := menu.NewCatalog(client, log.WithField("component", "menu"))
	if err := catalog.Refresh(ctx); err != nil {
		log.Warn("Menu catalog not loaded, retrying in the background: ", err)
		go func() {
			if err := catalog.RetryUntilLoaded(ctx, cfg.MenuRetry); err != nil {
				log.Warn("Gave up loading menu catalog: ", err)
			}
		}()
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL, serviceName)
		if err != nil {
			log.Fatal("Failed to connect event bus: ", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	var ledger settlement.Ledger = settlement.NewMemoryLedger()
	if cfg.MongoURL != "" {
		repo := mongo.NewTransactionRepo(cfg.MongoURL, cfg.MongoName, log.WithField("component", "mongo"))
		startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		err := repo.Start(startCtx)
		cancel()
		if err != nil {
			log.Fatal("Failed to start transaction store: ", err)
		}
		defer repo.Stop(context.Background())
		ledger = repo
	}

	clock := kitchen.SystemClock{}
	store := kitchen.NewStore(clock)

	kitchenService := kitchen.NewService(store,
		kitchen.WithMenu(catalog),
		kitchen.WithSyncer(client),
		kitchen.WithPublisher(publisher),
		kitchen.WithClock(clock),
		kitchen.WithLogger(log.WithField("component", "kitchen")),
	)

	calculator := settlement.NewCalculator(catalog,
		settlement.WithTaxRate(cfg.TaxRate),
		settlement.AllowUnpriced(cfg.AllowUnpriced),
	)
	processor := settlement.NewProcessor(store, calculator, ledger,
		settlement.WithPoster(client),
		settlement.WithPublisher(publisher),
		settlement.WithClock(clock),
		settlement.WithLogger(log.WithField("component", "settlement")),
	)

	restoreCtx, cancelRestore := context.WithTimeout(ctx, startupTimeout)
	if restored, err := kitchenService.Restore(restoreCtx, client); err != nil {
		log.Warn("Kitchen orders not restored, starting empty: ", err)
	} else if restored > 0 {
		if marked, err := processor.Reconcile(restoreCtx); err != nil {
			log.Warn("Restored orders not reconciled with the ledger: ", err)
		} else if marked > 0 {
			log.WithField("orders", marked).Info("Restored orders already settled")
		}
	}
	cancelRestore()

	ticker := kitchen.NewTicker(store, clock, cfg.TickInterval, log.WithField("component", "ticker"))
	if err := ticker.Start(ctx); err != nil {
		log.Fatal("Failed to start ticker: ", err)
	}

	router := gin.Default()

	// Add Prometheus middleware
	router.Use(metrics.PrometheusMiddleware(serviceName))

	api.NewHandler(kitchenService, processor, catalog, client.Circuit(), log.WithField("component", "api")).Register(router)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{
		Addr:    ":" + cfg.WebPort,
		Handler: router,
	}

	go func() {
		log.WithFields(log.Fields{
			"port":        cfg.WebPort,
			"backend_url": cfg.BackendURL,
			"tax_rate":    cfg.TaxRate.String(),
			"nats":        cfg.NATSURL != "",
			"mongo":       cfg.MongoURL != "",
		}).Info("Kitchen Service starting")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down Kitchen Service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed: ", err)
	}

	ticker.Stop()
	kitchenService.Wait()
	processor.Wait()
}
