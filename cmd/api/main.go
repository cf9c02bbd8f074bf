package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/fabshop-backend/api/routes"
	"github.com/angelmondragon/fabshop-backend/internal/cart"
	"github.com/angelmondragon/fabshop-backend/internal/catalog"
	"github.com/angelmondragon/fabshop-backend/internal/checkout"
	"github.com/angelmondragon/fabshop-backend/internal/dispatch"
	"github.com/angelmondragon/fabshop-backend/internal/documents"
	"github.com/angelmondragon/fabshop-backend/internal/orders"
	"github.com/angelmondragon/fabshop-backend/internal/shipping"
	"github.com/angelmondragon/fabshop-backend/internal/tax"
	squarewebhook "github.com/angelmondragon/fabshop-backend/internal/webhooks/square"
	"github.com/angelmondragon/fabshop-backend/pkg/config"
	"github.com/angelmondragon/fabshop-backend/pkg/db"
	"github.com/angelmondragon/fabshop-backend/pkg/db/models"
	"github.com/angelmondragon/fabshop-backend/pkg/enums"
	"github.com/angelmondragon/fabshop-backend/pkg/logger"
	"github.com/angelmondragon/fabshop-backend/pkg/metrics"
	"github.com/angelmondragon/fabshop-backend/pkg/migrate"
	"github.com/angelmondragon/fabshop-backend/pkg/redis"
	"github.com/angelmondragon/fabshop-backend/pkg/square"
	"github.com/angelmondragon/fabshop-backend/pkg/storage/gcs"
	"github.com/angelmondragon/fabshop-backend/pkg/storage/local"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers := []func() error{dbClient.Close}
	defer func() {
		for _, closeFn := range closers {
			err = multierr.Append(err, closeFn())
		}
	}()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(bootCtx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient.Close)
	} else {
		logg.Warn(bootCtx, "redis disabled: no request replay, rate limits or shared render locks")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	quoteMetrics := metrics.NewQuoteMetrics(reg)
	paymentMetrics := metrics.NewPaymentEventMetrics(reg)
	documentMetrics := metrics.NewDocumentMetrics(reg)

	quotes, err := newQuoteService(cfg.Pricing, quoteMetrics, logg)
	if err != nil {
		return err
	}

	store := orders.NewGormStore(dbClient.DB())

	var gateway checkout.PaymentGateway
	if cfg.Square.Configured() {
		squareClient, err := square.NewClient(bootCtx, cfg.Square, logg)
		if err != nil {
			return err
		}
		gateway = squareClient
	} else {
		logg.Warn(bootCtx, "square access token missing: checkout creates unpaid orders only")
	}

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Quotes:   quotes,
		Store:    store,
		Gateway:  gateway,
		Currency: enums.Currency(cfg.Square.DefaultCurrency),
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	storage, filesDir, closeStorage, err := newDocumentStorage(bootCtx, cfg, logg)
	if err != nil {
		return err
	}
	if closeStorage != nil {
		closers = append(closers, closeStorage)
	}

	var locker documents.Locker
	if redisClient != nil {
		locker, err = documents.NewRedisLocker(redisClient, cfg.Documents.LockTTL, cfg.Documents.RenderTimeout)
		if err != nil {
			return err
		}
	}

	generator, err := documents.NewGenerator(documents.GeneratorParams{
		Store:         store,
		Storage:       storage,
		Locker:        locker,
		QuoteTTL:      cfg.Documents.QuoteTTL,
		RenderTimeout: cfg.Documents.RenderTimeout,
		Metrics:       documentMetrics,
		Logger:        logg,
	})
	if err != nil {
		return err
	}

	stateMachine, err := orders.NewStateMachine(orders.StateMachineParams{
		Store:   store,
		Logger:  logg,
		Metrics: paymentMetrics,
		OnPaid:  shopPacketHook(cfg.FeatureFlags.AutoShopPacket, generator, logg),
	})
	if err != nil {
		return err
	}

	webhookSvc, dispatcher, err := newWebhookService(cfg, redisClient, stateMachine, paymentMetrics, logg)
	if err != nil {
		return err
	}

	deps := routes.Dependencies{
		DB:            dbClient,
		Redis:         redisClient,
		Quotes:        quotes,
		Checkout:      checkoutSvc,
		Orders:        store,
		Documents:     generator,
		SquareWebhook: webhookSvc,
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		FilesDir:      filesDir,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	logCtx := logg.WithFields(bootCtx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	if dispatcher != nil {
		err = multierr.Append(err, dispatcher.Stop(shutdownCtx))
	}
	return err
}

func newQuoteService(cfg config.PricingConfig, m *metrics.QuoteMetrics, logg *logger.Logger) (cart.Service, error) {
	pricing := catalog.DefaultPricingTable()
	if cfg.PricingTablePath != "" {
		loaded, err := catalog.LoadPricingTable(cfg.PricingTablePath)
		if err != nil {
			return nil, err
		}
		pricing = loaded
	}

	rates := tax.DefaultRates()
	if cfg.TaxTablePath != "" {
		loaded, err := tax.LoadRates(cfg.TaxTablePath)
		if err != nil {
			return nil, err
		}
		rates = loaded
	}
	policy, err := tax.ParsePolicy(cfg.CustomFabricationPolicy)
	if err != nil {
		return nil, err
	}
	taxEngine, err := tax.NewEngine(tax.Options{
		Rates:               rates,
		Policy:              policy,
		ManufacturingStates: cfg.ManufacturingStates,
	})
	if err != nil {
		return nil, err
	}

	table := shipping.DefaultTable()
	if cfg.ShippingTablePath != "" {
		loaded, err := shipping.LoadTable(cfg.ShippingTablePath)
		if err != nil {
			return nil, err
		}
		table = loaded
	}

	return cart.NewService(cart.ServiceParams{
		Validator: catalog.NewValidator(pricing, nil),
		Tax:       taxEngine,
		Shipping:  shipping.NewEngine(table),
		Metrics:   m,
		Logger:    logg,
	})
}

func newDocumentStorage(ctx context.Context, cfg *config.Config, logg *logger.Logger) (documents.Storage, string, func() error, error) {
	if cfg.Documents.UsesGCS() {
		client, err := gcs.NewClient(ctx, cfg.GCS, logg)
		if err != nil {
			return nil, "", nil, err
		}
		return client, "", client.Close, nil
	}
	store, err := local.New(cfg.Documents.LocalDir, cfg.Documents.PublicBaseURL)
	if err != nil {
		return nil, "", nil, err
	}
	return store, store.Dir(), nil, nil
}

// shopPacketHook renders the shop packet as soon as an order is paid. A
// failure is logged; the packet is rendered on first request instead.
func shopPacketHook(enabled bool, generator *documents.Generator, logg *logger.Logger) orders.PaidHook {
	if !enabled {
		return nil
	}
	return func(ctx context.Context, order *models.Order) {
		if _, err := generator.Ensure(ctx, order.JobID, enums.DocumentTypeShopPacket); err != nil {
			logg.Error(logg.WithJobID(ctx, order.JobID), "documents.shop_packet_failed", err)
		}
	}
}

func newWebhookService(cfg *config.Config, redisClient *redis.Client, applier squarewebhook.Applier, m *metrics.PaymentEventMetrics, logg *logger.Logger) (*squarewebhook.Service, *dispatch.Dispatcher, error) {
	params := squarewebhook.ServiceParams{
		Applier: applier,
		Metrics: m,
		Logger:  logg,
	}

	if cfg.Square.WebhookSecret != "" && cfg.Square.WebhookURL != "" {
		verifier, err := square.NewWebhookVerifier(cfg.Square)
		if err != nil {
			return nil, nil, err
		}
		params.Verifier = verifier
	} else {
		logg.Warn(context.Background(), "square webhook signature key or url missing: deliveries will be refused")
	}

	if redisClient != nil {
		guard, err := squarewebhook.NewGuard(redisClient, cfg.Webhooks.IdempotencyTTL)
		if err != nil {
			return nil, nil, err
		}
		params.Guard = guard
	}

	var dispatcher *dispatch.Dispatcher
	var svc *squarewebhook.Service
	if cfg.Webhooks.Async {
		dispatcher = dispatch.New(dispatch.Options{
			Shards:      cfg.Webhooks.Shards,
			QueueDepth:  cfg.Webhooks.QueueDepth,
			MaxAttempts: int(cfg.Webhooks.MaxAttempts),
			BaseBackoff: cfg.Webhooks.BaseBackoff,
			JobTimeout:  cfg.App.RequestTimeout,
			Logger:      logg,
			OnDrop: func(key, id string, err error) {
				svc.Dropped(key, id, err)
			},
		})
		params.Queue = dispatcher
	}

	svc, err := squarewebhook.NewService(params)
	if err != nil {
		if dispatcher != nil {
			_ = dispatcher.Stop(context.Background())
		}
		return nil, nil, err
	}
	return svc, dispatcher, nil
}
