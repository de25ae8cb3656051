package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/order"
	"github.com/xenking/storefront-checkout/internal/domain/payment"
	"github.com/xenking/storefront-checkout/internal/domain/submission"
	"github.com/xenking/storefront-checkout/internal/handler"
	"github.com/xenking/storefront-checkout/internal/storage"
	"github.com/xenking/storefront-checkout/internal/storage/memory"
	"github.com/xenking/storefront-checkout/internal/storage/postgres"
	"github.com/xenking/storefront-checkout/internal/storage/redis"
	"github.com/xenking/storefront-checkout/internal/storefront"
	"github.com/xenking/storefront-checkout/internal/stripe"
	"github.com/xenking/storefront-checkout/internal/woocommerce"
	"github.com/xenking/storefront-checkout/pkg/health"
	"github.com/xenking/storefront-checkout/pkg/httpmiddleware"
)

// stores is the persistence selected by the config.
type stores struct {
	kv      storage.KV
	archive order.Archive
	checks  map[string]health.CheckFunc
	closers []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg StoreConfig) (_ *stores, rerr error) {
	s := &stores{checks: map[string]health.CheckFunc{}}
	defer func() {
		if rerr != nil {
			s.close()
		}
	}()

	var pool *pgxpool.Pool
	if cfg.Driver == StorePostgres || cfg.ArchiveOrders {
		p, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		s.closers = append(s.closers, p.Close)
		if err := postgres.RunMigrations(ctx, p); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		s.checks["postgres"] = p.Ping
		pool = p
	}
	if cfg.ArchiveOrders {
		s.archive = postgres.NewSummaryArchive(pool)
	}

	switch cfg.Driver {
	case StoreRedis:
		r, err := redis.Open(ctx, cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, errors.Wrap(err, "open redis")
		}
		s.closers = append(s.closers, func() { _ = r.Close() })
		s.checks["redis"] = r.Ping
		s.kv = r
	case StorePostgres:
		s.kv = postgres.NewKV(pool)
	default:
		s.kv = memory.New()
	}
	return s, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.Store.Driver),
	)

	st, err := openStores(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.close()

	wc, err := woocommerce.New(woocommerce.Config{
		BaseURL:        cfg.WooCommerce.BaseURL,
		OptionsURL:     cfg.WooCommerce.OptionsURL,
		ConsumerKey:    cfg.WooCommerce.ConsumerKey,
		ConsumerSecret: cfg.WooCommerce.ConsumerSecret,
		Timeout:        cfg.WooCommerce.Timeout,
	}, woocommerce.Options{
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create woocommerce client")
	}

	sc, err := stripe.NewClient(ctx, stripe.Config{
		Environment:        cfg.Stripe.Environment,
		APIKey:             cfg.Stripe.APIKey,
		PaymentMethodTypes: cfg.Stripe.PaymentMethodTypes,
	})
	if err != nil {
		return errors.Wrap(err, "create stripe client")
	}

	// Health check service.
	healthSvc := health.New()
	for name, check := range st.checks {
		healthSvc.AddReadinessCheck(name, 5*time.Second, check)
	}
	if cfg.WooCommerce.OptionsURL != "" {
		healthSvc.AddReadinessCheck("woocommerce", 5*time.Second,
			health.HTTPCheck(http.DefaultClient, cfg.WooCommerce.OptionsURL),
			health.Optional(),
		)
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Sessions.
	sessions, err := storefront.NewManager(storefront.Deps{
		KV:        st.kv,
		Catalog:   wc,
		Shipping:  storefront.NewShippingTable(wc, cfg.Checkout.ShippingCacheTTL),
		Coupons:   coupon.NewRepoValidator(wc),
		Backend:   wc,
		Intents:   sc,
		Processor: sc,
		Archive:   st.archive,
	}, storefront.Config{
		AddressDebounce: cfg.Checkout.AddressDebounce,
		PersistDebounce: cfg.Checkout.PersistDebounce,
		IdleTimeout:     cfg.Checkout.SessionIdleTimeout,
		Submission: submission.Options{
			ReturnURL:           cfg.Stripe.ReturnURL,
			Currency:            cfg.Stripe.Currency,
			CreateOrderTimeout:  cfg.Checkout.CreateOrderTimeout,
			CreateIntentTimeout: cfg.Checkout.CreateIntentTimeout,
			ConfirmTimeout:      cfg.Checkout.ConfirmTimeout,
			UpdateStatusTimeout: cfg.Checkout.UpdateStatusTimeout,
			TracerProvider:      m.TracerProvider(),
			MeterProvider:       m.MeterProvider(),
		},
	})
	if err != nil {
		return errors.Wrap(err, "create session manager")
	}

	go sessions.RunEviction(ctx)

	h := handler.New(sessions, func(id string) payment.Form {
		return stripe.CardForm{Client: sc, PaymentMethodID: id}
	})

	mux := chi.NewRouter()
	mux.Get("/livez", healthSvc.LiveEndpoint)
	mux.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	// Submission waits on WooCommerce and Stripe in turn.
	writeTimeout := cfg.Checkout.CreateOrderTimeout + cfg.Checkout.CreateIntentTimeout +
		cfg.Checkout.ConfirmTimeout + cfg.Checkout.UpdateStatusTimeout

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		// Flush pending session writes before the stores close.
		if err := sessions.Close(shutdownCtx); err != nil {
			lg.Error("Close sessions", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
