// Package app wires configuration, storage, domain services and HTTP
// handlers into the runnable shop services.
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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/quickcart/internal/storage/postgres"
	"github.com/xenking/quickcart/pkg/health"
	"github.com/xenking/quickcart/pkg/httpmiddleware"
)

// Service names a deployable binary.
type Service string

// Services.
const (
	ServiceCatalog   Service = "catalog"
	ServiceCartOrder Service = "cart-order"
	ServiceDelivery  Service = "delivery"
	ServiceUser      Service = "user"
)

func (s Service) defaultPort() string {
	switch s {
	case ServiceCatalog:
		return "8001"
	case ServiceCartOrder:
		return "8002"
	case ServiceDelivery:
		return "8003"
	case ServiceUser:
		return "8004"
	default:
		return "8080"
	}
}

// deps holds the infrastructure shared by the service runners.
type deps struct {
	lg     *zap.Logger
	m      *app.Telemetry
	cfg    *Config
	health *health.Health
	pool   *pgxpool.Pool        // nil in memory mode
	redis  redis.UniversalClient // nil without RedisAddr

	closers []func()
}

// onClose registers fn to run at cleanup, in reverse registration order.
func (d *deps) onClose(fn func()) {
	d.closers = append(d.closers, fn)
}

// close releases everything registered with onClose. Run calls it only after
// the server has drained.
func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// open connects the configured backends and registers their readiness checks.
// The returned cleanup releases them.
func open(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) (*deps, func(), error) {
	d := &deps{
		lg:     lg,
		m:      m,
		cfg:    cfg,
		health: health.New(),
	}
	if cfg.Storage == StoragePostgres {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create db pool")
		}
		d.onClose(pool.Close)

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			d.close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		d.pool = pool
		d.health.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	} else {
		lg.Warn("Using in-memory storage, data is lost on restart")
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		d.onClose(func() {
			if err := client.Close(); err != nil {
				lg.Warn("Close redis", zap.Error(err))
			}
		})
		d.redis = client
		// Redis only backs a cache and rate limits; an outage degrades them
		// but does not make the service unready.
		if err := health.RedisCheck(client)(ctx); err != nil {
			lg.Warn("Redis unavailable at startup", zap.Error(err))
		}
	}

	d.health.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	d.health.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))
	return d, d.close, nil
}

// serve runs the HTTP server for svc until ctx is cancelled, then drains it.
func (d *deps) serve(ctx context.Context, svc Service, mount func(r chi.Router)) error {
	cfg := d.cfg
	lg := d.lg

	d.health.Start(ctx, 10*time.Second)
	d.health.SetReady(true)

	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests(), httpmiddleware.Labeler())
	d.health.Mount(r)
	mount(r)

	rlCfg := httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	}
	rateLimit := httpmiddleware.RateLimitWithCleanup(ctx, rlCfg)
	if d.redis != nil {
		rateLimit = httpmiddleware.RedisRateLimit(d.redis, "quickcart:"+string(svc)+":ratelimit:", rlCfg)
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(r,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-Request-ID"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			rateLimit,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx).With(zap.String("service", string(svc)))),
			httpmiddleware.Instrument(string(svc), d.m),
		),
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		d.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		d.health.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("service", string(svc)), zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// Run starts svc. It is the single wiring point for every service binary.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config, svc Service) error {
	lg.Info("Initializing",
		zap.String("service", string(svc)),
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	d, cleanup, err := open(ctx, lg, m, cfg)
	if err != nil {
		return err
	}
	// Deferred so producers and pools outlive the shutdown drain in serve.
	defer cleanup()

	var mount func(chi.Router)
	switch svc {
	case ServiceCatalog:
		mount, err = d.catalog()
	case ServiceCartOrder:
		mount, err = d.cartOrder()
	case ServiceDelivery:
		mount, err = d.delivery()
	case ServiceUser:
		mount, err = d.user()
	default:
		return errors.Errorf("unknown service %q", svc)
	}
	if err != nil {
		return errors.Wrapf(err, "wire %s", svc)
	}
	return d.serve(ctx, svc, mount)
}
