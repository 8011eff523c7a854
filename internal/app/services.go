package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/quickcart/db"
	"github.com/xenking/quickcart/internal/client/catalog"
	deliveryclient "github.com/xenking/quickcart/internal/client/delivery"
	"github.com/xenking/quickcart/internal/domain/cart"
	"github.com/xenking/quickcart/internal/domain/delivery"
	"github.com/xenking/quickcart/internal/domain/order"
	"github.com/xenking/quickcart/internal/domain/product"
	"github.com/xenking/quickcart/internal/domain/user"
	"github.com/xenking/quickcart/internal/events"
	"github.com/xenking/quickcart/internal/handler"
	"github.com/xenking/quickcart/internal/storage/memory"
	"github.com/xenking/quickcart/internal/storage/postgres"
	redisstore "github.com/xenking/quickcart/internal/storage/redis"
	"github.com/xenking/quickcart/pkg/health"
)

// products returns the catalog repository, cached through Redis when
// configured.
func (d *deps) products() (product.Repository, error) {
	var repo product.Repository
	if d.pool != nil {
		repo = postgres.NewProductRepository(d.pool)
	} else {
		seed, err := db.Products()
		if err != nil {
			return nil, errors.Wrap(err, "load seed products")
		}
		repo = memory.NewProducts(seed...)
	}
	if d.redis != nil {
		repo = redisstore.NewProductCache(repo, d.redis, "catalog", d.cfg.CacheTTL)
	}
	return repo, nil
}

func (d *deps) deliveryService() *delivery.Service {
	var repo delivery.Repository = memory.NewDeliveries()
	if d.pool != nil {
		repo = postgres.NewDeliveryRepository(d.pool)
	}
	return delivery.NewService(repo, delivery.WithStrictTransitions(d.cfg.Delivery.StrictTransitions))
}

func (d *deps) security() *handler.SecurityHandler {
	tokens := user.NewTokenIssuer([]byte(d.cfg.Auth.Secret), d.cfg.Auth.TokenTTL)
	return handler.NewSecurityHandler(tokens, d.cfg.Auth.Required)
}

func (d *deps) catalog() (func(chi.Router), error) {
	products, err := d.products()
	if err != nil {
		return nil, err
	}
	h := handler.NewCatalogHandler(handler.CatalogConfig{ImageBaseURL: d.cfg.ImageBaseURL}, products)
	return h.Routes, nil
}

func (d *deps) cartOrder() (func(chi.Router), error) {
	cfg := d.cfg

	var (
		carts      cart.Repository = memory.NewCarts()
		orders     order.Repository = memory.NewOrders()
		lookup     cart.Catalog
		notifier   order.DeliveryNotifier
		localMount []func(chi.Router)
	)
	if d.pool != nil {
		carts = postgres.NewCartRepository(d.pool)
		orders = postgres.NewOrderRepository(d.pool)
	}

	if cfg.Standalone {
		products, err := d.products()
		if err != nil {
			return nil, err
		}
		deliveries := d.deliveryService()
		lookup, notifier = products, deliveries

		catalogHandler := handler.NewCatalogHandler(handler.CatalogConfig{ImageBaseURL: cfg.ImageBaseURL}, products)
		deliveryHandler := handler.NewDeliveryHandler(deliveries)
		localMount = append(localMount, catalogHandler.Routes, deliveryHandler.InternalRoutes)
		d.lg.Info("Serving catalog and delivery in-process")
	} else {
		lookup = catalog.New(cfg.CatalogURL, cfg.CatalogTimeout)
		notifier = deliveryclient.New(cfg.DeliveryURL, cfg.DeliveryTimeout)

		checkClient := &http.Client{
			Timeout:   2 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
		d.health.AddReadinessCheck("catalog", 3*time.Second,
			health.HTTPCheck(checkClient, strings.TrimRight(cfg.CatalogURL, "/")+"/livez"))
	}

	var publisher order.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		d.onClose(func() {
			if err := kp.Close(); err != nil {
				d.lg.Warn("Close kafka producer", zap.Error(err))
			}
		})
		publisher = kp
		d.lg.Info("Publishing order events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	var opts []order.Option
	if d.m != nil {
		opts = append(opts,
			order.WithTracerProvider(d.m.TracerProvider()),
			order.WithMeterProvider(d.m.MeterProvider()),
		)
	}
	orderService, err := order.NewService(carts, orders, notifier, publisher, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}

	cartHandler := handler.NewCartHandler(cart.NewService(lookup, carts))
	orderHandler := handler.NewOrderHandler(orderService)
	sec := d.security()

	return func(r chi.Router) {
		for _, mount := range localMount {
			mount(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(sec.Middleware)
			cartHandler.Routes(r)
			orderHandler.Routes(r)
		})
	}, nil
}

func (d *deps) delivery() (func(chi.Router), error) {
	h := handler.NewDeliveryHandler(d.deliveryService())
	sec := d.security()
	return func(r chi.Router) {
		h.InternalRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(sec.Middleware)
			h.Routes(r)
		})
	}, nil
}

func (d *deps) user() (func(chi.Router), error) {
	var repo user.Repository = memory.NewUsers()
	if d.pool != nil {
		repo = postgres.NewUserRepository(d.pool)
	}
	tokens := user.NewTokenIssuer([]byte(d.cfg.Auth.Secret), d.cfg.Auth.TokenTTL)
	h := handler.NewUserHandler(user.NewService(repo, tokens, d.cfg.Auth.RegistrationOTP))
	return h.Routes, nil
}
