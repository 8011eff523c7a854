package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds the configuration shared by every service binary, loadable
// from environment variables (SHOP_ prefix), flags, or YAML config files.
// Each service reads the fields it needs.
type Config struct {
	Addr         string `usage:"HTTP listen address (defaults to the service port)"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Storage      string `default:"postgres" usage:"Storage backend: postgres or memory"`
	ImageBaseURL string `default:"" usage:"Base URL for relative product image paths" flag:"image-base-url"`

	RedisAddr string        `default:"" usage:"Redis address for catalog cache and shared rate limits" flag:"redis-addr"`
	CacheTTL  time.Duration `default:"5m" usage:"Catalog cache TTL" flag:"cache-ttl"`

	CatalogURL      string        `default:"http://localhost:8001" usage:"Catalog service base URL" flag:"catalog-url"`
	CatalogTimeout  time.Duration `default:"3s" usage:"Catalog request timeout" flag:"catalog-timeout"`
	DeliveryURL     string        `default:"http://localhost:8003" usage:"Delivery service base URL" flag:"delivery-url"`
	DeliveryTimeout time.Duration `default:"3s" usage:"Delivery notification timeout" flag:"delivery-timeout"`
	Standalone      bool          `default:"false" usage:"Serve catalog and delivery in-process with cart-order"`

	Kafka     KafkaConfig
	Auth      AuthConfig
	Delivery  DeliveryConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// KafkaConfig controls order event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka bootstrap brokers"`
	Topic   string   `default:"order.placed" usage:"Topic for order placed events"`
}

// AuthConfig controls bearer tokens.
type AuthConfig struct {
	Secret          string        `usage:"HMAC secret for signing bearer tokens (SHOP_AUTH_SECRET)"`
	TokenTTL        time.Duration `default:"60m" usage:"Bearer token lifetime" flag:"token-ttl"`
	RegistrationOTP string        `usage:"Code required to register a user" flag:"registration-otp"`
	Required        bool          `default:"false" usage:"Require a bearer token on cart, order and delivery routes" flag:"auth-required"`
}

// DeliveryConfig controls the delivery tracker.
type DeliveryConfig struct {
	StrictTransitions bool `default:"false" usage:"Only allow forward status transitions" flag:"strict-transitions"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration for svc from environment variables and YAML
// config files, then applies platform defaults.
func LoadConfig(svc Service) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files: []string{
			"config.yaml",
			string(svc) + ".yaml",
			"/etc/quickcart/config.yaml",
			"/etc/quickcart/" + string(svc) + ".yaml",
		},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(svc)

	if err := cfg.validate(svc); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided DATABASE_URL and PORT to the
// SHOP_-prefixed configuration and picks the service's default port.
func (c *Config) applyPlatformDefaults(svc Service) {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Addr == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = svc.defaultPort()
		}
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate(svc Service) error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL, or SHOP_STORAGE=memory")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage %q", c.Storage)
	}

	needsSecret := svc == ServiceUser || (c.Auth.Required && svc != ServiceCatalog)
	if needsSecret && c.Auth.Secret == "" {
		return errors.New("auth secret is required: set SHOP_AUTH_SECRET")
	}
	if svc == ServiceUser && c.Auth.RegistrationOTP == "" {
		return errors.New("registration OTP is required: set SHOP_AUTH_REGISTRATION_OTP")
	}
	return nil
}
