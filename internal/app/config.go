package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodorder/internal/domain/coupon"
	"github.com/xenking/foodorder/internal/domain/pricing"
)

// Config holds the complete application configuration, loadable from
// environment variables (FOOD_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string        `usage:"PostgreSQL connection URL (FOOD_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string        `default:"" usage:"Base URL for menu images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	APIKeyPepper string        `usage:"HMAC pepper for API key hashing (FOOD_API_KEY_PEPPER)" flag:"api-key-pepper"`
	JWTSecret    string        `usage:"HS256 secret for bearer tokens (FOOD_JWT_SECRET)" flag:"jwt-secret"`
	JWTTTL       time.Duration `default:"24h" usage:"Lifetime of issued bearer tokens" flag:"jwt-ttl"`
	AMQPURL      string        `default:"" usage:"RabbitMQ URL for order events; empty disables publishing" flag:"amqp-url"`
	AMQPExchange string        `default:"order_events" usage:"Fanout exchange for order events" flag:"amqp-exchange"`
	Pricing      PricingConfig
	Orders       OrdersConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// PricingConfig holds cart pricing parameters. Amounts are decimal strings.
type PricingConfig struct {
	FreeDeliveryThreshold string   `default:"50.00" usage:"Subtotal above which delivery is free" flag:"free-delivery-threshold"`
	DeliveryFee           string   `default:"5.99" usage:"Delivery fee below the threshold" flag:"delivery-fee"`
	TaxRate               string   `default:"0.08" usage:"Tax rate applied after discount" flag:"tax-rate"`
	FreeDelivery          bool     `default:"false" usage:"Waive the delivery fee for every order" flag:"free-delivery"`
	Coupons               []string `default:"FOOD10:10,WELCOME15:15,SAVE20:20" usage:"Coupon codes as CODE:PERCENT"`
}

// OrdersConfig controls order placement.
type OrdersConfig struct {
	VerifyPrices bool `default:"true" usage:"Re-check submitted prices and availability against the menu" flag:"verify-prices"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
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

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "FOOD",
		Files:     []string{"config.yaml", "/etc/food/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set FOOD_DATABASE_URL or DATABASE_URL")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT secret is required: set FOOD_JWT_SECRET")
	}
	if _, err := c.Pricing.Calculator(); err != nil {
		return err
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's FOOD_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// Calculator parses the pricing parameters and coupon table.
func (p PricingConfig) Calculator() (*pricing.Calculator, error) {
	cfg := pricing.Config{FreeDelivery: p.FreeDelivery}
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"free delivery threshold", p.FreeDeliveryThreshold, &cfg.FreeDeliveryThreshold},
		{"delivery fee", p.DeliveryFee, &cfg.DeliveryFee},
		{"tax rate", p.TaxRate, &cfg.TaxRate},
	} {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s %q", f.name, f.raw)
		}
		if v.IsNegative() {
			return nil, errors.Errorf("%s must not be negative", f.name)
		}
		*f.dst = v
	}

	rules, err := coupon.ParseRules(p.Coupons)
	if err != nil {
		return nil, errors.Wrap(err, "parse coupons")
	}
	table, err := coupon.NewTable(rules...)
	if err != nil {
		return nil, errors.Wrap(err, "build coupon table")
	}
	return pricing.NewCalculator(cfg, table), nil
}
