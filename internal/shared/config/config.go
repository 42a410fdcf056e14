// Package config loads application configuration from config.yaml and
// BOOKWISE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bookwise/payments/internal/shared/logger"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        logger.Config    `mapstructure:"log"`
	Payment    PaymentConfig    `mapstructure:"payment"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN builds the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PaymentConfig tunes the orchestrator.
type PaymentConfig struct {
	DefaultProvider string        `mapstructure:"default_provider"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	IdempotencyTTL  time.Duration `mapstructure:"idempotency_ttl"`
}

type ProvidersConfig struct {
	Stripe StripeConfig `mapstructure:"stripe"`
	Alipay AlipayConfig `mapstructure:"alipay"`
	Wechat WechatConfig `mapstructure:"wechat"`
}

type StripeConfig struct {
	APIKey        string `mapstructure:"api_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type AlipayConfig struct {
	AppID           string `mapstructure:"app_id"`
	PrivateKey      string `mapstructure:"private_key"`
	AlipayPublicKey string `mapstructure:"alipay_public_key"`
	IsProd          bool   `mapstructure:"is_prod"`
}

type WechatConfig struct {
	AppID           string `mapstructure:"app_id"`
	MchID           string `mapstructure:"mch_id"`
	SerialNo        string `mapstructure:"serial_no"`
	APIv3Key        string `mapstructure:"api_v3_key"`
	PrivateKey      string `mapstructure:"private_key"`
	PublicKeySerial string `mapstructure:"public_key_serial"`
	PublicKey       string `mapstructure:"public_key"`
	NotifyURL       string `mapstructure:"notify_url"`
	IsProd          bool   `mapstructure:"is_prod"`
}

// MonitoringConfig tunes the metrics and alerting sink.
type MonitoringConfig struct {
	Namespace         string        `mapstructure:"namespace"`
	WindowSize        int           `mapstructure:"window_size"`
	SuccessRateWindow time.Duration `mapstructure:"success_rate_window"`
}

// Load reads configuration from config.yaml and the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/bookwise")

	setDefaults(v)

	v.SetEnvPrefix("BOOKWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// env-only configuration is fine
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Secrets always win from the environment.
	if key := os.Getenv("STRIPE_API_KEY"); key != "" {
		cfg.Providers.Stripe.APIKey = key
	}
	if secret := os.Getenv("STRIPE_WEBHOOK_SECRET"); secret != "" {
		cfg.Providers.Stripe.WebhookSecret = secret
	}
	if key := os.Getenv("ALIPAY_PRIVATE_KEY"); key != "" {
		cfg.Providers.Alipay.PrivateKey = key
	}
	if key := os.Getenv("WECHAT_API_V3_KEY"); key != "" {
		cfg.Providers.Wechat.APIv3Key = key
	}
	if pw := os.Getenv("DATABASE_PASSWORD"); pw != "" {
		cfg.Database.Password = pw
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "bookwise")
	v.SetDefault("database.name", "bookwise_payments")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open", 25)
	v.SetDefault("database.max_idle", 5)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("payment.default_provider", "stripe")
	v.SetDefault("payment.provider_timeout", "30s")
	v.SetDefault("payment.idempotency_ttl", "24h")

	v.SetDefault("monitoring.namespace", "bookwise")
	v.SetDefault("monitoring.window_size", 1000)
	v.SetDefault("monitoring.success_rate_window", "5m")
}
