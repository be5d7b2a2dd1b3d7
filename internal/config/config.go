package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/segyhp/servicing-engine/internal/domain"
	"github.com/segyhp/servicing-engine/pkg/logger"
	"github.com/segyhp/servicing-engine/pkg/money"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Business  BusinessConfig  `mapstructure:"business"`
	Health    HealthConfig    `mapstructure:"health"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	Env          string        `mapstructure:"env"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SchedulerConfig struct {
	// ReprocessSpec is a cron expression with a leading seconds field
	ReprocessSpec string `mapstructure:"reprocess_spec"`
	Timezone      string `mapstructure:"timezone"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type BusinessConfig struct {
	DefaultCurrency string `mapstructure:"default_currency"`
	VATPercentage   string `mapstructure:"vat_percentage"`

	// WaterfallOrder and FeeCategoryOrder are comma separated
	WaterfallOrder   string `mapstructure:"waterfall_order"`
	FeeCategoryOrder string `mapstructure:"fee_category_order"`

	MaxReschedules       int           `mapstructure:"max_reschedules"`
	RescheduleWindow     time.Duration `mapstructure:"reschedule_window"`
	DelinquencyThreshold int           `mapstructure:"delinquency_threshold"`
	OutstandingCacheTTL  time.Duration `mapstructure:"outstanding_cache_ttl"`
	LoanLockTTL          time.Duration `mapstructure:"loan_lock_ttl"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

var defaults = map[string]any{
	"server.port":                    "8080",
	"server.host":                    "0.0.0.0",
	"server.env":                     "development",
	"server.read_timeout":            "15s",
	"server.write_timeout":           "15s",
	"database.url":                   "",
	"database.host":                  "localhost",
	"database.port":                  "5432",
	"database.name":                  "servicing",
	"database.user":                  "postgres",
	"database.password":              "",
	"database.sslmode":               "disable",
	"database.max_open_conns":        25,
	"database.max_idle_conns":        5,
	"database.conn_max_lifetime":     "5m",
	"redis.host":                     "localhost",
	"redis.port":                     "6379",
	"redis.password":                 "",
	"redis.db":                       0,
	"scheduler.reprocess_spec":       "0 30 0 * * *",
	"scheduler.timezone":             "UTC",
	"logging.level":                  "info",
	"logging.format":                 "json",
	"logging.output":                 "stdout",
	"business.default_currency":      "USD",
	"business.vat_percentage":        "0",
	"business.waterfall_order":       "penalty,penalty_vat,fee,fee_vat,interest,principal",
	"business.fee_category_order":    "honorarios,aval,mandatory_insurance,mandatory_insurance_vat,voluntary_insurance,standard",
	"business.max_reschedules":       2,
	"business.reschedule_window":     "8760h",
	"business.delinquency_threshold": 2,
	"business.outstanding_cache_ttl": "10m",
	"business.loan_lock_ttl":         "30s",
	"health.timeout":                 "5s",
}

// Load reads configuration from an optional config file and the environment.
// A .env file, when present, is loaded into the process environment first.
// Environment variables use the upper-cased key with dots replaced by
// underscores, e.g. BUSINESS_MAX_RESCHEDULES.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./deployments")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	if c.Database.URL == "" && c.Database.Host == "" {
		return fmt.Errorf("database.url or database.host is required")
	}

	if _, err := zapcore.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	if _, err := CronParser().Parse(c.Scheduler.ReprocessSpec); err != nil {
		return fmt.Errorf("scheduler.reprocess_spec must be a valid cron expression: %w", err)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone must be a valid location: %w", err)
	}

	if _, err := money.ParseCurrency(c.Business.DefaultCurrency); err != nil {
		return fmt.Errorf("business.default_currency: %w", err)
	}

	vat, err := decimal.NewFromString(c.Business.VATPercentage)
	if err != nil {
		return fmt.Errorf("business.vat_percentage must be a valid decimal: %w", err)
	}
	if vat.IsNegative() {
		return fmt.Errorf("business.vat_percentage cannot be negative")
	}

	if _, err := c.WaterfallOrder(); err != nil {
		return fmt.Errorf("business.waterfall_order: %w", err)
	}

	if c.Business.MaxReschedules < 0 {
		return fmt.Errorf("business.max_reschedules cannot be negative")
	}
	if c.Business.MaxReschedules > 0 && c.Business.RescheduleWindow <= 0 {
		return fmt.Errorf("business.reschedule_window must be greater than 0")
	}

	if c.Business.DelinquencyThreshold <= 0 {
		return fmt.Errorf("business.delinquency_threshold must be greater than 0")
	}

	if c.Business.OutstandingCacheTTL <= 0 {
		return fmt.Errorf("business.outstanding_cache_ttl must be greater than 0")
	}
	if c.Business.LoanLockTTL <= 0 {
		return fmt.Errorf("business.loan_lock_ttl must be greater than 0")
	}

	if c.Health.Timeout <= 0 {
		return fmt.Errorf("health.timeout must be greater than 0")
	}

	return nil
}

const cronFields = cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor

// CronParser parses the scheduler's six-field expressions
func CronParser() cron.Parser {
	return cron.NewParser(cronFields)
}

// DSN returns the postgres connection string
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Addr returns the redis host:port
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}

// Currency returns the currency new loans default to
func (c *Config) Currency() money.Currency {
	currency, _ := money.ParseCurrency(c.Business.DefaultCurrency)
	return currency
}

// VATPercentage returns the VAT rate new loans default to
func (c *Config) VATPercentage() decimal.Decimal {
	vat, _ := decimal.NewFromString(c.Business.VATPercentage)
	return vat
}

// WaterfallOrder parses the component precedence. Every component must
// appear exactly once.
func (c *Config) WaterfallOrder() ([]domain.Component, error) {
	var order []domain.Component
	seen := make(map[domain.Component]bool)
	for _, name := range splitList(c.Business.WaterfallOrder) {
		component, err := domain.ParseComponent(name)
		if err != nil {
			return nil, err
		}
		if seen[component] {
			return nil, fmt.Errorf("component %s listed twice", component)
		}
		seen[component] = true
		order = append(order, component)
	}
	for _, component := range domain.AllComponents {
		if !seen[component] {
			return nil, fmt.Errorf("component %s missing", component)
		}
	}
	return order, nil
}

// FeeCategoryOrder returns the order fee categories are settled in
func (c *Config) FeeCategoryOrder() []domain.ChargeCategory {
	var order []domain.ChargeCategory
	for _, name := range splitList(c.Business.FeeCategoryOrder) {
		order = append(order, domain.ChargeCategory(strings.ToLower(name)))
	}
	return order
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
