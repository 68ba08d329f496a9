package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Pricing     PricingConfig
	Uploads     UploadsConfig
	Maintenance MaintenanceConfig
	Cache       CacheConfig
	Reports     ReportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	QueryTimeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PricingConfig drives the injectable cost policy and approval guard.
// Rates are per-gram by material plus a flat hourly machine rate. The
// negative-balance floor is how far below zero a balance may sink before
// can_print turns off; credit limit is the default headroom for new users.
type PricingConfig struct {
	GramRates            map[string]float64
	HourlyRate           float64
	DefaultCreditLimit   float64
	NegativeBalanceFloor float64
	DefaultMaxJobs       int
}

// UploadsConfig controls model file storage and signed downloads.
type UploadsConfig struct {
	StorageDir        string
	MaxFileSizeBytes  int64
	AllowedExtensions []string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
}

// MaintenanceConfig sets the print-hour interval after which a printer is
// flagged as needing maintenance.
type MaintenanceConfig struct {
	IntervalHours float64
}

// CacheConfig tunes the redis-backed read caches.
type CacheConfig struct {
	BalanceTTL time.Duration
	PrinterTTL time.Duration
}

// ReportsConfig tunes the usage report worker pool and result retention.
type ReportsConfig struct {
	Workers         int
	MaxRetries      int
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		QueryTimeout: parseDuration(v.GetString("DB_QUERY_TIMEOUT"), 5*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Pricing = PricingConfig{
		GramRates: map[string]float64{
			"PLA":   v.GetFloat64("PRICE_PER_GRAM_PLA"),
			"ABS":   v.GetFloat64("PRICE_PER_GRAM_ABS"),
			"PETG":  v.GetFloat64("PRICE_PER_GRAM_PETG"),
			"TPU":   v.GetFloat64("PRICE_PER_GRAM_TPU"),
			"RESIN": v.GetFloat64("PRICE_PER_GRAM_RESIN"),
			"NYLON": v.GetFloat64("PRICE_PER_GRAM_NYLON"),
		},
		HourlyRate:           v.GetFloat64("PRICE_PER_HOUR"),
		DefaultCreditLimit:   v.GetFloat64("DEFAULT_CREDIT_LIMIT"),
		NegativeBalanceFloor: v.GetFloat64("NEGATIVE_BALANCE_FLOOR"),
		DefaultMaxJobs:       v.GetInt("DEFAULT_MAX_CONCURRENT_JOBS"),
	}

	maxUploadSize := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUploadSize <= 0 {
		maxUploadSize = 100 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		StorageDir:        v.GetString("UPLOADS_STORAGE_DIR"),
		MaxFileSizeBytes:  maxUploadSize,
		AllowedExtensions: splitAndTrim(v.GetString("UPLOADS_ALLOWED_EXTENSIONS")),
		SignedURLSecret:   v.GetString("UPLOADS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("UPLOADS_SIGNED_URL_TTL"), time.Hour),
	}

	cfg.Maintenance = MaintenanceConfig{
		IntervalHours: v.GetFloat64("MAINTENANCE_INTERVAL_HOURS"),
	}

	cfg.Cache = CacheConfig{
		BalanceTTL: parseDuration(v.GetString("BALANCE_CACHE_TTL"), 30*time.Second),
		PrinterTTL: parseDuration(v.GetString("PRINTER_CACHE_TTL"), time.Minute),
	}

	cfg.Reports = ReportsConfig{
		Workers:         v.GetInt("REPORT_WORKERS"),
		MaxRetries:      v.GetInt("REPORT_MAX_RETRIES"),
		ResultTTL:       parseDuration(v.GetString("REPORT_RESULT_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("REPORT_CLEANUP_INTERVAL"), time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "printlab")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_QUERY_TIMEOUT", "5s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PRICE_PER_GRAM_PLA", 0.10)
	v.SetDefault("PRICE_PER_GRAM_ABS", 0.12)
	v.SetDefault("PRICE_PER_GRAM_PETG", 0.12)
	v.SetDefault("PRICE_PER_GRAM_TPU", 0.15)
	v.SetDefault("PRICE_PER_GRAM_RESIN", 0.25)
	v.SetDefault("PRICE_PER_GRAM_NYLON", 0.20)
	v.SetDefault("PRICE_PER_HOUR", 1.00)
	v.SetDefault("DEFAULT_CREDIT_LIMIT", 0)
	v.SetDefault("NEGATIVE_BALANCE_FLOOR", -25.00)
	v.SetDefault("DEFAULT_MAX_CONCURRENT_JOBS", 3)

	v.SetDefault("UPLOADS_STORAGE_DIR", "./uploads")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 100*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_EXTENSIONS", ".stl,.obj,.3mf,.gcode")
	v.SetDefault("UPLOADS_SIGNED_URL_SECRET", "dev_uploads_secret")
	v.SetDefault("UPLOADS_SIGNED_URL_TTL", "1h")

	v.SetDefault("MAINTENANCE_INTERVAL_HOURS", 250)

	v.SetDefault("BALANCE_CACHE_TTL", "30s")
	v.SetDefault("PRINTER_CACHE_TTL", "1m")

	v.SetDefault("REPORT_WORKERS", 2)
	v.SetDefault("REPORT_MAX_RETRIES", 3)
	v.SetDefault("REPORT_RESULT_TTL", "24h")
	v.SetDefault("REPORT_CLEANUP_INTERVAL", "1h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
