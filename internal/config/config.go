package config

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Store     StoreConfig
	Remote    RemoteConfig
	Sync      SyncConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
	Printer   PrinterConfig
}

type AppConfig struct {
	Name     string
	Env      string
	Port     string
	Debug    bool
	LogLevel string
}

// StoreConfig selects the durable local store. SQLite is the default for a
// standalone till; postgres is supported for back-office installs.
type StoreConfig struct {
	Driver   string
	Path     string
	Database DatabaseConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	Timezone string
}

type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type SyncConfig struct {
	MaxRetries             int
	BaseDelay              time.Duration
	MaxDelay               time.Duration
	Interval               time.Duration
	NetworkRetryDelay      time.Duration
	RetentionDays          int
	ProbeInterval          time.Duration
	CatalogRefreshInterval time.Duration
	StartOnline            bool
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type RateLimitConfig struct {
	Requests int
	Duration int
}

// PrinterConfig selects the receipt printer: usb, network or none
type PrinterConfig struct {
	Type         string
	USBPath      string
	Address      string
	Width        int
	StoreName    string
	StoreAddress string
	StorePhone   string
}

type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		slog.Warn(".env file not found, using environment variables", "error", err)
	}

	setDefaults()

	return &Config{
		App: AppConfig{
			Name:     viper.GetString("APP_NAME"),
			Env:      viper.GetString("APP_ENV"),
			Port:     viper.GetString("APP_PORT"),
			Debug:    viper.GetBool("APP_DEBUG"),
			LogLevel: viper.GetString("LOG_LEVEL"),
		},
		Store: StoreConfig{
			Driver: viper.GetString("STORE_DRIVER"),
			Path:   viper.GetString("STORE_PATH"),
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				Name:     viper.GetString("DB_NAME"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				SSLMode:  viper.GetString("DB_SSL_MODE"),
				Timezone: viper.GetString("DB_TIMEZONE"),
			},
		},
		Remote: RemoteConfig{
			BaseURL: viper.GetString("REMOTE_BASE_URL"),
			APIKey:  viper.GetString("REMOTE_API_KEY"),
			Timeout: time.Duration(viper.GetInt("REMOTE_TIMEOUT_SECONDS")) * time.Second,
		},
		Sync: SyncConfig{
			MaxRetries:             viper.GetInt("SYNC_MAX_RETRIES"),
			BaseDelay:              time.Duration(viper.GetInt("SYNC_BASE_DELAY_MS")) * time.Millisecond,
			MaxDelay:               time.Duration(viper.GetInt("SYNC_MAX_DELAY_SECONDS")) * time.Second,
			Interval:               time.Duration(viper.GetInt("SYNC_INTERVAL_SECONDS")) * time.Second,
			NetworkRetryDelay:      time.Duration(viper.GetInt("SYNC_NETWORK_RETRY_SECONDS")) * time.Second,
			RetentionDays:          viper.GetInt("SYNC_RETENTION_DAYS"),
			ProbeInterval:          time.Duration(viper.GetInt("SYNC_PROBE_INTERVAL_SECONDS")) * time.Second,
			CatalogRefreshInterval: time.Duration(viper.GetInt("CATALOG_REFRESH_MINUTES")) * time.Minute,
			StartOnline:            viper.GetBool("SYNC_START_ONLINE"),
		},
		CORS: CORSConfig{
			AllowedOrigins: viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods: viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders: viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Duration: viper.GetInt("RATE_LIMIT_DURATION"),
		},
		Printer: PrinterConfig{
			Type:         viper.GetString("PRINTER_TYPE"),
			USBPath:      viper.GetString("PRINTER_USB_PATH"),
			Address:      viper.GetString("PRINTER_ADDRESS"),
			Width:        viper.GetInt("PRINTER_WIDTH"),
			StoreName:    viper.GetString("STORE_NAME"),
			StoreAddress: viper.GetString("STORE_ADDRESS"),
			StorePhone:   viper.GetString("STORE_PHONE"),
		},
		Telemetry: TelemetryConfig{
			Enabled:     viper.GetBool("OTEL_ENABLED"),
			Endpoint:    viper.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName: viper.GetString("OTEL_SERVICE_NAME"),
		},
	}
}

func setDefaults() {
	viper.SetDefault("APP_NAME", "tillsync")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("APP_DEBUG", true)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("STORE_DRIVER", "sqlite")
	viper.SetDefault("STORE_PATH", "./data/tillsync.db")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_NAME", "tillsync")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "")
	viper.SetDefault("DB_SSL_MODE", "disable")
	viper.SetDefault("DB_TIMEZONE", "UTC")
	viper.SetDefault("REMOTE_BASE_URL", "http://localhost:9090")
	viper.SetDefault("REMOTE_TIMEOUT_SECONDS", 30)
	viper.SetDefault("SYNC_MAX_RETRIES", 5)
	viper.SetDefault("SYNC_BASE_DELAY_MS", 1000)
	viper.SetDefault("SYNC_MAX_DELAY_SECONDS", 3600)
	viper.SetDefault("SYNC_INTERVAL_SECONDS", 120)
	viper.SetDefault("SYNC_NETWORK_RETRY_SECONDS", 30)
	viper.SetDefault("SYNC_RETENTION_DAYS", 7)
	viper.SetDefault("SYNC_PROBE_INTERVAL_SECONDS", 15)
	viper.SetDefault("SYNC_START_ONLINE", false)
	viper.SetDefault("CATALOG_REFRESH_MINUTES", 10)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("CORS_ALLOWED_HEADERS", []string{})
	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_DURATION", 60)
	viper.SetDefault("PRINTER_TYPE", "none")
	viper.SetDefault("PRINTER_USB_PATH", "/dev/usb/lp0")
	viper.SetDefault("PRINTER_WIDTH", 32)
	viper.SetDefault("STORE_NAME", "tillsync")
	viper.SetDefault("OTEL_ENABLED", false)
	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	viper.SetDefault("OTEL_SERVICE_NAME", "tillsync")
}

func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.Timezone
}

// HealthURL is the remote endpoint probed for connectivity
func (c *RemoteConfig) HealthURL() string {
	return c.BaseURL + "/health"
}
