// Package config defines the configuration for the PharmStock service.
// Configuration is loaded once at process start and is immutable thereafter;
// it follows 12-Factor principles by strictly separating code from
// configuration. Any missing required value or invalid format fails the
// process immediately on startup.
package config

import "time"

// Config is the top-level configuration struct, populated once during process
// initialization and never modified. Sub-components receive only the specific
// subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Inventory InventoryConfig
	Scheduler SchedulerConfig
	Webhook   WebhookConfig
	Archive   ArchiveConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL             string        `envconfig:"DATABASE_URL" validate:"required,url"`
	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// AuthConfig holds token signing and credential settings.
type AuthConfig struct {
	JWTSecret string        `envconfig:"JWT_SECRET" validate:"required,min=32"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"12h"`
}

// InventoryConfig holds the condition thresholds and lifecycle windows for
// the notification engine. Intervals live in SchedulerConfig; these are the
// policy knobs.
type InventoryConfig struct {
	// LowStockThreshold fires the low-stock condition when stock_quantity
	// is at or below this value.
	LowStockThreshold int `envconfig:"LOW_STOCK_THRESHOLD" default:"50" validate:"min=0"`
	// ExpiryThresholdDays fires the expiry condition when a medicine expires
	// within this many days (and is not yet expired).
	ExpiryThresholdDays int `envconfig:"EXPIRY_THRESHOLD_DAYS" default:"30" validate:"min=0"`
	// ReactivationWindow is the delay after acknowledgement before a
	// still-valid alert resurfaces as unread.
	ReactivationWindow time.Duration `envconfig:"REACTIVATION_WINDOW" default:"24h"`
	// RetentionWindow is the age after which acknowledged notifications are
	// purged by the retention sweeper.
	RetentionWindow time.Duration `envconfig:"RETENTION_WINDOW" default:"72h"`
	// AbsoluteTTL is the hard backstop: any notification older than this is
	// purged regardless of read state.
	AbsoluteTTL time.Duration `envconfig:"NOTIFICATION_TTL" default:"720h"`
}

// SchedulerConfig holds the sweep intervals for the in-process driver.
// Intervals are configuration, not protocol; demo environments may shorten
// them drastically.
type SchedulerConfig struct {
	CheckInterval      time.Duration `envconfig:"CHECK_INTERVAL" default:"1h"`
	ReactivateInterval time.Duration `envconfig:"REACTIVATE_INTERVAL" default:"1h"`
	CleanupInterval    time.Duration `envconfig:"CLEANUP_INTERVAL" default:"24h"`
	ArchiveInterval    time.Duration `envconfig:"ARCHIVE_INTERVAL" default:"24h"`
}

// WebhookConfig holds settings for the optional outbound alert webhook.
// An empty URL disables fan-out entirely.
type WebhookConfig struct {
	URL       string        `envconfig:"ALERT_WEBHOOK_URL" validate:"omitempty,url"`
	Timeout   time.Duration `envconfig:"ALERT_WEBHOOK_TIMEOUT" default:"10s"`
	UserAgent string        `envconfig:"ALERT_WEBHOOK_USER_AGENT" default:"PharmStock-Webhook/1.0"`
}

// ArchiveConfig holds settings for activity log archival.
type ArchiveConfig struct {
	// Dir is the directory gzipped JSONL batches are written to.
	// Empty disables archival (logs are still deleted after retention
	// only when archival is enabled, so empty means keep forever).
	Dir       string        `envconfig:"ACTIVITY_ARCHIVE_DIR"`
	Retention time.Duration `envconfig:"ACTIVITY_RETENTION" default:"2160h"`
	BatchSize int           `envconfig:"ACTIVITY_ARCHIVE_BATCH" default:"500" validate:"min=1"`
}
