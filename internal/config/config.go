// Package config loads the loader's settings from environment variables.
// Every field declares its variable, an optional alternate name and a
// default through struct tags; Load fills them by reflection and validates
// the result so misconfiguration fails before any file is read.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all settings. Command-line flags may override the ETL section.
type Config struct {
	Database DatabaseConfig
	ETL      ETLConfig
	Load     LoadConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	// URL is the Postgres connection string (required).
	// SUPABASE_DB_URL is accepted for projects hosted on Supabase.
	URL string `env:"DATABASE_URL" envAlt:"SUPABASE_DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"4"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ETLConfig describes what to load.
type ETLConfig struct {
	// SourceFile is the spreadsheet to read (default: DIGM.xlsx).
	SourceFile string `env:"ETL_SOURCE_FILE" default:"DIGM.xlsx"`

	// Year and Month select the reporting period. Zero means unset; the
	// run command then requires --year/--month.
	Year  int `env:"ETL_YEAR"`
	Month int `env:"ETL_MONTH"`

	// MonthLabel overrides the month name stored in the mes column.
	MonthLabel string `env:"ETL_MONTH_LABEL"`

	// Table is the target table, optionally schema-qualified.
	Table string `env:"ETL_TABLE" default:"despesas"`

	// MaxFileSize is the largest accepted source file in bytes (default: 100MB).
	MaxFileSize int64 `env:"ETL_MAX_FILE_SIZE" default:"104857600"`
}

// LoadConfig bounds the write to the database.
type LoadConfig struct {
	// Timeout covers the whole batch insert (default: 60s).
	Timeout time.Duration `env:"LOAD_TIMEOUT" default:"60s"`

	// BatchSize is the number of rows per INSERT statement (default: 1000).
	BatchSize int `env:"LOAD_BATCH_SIZE" default:"1000"`
}

// ServerConfig holds settings for the HTTP trigger.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"120s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware deadline per request (default: 90s).
	// It should exceed LOAD_TIMEOUT so the load reports its own timeout.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"90s"`

	// MaxConcurrentLoads caps simultaneous POST /api/loads runs (default: 1).
	MaxConcurrentLoads int `env:"SERVER_MAX_CONCURRENT_LOADS" default:"1"`

	// MaxLoadWait is how long a request waits for a free slot (default: 30s).
	MaxLoadWait time.Duration `env:"SERVER_MAX_LOAD_WAIT" default:"30s"`

	// APIKeys, comma-separated, guard /api when set. Empty leaves it open.
	APIKeys []string `env:"SERVER_API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error (default: info).
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json (default: text).
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
