// Package config loads tailtrack's daemon configuration from a .env file
// and the process environment, falling back to defaults field by field.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tailtrack/internal/cursor"
)

// Config holds all daemon configuration.
type Config struct {
	Sources      SourcesConfig
	ReaderConfig ReaderConfig
	GeoIP        GeoIPConfig
	Sink         SinkConfig
	Server       ServerConfig
	LogLevel     string
	PollInterval time.Duration
}

// SourcesConfig controls which logs are tailed.
type SourcesConfig struct {
	// Explicit is a name -> path map, parsed from TAILTRACK_SOURCES
	// ("name=path,name=path"). Mutually exclusive with auto-discovery.
	Explicit map[string]string
	// DiscoverRoot, if Explicit is empty, is scanned for *.log files.
	DiscoverRoot string
	CursorDir    string
}

// ReaderConfig holds the identity-check and rollback knobs applied
// uniformly to every discovered or configured source.
type ReaderConfig struct {
	RollbackPeriod time.Duration
	Lock           cursor.LockMode
	CheckInode     bool
	CheckLastline  bool
	CheckLog       bool
	AutofixCursor  bool
}

// GeoIPConfig controls the optional GeoIP enrichment filter.
type GeoIPConfig struct {
	Enabled   bool
	CityDB    string
	ASNDB     string
}

// SinkConfig controls where read lines are persisted.
type SinkConfig struct {
	Path string // empty disables the sink

	RetentionDays  int           // 0 disables retention cleanup
	RetentionTime  string        // HH:MM, daily cleanup target
	CleanupCheck   time.Duration // how often the retention loop wakes to check the clock
	VacuumEnabled  bool
}

// ServerConfig controls the status/lag HTTP API.
type ServerConfig struct {
	Host       string
	Port       int
	Production bool
}

// Load reads .env (if present) then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	// An explicitly empty TAILTRACK_SINK_PATH disables the sink, so it is
	// not folded into the default the way getEnv treats empty values.
	sinkPath, ok := os.LookupEnv("TAILTRACK_SINK_PATH")
	if !ok {
		sinkPath = "tailtrack.db"
	}

	cfg := &Config{
		Sources: SourcesConfig{
			Explicit:     parseSourcesEnv(getEnv("TAILTRACK_SOURCES", "")),
			DiscoverRoot: getEnv("TAILTRACK_DISCOVER_ROOT", "/var/log"),
			CursorDir:    getEnv("TAILTRACK_CURSOR_DIR", "./cursors"),
		},
		ReaderConfig: ReaderConfig{
			RollbackPeriod: getEnvAsDuration("TAILTRACK_ROLLBACK_PERIOD", 0),
			Lock:           cursor.LockMode(getEnv("TAILTRACK_LOCK", string(cursor.LockNonblocking))),
			CheckInode:     getEnvAsBool("TAILTRACK_CHECK_INODE", true),
			CheckLastline:  getEnvAsBool("TAILTRACK_CHECK_LASTLINE", true),
			CheckLog:       getEnvAsBool("TAILTRACK_CHECK_LOG", true),
			AutofixCursor:  getEnvAsBool("TAILTRACK_AUTOFIX_CURSOR", false),
		},
		GeoIP: GeoIPConfig{
			Enabled: getEnvAsBool("TAILTRACK_GEOIP_ENABLED", false),
			CityDB:  getEnv("TAILTRACK_GEOIP_CITY_DB", "geoip/GeoLite2-City.mmdb"),
			ASNDB:   getEnv("TAILTRACK_GEOIP_ASN_DB", "geoip/GeoLite2-ASN.mmdb"),
		},
		Sink: SinkConfig{
			Path:          sinkPath,
			RetentionDays: getEnvAsInt("TAILTRACK_RETENTION_DAYS", 0),
			RetentionTime: getEnv("TAILTRACK_RETENTION_TIME", "02:00"),
			CleanupCheck:  getEnvAsDuration("TAILTRACK_RETENTION_CHECK_INTERVAL", 10*time.Minute),
			VacuumEnabled: getEnvAsBool("TAILTRACK_RETENTION_VACUUM", true),
		},
		Server: ServerConfig{
			Host:       getEnv("TAILTRACK_SERVER_HOST", "0.0.0.0"),
			Port:       getEnvAsInt("TAILTRACK_SERVER_PORT", 8080),
			Production: getEnvAsBool("TAILTRACK_SERVER_PRODUCTION", false),
		},
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		PollInterval: getEnvAsDuration("TAILTRACK_POLL_INTERVAL", 2*time.Second),
	}

	return cfg, nil
}

func parseSourcesEnv(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idx := strings.IndexByte(pair, '=')
		if idx < 0 {
			continue
		}
		out[pair[:idx]] = pair[idx+1:]
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
