package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides the process configuration, loaded once at startup.
var Module = fx.Provide(Load)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	Thanos    ThanosConfig
	PBS       PBSConfig
	Delivery  DeliveryConfig
	Collector CollectorConfig

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// ThanosConfig points at the metrics store serving OpenStack inventory.
type ThanosConfig struct {
	Endpoint  string
	Username  string
	Password  string
	VerifyTLS bool
	Timeout   time.Duration
}

// PBSConfig points at the batch scheduler.
type PBSConfig struct {
	Server    string
	QstatPath string
	Timeout   time.Duration
}

// DeliveryConfig points at the central usage accounting API.
type DeliveryConfig struct {
	Endpoint string
	APIKey   string
	BatchMax int
	Timeout  time.Duration
}

// CollectorConfig controls the poll loop and collection window.
type CollectorConfig struct {
	Interval     time.Duration
	ErrorBackoff time.Duration
	Window       time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "usage-collector"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		Thanos: ThanosConfig{
			Endpoint:  strings.TrimRight(getenv("OPENSTACK_THANOS_ENDPOINT", ""), "/"),
			Username:  getenv("OPENSTACK_THANOS_USERNAME", ""),
			Password:  getenv("OPENSTACK_THANOS_PASSWORD", ""),
			VerifyTLS: getenvBool("OPENSTACK_THANOS_VERIFY_TLS", false),
			Timeout:   getenvDuration("OPENSTACK_THANOS_TIMEOUT", 30*time.Second),
		},
		PBS: PBSConfig{
			Server:    getenv("PBS_HOST", "pbs-m1.metacentrum.cz"),
			QstatPath: getenv("PBS_QSTAT_PATH", "qstat"),
			Timeout:   getenvDuration("PBS_TIMEOUT", time.Minute),
		},
		Delivery: DeliveryConfig{
			Endpoint: strings.TrimRight(getenv("USAGE_API_ENDPOINT", ""), "/"),
			APIKey:   getenv("USAGE_API_KEY", ""),
			BatchMax: getenvInt("COLLECTOR_BATCH_MAX", 100),
			Timeout:  getenvDuration("USAGE_API_TIMEOUT", 30*time.Second),
		},
		Collector: CollectorConfig{
			Interval:     getenvDuration("COLLECTOR_INTERVAL", 24*time.Hour),
			ErrorBackoff: getenvDuration("COLLECTOR_ERROR_BACKOFF", 5*time.Minute),
			Window:       getenvDuration("COLLECTOR_WINDOW", 24*time.Hour),
		},
		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("ACCOUNTING_DB_HOST", ""),
		DBPort:     getenv("ACCOUNTING_DB_PORT", "5432"),
		DBName:     getenv("ACCOUNTING_DB_NAME", ""),
		DBUser:     getenv("ACCOUNTING_DB_USER", ""),
		DBPassword: getenv("ACCOUNTING_DB_PASSWORD", ""),
		DBSSLMode:  getenv("ACCOUNTING_DB_SSLMODE", "disable"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	// Bare numbers are seconds, matching older deployments.
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	return def
}
