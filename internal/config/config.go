// Package config holds the typed configuration for the service and loads
// it through viper so values come from the config file, environment, or
// defaults in that order.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hamzaKhattat/calllog-production-system/pkg/errors"
)

// Config holds all configuration for the application.
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Engine     EngineConfig
	API        APIConfig
	Providers  ProvidersConfig
	Monitoring MonitoringConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Debug       bool
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
}

type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
}

// EngineConfig carries the logging engine's identity and startup defaults.
// AutoLog and LogOnRinging only seed the settings store on first boot;
// after that the stored values win.
type EngineConfig struct {
	Name         string
	AutoLog      bool
	LogOnRinging bool
}

type APIConfig struct {
	Enabled      bool
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ProvidersConfig lists the destinations log entries fan out to.
type ProvidersConfig struct {
	Database DatabaseProviderConfig
	Webhooks []WebhookProviderConfig
}

type DatabaseProviderConfig struct {
	Enabled bool
}

type WebhookProviderConfig struct {
	Name         string
	URL          string
	AllowAutoLog bool
	Timeout      time.Duration
}

type MonitoringConfig struct {
	Metrics struct {
		Enabled bool
		Port    int
	}
	Health struct {
		Enabled bool
		Port    int
	}
	Logging struct {
		Level  string
		Format string
		Output string
		File   struct {
			Enabled    bool
			Path       string
			MaxSize    int
			MaxBackups int
			MaxAge     int
			Compress   bool
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "calllogger")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "production")
	v.SetDefault("app.debug", false)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "calllogger")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "calllogger")
	v.SetDefault("database.maxopenconns", 25)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.connmaxlifetime", "5m")
	v.SetDefault("database.retryattempts", 3)
	v.SetDefault("database.retrydelay", "5s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolsize", 10)
	v.SetDefault("redis.minidleconns", 2)
	v.SetDefault("redis.maxretries", 3)

	v.SetDefault("engine.name", "callLogger")
	v.SetDefault("engine.autolog", true)
	v.SetDefault("engine.logonringing", true)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.readtimeout", "15s")
	v.SetDefault("api.writetimeout", "15s")

	v.SetDefault("providers.database.enabled", true)

	v.SetDefault("monitoring.metrics.enabled", true)
	v.SetDefault("monitoring.metrics.port", 9090)
	v.SetDefault("monitoring.health.enabled", true)
	v.SetDefault("monitoring.health.port", 8686)
	v.SetDefault("monitoring.logging.level", "info")
	v.SetDefault("monitoring.logging.format", "json")
	v.SetDefault("monitoring.logging.output", "stdout")
}

// Load reads configuration from the given file (optional), the
// environment (CALLLOGGER_ prefix), and built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CALLLOGGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfiguration, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfiguration, "failed to parse configuration")
	}
	return &cfg, nil
}
