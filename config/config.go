// Package config loads the adminctl configuration from a YAML file with
// ADMIN_ prefixed environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	admin "github.com/goliatone/go-admin"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ADMIN_PERSISTENCE_DSN
const EnvPrefix = "ADMIN"

type PersistenceConfig struct {
	DSN         string        `mapstructure:"dsn"`
	AutoMigrate bool          `mapstructure:"auto_migrate"`
	Debug       bool          `mapstructure:"debug"`
	PingTimeout time.Duration `mapstructure:"ping_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type JanitorConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Admin       admin.Options     `mapstructure:"admin"`
	Timezone    string            `mapstructure:"timezone"`
	Log         LogConfig         `mapstructure:"log"`
	Janitor     JanitorConfig     `mapstructure:"janitor"`
}

// Load reads path, or config.yaml in the working directory when path is
// empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := c.resolveLocation(); err != nil {
		return nil, err
	}

	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("persistence.dsn", "file:admin.db?cache=shared")
	v.SetDefault("persistence.auto_migrate", true)
	v.SetDefault("persistence.debug", false)
	v.SetDefault("persistence.ping_timeout", 5*time.Second)
	v.SetDefault("admin.session_ttl_hours", admin.DefaultSessionTTLHours)
	v.SetDefault("admin.audit_retention_days", admin.DefaultAuditRetentionDays)
	v.SetDefault("admin.session_cookie_name", admin.DefaultSessionCookieName)
	v.SetDefault("admin.password_cost", 0)
	v.SetDefault("timezone", "UTC")
	v.SetDefault("log.level", "info")
	v.SetDefault("janitor.interval", admin.DefaultJanitorInterval)
}

func (c *Config) resolveLocation() error {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		tz = "UTC"
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	c.Admin.Location = loc
	return nil
}
