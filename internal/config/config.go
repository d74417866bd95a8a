// Package config loads the server configuration from defaults, an optional
// YAML file, a .env file, IZPOSOJA_* environment variables and command line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment variable, e.g. IZPOSOJA_HTTP_ADDR.
const EnvPrefix = "IZPOSOJA"

// Config is the full server configuration.
type Config struct {
	DB struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"db"`

	HTTP struct {
		Addr string `mapstructure:"addr"`
		// AllowedOrigins are extra browser origins allowed to open /api/ws.
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"http"`

	Log struct {
		Path   string `mapstructure:"path"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Lending struct {
		AdminEmployeeID         int64  `mapstructure:"admin_employee_id"`
		StockPolicy             string `mapstructure:"stock_policy"`
		BorrowedRequiresRemarks bool   `mapstructure:"borrowed_requires_remarks"`
	} `mapstructure:"lending"`

	Notify struct {
		QueueSize int `mapstructure:"queue_size"`
	} `mapstructure:"notify"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`

	Admin struct {
		Username string `mapstructure:"username"`
	} `mapstructure:"admin"`
}

// Flags maps command line flag names to configuration keys.
var Flags = map[string]string{
	"db":    "db.path",
	"addr":  "http.addr",
	"log":   "log.path",
	"user":  "admin.username",
	"admin": "lending.admin_employee_id",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.path", "izposoja.sqlite3")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{})
	v.SetDefault("log.path", "")
	v.SetDefault("log.format", "text")
	v.SetDefault("lending.admin_employee_id", 0)
	v.SetDefault("lending.stock_policy", "on_request")
	v.SetDefault("lending.borrowed_requires_remarks", false)
	v.SetDefault("notify.queue_size", 16)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("admin.username", "Admin")
}

// Load reads the configuration. path is an optional YAML file; envFile is an
// optional dotenv file whose variables are applied unless already set in the
// environment. Flags in flags that are listed in Flags and were set on the
// command line override everything else.
func Load(path, envFile string, flags *pflag.FlagSet) (*Config, error) {
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range Flags {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &c, nil
}

// Validate checks the settings the server needs to start.
func (c *Config) Validate() error {
	var errs []error

	if c.DB.Path == "" {
		errs = append(errs, errors.New("db.path must be set"))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr must be set"))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Lending.AdminEmployeeID <= 0 {
		errs = append(errs, errors.New("lending.admin_employee_id must be a positive employee ID"))
	}
	if c.Lending.StockPolicy != "on_request" && c.Lending.StockPolicy != "on_approval" {
		errs = append(errs, fmt.Errorf("lending.stock_policy must be on_request or on_approval, got %q", c.Lending.StockPolicy))
	}
	if c.Notify.QueueSize <= 0 {
		errs = append(errs, errors.New("notify.queue_size must be positive"))
	}

	return errors.Join(errs...)
}
