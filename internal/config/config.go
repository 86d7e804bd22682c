package config

import (
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Leads      LeadsConfig      `yaml:"leads" mapstructure:"leads"`
	Simulation SimulationConfig `yaml:"simulation" mapstructure:"simulation"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins     []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimitRPS       float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst     int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LeadsConfig configures lead credit pricing.
type LeadsConfig struct {
	UnitPrice decimal.Decimal `yaml:"unit_price" mapstructure:"unit_price"`
	Currency  string          `yaml:"currency" mapstructure:"currency"`
}

// SimulationConfig holds the platform defaults used when a company has no
// cost profile or leaves a field unset. Percent fields are whole
// percentages.
type SimulationConfig struct {
	ProductionPerKwp       decimal.Decimal `yaml:"production_per_kwp" mapstructure:"production_per_kwp"`
	PricePerKwp            decimal.Decimal `yaml:"price_per_kwp" mapstructure:"price_per_kwp"`
	MaintenancePercent     decimal.Decimal `yaml:"maintenance_percent" mapstructure:"maintenance_percent"`
	RentalFactorPercent    decimal.Decimal `yaml:"rental_factor_percent" mapstructure:"rental_factor_percent"`
	RentalMinimum          decimal.Decimal `yaml:"rental_minimum" mapstructure:"rental_minimum"`
	RentalIncreasePercent  decimal.Decimal `yaml:"rental_increase_percent" mapstructure:"rental_increase_percent"`
	EmissionFactorKgPerKwh decimal.Decimal `yaml:"emission_factor_kg_per_kwh" mapstructure:"emission_factor_kg_per_kwh"`
}

// ReportConfig configures human-facing output.
type ReportConfig struct {
	Locale string `yaml:"locale" mapstructure:"locale"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SOLAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "solar.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.request_timeout_secs", 30)
	v.SetDefault("leads.unit_price", "25.00")
	v.SetDefault("leads.currency", "BRL")
	v.SetDefault("simulation.production_per_kwp", 140)
	v.SetDefault("simulation.price_per_kwp", 4800)
	v.SetDefault("simulation.maintenance_percent", 1)
	v.SetDefault("simulation.rental_factor_percent", 70)
	v.SetDefault("simulation.rental_minimum", 150)
	v.SetDefault("simulation.rental_increase_percent", 4)
	v.SetDefault("simulation.emission_factor_kg_per_kwh", "0.0817")
	v.SetDefault("report.locale", "pt-BR")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToDecimalHook(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// stringToDecimalHook decodes money and rate settings from YAML numbers or
// strings. Strings from env vars are parsed exactly.
func stringToDecimalHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != decimalType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			d, err := decimal.NewFromString(strings.TrimSpace(v))
			if err != nil {
				return nil, eris.Wrapf(err, "config: %q is not a number", v)
			}
			return d, nil
		case float64:
			return decimal.NewFromFloat(v), nil
		case float32:
			return decimal.NewFromFloat32(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case decimal.Decimal:
			return v, nil
		default:
			return nil, eris.Errorf("config: cannot decode %T as a number", data)
		}
	}
}

// Validate checks the settings a command needs. Mode "serve" also checks
// the HTTP settings.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if !c.Leads.UnitPrice.IsPositive() {
		problems = append(problems, "leads.unit_price must be positive")
	}
	if c.Simulation.ProductionPerKwp.IsNegative() || c.Simulation.PricePerKwp.IsNegative() {
		problems = append(problems, "simulation defaults must not be negative")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
		if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
			problems = append(problems, "server rate limits must not be negative")
		}
	case "cli":
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
