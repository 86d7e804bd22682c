package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "solar.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.InDelta(t, 20, cfg.Server.RateLimitRPS, 0.001)
	assert.Equal(t, 40, cfg.Server.RateLimitBurst)
	assert.Equal(t, 30, cfg.Server.RequestTimeoutSecs)
	assertDecimal(t, "25.0", cfg.Leads.UnitPrice)
	assert.Equal(t, "BRL", cfg.Leads.Currency)
	assertDecimal(t, "140", cfg.Simulation.ProductionPerKwp)
	assertDecimal(t, "4800", cfg.Simulation.PricePerKwp)
	assertDecimal(t, "70", cfg.Simulation.RentalFactorPercent)
	assertDecimal(t, "0.0817", cfg.Simulation.EmissionFactorKgPerKwh)
	assert.Equal(t, "pt-BR", cfg.Report.Locale)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/solar
  max_conns: 20
log:
  level: debug
  format: console
server:
  port: 9090
  allowed_origins:
    - https://app.solarhub.example
leads:
  unit_price: 30.5
simulation:
  price_per_kwp: 4200
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(20), cfg.Store.MaxConns)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.solarhub.example"}, cfg.Server.AllowedOrigins)
	assertDecimal(t, "30.5", cfg.Leads.UnitPrice)
	assertDecimal(t, "4200", cfg.Simulation.PricePerKwp)
	// Defaults still apply for unset values
	assertDecimal(t, "140", cfg.Simulation.ProductionPerKwp)
	assert.Equal(t, "BRL", cfg.Leads.Currency)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SOLAR_STORE_DRIVER", "sqlite")
	t.Setenv("SOLAR_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SOLAR_SERVER_PORT", "3000")
	t.Setenv("SOLAR_LEADS_UNIT_PRICE", "19.90")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assertDecimal(t, "19.90", cfg.Leads.UnitPrice)
}

func TestLoadDecimalFromEnvIsExact(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SOLAR_SIMULATION_MAINTENANCE_PERCENT", "1.15")
	t.Setenv("SOLAR_SIMULATION_EMISSION_FACTOR_KG_PER_KWH", " 0.0925 ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "1.15", cfg.Simulation.MaintenancePercent.String())
	assert.Equal(t, "0.0925", cfg.Simulation.EmissionFactorKgPerKwh.String())
}

func TestLoadDecimalNotANumber(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SOLAR_LEADS_UNIT_PRICE", "cheap")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: unmarshal")
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "solar.db"
	cfg.Server.Port = 8080
	cfg.Server.RateLimitRPS = 20
	cfg.Server.RateLimitBurst = 40
	cfg.Leads.UnitPrice = decimal.NewFromInt(25)
	cfg.Simulation.ProductionPerKwp = decimal.NewFromInt(140)
	cfg.Simulation.PricePerKwp = decimal.NewFromInt(4800)
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("cli"))
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		mode   string
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "cli", "store.driver"},
		{"missing url", func(c *Config) { c.Store.DatabaseURL = "" }, "cli", "store.database_url"},
		{"zero unit price", func(c *Config) { c.Leads.UnitPrice = decimal.Zero }, "cli", "leads.unit_price"},
		{"negative price per kwp", func(c *Config) { c.Simulation.PricePerKwp = decimal.NewFromInt(-1) }, "cli", "simulation defaults"},
		{"invalid port", func(c *Config) { c.Server.Port = 70000 }, "serve", "server.port"},
		{"negative burst", func(c *Config) { c.Server.RateLimitBurst = -1 }, "serve", "rate limits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate(tt.mode)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_PortIgnoredOutsideServe(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0
	assert.NoError(t, cfg.Validate("cli"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("batch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown validation mode")
}
