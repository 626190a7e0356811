package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/owlinhq/invoice-reconciler/internal/matching"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Matching MatchingConfig `mapstructure:"matching"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// MatchingConfig holds the reconciliation tolerance profile. Unit
// synonym and conversion tables keep their code defaults; only the
// numeric tolerances are tunable per deployment.
type MatchingConfig struct {
	DateWindowDays     int     `mapstructure:"date_window_days"`
	AmountProximityPct float64 `mapstructure:"amount_proximity_pct"`
	QtyTolAbs          float64 `mapstructure:"qty_tol_abs"`
	QtyTolRel          float64 `mapstructure:"qty_tol_rel"`
	PriceTolRel        float64 `mapstructure:"price_tol_rel"`
	FuzzyDescThreshold float64 `mapstructure:"fuzzy_desc_threshold"`
	TieBreakMargin     float64 `mapstructure:"tie_break_margin"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	RebuildWorkers  int           `mapstructure:"rebuild_workers"`
	RebuildInterval time.Duration `mapstructure:"rebuild_interval"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/reconciler.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Matching defaults mirror matching.DefaultConfig
	def := matching.DefaultConfig()
	viper.SetDefault("matching.date_window_days", def.DateWindowDays)
	viper.SetDefault("matching.amount_proximity_pct", def.AmountProximityPct)
	viper.SetDefault("matching.qty_tol_abs", def.QtyTolAbs)
	viper.SetDefault("matching.qty_tol_rel", def.QtyTolRel)
	viper.SetDefault("matching.price_tol_rel", def.PriceTolRel)
	viper.SetDefault("matching.fuzzy_desc_threshold", def.FuzzyDescThreshold)
	viper.SetDefault("matching.tie_break_margin", def.TieBreakMargin)

	// Worker defaults
	viper.SetDefault("worker.rebuild_workers", 4)
	viper.SetDefault("worker.rebuild_interval", 0*time.Second)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("logger.level", "LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Matching.DateWindowDays < 0 {
		return fmt.Errorf("matching.date_window_days must not be negative")
	}
	if c.Matching.FuzzyDescThreshold < 0 || c.Matching.FuzzyDescThreshold > 1 {
		return fmt.Errorf("matching.fuzzy_desc_threshold must be within [0,1]")
	}
	if c.Matching.AmountProximityPct < 0 {
		return fmt.Errorf("matching.amount_proximity_pct must not be negative")
	}
	if c.Matching.QtyTolAbs < 0 || c.Matching.QtyTolRel < 0 || c.Matching.PriceTolRel < 0 {
		return fmt.Errorf("matching tolerances must not be negative")
	}
	if c.Worker.RebuildWorkers < 1 {
		return fmt.Errorf("worker.rebuild_workers must be at least 1")
	}
	return nil
}

// MatchingProfile converts the tunable tolerances into the engine
// config, layering them over the code defaults for the unit tables.
func (c *Config) MatchingProfile() matching.Config {
	mc := matching.DefaultConfig()
	mc.DateWindowDays = c.Matching.DateWindowDays
	mc.AmountProximityPct = c.Matching.AmountProximityPct
	mc.QtyTolAbs = c.Matching.QtyTolAbs
	mc.QtyTolRel = c.Matching.QtyTolRel
	mc.PriceTolRel = c.Matching.PriceTolRel
	mc.FuzzyDescThreshold = c.Matching.FuzzyDescThreshold
	mc.TieBreakMargin = c.Matching.TieBreakMargin
	return mc
}
