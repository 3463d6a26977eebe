// Package config loads runtime configuration and defines the
// difficulty presets applied to building costs, tax income and random
// event frequency.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Difficulty scales the simulation's economics.
type Difficulty struct {
	Name             string  `mapstructure:"name"`
	CostMultiplier   float64 `mapstructure:"cost_multiplier"`
	IncomeMultiplier float64 `mapstructure:"income_multiplier"`
	EventFrequency   float64 `mapstructure:"event_frequency"`
}

var difficulties = map[string]Difficulty{
	"easy":   {Name: "easy", CostMultiplier: 0.8, IncomeMultiplier: 1.2, EventFrequency: 0.5},
	"normal": {Name: "normal", CostMultiplier: 1.0, IncomeMultiplier: 1.0, EventFrequency: 1.0},
	"hard":   {Name: "hard", CostMultiplier: 1.3, IncomeMultiplier: 0.8, EventFrequency: 1.5},
}

// DifficultyByName resolves a preset by case-insensitive name.
func DifficultyByName(name string) (Difficulty, error) {
	d, ok := difficulties[strings.ToLower(name)]
	if !ok {
		return Difficulty{}, eris.Errorf("unknown difficulty %q", name)
	}
	return d, nil
}

// Config is the citysim runtime configuration.
type Config struct {
	Seed         int64   `mapstructure:"seed"`
	Difficulty   string  `mapstructure:"difficulty"`
	InitialMoney float64 `mapstructure:"initial_money"`
	DBPath       string  `mapstructure:"db_path"`

	API struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"api"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// Load reads configuration from the given file (optional), environment
// variables prefixed CITYSIM_, and built-in defaults, in that
// precedence order.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("seed", 0)
	v.SetDefault("difficulty", "normal")
	v.SetDefault("initial_money", 50000)
	v.SetDefault("db_path", "citysim.db")
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetEnvPrefix("CITYSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, eris.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "unmarshal config")
	}
	if _, err := DifficultyByName(cfg.Difficulty); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewLogger builds the process logger from the log section.
func NewLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, eris.Wrapf(err, "parse log level %q", level)
	}
	var zc zap.Config
	if format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zc.Build()
	if err != nil {
		return nil, eris.Wrap(err, "build logger")
	}
	return logger, nil
}
