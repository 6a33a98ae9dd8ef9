package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is passed explicitly into the pipeline and the commands built on it.
type Config struct {
	BaseDir       string        `mapstructure:"ACTIVITY_BASE_DIR"`
	StagingDir    string        `mapstructure:"STAGING_DIR"`
	IndoorTypes   []string      `mapstructure:"INDOOR_ACTIVITY_TYPES"`
	DBPath        string        `mapstructure:"DB_PATH"`
	ExportDir     string        `mapstructure:"EXPORT_DIR"`
	SweepSchedule string        `mapstructure:"SWEEP_SCHEDULE"`
	StagingMaxAge time.Duration `mapstructure:"STAGING_MAX_AGE"`
	LogLevel      string        `mapstructure:"LOG_LEVEL"`
}

var defaultIndoorTypes = []string{
	"Weight Training",
	"Workout",
	"Indoor Rowing",
	"Elliptical",
	"Yoga",
	"Stair-Stepper",
	"Virtual Ride",
}

// Default returns the configuration used when nothing is set in the environment.
func Default() Config {
	return Config{
		BaseDir:       "uploads",
		StagingDir:    "uploads/decompressed",
		IndoorTypes:   append([]string(nil), defaultIndoorTypes...),
		DBPath:        "data/activities.db",
		ExportDir:     "exports",
		SweepSchedule: "@every 10m",
		StagingMaxAge: time.Hour,
		LogLevel:      "info",
	}
}

// Load reads envFiles (a missing .env is not an error) and then the process
// environment on top of the defaults.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	def := Default()
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("ACTIVITY_BASE_DIR", def.BaseDir)
	v.SetDefault("STAGING_DIR", def.StagingDir)
	v.SetDefault("INDOOR_ACTIVITY_TYPES", strings.Join(def.IndoorTypes, ","))
	v.SetDefault("DB_PATH", def.DBPath)
	v.SetDefault("EXPORT_DIR", def.ExportDir)
	v.SetDefault("SWEEP_SCHEDULE", def.SweepSchedule)
	v.SetDefault("STAGING_MAX_AGE", def.StagingMaxAge.String())
	v.SetDefault("LOG_LEVEL", def.LogLevel)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.IndoorTypes = trimAll(cfg.IndoorTypes)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return errors.New("ACTIVITY_BASE_DIR must not be empty")
	}
	if strings.TrimSpace(c.StagingDir) == "" {
		return errors.New("STAGING_DIR must not be empty")
	}
	if c.StagingMaxAge <= 0 {
		return fmt.Errorf("STAGING_MAX_AGE must be positive, got %s", c.StagingMaxAge)
	}
	return nil
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
