package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/rpattn/sparkify/internal/db"
)

// PipelineConfig locates the input trees and tunes the load.
type PipelineConfig struct {
	SongData          string
	LogData           string
	Extension         string
	DurationTolerance float64
	Timezone          string
}

// Location resolves Timezone, defaulting to UTC.
func (p PipelineConfig) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline.timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

// LoggerConfig selects the log level, format and destination.
type LoggerConfig struct {
	Level  string
	Format string
	Output string
}

// Config is the full runtime configuration.
type Config struct {
	Database db.Config
	Pipeline PipelineConfig
	Logger   LoggerConfig
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Pipeline: PipelineConfig{
			SongData:          "data/song_data",
			LogData:           "data/log_data",
			Extension:         ".json",
			DurationTolerance: 0.01,
			Timezone:          "UTC",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads config.yaml from configPath (if present) and applies
// SPARKIFY_* environment overrides, e.g. SPARKIFY_DATABASE_HOST.
func Load(configPath string) (Config, error) {
	// Start with default
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.SetEnvPrefix("SPARKIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_conns",
		"pipeline.song_data",
		"pipeline.log_data",
		"pipeline.extension",
		"pipeline.duration_tolerance",
		"pipeline.timezone",
		"logger.level",
		"logger.format",
		"logger.output",
	} {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Override defaults if values exist
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("database.max_conns") {
		cfg.Database.MaxConns = v.GetInt32("database.max_conns")
	}

	if v.IsSet("pipeline.song_data") {
		cfg.Pipeline.SongData = v.GetString("pipeline.song_data")
	}
	if v.IsSet("pipeline.log_data") {
		cfg.Pipeline.LogData = v.GetString("pipeline.log_data")
	}
	if v.IsSet("pipeline.extension") {
		cfg.Pipeline.Extension = v.GetString("pipeline.extension")
	}
	if v.IsSet("pipeline.duration_tolerance") {
		cfg.Pipeline.DurationTolerance = v.GetFloat64("pipeline.duration_tolerance")
	}
	if v.IsSet("pipeline.timezone") {
		cfg.Pipeline.Timezone = v.GetString("pipeline.timezone")
	}

	if v.IsSet("logger.level") {
		cfg.Logger.Level = v.GetString("logger.level")
	}
	if v.IsSet("logger.format") {
		cfg.Logger.Format = v.GetString("logger.format")
	}
	if v.IsSet("logger.output") {
		cfg.Logger.Output = v.GetString("logger.output")
	}

	return cfg, cfg.Validate()
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Database.Host == "" {
		errs = append(errs, errors.New("database.host is required"))
	}
	if c.Database.DBName == "" {
		errs = append(errs, errors.New("database.dbname is required"))
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Errorf("database.port %d out of range", c.Database.Port))
	}
	if c.Pipeline.DurationTolerance < 0 {
		errs = append(errs, errors.New("pipeline.duration_tolerance must not be negative"))
	}
	if _, err := c.Pipeline.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
