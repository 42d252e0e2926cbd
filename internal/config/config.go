package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "VIDEO2FRAMES_"

var ErrInvalidArgument = errors.New("invalid argument")

type Config struct {
	InputPath string `yaml:"-" env:"-"`

	OutputDir   string  `yaml:"output" env:"OUTPUT"`
	NumFrames   *int    `yaml:"num_frames" env:"NUM_FRAMES"`
	Width       int     `yaml:"width" env:"WIDTH"`
	Height      int     `yaml:"height" env:"HEIGHT"`
	Quality     int     `yaml:"quality" env:"QUALITY"`
	SamplingFPS float64 `yaml:"fps" env:"FPS"`
	Format      Format  `yaml:"format" env:"FORMAT"`

	Workers     int     `yaml:"workers" env:"WORKERS"`
	SequenceFPS float64 `yaml:"sequence_fps" env:"SEQUENCE_FPS"`
	Manifest    bool    `yaml:"manifest" env:"MANIFEST"`
	MetricsFile string  `yaml:"metrics_file" env:"METRICS_FILE"`
	ShowStats   bool    `yaml:"stats" env:"STATS"`
	LogLevel    string  `yaml:"log_level" env:"LOG_LEVEL"`

	InfoOnly bool `yaml:"-" env:"-"`
}

func Defaults() Config {
	return Config{
		OutputDir:   "frames_output",
		Width:       1200,
		Height:      680,
		Quality:     95,
		SamplingFPS: 20,
		Format:      JPEG,
		SequenceFPS: 25,
		LogLevel:    "warn",
	}
}

// Load layers a YAML file (optional), a .env file in the working directory
// and VIDEO2FRAMES_* environment variables over Defaults. Flags are applied
// by the caller afterwards.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: parse config %s: %v", ErrInvalidArgument, path, err)
		}
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return cfg, fmt.Errorf("load .env: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	return cfg, nil
}

// Normalize validates the request and clamps the values that are clamped
// rather than rejected (quality).
func (c Config) Normalize() (Config, error) {
	if c.Width <= 0 || c.Height <= 0 {
		return c, fmt.Errorf("%w: dimensions must be positive, got %dx%d", ErrInvalidArgument, c.Width, c.Height)
	}
	if c.SamplingFPS <= 0 {
		return c, fmt.Errorf("%w: fps must be positive, got %g", ErrInvalidArgument, c.SamplingFPS)
	}
	if c.SequenceFPS <= 0 {
		return c, fmt.Errorf("%w: sequence fps must be positive, got %g", ErrInvalidArgument, c.SequenceFPS)
	}
	if c.Workers < 0 {
		return c, fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidArgument, c.Workers)
	}
	if !c.Format.Valid() {
		return c, fmt.Errorf("%w: unknown format %d", ErrInvalidArgument, int(c.Format))
	}
	if c.OutputDir == "" {
		return c, fmt.Errorf("%w: output directory is empty", ErrInvalidArgument)
	}
	c.Quality = ClampQuality(c.Quality)
	return c, nil
}

func ClampQuality(q int) int {
	if q < 0 {
		return 0
	}
	if q > 100 {
		return 100
	}
	return q
}
