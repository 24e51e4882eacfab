package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	UbiUsername      string `env:"UBI_USERNAME"`
	UbiPassword      string `env:"UBI_PASSWORD"`
	UbiBaseURL       string `env:"UBI_BASE_URL" envDefault:"https://public-ubiservices.ubi.com"`
	DBPath           string `env:"DB_PATH" envDefault:"divtracker.db"`
	ServerPort       string `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	FetchConcurrency int    `env:"FETCH_CONCURRENCY" envDefault:"10"`
	ChromeURL        string `env:"CHROME_URL"`
	ScrapeBaseURL    string `env:"SCRAPE_BASE_URL" envDefault:"https://tracker.gg/division-2/profile/uplay"`
	OtelEndpoint     string `env:"OTEL_ENDPOINT"`
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg, err := Parse()
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("ubi_base_url", cfg.UbiBaseURL).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Int("fetch_concurrency", cfg.FetchConcurrency).
		Bool("scrape_enabled", cfg.ChromeURL != "").
		Bool("tracing_enabled", cfg.OtelEndpoint != "").
		Msg("configuration loaded")

	return cfg, nil
}

// Parse reads the configuration from the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}

	if cfg.UbiUsername == "" || cfg.UbiPassword == "" {
		return nil, fmt.Errorf("UBI_USERNAME and UBI_PASSWORD are required")
	}
	if cfg.FetchConcurrency <= 0 {
		return nil, fmt.Errorf("FETCH_CONCURRENCY must be positive, got %d", cfg.FetchConcurrency)
	}

	return &cfg, nil
}

var Module = fx.Provide(Load)
