package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oddsflow/odds-warehouse/internal/platform/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Config stores runtime configuration for the ingest job.
type Config struct {
	AppEnv      string
	ServiceName string

	OddsAPIKey     string
	OddsAPIBaseURL string
	SportKeys      []string
	Regions        string
	Markets        string
	APITimeout     time.Duration
	APIMaxRetries  int

	// ReplayOnly skips the live fetch entirely and ingests the last saved
	// snapshot files instead.
	ReplayOnly  bool
	SnapshotDir string

	WarehouseEnabled bool
	DBURL            string

	CSVEnabled bool
	CSVDir     string

	IngestWorkers int
	LogLevel      logging.Level
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	replayOnly, err := getEnvAsBool("ODDS_REPLAY", false)
	if err != nil {
		return Config{}, fmt.Errorf("parse ODDS_REPLAY: %w", err)
	}
	warehouseEnabled, err := getEnvAsBool("WAREHOUSE_ENABLED", true)
	if err != nil {
		return Config{}, fmt.Errorf("parse WAREHOUSE_ENABLED: %w", err)
	}
	csvEnabled, err := getEnvAsBool("CSV_ENABLED", false)
	if err != nil {
		return Config{}, fmt.Errorf("parse CSV_ENABLED: %w", err)
	}

	apiTimeout, err := getEnvAsDuration("ODDS_API_TIMEOUT", 20*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("parse ODDS_API_TIMEOUT: %w", err)
	}
	maxRetries, err := getEnvAsInt("ODDS_API_MAX_RETRIES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse ODDS_API_MAX_RETRIES: %w", err)
	}
	workers, err := getEnvAsInt("INGEST_WORKERS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse INGEST_WORKERS: %w", err)
	}
	if workers <= 0 {
		workers = 1
	}

	cfg := Config{
		AppEnv:           appEnv,
		ServiceName:      getEnv("SERVICE_NAME", "odds-warehouse"),
		OddsAPIKey:       strings.TrimSpace(os.Getenv("ODDS_API_KEY")),
		OddsAPIBaseURL:   getEnv("ODDS_API_BASE_URL", "https://api.the-odds-api.com/v4"),
		SportKeys:        splitCSV(getEnv("ODDS_SPORTS", "americanfootball_nfl")),
		Regions:          getEnv("ODDS_REGIONS", "us"),
		Markets:          getEnv("ODDS_MARKETS", "h2h,spreads,totals"),
		APITimeout:       apiTimeout,
		APIMaxRetries:    maxRetries,
		ReplayOnly:       replayOnly,
		SnapshotDir:      getEnv("SNAPSHOT_DIR", "data"),
		WarehouseEnabled: warehouseEnabled,
		DBURL:            strings.TrimSpace(os.Getenv("DB_URL")),
		CSVEnabled:       csvEnabled,
		CSVDir:           getEnv("CSV_DIR", "out"),
		IngestWorkers:    workers,
		LogLevel:         logging.ParseLevel(getEnv("LOG_LEVEL", "info")),
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if len(cfg.SportKeys) == 0 {
		return fmt.Errorf("ODDS_SPORTS must name at least one sport key")
	}
	if !cfg.ReplayOnly && cfg.OddsAPIKey == "" {
		return fmt.Errorf("ODDS_API_KEY is required unless ODDS_REPLAY=true")
	}
	if !cfg.WarehouseEnabled && !cfg.CSVEnabled {
		return fmt.Errorf("at least one sink must be enabled (WAREHOUSE_ENABLED or CSV_ENABLED)")
	}
	if cfg.WarehouseEnabled && cfg.DBURL == "" {
		return fmt.Errorf("DB_URL is required when WAREHOUSE_ENABLED=true")
	}
	return nil
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
