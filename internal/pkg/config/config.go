package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/V4T54L/gig-scout/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	ServerAddr      string `env:"SERVER_ADDR" envDefault:":8080"`
	AdminServerAddr string `env:"ADMIN_SERVER_ADDR" envDefault:":9090"`

	// CacheBackend selects the durable cache layer: "redis", "postgres" or
	// "memory" (no durable layer, single-process only).
	CacheBackend string `env:"CACHE_BACKEND" envDefault:"redis"`
	RedisAddr    string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	PostgresURL  string `env:"POSTGRES_URL"`

	ProvidersFile   string `env:"PROVIDERS_FILE" envDefault:"providers.yaml"`
	TicketmasterKey string `env:"TICKETMASTER_API_KEY"`
	WeekdayCutoff   string `env:"WEEKDAY_CUTOFF" envDefault:"16:30"`

	HTTPTimeout   time.Duration `env:"PROVIDER_HTTP_TIMEOUT" envDefault:"8s"`
	FetchTimeout  time.Duration `env:"PROVIDER_FETCH_TIMEOUT" envDefault:"10s"`
	RatePerSecond float64       `env:"PROVIDER_RATE_PER_SECOND" envDefault:"4"`
	APITTL        time.Duration `env:"API_CACHE_TTL" envDefault:"30m"`
	ScrapeTTL     time.Duration `env:"SCRAPE_CACHE_TTL" envDefault:"6h"`
	FeedTTL       time.Duration `env:"FEED_CACHE_TTL" envDefault:"1h"`

	ImageQuota    int           `env:"IMAGE_HYDRATION_QUOTA" envDefault:"5"`
	RenderEnabled bool          `env:"RENDER_FALLBACK_ENABLED" envDefault:"false"`
	RenderTimeout time.Duration `env:"RENDER_TIMEOUT" envDefault:"20s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// providersFile is the on-disk shape of the datasource list.
type providersFile struct {
	Providers []domain.ProviderConfig `yaml:"providers"`
}

// LoadProviders reads the datasource list from the YAML file at path and
// returns the enabled entries in declaration order.
func LoadProviders(path string) ([]domain.ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse providers file %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(file.Providers))
	enabled := make([]domain.ProviderConfig, 0, len(file.Providers))
	for i, p := range file.Providers {
		if p.ID == "" || p.Type == "" {
			return nil, fmt.Errorf("providers file %s: entry %d is missing id or type", path, i)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("providers file %s: duplicate provider id %q", path, p.ID)
		}
		seen[p.ID] = struct{}{}
		if !p.Enabled {
			continue
		}
		if p.Order == 0 {
			p.Order = i + 1
		}
		enabled = append(enabled, p)
	}
	return enabled, nil
}
