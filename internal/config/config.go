// Package config loads the pipeline's runtime configuration: the store
// DSN and one listener.Config per requested venue, from environment
// variables via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nadircryptocurrency/antalla/internal/fixtures"
	"github.com/nadircryptocurrency/antalla/internal/listener"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	DatabaseURL    string                    `mapstructure:"db_url"`
	CommitInterval int                       `mapstructure:"commit_interval"`
	SnapshotStep   time.Duration             `mapstructure:"snapshot_interval"`
	Venues         map[string]listener.Config `mapstructure:"-"`
}

// Load reads DB_URL and, for every name in venues, the <VENUE>_WS_URL,
// <VENUE>_API, <VENUE>_API_KEY, and <VENUE>_MARKETS environment variables
// ("BASE_QUOTE" pair strings, comma-separated).
func Load(venues []string) (*Config, error) {
	v := viper.New()
	v.SetDefault("commit_interval", 100)
	v.SetDefault("snapshot_interval", "1s")
	v.AutomaticEnv()

	dbURL := v.GetString("db_url")
	if dbURL == "" {
		return nil, fmt.Errorf("DB_URL is required")
	}

	cfg := &Config{
		DatabaseURL:    dbURL,
		CommitInterval: v.GetInt("commit_interval"),
		SnapshotStep:   v.GetDuration("snapshot_interval"),
		Venues:         make(map[string]listener.Config, len(venues)),
	}

	for _, name := range venues {
		vc, err := loadVenue(v, name)
		if err != nil {
			return nil, fmt.Errorf("configure venue %q: %w", name, err)
		}
		cfg.Venues[name] = vc
	}
	return cfg, nil
}

func loadVenue(v *viper.Viper, name string) (listener.Config, error) {
	exchange, ok := fixtures.Exchange(name)
	if !ok {
		return listener.Config{}, fmt.Errorf("no fixture-assigned exchange id for venue %q", name)
	}

	prefix := strings.ToUpper(name)
	wsURL := v.GetString(prefix + "_WS_URL")
	if wsURL == "" {
		return listener.Config{}, fmt.Errorf("%s_WS_URL is required", prefix)
	}

	markets, err := parseMarkets(v.GetString(prefix + "_MARKETS"))
	if err != nil {
		return listener.Config{}, err
	}

	return listener.Config{
		Exchange:   exchange,
		WSURL:      wsURL,
		APIBaseURL: v.GetString(prefix + "_API"),
		APIKey:     v.GetString(prefix + "_API_KEY"),
		Markets:    markets,
	}, nil
}

// parseMarkets splits a comma-separated list of "BASE_QUOTE" pair strings.
func parseMarkets(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	markets := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "_") {
			return nil, fmt.Errorf("malformed market pair %q, expected BASE_QUOTE", p)
		}
		markets = append(markets, p)
	}
	return markets, nil
}
