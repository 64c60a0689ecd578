// Package config loads daemon configuration from a YAML file or CLI flags.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vadiminshakov/stashd/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	defaultDataDir  = "./data"
	defaultSource   = "steam"
	defaultCurrency = 3   // EUR
	defaultAppID    = 730 // CS2
	defaultTimezone = "Local"
)

// Config is the full daemon configuration. The refresh interval and the
// snapshot time seed the persisted settings on first start; afterwards the
// store is the source of truth for those two.
type Config struct {
	DataDir  string `yaml:"data_dir"`
	Source   string `yaml:"source"` // "steam" or "simulate"
	Currency int    `yaml:"currency"`
	AppID    int    `yaml:"appid"`
	Timezone string `yaml:"timezone"`

	RefreshIntervalMinutes int    `yaml:"refresh_interval_minutes"`
	SnapshotTimeOfDay      string `yaml:"snapshot_time_of_day"`

	WebAddr      string `yaml:"web_addr,omitempty"`
	SyncEndpoint string `yaml:"sync_endpoint,omitempty"`

	Pacing time.Duration `yaml:"pacing,omitempty"`
}

// Default returns the configuration with every default filled in.
func Default() Config {
	return Config{
		DataDir:                defaultDataDir,
		Source:                 defaultSource,
		Currency:               defaultCurrency,
		AppID:                  defaultAppID,
		Timezone:               defaultTimezone,
		RefreshIntervalMinutes: domain.DefaultRefreshIntervalMinutes,
		SnapshotTimeOfDay:      domain.DefaultSnapshotTimeOfDay,
	}
}

// Get reads configuration from --config when provided, CLI flags otherwise.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	dataDir := flag.String("datadir", defaultDataDir, "directory for the durable store")
	source := flag.String("source", defaultSource, "price source: steam or simulate")
	currency := flag.Int("currency", defaultCurrency, "steam currency code, 3 is EUR")
	appID := flag.Int("appid", defaultAppID, "steam app id whose market is queried")
	timezone := flag.String("timezone", defaultTimezone, "reference time zone for snapshot dates")
	interval := flag.Int("interval", domain.DefaultRefreshIntervalMinutes, "refresh interval in minutes")
	snapshotAt := flag.String("snapshotat", domain.DefaultSnapshotTimeOfDay, "daily snapshot time, HH:MM")
	webAddr := flag.String("webaddr", "", "status server address, empty disables")
	syncEndpoint := flag.String("sync", "", "remote sync endpoint base URL, empty disables")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	conf := Config{
		DataDir:                *dataDir,
		Source:                 *source,
		Currency:               *currency,
		AppID:                  *appID,
		Timezone:               *timezone,
		RefreshIntervalMinutes: *interval,
		SnapshotTimeOfDay:      *snapshotAt,
		WebAddr:                *webAddr,
		SyncEndpoint:           *syncEndpoint,
	}
	return conf, conf.validate()
}

func getYaml(path string) (Config, error) {
	conf := Default()

	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(f, &conf); err != nil {
		return Config{}, fmt.Errorf("parse yaml config: %w", err)
	}
	return conf, conf.validate()
}

func (c Config) validate() error {
	if c.Source != "steam" && c.Source != "simulate" {
		return fmt.Errorf("invalid 'source' %q, expected steam or simulate", c.Source)
	}
	if c.RefreshIntervalMinutes < 1 {
		return fmt.Errorf("invalid 'refresh_interval_minutes' %d, must be >= 1", c.RefreshIntervalMinutes)
	}
	settings := domain.Settings{SnapshotTimeOfDay: c.SnapshotTimeOfDay}
	if _, _, err := settings.SnapshotClock(); err != nil {
		return fmt.Errorf("invalid 'snapshot_time_of_day': %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid 'timezone' %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves the configured reference time zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == defaultTimezone {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Settings returns the settings seeded from this configuration.
func (c Config) Settings() domain.Settings {
	return domain.Settings{
		RefreshIntervalMinutes: c.RefreshIntervalMinutes,
		SnapshotTimeOfDay:      c.SnapshotTimeOfDay,
	}
}

// Save writes the configuration to path as YAML, used by the setup wizard.
func (c Config) Save(path string) error {
	payload, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode yaml config: %w", err)
	}
	return os.WriteFile(path, payload, 0o644)
}
