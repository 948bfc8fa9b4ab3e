// Package config loads the surge CLI's test-plan configuration from TOML.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Test      TestConfig      `toml:"test"`
	Target    TargetConfig    `toml:"target"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Report    ReportConfig    `toml:"report"`
	Observer  ObserverConfig  `toml:"observer"`
}

type TestConfig struct {
	Users           int      `toml:"users"`
	RampUp          duration `toml:"ramp_up"`
	Duration        duration `toml:"duration"`
	PoolSize        int      `toml:"pool_size"`
	MetricsInterval duration `toml:"metrics_interval"`
	PoolMode        string   `toml:"pool_mode"`
}

type TargetConfig struct {
	BaseURL string `toml:"base_url"`
	FeedCSV string `toml:"feed_csv"`
}

type DashboardConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type ReportConfig struct {
	HTMLPath   string `toml:"html_path"`
	CSVPath    string `toml:"csv_path"`
	SeriesPath string `toml:"series_path"`
	SQLitePath string `toml:"sqlite_path"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// duration wraps time.Duration so TOML values can be written as "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Test: TestConfig{
			Users:           10,
			RampUp:          duration{5 * time.Second},
			Duration:        duration{30 * time.Second},
			PoolSize:        10,
			MetricsInterval: duration{time.Second},
			PoolMode:        "lightweight_tasks",
		},
		Dashboard: DashboardConfig{
			Enabled: true,
			Addr:    ":8089",
		},
	}
}

// Load reads TOML from path over the defaults. A missing file returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
