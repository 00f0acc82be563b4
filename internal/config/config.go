package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"collectdate/internal/models"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Cache struct {
		TTLSeconds int `yaml:"ttl_seconds"`
	} `yaml:"cache"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	// Defaults seeds global settings on first run; it is not consulted
	// again once settings exist in the store.
	Defaults struct {
		LeadTime        int    `yaml:"lead_time"`
		LeadTimeType    string `yaml:"lead_time_type"`
		CutoffTime      string `yaml:"cutoff_time"`
		WorkingDays     []int  `yaml:"working_days"`
		CollectionDays  []int  `yaml:"collection_days"`
		MaxBookingDays  int    `yaml:"max_booking_days"`
		MaxOrdersPerDay int    `yaml:"max_orders_per_day"`
	} `yaml:"defaults"`

	Stats struct {
		Enabled       bool `yaml:"enabled"`
		IntervalHours int  `yaml:"interval_hours"`
	} `yaml:"stats"`

	RateLimit struct {
		PerSecond float64 `yaml:"per_second"`
		Burst     int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/collectdate.db"
	}
	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// CacheTTL returns the date-list cache TTL, defaulting to one hour.
func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// StatsInterval returns the aggregation interval, defaulting to daily.
func (c *Config) StatsInterval() time.Duration {
	if c.Stats.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Stats.IntervalHours) * time.Hour
}

// RateLimitPerSecond returns the mutation rate limit, defaulting to 10 rps.
func (c *Config) RateLimitPerSecond() float64 {
	if c.RateLimit.PerSecond <= 0 {
		return 10
	}
	return c.RateLimit.PerSecond
}

// RateLimitBurst returns the mutation burst size, defaulting to 20.
func (c *Config) RateLimitBurst() int {
	if c.RateLimit.Burst <= 0 {
		return 20
	}
	return c.RateLimit.Burst
}

// GlobalDefaults converts the seed section into sanitized global settings.
func (c *Config) GlobalDefaults() models.GlobalSettings {
	g := models.GlobalSettings{
		CategoryRule: models.CategoryRule{
			LeadTime:       c.Defaults.LeadTime,
			LeadTimeType:   models.LeadTimeType(c.Defaults.LeadTimeType),
			CutoffTime:     c.Defaults.CutoffTime,
			WorkingDays:    models.NewWeekdaySet(c.Defaults.WorkingDays...),
			CollectionDays: models.NewWeekdaySet(c.Defaults.CollectionDays...),
		},
		MaxBookingDays:  c.Defaults.MaxBookingDays,
		MaxOrdersPerDay: c.Defaults.MaxOrdersPerDay,
	}
	if g.WorkingDays.IsEmpty() {
		g.WorkingDays = models.NewWeekdaySet(1, 2, 3, 4, 5)
	}
	if g.CollectionDays.IsEmpty() {
		g.CollectionDays = models.AllWeekdays()
	}
	return g.Sanitize()
}
