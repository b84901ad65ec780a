package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Vault      VaultConfig      `yaml:"vault"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Importer   ImporterConfig   `yaml:"importer"`
	Projects   ProjectsConfig   `yaml:"projects"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// VaultConfig holds the connection details for the secret store that keeps
// the per-WEMA site-proxy credentials.
type VaultConfig struct {
	Address    string `yaml:"address"`
	Token      string `yaml:"token"`
	Mount      string `yaml:"mount"`
	SecretPath string `yaml:"secret_path"`
}

// SchedulerConfig describes the upstream LCO site proxies and the static
// site topology: which telescopes run at each WEMA, and which logical
// reservation site each telescope maps to.
type SchedulerConfig struct {
	// ProxyURLTemplate is expanded with the WEMA code, e.g.
	// "https://%s-proxy.lco.global".
	ProxyURLTemplate string        `yaml:"proxy_url_template"`
	TimeoutSeconds   int           `yaml:"timeout_seconds"`
	Timeout          time.Duration `yaml:"-"`
	HorizonDays      int           `yaml:"horizon_days"`
	FetchLimit       int           `yaml:"fetch_limit"`

	// Wemas maps WEMA code -> telescope id -> logical site code.
	Wemas map[string]map[string]string `yaml:"wemas"`
}

// ImporterConfig controls the periodic schedule import.
type ImporterConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CronSpec string `yaml:"cron"`
}

// ProjectsConfig points at the remote projects collaborator service.
type ProjectsConfig struct {
	BaseURL        string        `yaml:"base_url"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Scheduler.ProxyURLTemplate == "" {
		cfg.Scheduler.ProxyURLTemplate = "https://%s-proxy.lco.global"
	}
	if cfg.Scheduler.TimeoutSeconds <= 0 {
		cfg.Scheduler.TimeoutSeconds = 30
	}
	cfg.Scheduler.Timeout = time.Duration(cfg.Scheduler.TimeoutSeconds) * time.Second
	if cfg.Scheduler.HorizonDays <= 0 {
		cfg.Scheduler.HorizonDays = 21
	}
	if cfg.Scheduler.FetchLimit <= 0 {
		cfg.Scheduler.FetchLimit = 1000
	}
	if len(cfg.Scheduler.Wemas) == 0 {
		return nil, fmt.Errorf("scheduler.wemas must define at least one WEMA")
	}

	if cfg.Importer.CronSpec == "" {
		cfg.Importer.CronSpec = "*/15 * * * *"
	}

	if cfg.Projects.TimeoutSeconds <= 0 {
		cfg.Projects.TimeoutSeconds = 30
	}
	cfg.Projects.Timeout = time.Duration(cfg.Projects.TimeoutSeconds) * time.Second

	if cfg.Vault.Mount == "" {
		cfg.Vault.Mount = "secret"
	}
	if cfg.Vault.SecretPath == "" {
		cfg.Vault.SecretPath = "site-proxy-secret"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
