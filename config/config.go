package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config drives the unitbankd daemon.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	// Backend selects the embedded key-value store: "leveldb" or "bolt".
	Backend string `toml:"Backend"`
	Env     string `toml:"Env"`
	// RateLimitPerSecond caps RPC requests per client IP. Zero disables.
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
}

const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path, cfg)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ListenAddress:      ":8645",
		DataDir:            "./unitbank-data",
		Backend:            BackendLevelDB,
		Env:                "local",
		RateLimitPerSecond: 10,
		RateLimitBurst:     20,
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./unitbank-data"
	}
	if strings.TrimSpace(cfg.Backend) == "" {
		cfg.Backend = BackendLevelDB
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}
}

func validate(cfg *Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendLevelDB, BackendBolt:
	default:
		return fmt.Errorf("config: unknown storage backend %q", cfg.Backend)
	}
	return nil
}

func createDefault(path string, cfg *Config) (*Config, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
