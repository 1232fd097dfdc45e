package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the liveproxydemo YAML configuration file, matching the
// teacher's preference for a small yaml.v3-decoded struct over flags for
// anything beyond the handful of values cobra already owns (see
// cmd/go.mod, which requires yaml.v3 directly for the same reason).
type Config struct {
	Addr      string `yaml:"addr"`
	DBPath    string `yaml:"db_path"`
	Path      string `yaml:"path"`
	JWTSecret string `yaml:"jwt_secret"`
}

func defaultConfig() Config {
	return Config{
		Addr:      ":8080",
		DBPath:    "liveproxydemo.duckdb",
		Path:      "demo/doc",
		JWTSecret: "dev-secret-change-me",
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
