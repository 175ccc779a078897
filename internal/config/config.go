package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Gateway GatewayConfig
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
}

// GatewayConfig locates the remote SpaceBot question-answering backend.
type GatewayConfig struct {
	BaseURL string
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			BaseURL: "http://localhost:5000",
		},
		Server: ServerConfig{
			Port: 5173,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/spacebot/config.json, then applies SPACEBOT_* environment
// overrides on top.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		v := strings.TrimSpace(os.Getenv(s.env))
		if v == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, v)
		case kInt:
			i, err := strconv.Atoi(v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] ignoring %s=%q: %v\n", s.env, v, err)
				continue
			}
			s.apply(cfg, i)
		}
	}
}
