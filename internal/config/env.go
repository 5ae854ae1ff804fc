package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override the config file.
const (
	EnvAdminUsername     = "CAPREV_ADMIN_USERNAME"
	EnvAdminPasswordHash = "CAPREV_ADMIN_PASSWORD_HASH"
	EnvSessionSecret     = "CAPREV_SESSION_SECRET"
	EnvPort              = "CAPREV_PORT"
	EnvEnv               = "CAPREV_ENV"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set win over the file. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides server settings from the environment.
func ApplyEnv(cfg *Config) error {
	return applyEnv(cfg, os.Getenv)
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv(EnvAdminUsername); v != "" {
		cfg.Server.AdminUsername = v
	}
	if v := getenv(EnvAdminPasswordHash); v != "" {
		cfg.Server.AdminPasswordHash = v
	}
	if v := getenv(EnvSessionSecret); v != "" {
		cfg.Server.SessionSecret = v
	}
	if v := getenv(EnvEnv); v != "" {
		cfg.Server.Env = v
	}
	if v := getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s %q", EnvPort, v)
		}
		cfg.Server.Port = port
	}
	return nil
}
