package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - CAPREV_CONFIG_PATH: config file location (default: ~/.config/caprev.toml)
//   - CAPREV_HOME: base directory for caprev data (default: ~/.local/share/caprev)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"env_file":    filepath.Join(filepath.Dir(configPath), "caprev.env"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("CAPREV_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "caprev.toml"), nil
}

// getBaseDir follows XDG: ~/.local/share/caprev unless CAPREV_HOME is set.
func getBaseDir() (string, error) {
	if path := os.Getenv("CAPREV_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "caprev"), nil
}
