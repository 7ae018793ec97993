package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appDir = "go-face-privacy"

// DefaultConfigDir returns the per-user configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", appDir, "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", appDir)
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appDir)
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appDir)
		}
		return filepath.Join(home, ".config", appDir)
	}
}

// DefaultPath is the config file read when no --config flag is given.
func DefaultPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultModelsPath returns the directory downloaded weights are cached in.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", appDir, "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", appDir, "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", appDir, "models")
	default:
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, appDir, "models")
		}
		return filepath.Join(home, ".cache", appDir, "models")
	}
}
