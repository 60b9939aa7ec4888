package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigDir returns the config directory for BinarySniffer.
// Order: XDG_CONFIG_HOME/binarysniffer, platform-specific fallback.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "binarysniffer")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "BinarySniffer")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "binarysniffer")
}

// DataDir returns the data directory for BinarySniffer.
// Order: XDG_DATA_HOME/binarysniffer, platform-specific fallback.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "binarysniffer")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "BinarySniffer")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "binarysniffer")
}

// CacheDir returns the cache directory for BinarySniffer.
// Order: XDG_CACHE_HOME/binarysniffer, platform-specific fallback.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "binarysniffer")
	}
	if runtime.GOOS == "windows" {
		if localAppData := os.Getenv("LocalAppData"); localAppData != "" {
			return filepath.Join(localAppData, "BinarySniffer", "Cache")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "binarysniffer")
}
