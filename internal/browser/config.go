package browser

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// Config points the browser at a media API.
type Config struct {
	Endpoint string
	APIKey   string
}

// ConfigPaths lists where LoadConfig looks for a .mediarc file, in order.
func ConfigPaths() []string {
	return []string{
		".mediarc",
		filepath.Join(os.Getenv("HOME"), ".mediarc"),
		"/etc/mediarc",
	}
}

// LoadConfig reads the first .mediarc found in ConfigPaths, then applies the
// MEDIA_ENDPOINT and MEDIA_API_KEY environment overrides.
func LoadConfig() (*Config, error) {
	return loadConfig(ConfigPaths())
}

func loadConfig(paths []string) (*Config, error) {
	cfg := &Config{Endpoint: "http://localhost:8080"}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		file, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		section := file.Section("default")
		cfg.Endpoint = section.Key("endpoint").MustString(cfg.Endpoint)
		cfg.APIKey = section.Key("api_key").String()
		break
	}

	if v := os.Getenv("MEDIA_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("MEDIA_API_KEY"); v != "" {
		cfg.APIKey = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key must be set in .mediarc or MEDIA_API_KEY")
	}
	return cfg, nil
}
