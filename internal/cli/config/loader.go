package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.TempDir()
	}
	return filepath.Join(homeDir, ".kernelgate", "cli.yaml")
}

// Load loads CLI configuration from file. A missing file yields the
// defaults.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cli config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse cli config %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("cli config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration with owner-only permissions.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode cli config: %w", err)
	}

	// Write then rename so a crash never leaves a truncated file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Validate checks output format, profile names and server URLs.
func Validate(cfg *CLIConfig) error {
	switch cfg.DefaultOutput {
	case "", "table", "json", "yaml":
	default:
		return fmt.Errorf("default_output must be table, json or yaml, got %q", cfg.DefaultOutput)
	}
	for name, p := range cfg.Profiles {
		if name == "" || strings.ContainsAny(name, " \t") {
			return fmt.Errorf("invalid profile name %q", name)
		}
		if p.Server != "" && !strings.HasPrefix(p.Server, "http://") && !strings.HasPrefix(p.Server, "https://") {
			return fmt.Errorf("profile %s: server must be an http(s) URL, got %q", name, p.Server)
		}
	}
	if cfg.CurrentProfile != "" {
		if _, ok := cfg.Profiles[cfg.CurrentProfile]; !ok {
			return fmt.Errorf("current_profile %q is not defined", cfg.CurrentProfile)
		}
	}
	return nil
}

// NormalizeServer adds the http:// scheme when missing and trims a
// trailing slash.
func NormalizeServer(server string) string {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if server == "" {
		return ""
	}
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "http://" + server
	}
	return server
}
