package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/kernelgate/internal/server/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kernelgate.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("", nil)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Server.Transport != config.TransportStdio {
		t.Errorf("Transport = %q, want stdio", cfg.Server.Transport)
	}
	if !config.UsesDevSecret(cfg) && os.Getenv(config.EnvLegacySecretKey) == "" {
		t.Error("default config should use the development secret")
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  transport: stdio
  http_addr: "127.0.0.1:6001"
kernel:
  dialect: sh
log:
  level: warn
`)

	cfg, err := loadConfig(path, map[string]any{
		"server.transport": "http",
		"log.level":        "debug",
	})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Server.Transport != config.TransportHTTP {
		t.Errorf("Transport = %q, want http", cfg.Server.Transport)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:6001" {
		t.Errorf("HTTPAddr = %q, file value lost", cfg.Server.HTTPAddr)
	}
	if cfg.Kernel.Dialect != "sh" {
		t.Errorf("Dialect = %q", cfg.Kernel.Dialect)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		overrides map[string]any
	}{
		{"bad transport flag", "", map[string]any{"server.transport": "carrier-pigeon"}},
		{"bad dialect", "kernel:\n  dialect: cobol\n", nil},
		{"missing kernel", "kernel:\n  path: /nonexistent/kernel\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.content != "" {
				path = writeConfigFile(t, tt.content)
			}
			if _, err := loadConfig(path, tt.overrides); err == nil {
				t.Error("loadConfig() should fail")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Error("loadConfig() with a missing file should fail")
	}
}

func TestCheckConfig_MasksSecret(t *testing.T) {
	path := writeConfigFile(t, `
security:
  secret_key: "a-very-long-production-secret"
kernel:
  dialect: sh
`)

	app := newApp()
	var out bytes.Buffer
	app.Writer = &out

	if err := app.Run([]string{"kernelgate-server", "check-config", "--config", path, "--transport", "http"}); err != nil {
		t.Fatalf("check-config error = %v", err)
	}
	if strings.Contains(out.String(), "a-very-long-production-secret") {
		t.Fatal("check-config printed the secret")
	}

	var printed config.ServerConfig
	if err := yaml.Unmarshal(out.Bytes(), &printed); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, out.String())
	}
	if printed.Server.Transport != config.TransportHTTP {
		t.Errorf("printed transport = %q, want http", printed.Server.Transport)
	}
	if printed.Kernel.Dialect != "sh" {
		t.Errorf("printed dialect = %q, want sh", printed.Kernel.Dialect)
	}
}

func TestFlagKeysAreConfigKeys(t *testing.T) {
	cfg := config.Default()
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var tree map[string]map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		t.Fatal(err)
	}

	for flag, key := range flagKeys {
		section, name, ok := strings.Cut(key, ".")
		if !ok {
			t.Errorf("flag %s maps to %q, want section.key", flag, key)
			continue
		}
		if _, ok := tree[section][name]; !ok {
			t.Errorf("flag %s maps to unknown key %q", flag, key)
		}
	}
}
