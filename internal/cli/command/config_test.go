package command

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/yndnr/kernelgate/internal/cli/config"
)

func TestConfig_SetUseShow(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun(t, "config", "set", "profiles.lab.server", "lab.example:5080")
	env.mustRun(t, "config", "set", "profiles.lab.socket", "/run/lab.sock")
	env.mustRun(t, "config", "set", "default_output", "yaml")

	out := env.mustRun(t, "use", "lab")
	if !strings.Contains(out, "http://lab.example:5080") {
		t.Errorf("use output = %q", out)
	}

	cfg, err := config.Load(env.configPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CurrentProfile != "lab" || cfg.DefaultOutput != "yaml" {
		t.Errorf("cfg = %+v", cfg)
	}
	if p := cfg.Profiles["lab"]; p.Server != "http://lab.example:5080" || p.Socket != "/run/lab.sock" {
		t.Errorf("profile = %+v", p)
	}

	out = env.mustRun(t, "-o", "json", "config", "show")
	var view configView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(view.Profiles) != 1 || !view.Profiles[0].Current {
		t.Errorf("view = %+v", view)
	}
	// --server given by run() overrides the profile.
	if view.Server != env.srv.URL {
		t.Errorf("effective server = %q, want %q", view.Server, env.srv.URL)
	}

	out, err = env.runRaw(t, "", "kernelgate-cli", "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "server: http://lab.example:5080") {
		t.Errorf("yaml show should use profile server: %q", out)
	}

	env.mustRun(t, "config", "delete-profile", "lab")
	cfg, _ = config.Load(env.configPath)
	if len(cfg.Profiles) != 0 || cfg.CurrentProfile != "" {
		t.Errorf("cfg after delete = %+v", cfg)
	}
}

func TestConfig_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := [][]string{
		{"config", "set", "default_output"},
		{"config", "set", "colour", "red"},
		{"config", "set", "profiles.lab.token", "x"},
		{"config", "set", "profiles..server", "x"},
		{"config", "set", "default_output", "xml"},
		{"config", "set", "current_profile", "missing"},
		{"config", "use", "missing"},
		{"config", "use"},
		{"config", "delete-profile", "missing"},
	}
	for _, args := range tests {
		if _, err := env.run(t, "", args...); err == nil {
			t.Errorf("%v should fail", args)
		}
	}
}

func TestConfig_ShowTable(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "config", "show")
	if !strings.Contains(out, "(no saved profiles)") {
		t.Errorf("output = %q", out)
	}
}

func TestConnect(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "connect")
	if !strings.Contains(out, "Connected to "+env.srv.URL) || !strings.Contains(out, "kernelgate") {
		t.Errorf("connect output = %q", out)
	}

	out = env.mustRun(t, "connect", "--name", "here", env.srv.URL)
	if !strings.Contains(out, "Saved profile here") {
		t.Errorf("connect output = %q", out)
	}
	cfg, err := config.Load(env.configPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CurrentProfile != "here" || cfg.Profiles["here"].Server != env.srv.URL || cfg.Profiles["here"].Socket != env.socket {
		t.Errorf("cfg = %+v", cfg)
	}

	// Later commands reach the saved profile without --server.
	if _, err := env.runRaw(t, "", "kernelgate-cli", "local", "ping"); err != nil {
		t.Errorf("local ping via profile: %v", err)
	}

	env.srv.Close()
	if _, err := env.run(t, "", "connect"); err == nil {
		t.Error("connect should fail for a closed server")
	}
}
