package config

// Defaults used when neither flags, environment nor the file say otherwise.
const (
	DefaultServer = "http://127.0.0.1:5080"
	DefaultOutput = "table"
)

// CLIConfig is the configuration for kernelgate-cli.
type CLIConfig struct {
	DefaultOutput string `yaml:"default_output"` // table, json, yaml

	// Saved connection profiles, keyed by name.
	Profiles map[string]Profile `yaml:"profiles"`

	// CurrentProfile names the profile used when no flag overrides it.
	CurrentProfile string `yaml:"current_profile,omitempty"`
}

// Profile stores where to reach one kernelgate-server.
type Profile struct {
	// Server is the HTTP base URL; the MCP endpoint is Server + "/mcp".
	Server string `yaml:"server"`

	// Socket is the local management socket path.
	Socket string `yaml:"socket,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		DefaultOutput: DefaultOutput,
		Profiles:      make(map[string]Profile),
	}
}

// Active returns the current profile, or a profile pointing at
// DefaultServer when none is selected.
func (c *CLIConfig) Active() Profile {
	if p, ok := c.Profiles[c.CurrentProfile]; ok {
		if p.Server == "" {
			p.Server = DefaultServer
		}
		return p
	}
	return Profile{Server: DefaultServer}
}
