package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kernelgate/internal/cli/config"
	"github.com/yndnr/kernelgate/internal/cli/output"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "CLI configuration and connection profiles",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the CLI configuration and the effective settings",
				Action: configShow,
			},
			{
				Name:      "set",
				Usage:     "Set a configuration value",
				ArgsUsage: "KEY VALUE",
				Description: "Keys: default_output, current_profile, profiles.NAME.server,\n" +
					"profiles.NAME.socket",
				Action: configSet,
			},
			{
				Name:      "use",
				Usage:     "Switch the current profile",
				ArgsUsage: "PROFILE",
				Action:    configUse,
			},
			{
				Name:      "delete-profile",
				Usage:     "Remove a saved profile",
				ArgsUsage: "PROFILE",
				Action:    configDeleteProfile,
			},
		},
	}
}

type profileInfo struct {
	Name    string `json:"name" yaml:"name"`
	Server  string `json:"server" yaml:"server"`
	Socket  string `json:"socket,omitempty" yaml:"socket,omitempty"`
	Current bool   `json:"current" yaml:"current"`
}

type configView struct {
	File          string        `json:"file" yaml:"file"`
	DefaultOutput string        `json:"default_output" yaml:"default_output"`
	Server        string        `json:"server" yaml:"server"`
	Socket        string        `json:"socket,omitempty" yaml:"socket,omitempty"`
	Profiles      []profileInfo `json:"profiles" yaml:"profiles"`
}

func configShow(c *cli.Context) error {
	cfg, err := cliConfig(c)
	if err != nil {
		return err
	}
	g := ParseGlobalFlags(c)

	view := configView{
		File:          c.String("config"),
		DefaultOutput: cfg.DefaultOutput,
		Server:        g.Server,
		Socket:        g.Socket,
	}
	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := cfg.Profiles[name]
		view.Profiles = append(view.Profiles, profileInfo{
			Name: name, Server: p.Server, Socket: p.Socket, Current: name == cfg.CurrentProfile,
		})
	}

	if g.Output != output.FormatTable {
		return render(c, view)
	}

	w := stdout(c)
	fmt.Fprintf(w, "Config file:    %s\n", view.File)
	fmt.Fprintf(w, "Default output: %s\n", view.DefaultOutput)
	fmt.Fprintf(w, "Server:         %s\n", view.Server)
	if view.Socket != "" {
		fmt.Fprintf(w, "Socket:         %s\n", view.Socket)
	}
	if len(view.Profiles) == 0 {
		fmt.Fprintln(w, "\n(no saved profiles)")
		return nil
	}
	fmt.Fprintln(w)
	table := &output.Table{Headers: []string{"", "PROFILE", "SERVER", "SOCKET"}}
	for _, p := range view.Profiles {
		mark := ""
		if p.Current {
			mark = "*"
		}
		table.AddRow(mark, p.Name, p.Server, orDash(p.Socket))
	}
	return table.Render(w)
}

func configSet(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: config set KEY VALUE")
	}
	key, value := c.Args().Get(0), c.Args().Get(1)

	cfg, err := cliConfig(c)
	if err != nil {
		return err
	}
	if err := setConfigValue(cfg, key, value); err != nil {
		return err
	}
	if err := saveConfig(c, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "Set %s = %s\n", key, value)
	return nil
}

// setConfigValue applies one dotted key and validates the result.
func setConfigValue(cfg *config.CLIConfig, key, value string) error {
	switch key {
	case "default_output":
		cfg.DefaultOutput = value
	case "current_profile":
		cfg.CurrentProfile = value
	default:
		rest, ok := strings.CutPrefix(key, "profiles.")
		name, field, ok2 := strings.Cut(rest, ".")
		if !ok || !ok2 || name == "" {
			return fmt.Errorf("unknown config key %q", key)
		}
		p := cfg.Profiles[name]
		switch field {
		case "server":
			p.Server = config.NormalizeServer(value)
		case "socket":
			p.Socket = value
		default:
			return fmt.Errorf("unknown profile field %q", field)
		}
		cfg.Profiles[name] = p
	}
	return config.Validate(cfg)
}

func configUse(c *cli.Context) error {
	name, err := argRequired(c, "profile name")
	if err != nil {
		return err
	}
	cfg, err := cliConfig(c)
	if err != nil {
		return err
	}
	if _, ok := cfg.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	cfg.CurrentProfile = name
	if err := saveConfig(c, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "Switched to profile %s (%s)\n", name, cfg.Active().Server)
	return nil
}

func configDeleteProfile(c *cli.Context) error {
	name, err := argRequired(c, "profile name")
	if err != nil {
		return err
	}
	cfg, err := cliConfig(c)
	if err != nil {
		return err
	}
	if _, ok := cfg.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	delete(cfg.Profiles, name)
	if cfg.CurrentProfile == name {
		cfg.CurrentProfile = ""
	}
	if err := saveConfig(c, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "Deleted profile %s\n", name)
	return nil
}

func saveConfig(c *cli.Context, cfg *config.CLIConfig) error {
	path := c.String("config")
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
