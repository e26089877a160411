package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/yndnr/kernelgate/internal/infra/buildinfo"
	"github.com/yndnr/kernelgate/internal/infra/confloader"
	"github.com/yndnr/kernelgate/internal/server/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "kernelgate-server",
		Usage:   "MCP server for persistent compute-kernel sessions",
		Version: buildinfo.String(),
		Flags:   serverFlags(),
		Action:  serve,
		Commands: []*cli.Command{
			{
				Name:   "check-config",
				Usage:  "Validate the configuration and print it with secrets masked",
				Flags:  serverFlags(),
				Action: checkConfig,
			},
		},
	}
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file (YAML)",
			EnvVars: []string{"KERNELGATE_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "transport",
			Aliases: []string{"t"},
			Usage:   "MCP transport: stdio or http",
		},
		&cli.StringFlag{
			Name:  "http-addr",
			Usage: "Listen address for the http transport",
		},
		&cli.StringFlag{
			Name:  "socket",
			Usage: "Path of the local management socket",
		},
		&cli.StringFlag{
			Name:  "kernel-path",
			Usage: "Kernel executable (overrides discovery)",
		},
		&cli.StringFlag{
			Name:  "dialect",
			Usage: "Kernel dialect: wolfram or sh",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
	}
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"transport":   "server.transport",
	"http-addr":   "server.http_addr",
	"socket":      "server.socket_path",
	"kernel-path": "kernel.path",
	"dialect":     "kernel.dialect",
	"log-level":   "log.level",
}

// flagOverrides returns the explicitly set flags as configuration keys.
func flagOverrides(c *cli.Context) map[string]any {
	out := make(map[string]any)
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			out[key] = c.String(flag)
		}
	}
	return out
}

// loadConfig layers defaults, the config file, legacy and prefixed
// environment variables and finally flags, then validates the result.
func loadConfig(file string, overrides map[string]any) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := make([]confloader.Option, 0, 4)
	if file != "" {
		opts = append(opts, confloader.WithConfigFile(file))
	}
	for name, key := range config.EnvAliases() {
		opts = append(opts, confloader.WithEnvAlias(name, key))
	}
	loader := confloader.NewLoader(opts...)

	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, fmt.Errorf("apply flags: %w", err)
		}
		if err := loader.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("apply flags: %w", err)
		}
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func checkConfig(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"), flagOverrides(c))
	if err != nil {
		return err
	}
	return writeConfig(c.App.Writer, cfg)
}

func writeConfig(w io.Writer, cfg *config.ServerConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(config.Sanitize(cfg)); err != nil {
		return err
	}
	return enc.Close()
}
