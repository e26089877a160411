package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kernelgate/internal/cli/config"
	"github.com/yndnr/kernelgate/internal/cli/connection"
)

// ConnectCommand returns the connect command.
func ConnectCommand() *cli.Command {
	return &cli.Command{
		Name:      "connect",
		Usage:     "Check a server and optionally save it as a profile",
		ArgsUsage: "[SERVER]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Save the connection as profile `NAME` and make it current",
			},
		},
		Action: connectAction,
	}
}

func connectAction(c *cli.Context) error {
	g := ParseGlobalFlags(c)
	server := g.Server
	if arg := c.Args().First(); arg != "" {
		server = config.NormalizeServer(arg)
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	client, err := connection.DialMCP(ctx, server, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Fprintf(stdout(c), "Connected to %s (%s)\n", server, client.ServerName())

	name := c.String("name")
	if name == "" {
		return nil
	}
	cfg, err := cliConfig(c)
	if err != nil {
		return err
	}
	cfg.Profiles[name] = config.Profile{Server: server, Socket: g.Socket}
	cfg.CurrentProfile = name
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := saveConfig(c, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "Saved profile %s\n", name)
	return nil
}

// UseCommand returns the use command for switching profiles.
func UseCommand() *cli.Command {
	return &cli.Command{
		Name:      "use",
		Usage:     "Switch to a saved profile (same as config use)",
		ArgsUsage: "PROFILE",
		Action:    configUse,
	}
}
