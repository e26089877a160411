package command

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kernelgate/internal/cli/output"
	"github.com/yndnr/kernelgate/internal/core/domain"
	"github.com/yndnr/kernelgate/internal/server/localserver"
)

// LocalCommand returns the commands sent over the local management socket.
func LocalCommand() *cli.Command {
	force := &cli.BoolFlag{
		Name:    "force",
		Aliases: []string{"f"},
		Usage:   "Skip confirmation",
	}
	return &cli.Command{
		Name:  "local",
		Usage: "Manage a server on this host over its local socket",
		Subcommands: []*cli.Command{
			{
				Name:   "ping",
				Usage:  "Check that the server answers on the socket",
				Action: localPing,
			},
			{
				Name:   "status",
				Usage:  "Show version, uptime, log level and registry counters",
				Action: localStatus,
			},
			{
				Name:   "sessions",
				Usage:  "List open sessions",
				Action: localSessions,
			},
			{
				Name:   "drain",
				Usage:  "Stop accepting sessions and close every open one",
				Flags:  []cli.Flag{force},
				Action: localDrain,
			},
			{
				Name:      "level",
				Usage:     "Show or change the log level",
				ArgsUsage: "[debug|info|warn|error]",
				Action:    localLevel,
			},
			{
				Name:   "reload",
				Usage:  "Re-read the server configuration file",
				Action: localSimple("reload", "Configuration reloaded."),
			},
			{
				Name:   "shutdown",
				Usage:  "Shut the server down gracefully",
				Flags:  []cli.Flag{force},
				Action: localShutdown,
			},
		},
	}
}

// localCall sends one command and decodes its data into target.
func localCall(c *cli.Context, cmd string, target any) error {
	sock, err := manager(c).Local()
	if err != nil {
		return err
	}
	verbosef(c, "> %s (%s)", cmd, sock.Path())
	return sock.Call(cmd, target)
}

func localPing(c *cli.Context) error {
	var pong string
	if err := localCall(c, "ping", &pong); err != nil {
		return err
	}
	fmt.Fprintln(stdout(c), pong)
	return nil
}

func localStatus(c *cli.Context) error {
	var status localserver.Status
	if err := localCall(c, "status", &status); err != nil {
		return err
	}
	return render(c, status)
}

func localSessions(c *cli.Context) error {
	var sessions []domain.Session
	if err := localCall(c, "sessions", &sessions); err != nil {
		return err
	}
	if ParseGlobalFlags(c).Output != output.FormatTable {
		return render(c, sessions)
	}

	table := &output.Table{Headers: []string{"ID", "TOKEN", "BACKEND", "EVALS", "RUNNING"}}
	for _, s := range sessions {
		table.AddRow(s.ID, s.TokenMask, s.Backend, fmt.Sprint(s.Evaluations), fmt.Sprint(s.InFlight))
	}
	return table.Render(stdout(c))
}

func localDrain(c *cli.Context) error {
	ok, err := confirm(c, "Stop accepting sessions and close every open one on this server?")
	if err != nil || !ok {
		return err
	}

	var result struct {
		Closed int `json:"closed"`
	}
	if err := localCall(c, "drain", &result); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "%d sessions closed.\n", result.Closed)
	return nil
}

func localLevel(c *cli.Context) error {
	cmd := "level"
	if c.Args().Len() > 1 {
		return fmt.Errorf("usage: level [debug|info|warn|error]")
	}
	if lvl := c.Args().First(); lvl != "" {
		cmd += " " + strings.ToLower(lvl)
	}

	var result struct {
		Level string `json:"level"`
	}
	if err := localCall(c, cmd, &result); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "Log level: %s\n", result.Level)
	return nil
}

func localShutdown(c *cli.Context) error {
	ok, err := confirm(c, "Shut down the server? Open sessions will be closed.")
	if err != nil || !ok {
		return err
	}
	if err := localCall(c, "shutdown", nil); err != nil {
		return err
	}
	fmt.Fprintln(stdout(c), "Shutdown started.")
	return nil
}

func localSimple(cmd, done string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if err := localCall(c, cmd, nil); err != nil {
			return err
		}
		fmt.Fprintln(stdout(c), done)
		return nil
	}
}
