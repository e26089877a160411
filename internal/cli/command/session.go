package command

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kernelgate/internal/cli/output"
	"github.com/yndnr/kernelgate/internal/server/httpserver/handler"
)

// SessionCommand returns the session subcommand group.
func SessionCommand() *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"sess"},
		Usage:   "Create, use and close kernel sessions",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a new kernel session and print its ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Print only the session ID",
					},
				},
				Action: sessionCreate,
			},
			{
				Name:      "exec",
				Aliases:   []string{"execute", "run"},
				Usage:     "Evaluate code in a session",
				ArgsUsage: "SESSION_ID [CODE...]",
				Description: "CODE is taken from the arguments, from --file, or from stdin when\n" +
					"neither is given or CODE is \"-\".",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read code from `FILE`",
					},
				},
				Action: sessionExec,
			},
			{
				Name:      "close",
				Aliases:   []string{"rm"},
				Usage:     "Close a session and terminate its kernel",
				ArgsUsage: "SESSION_ID",
				Action:    sessionClose,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List open sessions (tokens are masked)",
				Action:  sessionList,
			},
		},
	}
}

func sessionCreate(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	g := ParseGlobalFlags(c)
	client, err := manager(c).MCP(ctx)
	if err != nil {
		return err
	}

	var spinner *output.Spinner
	if !c.Bool("quiet") && g.Output == output.FormatTable && isTerminal(stderr(c)) {
		spinner = output.NewSpinner(stderr(c), "Starting kernel...")
		spinner.Start()
	}

	id, err := client.CreateSession(ctx)
	if spinner != nil {
		if err != nil {
			spinner.Fail("Kernel start failed")
		} else {
			spinner.Stop()
		}
	}
	if err != nil {
		return err
	}

	switch {
	case c.Bool("quiet"):
		fmt.Fprintln(stdout(c), id)
	case g.Output == output.FormatTable:
		fmt.Fprintf(stdout(c), "Session created: %s\n", id)
	default:
		return render(c, map[string]string{"session_id": id})
	}
	return nil
}

func sessionExec(c *cli.Context) error {
	id, err := argRequired(c, "session ID")
	if err != nil {
		return err
	}
	code, err := readCode(c, c.Args().Tail())
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	client, err := manager(c).MCP(ctx)
	if err != nil {
		return err
	}
	out, err := client.Execute(ctx, id, code)
	if err != nil {
		return err
	}

	if g := ParseGlobalFlags(c); g.Output != output.FormatTable {
		return render(c, map[string]string{"session_id": id, "output": out})
	}
	fmt.Fprint(stdout(c), out)
	if out != "" && !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(stdout(c))
	}
	return nil
}

// readCode resolves the code to evaluate from args, --file or stdin.
func readCode(c *cli.Context, args []string) (string, error) {
	if path := c.String("file"); path != "" {
		if len(args) > 0 {
			return "", fmt.Errorf("pass code either as arguments or with --file, not both")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read code: %w", err)
		}
		return string(data), nil
	}
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		data, err := io.ReadAll(stdin(c))
		if err != nil {
			return "", fmt.Errorf("read code from stdin: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}

func sessionClose(c *cli.Context) error {
	id, err := argRequired(c, "session ID")
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	client, err := manager(c).MCP(ctx)
	if err != nil {
		return err
	}
	msg, err := client.CloseSession(ctx, id)
	if err != nil {
		return err
	}

	if g := ParseGlobalFlags(c); g.Output != output.FormatTable {
		return render(c, map[string]any{"session_id": id, "closed": true})
	}
	fmt.Fprintln(stdout(c), msg)
	return nil
}

func sessionList(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	var list handler.SessionList
	if err := manager(c).HTTP().GetJSON(ctx, "/admin/v1/sessions", &list); err != nil {
		return err
	}

	g := ParseGlobalFlags(c)
	if g.Output != output.FormatTable {
		return render(c, list)
	}

	table := &output.Table{Headers: []string{"ID", "TOKEN", "CREATED", "LAST ACTIVE", "EVALS", "RUNNING"}}
	if g.Wide {
		table.Headers = append(table.Headers, "BACKEND")
	}
	for _, s := range list.Sessions {
		row := []string{
			s.ID,
			s.TokenMask,
			s.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			s.LastActive.Local().Format("2006-01-02 15:04:05"),
			strconv.FormatUint(s.Evaluations, 10),
			strconv.FormatInt(s.InFlight, 10),
		}
		if g.Wide {
			row = append(row, s.Backend)
		}
		table.AddRow(row...)
	}
	if err := table.Render(stdout(c)); err != nil {
		return err
	}
	fmt.Fprintf(stdout(c), "\nTotal: %d sessions\n", list.Total)
	return nil
}
