package command

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kernelgate/internal/cli/connection"
	"github.com/yndnr/kernelgate/internal/cli/repl"
)

// ReplCommand returns the interactive mode command.
func ReplCommand() *cli.Command {
	return &cli.Command{
		Name:  "repl",
		Usage: "Evaluate code interactively in one session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "session",
				Usage: "Attach to an existing session `ID` instead of creating one",
			},
			&cli.BoolFlag{
				Name:  "keep",
				Usage: "Leave the session open on exit",
			},
			&cli.StringFlag{
				Name:  "history-file",
				Usage: "History file (empty disables history)",
				Value: repl.DefaultHistoryFile(),
			},
		},
		Action: replAction,
	}
}

// sessionEvaluator evaluates REPL input in one kernel session.
type sessionEvaluator struct {
	client *connection.MCPClient
	id     string
}

func (e *sessionEvaluator) Evaluate(ctx context.Context, code string) (string, error) {
	return e.client.Execute(ctx, e.id, code)
}

func replAction(c *cli.Context) error {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := manager(c).MCP(ctx)
	if err != nil {
		return err
	}

	id := c.String("session")
	created := false
	if id == "" {
		if id, err = client.CreateSession(ctx); err != nil {
			return err
		}
		created = true
	}
	if created && !c.Bool("keep") {
		defer func() {
			if _, err := client.CloseSession(context.WithoutCancel(ctx), id); err != nil {
				fmt.Fprintf(stderr(c), "warning: close session %s: %v\n", id, err)
			}
		}()
	}

	history := repl.NewHistory(c.String("history-file"))
	if err := history.Load(); err != nil {
		verbosef(c, "history not loaded: %v", err)
	}
	defer func() {
		if err := history.Save(); err != nil {
			verbosef(c, "history not saved: %v", err)
		}
	}()
	completer := repl.NewCompleter()

	lines, out := repl.NewLineReader(stdin(c), stdout(c)), stdout(c)
	if in, ok := stdin(c).(*os.File); ok && stdout(c) == os.Stdout {
		var restore func()
		lines, out, restore, err = repl.Console(in, os.Stdout, completer)
		if err != nil {
			return err
		}
		defer restore()
	}

	r := repl.New(repl.Config{
		Evaluator: &sessionEvaluator{client: client, id: id},
		SessionID: id,
		History:   history,
		Completer: completer,
	}, lines, out)
	return r.Run(ctx)
}
