package command

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kernelgate/internal/cli/connection"
	"github.com/yndnr/kernelgate/internal/cli/output"
	"github.com/yndnr/kernelgate/internal/server/httpserver/handler"
)

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "Server status over the HTTP API",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show server status summary",
				Action: systemStatus,
			},
			{
				Name:   "health",
				Usage:  "Check server liveness and readiness",
				Action: systemHealth,
			},
		},
	}
}

func systemStatus(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	var status handler.StatusSummary
	if err := manager(c).HTTP().GetJSON(ctx, "/admin/v1/status/summary", &status); err != nil {
		return err
	}

	if g := ParseGlobalFlags(c); g.Output != output.FormatTable {
		return render(c, status)
	}

	w := stdout(c)
	fmt.Fprintf(w, "System Status\n")
	fmt.Fprintf(w, "=============\n\n")
	fmt.Fprintf(w, "Status:            %s\n", status.Status)
	fmt.Fprintf(w, "Version:           %s (%s)\n", status.Version, status.Commit)
	fmt.Fprintf(w, "Uptime:            %s\n", time.Duration(status.UptimeSeconds)*time.Second)
	fmt.Fprintf(w, "Backend:           %s\n", status.Backend)
	fmt.Fprintf(w, "Active Sessions:   %d\n", status.ActiveSessions)
	fmt.Fprintf(w, "Running Evals:     %d\n", status.InFlightEvaluations)
	fmt.Fprintf(w, "Sessions Created:  %d\n", status.SessionsCreated)
	fmt.Fprintf(w, "Sessions Closed:   %d\n", status.SessionsClosed)
	return nil
}

// healthReport is the output of system health.
type healthReport struct {
	Server string `json:"server" yaml:"server"`
	Live   bool   `json:"live" yaml:"live"`
	Ready  bool   `json:"ready" yaml:"ready"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

func systemHealth(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	client := manager(c).HTTP()
	report := healthReport{Server: client.BaseURL()}

	var health handler.HealthStatus
	if err := client.GetJSON(ctx, "/health", &health); err != nil {
		report.Reason = err.Error()
	} else {
		report.Live = true
		var apiErr *connection.APIError
		err := client.GetJSON(ctx, "/ready", &health)
		switch {
		case err == nil:
			report.Ready = true
		case errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable:
			report.Reason = "draining"
		default:
			report.Reason = err.Error()
		}
	}

	if err := render(c, report); err != nil {
		return err
	}
	if !report.Ready {
		return cli.Exit("", 1)
	}
	return nil
}
