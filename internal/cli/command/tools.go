package command

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kernelgate/internal/cli/output"
)

// ToolsCommand lists the MCP tools the server advertises.
func ToolsCommand() *cli.Command {
	return &cli.Command{
		Name:   "tools",
		Usage:  "List the MCP tools offered by the server",
		Action: toolsList,
	}
}

type toolInfo struct {
	Name        string `json:"name" yaml:"name"`
	Summary     string `json:"summary" yaml:"summary"`
	Description string `json:"description" yaml:"description" table:"wide"`
}

func toolsList(c *cli.Context) error {
	ctx, cancel := commandContext(c)
	defer cancel()

	client, err := manager(c).MCP(ctx)
	if err != nil {
		return err
	}
	tools, err := client.ListTools(ctx)
	if err != nil {
		return err
	}
	verbosef(c, "%d tools from %s (%s)", len(tools), client.Endpoint(), client.ServerName())

	infos := make([]toolInfo, 0, len(tools))
	for _, t := range tools {
		summary, _, _ := strings.Cut(t.Description, "\n")
		infos = append(infos, toolInfo{Name: t.Name, Summary: summary, Description: t.Description})
	}

	g := ParseGlobalFlags(c)
	if g.Output == output.FormatTable && !g.Wide {
		table := &output.Table{Headers: []string{"NAME", "SUMMARY"}}
		for _, t := range infos {
			table.AddRow(t.Name, t.Summary)
		}
		return table.Render(stdout(c))
	}
	return render(c, infos)
}
