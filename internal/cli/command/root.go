package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/yndnr/kernelgate/internal/cli/config"
	"github.com/yndnr/kernelgate/internal/cli/connection"
	"github.com/yndnr/kernelgate/internal/cli/output"
	"github.com/yndnr/kernelgate/internal/infra/buildinfo"
	"github.com/yndnr/kernelgate/internal/infra/tlsroots"
)

// Metadata keys set by the Before hook.
const (
	metaConnMgr   = "connMgr"
	metaCLIConfig = "cliConfig"
	metaGlobals   = "globals"
)

// DefaultTimeout bounds a single command. Evaluations can run long, so
// it is generous.
const DefaultTimeout = 10 * time.Minute

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "kernelgate-cli",
		Usage:   "Drive kernelgate sessions and manage a kernelgate server",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SessionCommand(),
			ToolsCommand(),
			SystemCommand(),
			LocalCommand(),
			TokenCommand(),
			ConfigCommand(),
			ConnectCommand(),
			UseCommand(),
			ReplCommand(),
		},
		Before: before,
		After:  after,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "kernelgate server URL (default from the current profile, else " + config.DefaultServer + ")",
			EnvVars: []string{"KERNELGATE_SERVER"},
		},
		&cli.StringFlag{
			Name:    "socket",
			Usage:   "Local management socket path",
			EnvVars: []string{"KERNELGATE_SOCKET"},
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "PEM bundle of extra CAs to trust for https servers",
			EnvVars: []string{"KERNELGATE_CA_FILE"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose output",
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI config file",
			EnvVars: []string{"KERNELGATE_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
	}
}

// GlobalFlags are the resolved global settings.
type GlobalFlags struct {
	Server string
	Socket string
	CAFile string

	Output output.Format
	Wide   bool

	Verbose    bool
	ConfigPath string
}

// resolveGlobals applies flags over the current profile and defaults.
func resolveGlobals(c *cli.Context, cfg *config.CLIConfig) (*GlobalFlags, error) {
	profile := cfg.Active()
	g := &GlobalFlags{
		Server:     profile.Server,
		Socket:     profile.Socket,
		CAFile:     c.String("ca-file"),
		Wide:       c.Bool("wide"),
		Verbose:    c.Bool("verbose"),
		ConfigPath: c.String("config"),
	}
	if c.IsSet("server") {
		g.Server = c.String("server")
	}
	g.Server = config.NormalizeServer(g.Server)
	if c.IsSet("socket") {
		g.Socket = c.String("socket")
	}

	format := cfg.DefaultOutput
	if c.IsSet("output") {
		format = c.String("output")
	}
	f, err := output.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	g.Output = f
	return g, nil
}

func before(c *cli.Context) error {
	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	g, err := resolveGlobals(c, cfg)
	if err != nil {
		return err
	}

	c.App.Metadata[metaCLIConfig] = cfg
	c.App.Metadata[metaGlobals] = g
	mgr, err := newManager(g)
	if err != nil {
		return err
	}
	c.App.Metadata[metaConnMgr] = mgr
	return nil
}

func newManager(g *GlobalFlags) (*connection.Manager, error) {
	if g.CAFile == "" {
		return connection.NewManager(g.Server, g.Socket), nil
	}
	tlsConfig, err := tlsroots.ClientConfig(g.CAFile)
	if err != nil {
		return nil, err
	}
	return connection.NewManager(g.Server, g.Socket, connection.WithTLSConfig(tlsConfig)), nil
}

func after(c *cli.Context) error {
	if mgr := GetConnectionManager(c); mgr != nil {
		return mgr.Close()
	}
	return nil
}

// ParseGlobalFlags returns the settings resolved by the Before hook, or
// resolves them from flags alone when the hook has not run.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	if g, ok := c.App.Metadata[metaGlobals].(*GlobalFlags); ok {
		return g
	}
	g, err := resolveGlobals(c, config.Default())
	if err != nil {
		g = &GlobalFlags{Server: config.DefaultServer, Output: output.FormatTable}
	}
	return g
}

// GetConnectionManager retrieves the connection manager from context.
func GetConnectionManager(c *cli.Context) *connection.Manager {
	if mgr, ok := c.App.Metadata[metaConnMgr].(*connection.Manager); ok {
		return mgr
	}
	return nil
}

// manager returns the connection manager, creating one when the Before
// hook has not run.
func manager(c *cli.Context) *connection.Manager {
	if mgr := GetConnectionManager(c); mgr != nil {
		return mgr
	}
	g := ParseGlobalFlags(c)
	mgr := connection.NewManager(g.Server, g.Socket)
	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[metaConnMgr] = mgr
	return mgr
}

// cliConfig returns the loaded CLI config.
func cliConfig(c *cli.Context) (*config.CLIConfig, error) {
	if cfg, ok := c.App.Metadata[metaCLIConfig].(*config.CLIConfig); ok {
		return cfg, nil
	}
	return config.Load(c.String("config"))
}

// commandContext returns a context bounded by DefaultTimeout.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, DefaultTimeout)
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	g := ParseGlobalFlags(c)
	return output.NewFormatter(g.Output, g.Wide).Format(stdout(c), data)
}

func stdout(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func stderr(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

func stdin(c *cli.Context) io.Reader {
	if c.App.Reader != nil {
		return c.App.Reader
	}
	return os.Stdin
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// verbosef prints to stderr when --verbose is set.
func verbosef(c *cli.Context, format string, args ...any) {
	if ParseGlobalFlags(c).Verbose {
		fmt.Fprintf(stderr(c), format+"\n", args...)
	}
}

// confirm asks a yes/no question on stdin unless --force is set.
func confirm(c *cli.Context, question string) (bool, error) {
	if c.Bool("force") {
		return true, nil
	}
	fmt.Fprintf(stdout(c), "%s [y/N]: ", question)
	line, err := bufio.NewReader(stdin(c)).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	fmt.Fprintln(stdout(c), "Cancelled.")
	return false, nil
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

// argRequired returns the first argument or a usage error.
func argRequired(c *cli.Context, name string) (string, error) {
	v := c.Args().First()
	if v == "" {
		return "", fmt.Errorf("%s required", name)
	}
	return v, nil
}
