package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kernelgate/internal/cli/output"
	"github.com/yndnr/kernelgate/pkg/token"
)

// TokenCommand returns the offline token commands. They need the server's
// secret and never contact the server.
func TokenCommand() *cli.Command {
	codecFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "secret",
			Usage:    "Secret key the server signs tokens with",
			EnvVars:  []string{"KERNELGATE_SECURITY_SECRET_KEY", "ANIMALID_SECRET_KEY"},
			Required: true,
		},
		&cli.IntFlag{
			Name:  "words",
			Usage: "Words per token, checksum included",
			Value: token.DefaultWords,
		},
		&cli.StringFlag{
			Name:  "delimiter",
			Usage: "Word delimiter",
			Value: token.DefaultDelimiter,
		},
		&cli.StringFlag{
			Name:  "hash",
			Usage: "Checksum hash: hmac-sha256 or blake3",
			Value: string(token.HashHMACSHA256),
		},
	}

	return &cli.Command{
		Name:  "token",
		Usage: "Generate or verify session tokens offline",
		Subcommands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Generate tokens",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:    "count",
						Aliases: []string{"n"},
						Usage:   "Number of tokens",
						Value:   1,
					},
				}, codecFlags...),
				Action: tokenGenerate,
			},
			{
				Name:      "verify",
				Usage:     "Check that tokens carry a valid checksum for the secret",
				ArgsUsage: "TOKEN...",
				Flags:     codecFlags,
				Action:    tokenVerify,
			},
		},
	}
}

func newCodec(c *cli.Context) (*token.Codec, error) {
	return token.NewCodec([]byte(c.String("secret")),
		token.WithWords(c.Int("words")),
		token.WithDelimiter(c.String("delimiter")),
		token.WithHash(token.Hash(c.String("hash"))),
	)
}

func tokenGenerate(c *cli.Context) error {
	codec, err := newCodec(c)
	if err != nil {
		return err
	}
	n := c.Int("count")
	if n < 1 {
		return fmt.Errorf("count must be at least 1")
	}

	tokens := make([]string, 0, n)
	for i := 0; i < n; i++ {
		tok, err := codec.Generate()
		if err != nil {
			return err
		}
		tokens = append(tokens, tok)
	}

	if ParseGlobalFlags(c).Output != output.FormatTable {
		return render(c, tokens)
	}
	for _, tok := range tokens {
		fmt.Fprintln(stdout(c), tok)
	}
	return nil
}

type verifyResult struct {
	Token string `json:"token" yaml:"token"`
	Valid bool   `json:"valid" yaml:"valid"`
}

func tokenVerify(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one token required")
	}
	codec, err := newCodec(c)
	if err != nil {
		return err
	}

	results := make([]verifyResult, 0, c.NArg())
	invalid := 0
	for _, tok := range c.Args().Slice() {
		ok := codec.Verify(tok)
		if !ok {
			invalid++
		}
		results = append(results, verifyResult{Token: tok, Valid: ok})
	}

	if err := render(c, results); err != nil {
		return err
	}
	if invalid > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d tokens invalid", invalid, len(results)), 1)
	}
	return nil
}
