package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// Prompts.
const (
	DefaultPrompt      = "kg> "
	ContinuationPrompt = "... "
)

// Evaluator runs code in the bound session.
type Evaluator interface {
	Evaluate(ctx context.Context, code string) (string, error)
}

// LineReader reads one line of input. *term.Terminal satisfies it.
type LineReader interface {
	ReadLine() (string, error)
	SetPrompt(prompt string)
}

// Config configures a REPL.
type Config struct {
	Evaluator Evaluator // Required

	// SessionID is shown by :session and in the banner.
	SessionID string

	Prompt    string
	History   *History
	Completer *Completer
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	lines     LineReader
	output    io.Writer
	eval      Evaluator
	sessionID string
	prompt    string
	completer *Completer
	history   *History
}

// New creates a REPL reading from lines and writing to output.
func New(cfg Config, lines LineReader, output io.Writer) *REPL {
	r := &REPL{
		lines:     lines,
		output:    output,
		eval:      cfg.Evaluator,
		sessionID: cfg.SessionID,
		prompt:    cfg.Prompt,
		completer: cfg.Completer,
		history:   cfg.History,
	}
	if r.prompt == "" {
		r.prompt = DefaultPrompt
	}
	if r.completer == nil {
		r.completer = NewCompleter()
	}
	if r.history == nil {
		r.history = NewHistory("")
	}
	return r
}

// Run reads and evaluates input until EOF, :quit or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	if r.sessionID != "" {
		fmt.Fprintf(r.output, "Connected to session %s. Type :help for help.\n", r.sessionID)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		input, err := r.readInput()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		if trimmed == "exit" || trimmed == "quit" {
			return nil
		}
		if strings.HasPrefix(trimmed, ":") {
			if quit := r.meta(trimmed); quit {
				return nil
			}
			continue
		}

		r.history.Add(input)
		r.completer.Learn(input)
		r.evaluate(ctx, input)
	}
}

// readInput reads one logical input, joining backslash-continued lines.
func (r *REPL) readInput() (string, error) {
	var parts []string
	r.lines.SetPrompt(r.prompt)
	defer r.lines.SetPrompt(r.prompt)

	for {
		line, err := r.lines.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && len(parts) > 0 {
				return strings.Join(parts, "\n"), nil
			}
			return "", err
		}
		if cont, ok := strings.CutSuffix(line, `\`); ok {
			parts = append(parts, cont)
			r.lines.SetPrompt(ContinuationPrompt)
			continue
		}
		parts = append(parts, line)
		return strings.Join(parts, "\n"), nil
	}
}

func (r *REPL) evaluate(ctx context.Context, code string) {
	out, err := r.eval.Evaluate(ctx, code)
	if err != nil {
		fmt.Fprintf(r.output, "Error: %v\n", err)
		return
	}
	if out == "" {
		return
	}
	fmt.Fprint(r.output, out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(r.output)
	}
}

// meta runs a REPL command and reports whether the loop should end.
func (r *REPL) meta(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":q", ":quit", ":exit":
		return true
	case ":help", ":h":
		fmt.Fprint(r.output, helpText)
	case ":session":
		fmt.Fprintln(r.output, r.sessionID)
	case ":history":
		n := 20
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v <= 0 {
				fmt.Fprintln(r.output, "Error: usage: :history [N]")
				return false
			}
			n = v
		}
		entries := r.history.Entries()
		start := max(len(entries)-n, 0)
		for i := start; i < len(entries); i++ {
			fmt.Fprintf(r.output, "%4d  %s\n", i+1, strings.ReplaceAll(entries[i], "\n", "\n      "))
		}
	default:
		fmt.Fprintf(r.output, "Error: unknown command %s (try :help)\n", fields[0])
	}
	return false
}

const helpText = `Input is evaluated in the session; end a line with \ to continue it.

  :help          show this help
  :history [N]   show the last N inputs (default 20)
  :session       print the session ID
  :quit          leave (also exit, quit or Ctrl-D)
`

// scannerReader reads lines from a non-terminal input, writing the prompt
// itself.
type scannerReader struct {
	scanner *bufio.Scanner
	output  io.Writer
	prompt  string
}

// NewLineReader returns a LineReader over a plain stream.
func NewLineReader(input io.Reader, output io.Writer) LineReader {
	s := bufio.NewScanner(input)
	s.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &scannerReader{scanner: s, output: output}
}

func (s *scannerReader) ReadLine() (string, error) {
	fmt.Fprint(s.output, s.prompt)
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}

func (s *scannerReader) SetPrompt(prompt string) {
	s.prompt = prompt
}

// Console returns the line reader and writer for stdin and stdout. On a
// terminal it switches stdin to raw mode for line editing; the returned
// restore function undoes that and must be called.
func Console(stdin *os.File, stdout io.Writer, completer *Completer) (LineReader, io.Writer, func(), error) {
	fd := int(stdin.Fd())
	if !term.IsTerminal(fd) {
		return NewLineReader(stdin, stdout), stdout, func() {}, nil
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("set raw mode: %w", err)
	}
	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{stdin, stdout}, DefaultPrompt)
	if completer != nil {
		t.AutoCompleteCallback = completer.Callback
	}
	restore := func() { _ = term.Restore(fd, state) }
	return t, t, restore, nil
}
