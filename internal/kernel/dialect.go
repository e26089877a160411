package kernel

import (
	"fmt"
	"strings"
)

// Dialect describes how to drive one kind of kernel over a pipe.
type Dialect struct {
	// Name is the configuration name of the dialect.
	Name string

	// Language is the human-readable language name shown to callers.
	Language string

	// Executables are looked up on PATH, in order, when no path is configured.
	Executables []string

	// Args are passed to the kernel before any configured extra arguments.
	Args []string

	// Probe is evaluated once after start to confirm the kernel responds.
	Probe string

	// Frame wraps code so the kernel prints its output followed by a line
	// "<sentinel> <status>". Status "0" means success.
	Frame func(code, sentinel string) string
}

var dialects = map[string]Dialect{
	"wolfram": {
		Name:        "wolfram",
		Language:    "Wolfram Language",
		Executables: []string{"WolframKernel", "wolfram", "math"},
		Args:        []string{"-noprompt"},
		Probe:       "Null",
		Frame:       frameWolfram,
	},
	"sh": {
		Name:        "sh",
		Language:    "POSIX shell",
		Executables: []string{"sh"},
		Probe:       ":",
		Frame:       frameShell,
	},
}

// LookupDialect returns the named dialect.
func LookupDialect(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return Dialect{}, fmt.Errorf("kernel: unknown dialect %q", name)
	}
	return d, nil
}

// DialectNames lists the supported dialects.
func DialectNames() []string {
	return []string{"wolfram", "sh"}
}

// frameWolfram parses code as a Wolfram Language string so multi-line input
// arrives as one expression, and prints the result in InputForm. Parse
// failures print $Failed and report status 1.
func frameWolfram(code, sentinel string) string {
	var b strings.Builder
	b.WriteString(`Module[{kgResult = Quiet[Check[ToExpression["`)
	b.WriteString(wolframQuote(code))
	b.WriteString(`", InputForm], $Failed]]}, `)
	b.WriteString(`If[kgResult =!= Null, Print[ToString[kgResult, InputForm]]]; `)
	b.WriteString(`Print["`)
	b.WriteString(sentinel)
	b.WriteString(` ", If[kgResult === $Failed, 1, 0]]]`)
	b.WriteByte('\n')
	return b.String()
}

// wolframQuote escapes s for use inside a Wolfram string literal.
func wolframQuote(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return r.Replace(s)
}

// frameShell evaluates code through "command eval" so syntax errors set a
// status instead of ending the shell. Stdin is detached so code cannot read
// later frames. The leading newline in the trailer keeps the sentinel on its
// own line when the output lacks a final newline.
func frameShell(code, sentinel string) string {
	quoted := "'" + strings.ReplaceAll(code, "'", `'\''`) + "'"
	return "command eval " + quoted + " 2>&1 </dev/null\nprintf '\\n%s %d\\n' '" + sentinel + "' \"$?\"\n"
}
