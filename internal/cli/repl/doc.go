// Package repl implements the interactive code loop of kernelgate-cli.
//
// A REPL is bound to one kernel session: every input is evaluated there,
// so definitions persist between inputs. A line ending in a backslash
// continues on the next line. Lines starting with ':' are REPL commands
// (:help lists them). On a terminal, input is edited with
// golang.org/x/term and Tab completes commands and previously used names.
package repl
