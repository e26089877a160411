// Package kernel defines the compute backend behind a session and provides
// a subprocess implementation.
//
// A Backend opens Handles. Each Handle is one live kernel: it evaluates code
// strings and is terminated exactly once by its owner. The process backend
// runs one long-lived kernel subprocess per handle and talks to it over
// stdin/stdout, marking the end of each evaluation with a random sentinel
// line.
//
// Supported dialects:
//
//   - wolfram: WolframKernel (or wolfram, math) started with -noprompt
//   - sh: /bin/sh, useful for development and tests
package kernel
