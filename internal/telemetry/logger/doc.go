// Package logger provides structured logging for KernelGate.
//
// It wraps the standard library log/slog:
//
//   - logger.go: logger construction and the dynamic global level
//   - context.go: context-aware logging with request and session IDs
//   - redact.go: sensitive data redaction
//
// Session tokens are masked to their first word wherever they appear as an
// attribute value, and attributes whose key names a secret are replaced
// outright. Logs go to stderr by default so the stdio transport can own
// stdout.
package logger
