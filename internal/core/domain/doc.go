// Package domain defines the core domain models for KernelGate.
//
// Domain models are plain values without IO dependencies. This package
// contains:
//
//   - Session: metadata snapshot of one live kernel session
//   - Token helpers: masking session tokens for logs and listings
//   - Errors: structured errors carrying a closed ErrorKind
package domain
