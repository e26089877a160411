// Package buildinfo exposes the version of the running kernelgate binary.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/kernelgate/internal/infra/buildinfo.Version=v1.0.0"
//
// When a value is not injected, Get falls back to the module and VCS
// metadata embedded by the Go toolchain.
package buildinfo
