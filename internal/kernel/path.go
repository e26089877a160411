package kernel

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Path validation errors.
var (
	ErrPathNotExist      = errors.New("does not exist")
	ErrPathNotFile       = errors.New("is not a file")
	ErrPathNotExecutable = errors.New("is not executable")
)

// PathError describes a configured kernel path that cannot be used.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("kernel path was set but %s: '%s'", e.Err, e.Path)
}

func (e *PathError) Unwrap() error { return e.Err }

// ExpandPath expands a leading ~ and environment variables in p.
func ExpandPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return os.ExpandEnv(p)
}

// ResolvePath expands and validates a configured kernel path. An empty
// input returns "" and no error, leaving discovery to the dialect.
func ResolvePath(raw string) (string, error) {
	p := ExpandPath(raw)
	if p == "" {
		return "", nil
	}

	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &PathError{Path: p, Err: ErrPathNotExist}
		}
		return "", &PathError{Path: p, Err: err}
	}
	if !info.Mode().IsRegular() {
		return "", &PathError{Path: p, Err: ErrPathNotFile}
	}
	if info.Mode().Perm()&0o111 == 0 {
		return "", &PathError{Path: p, Err: ErrPathNotExecutable}
	}
	return p, nil
}

// Discover locates the dialect's kernel on PATH.
func Discover(d Dialect) (string, error) {
	for _, name := range d.Executables {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s on PATH", ErrNotFound, strings.Join(d.Executables, ", "))
}
