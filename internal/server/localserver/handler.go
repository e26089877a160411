package localserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yndnr/kernelgate/internal/core/domain"
	"github.com/yndnr/kernelgate/internal/core/service"
	"github.com/yndnr/kernelgate/internal/infra/buildinfo"
	"github.com/yndnr/kernelgate/internal/telemetry/logger"
)

// Registry is the view of the session registry the commands need.
type Registry interface {
	Stats() service.Stats
	List() []domain.Session
	CloseAll(ctx context.Context) int
}

// Reply is the JSON line written for every command.
type Reply struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Status is the data of the status command.
type Status struct {
	Version       string        `json:"version" yaml:"version"`
	Commit        string        `json:"commit" yaml:"commit"`
	UptimeSeconds int64         `json:"uptime_seconds" yaml:"uptime_seconds"`
	LogLevel      string        `json:"log_level" yaml:"log_level"`
	Registry      service.Stats `json:"registry" yaml:"registry"`
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Registry Registry // Required

	// Shutdown starts graceful shutdown. Nil disables the command.
	Shutdown func(reason string)

	// Reload re-reads configuration. Nil disables the command.
	Reload func() error

	StartedAt time.Time
}

// Handler handles local management commands.
type Handler struct {
	cfg HandlerConfig
}

// NewHandler creates a new Handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Registry == nil {
		return nil, errors.New("localserver: registry is required")
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}
	return &Handler{cfg: cfg}, nil
}

// Execute runs one command line and writes its reply line to w.
func (h *Handler) Execute(ctx context.Context, w io.Writer, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return writeReply(w, nil, errors.New("empty command"))
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var (
		data any
		err  error
	)
	switch cmd {
	case "ping":
		data = "pong"
	case "status":
		data = h.handleStatus()
	case "sessions":
		data = h.cfg.Registry.List()
	case "drain":
		data = map[string]int{"closed": h.cfg.Registry.CloseAll(ctx)}
	case "level":
		data, err = h.handleLevel(args)
	case "reload":
		err = h.handleReload()
	case "shutdown":
		err = h.handleShutdown()
	default:
		err = fmt.Errorf("unknown command: %s", cmd)
	}
	return writeReply(w, data, err)
}

func (h *Handler) handleStatus() Status {
	info := buildinfo.Get()
	return Status{
		Version:       info.Version,
		Commit:        info.Commit,
		UptimeSeconds: int64(time.Since(h.cfg.StartedAt).Seconds()),
		LogLevel:      logger.GetLevel(),
		Registry:      h.cfg.Registry.Stats(),
	}
}

func (h *Handler) handleLevel(args []string) (any, error) {
	switch len(args) {
	case 0:
	case 1:
		if err := logger.SetLevel(args[0]); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("usage: level [debug|info|warn|error]")
	}
	return map[string]string{"level": logger.GetLevel()}, nil
}

func (h *Handler) handleReload() error {
	if h.cfg.Reload == nil {
		return errors.New("reload is not available")
	}
	return h.cfg.Reload()
}

func (h *Handler) handleShutdown() error {
	if h.cfg.Shutdown == nil {
		return errors.New("shutdown is not available")
	}
	h.cfg.Shutdown("local socket request")
	return nil
}

func writeReply(w io.Writer, data any, cmdErr error) error {
	reply := Reply{OK: cmdErr == nil}
	if cmdErr != nil {
		reply.Error = cmdErr.Error()
	} else if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			reply = Reply{Error: "encode reply: " + err.Error()}
		} else {
			reply.Data = raw
		}
	}

	line, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	_, err = w.Write(append(line, '\n'))
	return err
}
