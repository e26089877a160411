package handler

import (
	"time"

	"github.com/yndnr/kernelgate/internal/core/domain"
)

// Response is the standard API response envelope used by every JSON
// endpoint except /mcp and /metrics.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// HealthStatus is the body of /health and /ready.
type HealthStatus struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// StatusSummary is the body of GET /admin/v1/status/summary.
type StatusSummary struct {
	Status              string `json:"status" yaml:"status"`
	Version             string `json:"version" yaml:"version"`
	Commit              string `json:"commit" yaml:"commit"`
	UptimeSeconds       int64  `json:"uptime_seconds" yaml:"uptime_seconds"`
	Backend             string `json:"backend" yaml:"backend"`
	ActiveSessions      int    `json:"active_sessions" yaml:"active_sessions"`
	InFlightEvaluations int64  `json:"in_flight_evaluations" yaml:"in_flight_evaluations"`
	SessionsCreated     uint64 `json:"sessions_created" yaml:"sessions_created"`
	SessionsClosed      uint64 `json:"sessions_closed" yaml:"sessions_closed"`
}

// SessionList is the body of GET /admin/v1/sessions.
type SessionList struct {
	Sessions []domain.Session `json:"sessions"`
	Total    int              `json:"total"`
}
