package api

import "github.com/vitalops/vitalops/server/internal/vitals"

// PingResponse is the payload for GET /api/ping.
type PingResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the payload for GET /api/health.
type HealthResponse struct {
	Status       string `json:"status"`
	ReadingCount int    `json:"reading_count"`
	LatestAt     string `json:"latest_at,omitempty"` // RFC3339
	AlertCount   int    `json:"alert_count"`
}

// ValidationResponse is the 422 body for readings or parameters that fail
// validation. It holds one entry per offending field.
type ValidationResponse struct {
	Detail []vitals.FieldError `json:"detail"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
