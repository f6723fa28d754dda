package models

import (
	"strings"
	"time"
)

// RequestRecord is a captured request against the mock surface
type RequestRecord struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Query      map[string]string `json:"query,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	StatusCode int               `json:"statusCode"`
	Matched    bool              `json:"matched"`
	MockID     string            `json:"mockId,omitempty"`
	MockName   string            `json:"mockName,omitempty"`
	Dynamic    bool              `json:"dynamic"`
	DurationMs float64           `json:"durationMs"`
	Error      string            `json:"error,omitempty"`
}

// RequestFilter represents filters for querying captured requests
type RequestFilter struct {
	Method  string    `json:"method,omitempty"`
	Path    string    `json:"path,omitempty"`
	MockID  string    `json:"mockId,omitempty"`
	Matched *bool     `json:"matched,omitempty"`
	Since   time.Time `json:"since,omitempty"`
	Limit   int       `json:"limit,omitempty"`
	Offset  int       `json:"offset,omitempty"`
}

// Matches reports whether rec passes every field filter. Offset and Limit
// are applied by the caller.
func (f *RequestFilter) Matches(rec *RequestRecord) bool {
	if f == nil {
		return true
	}
	if f.Method != "" && !strings.EqualFold(rec.Method, f.Method) {
		return false
	}
	if f.Path != "" && !strings.Contains(rec.Path, f.Path) {
		return false
	}
	if f.MockID != "" && rec.MockID != f.MockID {
		return false
	}
	if f.Matched != nil && rec.Matched != *f.Matched {
		return false
	}
	if !f.Since.IsZero() && rec.Timestamp.Before(f.Since) {
		return false
	}
	return true
}
