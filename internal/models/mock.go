package models

import (
	"encoding/json"
	"time"
)

// Mock is a registered endpoint definition
type Mock struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Method          string            `json:"method"`
	Path            string            `json:"path"`
	Headers         map[string]string `json:"headers,omitempty"`
	QueryParams     QueryRules        `json:"queryParams,omitempty"`
	Response        json.RawMessage   `json:"response"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
	StatusCode      int               `json:"statusCode"`
	Delay           *Delay            `json:"delay,omitempty"`
	Dynamic         *bool             `json:"dynamic,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// TemplatingEnabled reports whether placeholders in the response are expanded.
// Mocks without an explicit dynamic flag are expanded.
func (m *Mock) TemplatingEnabled() bool {
	return m.Dynamic == nil || *m.Dynamic
}

// EffectiveStatusCode returns the configured status or 200.
func (m *Mock) EffectiveStatusCode() int {
	if m.StatusCode == 0 {
		return 200
	}
	return m.StatusCode
}

// MockSummary is the short form used in diagnostics and conflict reports
type MockSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

// Summary returns the short form of the mock
func (m *Mock) Summary() MockSummary {
	return MockSummary{ID: m.ID, Name: m.Name, Method: m.Method, Path: m.Path}
}
