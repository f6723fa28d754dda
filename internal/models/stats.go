package models

import (
	"sync/atomic"
	"time"
)

// AnalyticsSummary represents global request analytics
type AnalyticsSummary struct {
	TotalRequests     int64           `json:"totalRequests"`
	MatchedRequests   int64           `json:"matchedRequests"`
	UnmatchedRequests int64           `json:"unmatchedRequests"`
	TotalErrors       int64           `json:"totalErrors"`
	MatchRate         float64         `json:"matchRate"`
	ActiveMocks       int             `json:"activeMocks"`
	AvgResponseTimeMs float64         `json:"avgResponseTimeMs"`
	RequestsPerSecond float64         `json:"requestsPerSecond"`
	StartTime         time.Time       `json:"startTime"`
	Uptime            string          `json:"uptime"`
	TopMocks          []MockStat      `json:"topMocks"`
	TopUnmatched      []UnmatchedStat `json:"topUnmatched"`
	RecentErrors      []ErrorStat     `json:"recentErrors"`
	RequestsByHour    []HourlyStat    `json:"requestsByHour"`
}

// MockStat represents statistics for a single mock
type MockStat struct {
	MockID            string  `json:"mockId"`
	MockName          string  `json:"mockName"`
	Method            string  `json:"method"`
	Path              string  `json:"path"`
	TotalRequests     int64   `json:"totalRequests"`
	TotalErrors       int64   `json:"totalErrors"`
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
	MinResponseTimeMs float64 `json:"minResponseTimeMs"`
	MaxResponseTimeMs float64 `json:"maxResponseTimeMs"`
	LastRequestTime   string  `json:"lastRequestTime,omitempty"`
}

// UnmatchedStat counts requests that no mock answered
type UnmatchedStat struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Requests int64  `json:"requests"`
	LastSeen string `json:"lastSeen"`
}

// ErrorStat represents an error occurrence
type ErrorStat struct {
	Timestamp  time.Time `json:"timestamp"`
	MockID     string    `json:"mockId,omitempty"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	StatusCode int       `json:"statusCode"`
	Error      string    `json:"error"`
}

// HourlyStat represents hourly request statistics
type HourlyStat struct {
	Hour      string `json:"hour"`
	Requests  int64  `json:"requests"`
	Unmatched int64  `json:"unmatched"`
	Errors    int64  `json:"errors"`
}

// AtomicMockStat is a thread-safe version of mock statistics
type AtomicMockStat struct {
	MockID          string
	MockName        string
	Method          string
	Path            string
	TotalRequests   atomic.Int64
	TotalErrors     atomic.Int64
	TotalTimeNs     atomic.Int64
	MinTimeNs       atomic.Int64
	MaxTimeNs       atomic.Int64
	LastRequestTime atomic.Value // stores time.Time
}

// ToMockStat converts to a regular MockStat
func (a *AtomicMockStat) ToMockStat() MockStat {
	totalReqs := a.TotalRequests.Load()
	totalTimeNs := a.TotalTimeNs.Load()
	var avgMs float64
	if totalReqs > 0 {
		avgMs = float64(totalTimeNs) / float64(totalReqs) / 1e6
	}

	var lastReqTime string
	if t, ok := a.LastRequestTime.Load().(time.Time); ok && !t.IsZero() {
		lastReqTime = t.Format(time.RFC3339)
	}

	return MockStat{
		MockID:            a.MockID,
		MockName:          a.MockName,
		Method:            a.Method,
		Path:              a.Path,
		TotalRequests:     totalReqs,
		TotalErrors:       a.TotalErrors.Load(),
		AvgResponseTimeMs: avgMs,
		MinResponseTimeMs: float64(a.MinTimeNs.Load()) / 1e6,
		MaxResponseTimeMs: float64(a.MaxTimeNs.Load()) / 1e6,
		LastRequestTime:   lastReqTime,
	}
}
