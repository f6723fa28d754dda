package models

import (
	"testing"
	"time"
)

func TestAtomicMockStat_ToMockStat(t *testing.T) {
	ams := &AtomicMockStat{
		MockID:   "mock-1",
		MockName: "List users",
		Method:   "GET",
		Path:     "/users",
	}

	ams.TotalRequests.Store(100)
	ams.TotalErrors.Store(5)
	ams.TotalTimeNs.Store(1000000000) // 1 second = 1000ms
	ams.MinTimeNs.Store(5000000)      // 5ms
	ams.MaxTimeNs.Store(50000000)     // 50ms
	ams.LastRequestTime.Store(time.Now())

	stat := ams.ToMockStat()

	if stat.MockID != "mock-1" {
		t.Errorf("Expected mock ID 'mock-1', got %q", stat.MockID)
	}
	if stat.MockName != "List users" {
		t.Errorf("Expected mock name 'List users', got %q", stat.MockName)
	}
	if stat.Method != "GET" {
		t.Errorf("Expected method 'GET', got %q", stat.Method)
	}
	if stat.TotalRequests != 100 {
		t.Errorf("Expected 100 requests, got %d", stat.TotalRequests)
	}
	if stat.TotalErrors != 5 {
		t.Errorf("Expected 5 errors, got %d", stat.TotalErrors)
	}
	// Avg should be 1000ms / 100 = 10ms
	if stat.AvgResponseTimeMs != 10.0 {
		t.Errorf("Expected avg 10ms, got %v", stat.AvgResponseTimeMs)
	}
	if stat.MinResponseTimeMs != 5.0 {
		t.Errorf("Expected min 5ms, got %v", stat.MinResponseTimeMs)
	}
	if stat.MaxResponseTimeMs != 50.0 {
		t.Errorf("Expected max 50ms, got %v", stat.MaxResponseTimeMs)
	}
	if stat.LastRequestTime == "" {
		t.Error("Expected non-empty last request time")
	}
}

func TestAtomicMockStat_ZeroRequests(t *testing.T) {
	ams := &AtomicMockStat{MockID: "mock-1", Method: "GET", Path: "/users"}

	stat := ams.ToMockStat()

	if stat.TotalRequests != 0 {
		t.Errorf("Expected 0 requests, got %d", stat.TotalRequests)
	}
	if stat.AvgResponseTimeMs != 0 {
		t.Errorf("Expected avg 0, got %v", stat.AvgResponseTimeMs)
	}
	if stat.LastRequestTime != "" {
		t.Errorf("Expected empty last request time, got %q", stat.LastRequestTime)
	}
}
