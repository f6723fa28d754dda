package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/prasenjit/go-mockserver/internal/models"
)

// Collector collects and aggregates request analytics
type Collector struct {
	mu             sync.RWMutex
	startTime      time.Time
	mocks          map[string]*models.AtomicMockStat // mockID -> stats
	unmatched      map[string]*models.UnmatchedStat  // "METHOD path" -> stats
	recentErrors   []models.ErrorStat
	hourlyStats    map[string]*hourlyCounter // "YYYY-MM-DD-HH" -> counter
	totalRequests  int64
	totalUnmatched int64
	totalErrors    int64
	totalTimeNs    int64
	maxErrors      int
	maxHourlySlots int
	maxUnmatched   int
	now            func() time.Time
}

type hourlyCounter struct {
	Hour      string
	Requests  int64
	Unmatched int64
	Errors    int64
}

// NewCollector creates a new statistics collector
func NewCollector() *Collector {
	c := &Collector{
		maxErrors:      100,
		maxHourlySlots: 168, // 7 days
		maxUnmatched:   500,
		now:            time.Now,
	}
	c.reset()
	return c
}

// RecordRequest folds one served request into the aggregates
func (c *Collector) RecordRequest(rec *models.RequestRecord) {
	if rec == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = now
	}
	durationNs := int64(rec.DurationMs * 1e6)
	isError := rec.StatusCode >= 500 || rec.Error != ""

	c.totalRequests++
	c.totalTimeNs += durationNs
	if isError {
		c.totalErrors++
		c.recordErrorLocked(rec, ts)
	}

	if rec.Matched {
		c.recordMockLocked(rec, durationNs, isError, ts)
	} else {
		c.totalUnmatched++
		c.recordUnmatchedLocked(rec, ts)
	}

	hourKey := ts.Format("2006-01-02-15")
	hourly, ok := c.hourlyStats[hourKey]
	if !ok {
		hourly = &hourlyCounter{Hour: hourKey}
		c.hourlyStats[hourKey] = hourly
		c.cleanupOldHourlyStats()
	}
	hourly.Requests++
	if !rec.Matched {
		hourly.Unmatched++
	}
	if isError {
		hourly.Errors++
	}
}

func (c *Collector) recordMockLocked(rec *models.RequestRecord, durationNs int64, isError bool, ts time.Time) {
	stat, ok := c.mocks[rec.MockID]
	if !ok {
		stat = &models.AtomicMockStat{
			MockID:   rec.MockID,
			MockName: rec.MockName,
			Method:   rec.Method,
			Path:     rec.Path,
		}
		stat.MinTimeNs.Store(durationNs)
		c.mocks[rec.MockID] = stat
	}

	stat.TotalRequests.Add(1)
	stat.TotalTimeNs.Add(durationNs)
	stat.LastRequestTime.Store(ts)

	for {
		currentMin := stat.MinTimeNs.Load()
		if durationNs >= currentMin || stat.MinTimeNs.CompareAndSwap(currentMin, durationNs) {
			break
		}
	}
	for {
		currentMax := stat.MaxTimeNs.Load()
		if durationNs <= currentMax || stat.MaxTimeNs.CompareAndSwap(currentMax, durationNs) {
			break
		}
	}

	if isError {
		stat.TotalErrors.Add(1)
	}
}

func (c *Collector) recordUnmatchedLocked(rec *models.RequestRecord, ts time.Time) {
	key := rec.Method + " " + rec.Path
	stat, ok := c.unmatched[key]
	if !ok {
		if len(c.unmatched) >= c.maxUnmatched {
			return
		}
		stat = &models.UnmatchedStat{Method: rec.Method, Path: rec.Path}
		c.unmatched[key] = stat
	}
	stat.Requests++
	stat.LastSeen = ts.Format(time.RFC3339)
}

func (c *Collector) recordErrorLocked(rec *models.RequestRecord, ts time.Time) {
	msg := rec.Error
	if msg == "" {
		msg = "mock responded with server error status"
	}
	c.recentErrors = append(c.recentErrors, models.ErrorStat{
		Timestamp:  ts,
		MockID:     rec.MockID,
		Path:       rec.Path,
		Method:     rec.Method,
		StatusCode: rec.StatusCode,
		Error:      msg,
	})
	if len(c.recentErrors) > c.maxErrors {
		c.recentErrors = c.recentErrors[1:]
	}
}

// cleanupOldHourlyStats removes hourly stats older than maxHourlySlots
func (c *Collector) cleanupOldHourlyStats() {
	if len(c.hourlyStats) <= c.maxHourlySlots {
		return
	}

	keys := make([]string, 0, len(c.hourlyStats))
	for k := range c.hourlyStats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	toRemove := len(keys) - c.maxHourlySlots
	for i := 0; i < toRemove; i++ {
		delete(c.hourlyStats, keys[i])
	}
}

// Summary returns the global analytics view
func (c *Collector) Summary(activeMocks int) *models.AnalyticsSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	mockStats := make([]models.MockStat, 0, len(c.mocks))
	for _, m := range c.mocks {
		mockStats = append(mockStats, m.ToMockStat())
	}
	sort.Slice(mockStats, func(i, j int) bool {
		if mockStats[i].TotalRequests != mockStats[j].TotalRequests {
			return mockStats[i].TotalRequests > mockStats[j].TotalRequests
		}
		return mockStats[i].MockID < mockStats[j].MockID
	})
	if len(mockStats) > 10 {
		mockStats = mockStats[:10]
	}

	unmatched := make([]models.UnmatchedStat, 0, len(c.unmatched))
	for _, u := range c.unmatched {
		unmatched = append(unmatched, *u)
	}
	sort.Slice(unmatched, func(i, j int) bool {
		if unmatched[i].Requests != unmatched[j].Requests {
			return unmatched[i].Requests > unmatched[j].Requests
		}
		return unmatched[i].Method+unmatched[i].Path < unmatched[j].Method+unmatched[j].Path
	})
	if len(unmatched) > 10 {
		unmatched = unmatched[:10]
	}

	var avgResponseTimeMs, matchRate float64
	if c.totalRequests > 0 {
		avgResponseTimeMs = float64(c.totalTimeNs) / float64(c.totalRequests) / 1e6
		matchRate = float64(c.totalRequests-c.totalUnmatched) / float64(c.totalRequests)
	}

	uptime := c.now().Sub(c.startTime)
	var requestsPerSecond float64
	if uptime.Seconds() > 0 {
		requestsPerSecond = float64(c.totalRequests) / uptime.Seconds()
	}

	recentErrors := make([]models.ErrorStat, len(c.recentErrors))
	copy(recentErrors, c.recentErrors)

	return &models.AnalyticsSummary{
		TotalRequests:     c.totalRequests,
		MatchedRequests:   c.totalRequests - c.totalUnmatched,
		UnmatchedRequests: c.totalUnmatched,
		TotalErrors:       c.totalErrors,
		MatchRate:         matchRate,
		ActiveMocks:       activeMocks,
		AvgResponseTimeMs: avgResponseTimeMs,
		RequestsPerSecond: requestsPerSecond,
		StartTime:         c.startTime,
		Uptime:            formatDuration(uptime),
		TopMocks:          mockStats,
		TopUnmatched:      unmatched,
		RecentErrors:      recentErrors,
		RequestsByHour:    c.buildHourlyStats(),
	}
}

// MockStats returns statistics for a specific mock
func (c *Collector) MockStats(mockID string) *models.MockStat {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if m, ok := c.mocks[mockID]; ok {
		stat := m.ToMockStat()
		return &stat
	}

	return nil
}

// buildHourlyStats builds the last 24 hours, oldest first
func (c *Collector) buildHourlyStats() []models.HourlyStat {
	now := c.now()
	stats := make([]models.HourlyStat, 0, 24)

	for i := 23; i >= 0; i-- {
		hour := now.Add(-time.Duration(i) * time.Hour)
		hourKey := hour.Format("2006-01-02-15")

		stat := models.HourlyStat{
			Hour: hour.Format("15:00"),
		}

		if hourly, ok := c.hourlyStats[hourKey]; ok {
			stat.Requests = hourly.Requests
			stat.Unmatched = hourly.Unmatched
			stat.Errors = hourly.Errors
		}

		stats = append(stats, stat)
	}

	return stats
}

// Reset resets all statistics
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *Collector) reset() {
	c.startTime = c.now()
	c.mocks = make(map[string]*models.AtomicMockStat)
	c.unmatched = make(map[string]*models.UnmatchedStat)
	c.recentErrors = make([]models.ErrorStat, 0)
	c.hourlyStats = make(map[string]*hourlyCounter)
	c.totalRequests = 0
	c.totalUnmatched = 0
	c.totalErrors = 0
	c.totalTimeNs = 0
}

// formatDuration formats a duration in a human-readable format
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return d.Round(time.Minute).String()
	case d >= time.Minute:
		return d.Round(time.Second).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}
