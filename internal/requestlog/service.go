package requestlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prasenjit/go-mockserver/internal/logging"
	"github.com/prasenjit/go-mockserver/internal/models"
)

// Appender is the persistence collaborator for captured requests
type Appender interface {
	AppendRequest(ctx context.Context, rec *models.RequestRecord) error
}

// Options configures a Service
type Options struct {
	MaxRecords int
	// Persist, when set, receives every record from a background worker.
	Persist Appender
	Logger  *slog.Logger
}

// Service keeps recent request records and streams new ones to subscribers
type Service struct {
	mu          sync.RWMutex
	records     []*models.RequestRecord
	maxRecords  int
	subscribers map[string]chan *models.RequestRecord

	persist Appender
	queue   chan *models.RequestRecord
	done    chan struct{}
	closed  bool
	dropped int64
	logger  *slog.Logger
}

// NewService creates a new request log
func NewService(opts Options) *Service {
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = 1000
	}

	s := &Service{
		records:     make([]*models.RequestRecord, 0),
		maxRecords:  opts.MaxRecords,
		subscribers: make(map[string]chan *models.RequestRecord),
		persist:     opts.Persist,
		logger:      logging.OrNop(opts.Logger),
	}

	if s.persist != nil {
		s.queue = make(chan *models.RequestRecord, 256)
		s.done = make(chan struct{})
		go s.persistLoop()
	}

	return s
}

// Record stores rec, assigning an ID and timestamp when unset
func (s *Service) Record(rec *models.RequestRecord) {
	s.mu.Lock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	s.records = append(s.records, rec)
	if len(s.records) > s.maxRecords {
		s.records = s.records[len(s.records)-s.maxRecords:]
	}

	subscribers := make([]chan *models.RequestRecord, 0, len(s.subscribers))
	for _, ch := range s.subscribers {
		subscribers = append(subscribers, ch)
	}

	if s.queue != nil && !s.closed {
		select {
		case s.queue <- rec:
		default:
			s.dropped++
		}
	}

	s.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- rec:
		default:
			// slow subscriber
		}
	}
}

func (s *Service) persistLoop() {
	defer close(s.done)
	for rec := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.persist.AppendRequest(ctx, rec); err != nil {
			s.logger.Error("failed to persist request record", "id", rec.ID, "error", err)
		}
		cancel()
	}
}

// Requests returns records matching the filter, newest first
func (s *Service) Requests(filter *models.RequestFilter) []*models.RequestRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.RequestRecord, 0)
	skipped := 0

	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]

		if !filter.Matches(rec) {
			continue
		}
		if filter != nil && skipped < filter.Offset {
			skipped++
			continue
		}

		result = append(result, rec)

		if filter != nil && filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}

	return result
}

// Request returns a single record by ID
func (s *Service) Request(id string) *models.RequestRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.ID == id {
			return rec
		}
	}

	return nil
}

// Clear removes all in-memory records
func (s *Service) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make([]*models.RequestRecord, 0)
}

// Subscribe creates a subscription for live records
func (s *Service) Subscribe() (string, chan *models.RequestRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan *models.RequestRecord, 100)
	s.subscribers[id] = ch

	return id, ch
}

// Unsubscribe removes a subscription
func (s *Service) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Stats returns request log statistics
func (s *Service) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]any{
		"totalRecords":      len(s.records),
		"maxRecords":        s.maxRecords,
		"activeSubscribers": len(s.subscribers),
		"persistent":        s.persist != nil,
		"droppedPersists":   s.dropped,
	}
}

// Close stops the persistence worker after it drains queued records and
// closes all subscriber channels.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.queue != nil {
		close(s.queue)
	}
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.mu.Unlock()

	if s.done != nil {
		<-s.done
	}
}
