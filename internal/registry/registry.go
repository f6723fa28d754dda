package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prasenjit/go-mockserver/internal/logging"
	"github.com/prasenjit/go-mockserver/internal/matcher"
	"github.com/prasenjit/go-mockserver/internal/models"
	"github.com/prasenjit/go-mockserver/internal/storage"
)

var (
	ErrNotFound    = errors.New("mock not found")
	ErrDuplicate   = errors.New("mock conflicts with an existing mock")
	ErrInvalidMock = errors.New("invalid mock")
)

// ConflictError reports the mock a rejected registration collides with
type ConflictError struct {
	Existing models.MockSummary
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("a mock with the same method, path, headers and query parameters already exists: %s %s (%s)",
		e.Existing.Method, e.Existing.Path, e.Existing.ID)
}

func (e *ConflictError) Unwrap() error {
	return ErrDuplicate
}

// Registry owns the mock collection.
//
// Readers get an immutable snapshot; every write swaps in a new slice while
// holding the write lock, so the uniqueness check and the insert are atomic
// with respect to other writers.
type Registry struct {
	mu       sync.RWMutex
	mocks    []models.Mock
	store    storage.Storage
	logger   *slog.Logger
	onChange func(count int)
	now      func() time.Time
}

// New creates an empty registry persisting to store
func New(store storage.Storage, logger *slog.Logger) *Registry {
	if store == nil {
		store = storage.NewMemoryStorage()
	}
	return &Registry{
		store:  store,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
}

// OnChange registers a callback invoked with the mock count after each mutation
func (r *Registry) OnChange(fn func(count int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Load replaces the collection with the persisted mocks
func (r *Registry) Load(ctx context.Context) error {
	mocks, err := r.store.LoadMocks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load mocks: %w", err)
	}

	valid := make([]models.Mock, 0, len(mocks))
	for i := range mocks {
		m := mocks[i]
		if err := Normalize(&m); err != nil {
			r.logger.Warn("skipping invalid persisted mock", "id", m.ID, "error", err)
			continue
		}
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if conflict, ok := matcher.FindConflict(m, valid); ok {
			r.logger.Warn("persisted mock duplicates another mock",
				"id", m.ID, "conflictsWith", conflict.ID)
		}
		valid = append(valid, m)
	}

	r.mu.Lock()
	r.mocks = valid
	r.notifyLocked()
	r.mu.Unlock()

	r.logger.Info("loaded mocks", "count", len(valid), "storage", r.store.Info().Type)
	return nil
}

// List returns a snapshot of all mocks in registration order.
// The returned slice must not be modified.
func (r *Registry) List() []models.Mock {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mocks
}

// Count returns the number of registered mocks
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mocks)
}

// Get returns the mock with the given id
func (r *Registry) Get(id string) (models.Mock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.mocks {
		if m.ID == id {
			return m, nil
		}
	}
	return models.Mock{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Create validates m, checks it for ambiguity and registers it
func (r *Registry) Create(ctx context.Context, m models.Mock) (models.Mock, error) {
	if err := Normalize(&m); err != nil {
		return models.Mock{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m.ID = uuid.NewString()
	if conflict, ok := matcher.FindConflict(m, r.mocks); ok {
		return models.Mock{}, &ConflictError{Existing: conflict.Summary()}
	}

	now := r.now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	next := make([]models.Mock, len(r.mocks), len(r.mocks)+1)
	copy(next, r.mocks)
	r.commitLocked(ctx, append(next, m))

	r.logger.Info("mock registered", "id", m.ID, "name", m.Name, "method", m.Method, "path", m.Path)
	return m, nil
}

// Update fully replaces the mock with the given id
func (r *Registry) Update(ctx context.Context, id string, m models.Mock) (models.Mock, error) {
	if err := Normalize(&m); err != nil {
		return models.Mock{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return models.Mock{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	m.ID = id
	if conflict, ok := matcher.FindConflict(m, r.mocks); ok {
		return models.Mock{}, &ConflictError{Existing: conflict.Summary()}
	}

	m.CreatedAt = r.mocks[idx].CreatedAt
	m.UpdatedAt = r.now().UTC()

	next := make([]models.Mock, len(r.mocks))
	copy(next, r.mocks)
	next[idx] = m
	r.commitLocked(ctx, next)

	r.logger.Info("mock updated", "id", id, "name", m.Name)
	return m, nil
}

// Delete removes the mock with the given id
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := make([]models.Mock, 0, len(r.mocks)-1)
	next = append(next, r.mocks[:idx]...)
	next = append(next, r.mocks[idx+1:]...)
	r.commitLocked(ctx, next)

	r.logger.Info("mock deleted", "id", id)
	return nil
}

// StorageInfo describes the persistence backend
func (r *Registry) StorageInfo() storage.Info {
	return r.store.Info()
}

func (r *Registry) indexLocked(id string) int {
	for i := range r.mocks {
		if r.mocks[i].ID == id {
			return i
		}
	}
	return -1
}

// commitLocked swaps in next and persists it. A persistence failure is
// logged; the in-memory change stands. The save is detached from ctx's
// cancellation so a client that hangs up cannot leave memory and storage
// out of step.
func (r *Registry) commitLocked(ctx context.Context, next []models.Mock) {
	r.mocks = next
	if err := r.store.SaveMocks(context.WithoutCancel(ctx), next); err != nil {
		r.logger.Error("failed to persist mocks", "error", err, "storage", r.store.Info().Type)
	}
	r.notifyLocked()
}

func (r *Registry) notifyLocked() {
	if r.onChange != nil {
		r.onChange(len(r.mocks))
	}
}

// Normalize validates the required fields of m and fills defaults
func Normalize(m *models.Mock) error {
	var missing []string
	if strings.TrimSpace(m.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(m.Method) == "" {
		missing = append(missing, "method")
	}
	if strings.TrimSpace(m.Path) == "" {
		missing = append(missing, "path")
	}
	if isNullJSON(m.Response) {
		missing = append(missing, "response")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrInvalidMock, strings.Join(missing, ", "))
	}

	if !json.Valid(m.Response) {
		return fmt.Errorf("%w: response is not valid JSON", ErrInvalidMock)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, m.Response); err == nil {
		m.Response = compact.Bytes()
	}

	m.Method = strings.ToUpper(strings.TrimSpace(m.Method))
	m.Path = strings.TrimSpace(m.Path)
	if !strings.HasPrefix(m.Path, "/") {
		m.Path = "/" + m.Path
	}

	if m.StatusCode == 0 {
		m.StatusCode = http.StatusOK
	}
	if m.StatusCode < 100 || m.StatusCode > 599 {
		return fmt.Errorf("%w: invalid status code %d", ErrInvalidMock, m.StatusCode)
	}

	for i, rule := range m.QueryParams {
		if strings.TrimSpace(rule.Key) == "" {
			return fmt.Errorf("%w: query rule %d has no key", ErrInvalidMock, i)
		}
	}

	return nil
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
