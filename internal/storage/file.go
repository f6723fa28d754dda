package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prasenjit/go-mockserver/internal/models"
)

const (
	mocksFileName    = "mock-config.json"
	requestsFileName = "requests.jsonl"
)

// FileStorage implements Storage with JSON files under a base directory.
// Mocks live in mock-config.json as a JSON array, request records are
// appended to requests.jsonl one per line.
type FileStorage struct {
	mu       sync.Mutex
	basePath string
}

// NewFileStorage creates a new file-based storage
func NewFileStorage(basePath string) (*FileStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", basePath, err)
	}
	return &FileStorage{basePath: basePath}, nil
}

func (f *FileStorage) mocksPath() string {
	return filepath.Join(f.basePath, mocksFileName)
}

func (f *FileStorage) requestsPath() string {
	return filepath.Join(f.basePath, requestsFileName)
}

// LoadMocks reads mock-config.json. A missing file is an empty collection.
func (f *FileStorage) LoadMocks(_ context.Context) ([]models.Mock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.mocksPath())
	if errors.Is(err, os.ErrNotExist) {
		return []models.Mock{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.mocksPath(), err)
	}

	var mocks []models.Mock
	if err := json.Unmarshal(data, &mocks); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.mocksPath(), err)
	}
	return mocks, nil
}

// SaveMocks rewrites mock-config.json
func (f *FileStorage) SaveMocks(_ context.Context, mocks []models.Mock) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if mocks == nil {
		mocks = []models.Mock{}
	}
	data, err := json.MarshalIndent(mocks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mocks: %w", err)
	}

	tmp := f.mocksPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write mocks: %w", err)
	}
	return os.Rename(tmp, f.mocksPath())
}

// AppendRequest appends one JSON line to requests.jsonl
func (f *FileStorage) AppendRequest(_ context.Context, rec *models.RequestRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal request record: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.requestsPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.requestsPath(), err)
	}
	defer file.Close()

	_, err = file.Write(append(line, '\n'))
	return err
}

// readRequests loads every request record. Callers hold f.mu.
func (f *FileStorage) readRequests() ([]models.RequestRecord, error) {
	file, err := os.Open(f.requestsPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records []models.RequestRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec models.RequestRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("corrupt request record: %w", err)
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// Requests returns every persisted request record
func (f *FileStorage) Requests() ([]models.RequestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readRequests()
}

// RecentRequests returns up to limit records from requests.jsonl, newest first
func (f *FileStorage) RecentRequests(_ context.Context, limit int) ([]models.RequestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.readRequests()
	if err != nil {
		return nil, err
	}
	return newestFirst(records, limit), nil
}

// PurgeRequests rewrites requests.jsonl without records older than before
func (f *FileStorage) PurgeRequests(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.readRequests()
	if err != nil {
		return 0, err
	}
	kept, dropped := keepSince(records, before)
	if dropped == 0 {
		return 0, nil
	}

	tmp := f.requestsPath() + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(out)
	for i := range kept {
		line, err := json.Marshal(&kept[i])
		if err != nil {
			out.Close()
			return 0, err
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, f.requestsPath()); err != nil {
		return 0, err
	}
	return dropped, nil
}

func (f *FileStorage) Info() Info {
	return Info{Type: "file", Location: f.mocksPath(), Initialized: true}
}

func (f *FileStorage) Close() error {
	return nil
}
