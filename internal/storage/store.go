package storage

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a path is not stored.
var ErrNotFound = errors.New("file not found")

// File is a stored file and its metadata.
type File struct {
	Path      string
	Content   []byte
	UpdatedAt time.Time
}

// Store defines the interface for file storage on one node.
type Store interface {
	// Get retrieves a file by path. Returns ErrNotFound if absent.
	Get(path string) (*File, error)
	// Put stores content under path, replacing any previous content.
	Put(path string, content []byte) *File
	// Delete removes a path. Returns ErrNotFound if absent.
	Delete(path string) error
	// List returns every stored path in ascending order.
	List() []string
	// Len returns the number of stored files.
	Len() int
}

// InMemoryStore is an in-memory implementation of Store.
// It's thread-safe.
type InMemoryStore struct {
	mu    sync.RWMutex
	files map[string]*File
	now   func() time.Time
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		files: make(map[string]*File),
		now:   time.Now,
	}
}

// Get retrieves a file by path.
func (s *InMemoryStore) Get(path string) (*File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.files[path]
	if !exists {
		return nil, ErrNotFound
	}
	// Return a copy to avoid external modifications
	return copyFile(f), nil
}

// Put stores content under path.
func (s *InMemoryStore) Put(path string, content []byte) *File {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := &File{
		Path:      path,
		Content:   append([]byte(nil), content...),
		UpdatedAt: s.now(),
	}
	s.files[path] = f
	return copyFile(f)
}

// Delete removes a path.
func (s *InMemoryStore) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[path]; !exists {
		return ErrNotFound
	}
	delete(s.files, path)
	return nil
}

// List returns every stored path in ascending order.
func (s *InMemoryStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of stored files.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

func copyFile(f *File) *File {
	return &File{
		Path:      f.Path,
		Content:   append([]byte(nil), f.Content...),
		UpdatedAt: f.UpdatedAt,
	}
}
