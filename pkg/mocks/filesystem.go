package mocks

import (
	"sync"

	"github.com/user/framegrab/pkg/ports"
)

// FileSystem is an in-memory ports.FileSystem that records write order.
type FileSystem struct {
	mu     sync.Mutex
	files  map[string][]byte
	dirs   map[string]bool
	writes []string

	// WriteFileFunc replaces the in-memory write when set.
	WriteFileFunc func(path string, data []byte) error
	// MkdirAllFunc replaces the in-memory mkdir when set.
	MkdirAllFunc func(path string) error
}

// NewFileSystem creates an empty FileSystem.
func NewFileSystem() *FileSystem {
	return &FileSystem{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

func (m *FileSystem) WriteFile(path string, data []byte) error {
	if m.WriteFileFunc != nil {
		return m.WriteFileFunc(path, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), data...)
	m.writes = append(m.writes, path)
	return nil
}

func (m *FileSystem) MkdirAll(path string) error {
	if m.MkdirAllFunc != nil {
		return m.MkdirAllFunc(path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[path] = true
	return nil
}

func (m *FileSystem) Exists(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[path] != nil || m.dirs[path], nil
}

// GetFile returns the stored contents of path.
func (m *FileSystem) GetFile(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	return data, ok
}

// Writes returns the written paths in call order.
func (m *FileSystem) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}

var _ ports.FileSystem = (*FileSystem)(nil)
