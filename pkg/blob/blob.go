// Package blob provides the byte-level read/write primitives a ledger is
// persisted through. Each Blob addresses exactly one object.
package blob

import (
	"context"
	"errors"
	"sync"

	"github.com/mslinn/benchledger/pkg/checksum"
)

var (
	ErrNotFound = errors.New("blob not found")
	ErrReadOnly = errors.New("blob is read-only")
	ErrConflict = errors.New("blob changed since it was read")
)

// Blob reads and writes one stored object
type Blob interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// Version identifies the contents returned by ReadVersion. The zero Version
// stands for an object that does not exist.
type Version string

// Versioned is a Blob that can replace its object only if nobody else wrote
// it in the meantime. Two writers that read the same Version cannot both
// succeed: the second WriteIf fails with ErrConflict.
type Versioned interface {
	Blob
	// ReadVersion returns the object and its Version, or ErrNotFound
	ReadVersion(ctx context.Context) ([]byte, Version, error)
	// WriteIf stores data when the object is still at v and returns the
	// new Version
	WriteIf(ctx context.Context, data []byte, v Version) (Version, error)
}

func versionOf(data []byte) Version {
	return Version(checksum.Of(data).String())
}

// Memory keeps the object in process memory. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data []byte
	set  bool
}

// NewMemory returns an empty in-memory blob
func NewMemory() *Memory {
	return &Memory{}
}

// Read returns a copy of the stored payload
func (m *Memory) Read(ctx context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.set {
		return nil, ErrNotFound
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

// Write replaces the stored payload
func (m *Memory) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store(data)
	return nil
}

func (m *Memory) ReadVersion(ctx context.Context) ([]byte, Version, error) {
	data, err := m.Read(ctx)
	if err != nil {
		return nil, "", err
	}
	return data, versionOf(data), nil
}

func (m *Memory) WriteIf(ctx context.Context, data []byte, v Version) (Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cur Version
	if m.set {
		cur = versionOf(m.data)
	}
	if cur != v {
		return "", ErrConflict
	}
	m.store(data)
	return versionOf(data), nil
}

func (m *Memory) store(data []byte) {
	m.data = make([]byte, len(data))
	copy(m.data, data)
	m.set = true
}
