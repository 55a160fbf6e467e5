package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/ioutil"
	"sync"

	"github.com/verity-secure/evidence-services/storage"
)

// MemoryStore is an in-memory storage.Store for unit tests. It
// counts Put calls so tests can assert idempotence and absence of
// side effects, and it can simulate an unreachable backend.
type MemoryStore struct {
	Unavailable bool

	items    map[string][]byte
	putCalls int
	mutex    sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string][]byte),
	}
}

func (s *MemoryStore) Put(ctx context.Context, contentID string, r io.Reader, size int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.putCalls++
	if s.Unavailable {
		return &storage.UnavailableError{Op: "put", Err: errors.New("connection refused")}
	}
	if _, exists := s.items[contentID]; exists {
		return nil
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}
	s.items[contentID] = data
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, contentID string) (io.ReadCloser, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.Unavailable {
		return nil, &storage.UnavailableError{Op: "get", Err: errors.New("connection refused")}
	}
	data, exists := s.items[contentID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return ioutil.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) Contains(ctx context.Context, contentID string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.Unavailable {
		return false, &storage.UnavailableError{Op: "stat", Err: errors.New("connection refused")}
	}
	_, exists := s.items[contentID]
	return exists, nil
}

func (s *MemoryStore) PutCalls() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.putCalls
}

func (s *MemoryStore) ItemCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.items)
}
