package blobstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memObject struct {
	data        []byte
	contentType string
}

// MemoryStore is a thread-safe in-memory Store for development and tests.
// Its signed URLs carry an expiry but no real signature.
type MemoryStore struct {
	mu        sync.RWMutex
	objects   map[string]memObject
	publicURL string
	now       func() time.Time
}

func NewMemoryStore(publicURL string) *MemoryStore {
	return &MemoryStore{
		objects:   make(map[string]memObject),
		publicURL: publicURL,
		now:       time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, objectPath string, data []byte, contentType string) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.objects[objectPath] = memObject{data: buf, contentType: contentType}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, objectPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[objectPath]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, objectPath)
	return nil
}

func (s *MemoryStore) SignedURL(_ context.Context, objectPath string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	_, ok := s.objects[objectPath]
	s.mu.RUnlock()
	if !ok {
		return "", ErrObjectNotFound
	}
	return fmt.Sprintf("%s?expires=%d", s.PublicURL(objectPath), s.now().Add(ttl).Unix()), nil
}

func (s *MemoryStore) PublicURL(objectPath string) string {
	return joinURL(s.publicURL, objectPath)
}

// Get returns a copy of the stored bytes and content type.
func (s *MemoryStore) Get(objectPath string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[objectPath]
	if !ok {
		return nil, "", false
	}
	out := make([]byte, len(obj.data))
	copy(out, obj.data)
	return out, obj.contentType, true
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
