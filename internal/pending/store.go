package pending

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ytget/yt-downloader-bot/internal/model"
)

var (
	ErrNotFound       = errors.New("pending request not found")
	ErrDuplicateToken = errors.New("duplicate token")
)

// Store is an in-memory token → request map. Every per-token operation runs
// under one lock, so a racing confirm and cancel see exactly one "found".
type Store struct {
	requests      map[string]model.PendingRequest
	requestsMutex sync.RWMutex
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		requests: make(map[string]model.PendingRequest),
	}
}

// Put stores a new request under token
func (s *Store) Put(token string, req model.PendingRequest) error {
	if token == "" {
		return fmt.Errorf("empty token")
	}

	s.requestsMutex.Lock()
	defer s.requestsMutex.Unlock()

	if _, exists := s.requests[token]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateToken, token)
	}

	req.Token = token
	s.requests[token] = req
	return nil
}

// Get returns a copy of the request stored under token
func (s *Store) Get(token string) (model.PendingRequest, error) {
	s.requestsMutex.RLock()
	defer s.requestsMutex.RUnlock()

	req, exists := s.requests[token]
	if !exists {
		return model.PendingRequest{}, fmt.Errorf("%w: %s", ErrNotFound, token)
	}
	return req, nil
}

// Remove deletes the request stored under token and returns it
func (s *Store) Remove(token string) (model.PendingRequest, error) {
	s.requestsMutex.Lock()
	defer s.requestsMutex.Unlock()

	req, exists := s.requests[token]
	if !exists {
		return model.PendingRequest{}, fmt.Errorf("%w: %s", ErrNotFound, token)
	}
	delete(s.requests, token)
	return req, nil
}

// Len returns the number of pending requests
func (s *Store) Len() int {
	s.requestsMutex.RLock()
	defer s.requestsMutex.RUnlock()
	return len(s.requests)
}
