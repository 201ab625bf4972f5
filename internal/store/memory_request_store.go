package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRequestStore is an in-memory implementation of RequestStore for
// development and testing
type MemoryRequestStore struct {
	mu       sync.RWMutex
	requests map[string]*AccountRequest
}

// NewMemoryRequestStore creates a new in-memory request store
func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{
		requests: make(map[string]*AccountRequest),
	}
}

// Put inserts a new request
func (s *MemoryRequestStore) Put(ctx context.Context, req *AccountRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.RequestID]; exists {
		return ErrRequestAlreadyExists
	}

	s.requests[req.RequestID] = copyRequest(req)
	return nil
}

// Get retrieves a request by ID
func (s *MemoryRequestStore) Get(ctx context.Context, requestID string) (*AccountRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, exists := s.requests[requestID]
	if !exists {
		return nil, ErrRequestNotFound
	}

	return copyRequest(req), nil
}

// List returns requests matching the filter, most recent first
func (s *MemoryRequestStore) List(ctx context.Context, opts ListRequestsOptions) ([]*AccountRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*AccountRequest, 0, len(s.requests))
	for _, req := range s.requests {
		if opts.ClientID != "" && req.ClientID != opts.ClientID {
			continue
		}
		if opts.Status != "" && req.Status != opts.Status {
			continue
		}
		matched = append(matched, copyRequest(req))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	return matched, nil
}

// Update merges the given fields into an existing request
func (s *MemoryRequestStore) Update(ctx context.Context, requestID string, update RequestUpdate) (*AccountRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, exists := s.requests[requestID]
	if !exists {
		return nil, ErrRequestNotFound
	}

	if update.Status != nil {
		req.Status = *update.Status
	}
	if update.AccountID != nil {
		req.AccountID = *update.AccountID
	}
	if update.ErrorMessage != nil {
		req.ErrorMessage = *update.ErrorMessage
	}
	req.UpdatedAt = time.Now().UTC()

	return copyRequest(req), nil
}

// Delete removes a request, idempotently
func (s *MemoryRequestStore) Delete(ctx context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.requests, requestID)
	return nil
}

// copyRequest returns a copy to avoid external modifications
func copyRequest(req *AccountRequest) *AccountRequest {
	copy := *req
	if req.Customizations != nil {
		copy.Customizations = make(map[string]string, len(req.Customizations))
		for k, v := range req.Customizations {
			copy.Customizations[k] = v
		}
	}
	return &copy
}
