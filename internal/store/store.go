package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for common error conditions
var (
	ErrRequestNotFound      = errors.New("account request not found")
	ErrRequestAlreadyExists = errors.New("account request already exists")
	ErrBackendUnavailable   = errors.New("store backend unavailable")
)

// RequestStatus is the lifecycle state of an account request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusInProgress RequestStatus = "in_progress"
	StatusCompleted  RequestStatus = "completed"
	StatusFailed     RequestStatus = "failed"
)

// Statuses lists every lifecycle state in progression order.
func Statuses() []RequestStatus {
	return []RequestStatus{StatusPending, StatusInProgress, StatusCompleted, StatusFailed}
}

// AccountRequest is a provisioning intent tracked to completion by the
// account factory pipeline. The descriptive fields (Template, Email, Name,
// ClientID, RequestedBy, TargetOU, Customizations) are immutable after
// creation; only Status, AccountID, ErrorMessage and UpdatedAt change.
type AccountRequest struct {
	RequestID      string            `dynamodbav:"request_id"`
	Template       string            `dynamodbav:"template"`
	Email          string            `dynamodbav:"email"`
	Name           string            `dynamodbav:"name"`
	ClientID       string            `dynamodbav:"client_id"`
	RequestedBy    string            `dynamodbav:"requested_by"`
	TargetOU       string            `dynamodbav:"target_ou"`
	Customizations map[string]string `dynamodbav:"customizations,omitempty"`
	Status         RequestStatus     `dynamodbav:"status"`
	AccountID      string            `dynamodbav:"account_id,omitempty"`
	ErrorMessage   string            `dynamodbav:"error_message,omitempty"`
	CreatedAt      time.Time         `dynamodbav:"created_at"`
	UpdatedAt      time.Time         `dynamodbav:"updated_at"`
}

// RequestUpdate is a partial update of an account request's mutable fields.
// Nil fields are left untouched. UpdatedAt is stamped on every update
// regardless of which fields are set.
type RequestUpdate struct {
	Status       *RequestStatus
	AccountID    *string
	ErrorMessage *string
}

// ListRequestsOptions filters a request listing. When ClientID is set the
// implementation must use an index-backed lookup rather than a full scan.
type ListRequestsOptions struct {
	ClientID string
	Status   RequestStatus
	Limit    int
}

// RequestStore defines the interface for account request ledger operations
type RequestStore interface {
	// Put inserts a new request. Fails with ErrRequestAlreadyExists when the
	// request id collides with an existing record.
	Put(ctx context.Context, req *AccountRequest) error

	// Get returns the request or ErrRequestNotFound.
	Get(ctx context.Context, requestID string) (*AccountRequest, error)

	// List returns up to opts.Limit requests matching the filter.
	List(ctx context.Context, opts ListRequestsOptions) ([]*AccountRequest, error)

	// Update merges the given fields into an existing request atomically,
	// stamping UpdatedAt, and returns the updated record. Fails with
	// ErrRequestNotFound when the request is absent.
	Update(ctx context.Context, requestID string, update RequestUpdate) (*AccountRequest, error)

	// Delete removes a request. Deleting a non-existent id is not an error.
	Delete(ctx context.Context, requestID string) error
}
