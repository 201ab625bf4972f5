package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgflow/internal/store"
)

// schema is applied by EnsureSchema. The composite index backs the
// (client_id) and (client_id, status) lookups the ledger contract requires.
const schema = `
CREATE TABLE IF NOT EXISTS account_requests (
	request_id     TEXT PRIMARY KEY,
	template       TEXT NOT NULL,
	email          TEXT NOT NULL,
	name           TEXT NOT NULL,
	client_id      TEXT NOT NULL,
	requested_by   TEXT NOT NULL,
	target_ou      TEXT NOT NULL,
	customizations JSONB,
	status         TEXT NOT NULL,
	account_id     TEXT,
	error_message  TEXT,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_account_requests_client_status
	ON account_requests (client_id, status);
`

// RequestStore implements store.RequestStore using PostgreSQL.
type RequestStore struct {
	pool *pgxpool.Pool
}

// NewRequestStore creates a new PostgreSQL-backed request store.
// It shares the connection pool with other stores.
func NewRequestStore(pool *pgxpool.Pool) *RequestStore {
	return &RequestStore{
		pool: pool,
	}
}

// EnsureSchema creates the account_requests table and its index if they do
// not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", mapPostgresError(err))
	}
	return nil
}

// Put inserts a new account request.
func (s *RequestStore) Put(ctx context.Context, req *store.AccountRequest) error {
	query := `
		INSERT INTO account_requests (
			request_id, template, email, name,
			client_id, requested_by, target_ou, customizations,
			status, account_id, error_message,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	customizations, err := marshalCustomizations(req.Customizations)
	if err != nil {
		return err
	}

	// Empty strings become NULL for the nullable columns
	var accountID, errorMessage any
	if req.AccountID != "" {
		accountID = req.AccountID
	}
	if req.ErrorMessage != "" {
		errorMessage = req.ErrorMessage
	}

	_, err = s.pool.Exec(ctx, query,
		req.RequestID,
		req.Template,
		req.Email,
		req.Name,
		req.ClientID,
		req.RequestedBy,
		req.TargetOU,
		customizations,
		string(req.Status),
		accountID,
		errorMessage,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err)
	}

	log.Debug().
		Str("request_id", req.RequestID).
		Str("client_id", req.ClientID).
		Msg("account request created")

	return nil
}

// Get retrieves an account request by ID.
func (s *RequestStore) Get(ctx context.Context, requestID string) (*store.AccountRequest, error) {
	query := selectColumns + ` WHERE request_id = $1`

	row := s.pool.QueryRow(ctx, query, requestID)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrRequestNotFound
		}
		return nil, mapPostgresError(err)
	}

	return req, nil
}

// List returns requests matching the filter, most recent first.
func (s *RequestStore) List(ctx context.Context, opts store.ListRequestsOptions) ([]*store.AccountRequest, error) {
	query := selectColumns
	args := []any{}

	switch {
	case opts.ClientID != "" && opts.Status != "":
		query += ` WHERE client_id = $1 AND status = $2`
		args = append(args, opts.ClientID, string(opts.Status))
	case opts.ClientID != "":
		query += ` WHERE client_id = $1`
		args = append(args, opts.ClientID)
	case opts.Status != "":
		query += ` WHERE status = $1`
		args = append(args, string(opts.Status))
	}

	query += ` ORDER BY created_at DESC`

	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var requests []*store.AccountRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, mapPostgresError(err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(err)
	}

	return requests, nil
}

// Update merges the given fields into an existing request in a single
// UPDATE statement, so the caller's field set is applied atomically.
func (s *RequestStore) Update(ctx context.Context, requestID string, update store.RequestUpdate) (*store.AccountRequest, error) {
	set := `updated_at = $2`
	args := []any{requestID, time.Now().UTC()}

	if update.Status != nil {
		args = append(args, string(*update.Status))
		set += fmt.Sprintf(`, status = $%d`, len(args))
	}
	if update.AccountID != nil {
		args = append(args, *update.AccountID)
		set += fmt.Sprintf(`, account_id = $%d`, len(args))
	}
	if update.ErrorMessage != nil {
		args = append(args, *update.ErrorMessage)
		set += fmt.Sprintf(`, error_message = $%d`, len(args))
	}

	query := `UPDATE account_requests SET ` + set + ` WHERE request_id = $1 ` + returningColumns

	row := s.pool.QueryRow(ctx, query, args...)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrRequestNotFound
		}
		return nil, mapPostgresError(err)
	}

	log.Debug().
		Str("request_id", requestID).
		Str("status", string(req.Status)).
		Msg("account request updated")

	return req, nil
}

// Delete removes a request. Deleting a non-existent id is not an error.
func (s *RequestStore) Delete(ctx context.Context, requestID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM account_requests WHERE request_id = $1`, requestID)
	if err != nil {
		return mapPostgresError(err)
	}

	log.Debug().Str("request_id", requestID).Msg("account request deleted")

	return nil
}

const selectColumns = `
	SELECT
		request_id, template, email, name,
		client_id, requested_by, target_ou, customizations,
		status, account_id, error_message,
		created_at, updated_at
	FROM account_requests
`

const returningColumns = `
	RETURNING
		request_id, template, email, name,
		client_id, requested_by, target_ou, customizations,
		status, account_id, error_message,
		created_at, updated_at
`

// scanRequest scans one row into an AccountRequest, converting NULLs back
// to Go zero values.
func scanRequest(row pgx.Row) (*store.AccountRequest, error) {
	var req store.AccountRequest
	var status string
	var customizations []byte
	var accountID, errorMessage *string

	err := row.Scan(
		&req.RequestID,
		&req.Template,
		&req.Email,
		&req.Name,
		&req.ClientID,
		&req.RequestedBy,
		&req.TargetOU,
		&customizations,
		&status,
		&accountID,
		&errorMessage,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Status = store.RequestStatus(status)
	if accountID != nil {
		req.AccountID = *accountID
	}
	if errorMessage != nil {
		req.ErrorMessage = *errorMessage
	}
	if len(customizations) > 0 {
		if err := json.Unmarshal(customizations, &req.Customizations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal customizations: %w", err)
		}
	}

	return &req, nil
}

func marshalCustomizations(customizations map[string]string) (any, error) {
	if len(customizations) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(customizations)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal customizations: %w", err)
	}
	return data, nil
}
