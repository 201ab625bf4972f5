package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRequest(id string) *AccountRequest {
	now := time.Now().UTC()
	return &AccountRequest{
		RequestID:   id,
		Template:    "client",
		Email:       "team@example.com",
		Name:        "workload-dev",
		ClientID:    "acme",
		RequestedBy: "cli-user",
		TargetOU:    "Sandbox",
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestMemoryRequestStore_Put(t *testing.T) {
	t.Run("put then get returns the same value", func(t *testing.T) {
		store := NewMemoryRequestStore()
		ctx := context.Background()

		req := newTestRequest("req-2025-01-10-abc12345")
		req.Customizations = map[string]string{"vpc_cidr": "10.0.0.0/16"}

		require.NoError(t, store.Put(ctx, req))

		retrieved, err := store.Get(ctx, "req-2025-01-10-abc12345")
		require.NoError(t, err)
		require.Equal(t, req, retrieved)
	})

	t.Run("duplicate request id returns error and leaves record unchanged", func(t *testing.T) {
		store := NewMemoryRequestStore()
		ctx := context.Background()

		req := newTestRequest("req-1")
		require.NoError(t, store.Put(ctx, req))

		dup := newTestRequest("req-1")
		dup.Email = "other@example.com"

		err := store.Put(ctx, dup)
		require.ErrorIs(t, err, ErrRequestAlreadyExists)

		retrieved, err := store.Get(ctx, "req-1")
		require.NoError(t, err)
		require.Equal(t, "team@example.com", retrieved.Email)
	})

	t.Run("stored record is isolated from caller mutations", func(t *testing.T) {
		store := NewMemoryRequestStore()
		ctx := context.Background()

		req := newTestRequest("req-1")
		req.Customizations = map[string]string{"key": "value"}
		require.NoError(t, store.Put(ctx, req))

		req.Customizations["key"] = "modified"

		retrieved, err := store.Get(ctx, "req-1")
		require.NoError(t, err)
		require.Equal(t, "value", retrieved.Customizations["key"])
	})
}

func TestMemoryRequestStore_Get(t *testing.T) {
	t.Run("get nonexistent request returns error", func(t *testing.T) {
		store := NewMemoryRequestStore()

		_, err := store.Get(context.Background(), "missing")
		require.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestMemoryRequestStore_Update(t *testing.T) {
	t.Run("update merges fields and stamps updated_at", func(t *testing.T) {
		store := NewMemoryRequestStore()
		ctx := context.Background()

		req := newTestRequest("req-1")
		require.NoError(t, store.Put(ctx, req))

		status := StatusCompleted
		accountID := "198610579545"
		updated, err := store.Update(ctx, "req-1", RequestUpdate{
			Status:    &status,
			AccountID: &accountID,
		})
		require.NoError(t, err)
		require.Equal(t, StatusCompleted, updated.Status)
		require.Equal(t, "198610579545", updated.AccountID)
		require.True(t, updated.UpdatedAt.After(req.UpdatedAt) || updated.UpdatedAt.Equal(req.UpdatedAt))

		// Descriptive fields untouched
		require.Equal(t, req.Email, updated.Email)
		require.Equal(t, req.TargetOU, updated.TargetOU)
	})

	t.Run("repeating an identical update advances updated_at only", func(t *testing.T) {
		store := NewMemoryRequestStore()
		ctx := context.Background()

		require.NoError(t, store.Put(ctx, newTestRequest("req-1")))

		status := StatusInProgress
		first, err := store.Update(ctx, "req-1", RequestUpdate{Status: &status})
		require.NoError(t, err)

		time.Sleep(time.Millisecond)

		second, err := store.Update(ctx, "req-1", RequestUpdate{Status: &status})
		require.NoError(t, err)
		require.True(t, second.UpdatedAt.After(first.UpdatedAt))

		second.UpdatedAt = first.UpdatedAt
		require.Equal(t, first, second)
	})

	t.Run("update nonexistent request returns error", func(t *testing.T) {
		store := NewMemoryRequestStore()

		status := StatusFailed
		_, err := store.Update(context.Background(), "missing", RequestUpdate{Status: &status})
		require.ErrorIs(t, err, ErrRequestNotFound)
	})

	t.Run("empty update still stamps updated_at", func(t *testing.T) {
		store := NewMemoryRequestStore()
		ctx := context.Background()

		req := newTestRequest("req-1")
		req.UpdatedAt = req.UpdatedAt.Add(-time.Hour)
		require.NoError(t, store.Put(ctx, req))

		updated, err := store.Update(ctx, "req-1", RequestUpdate{})
		require.NoError(t, err)
		require.True(t, updated.UpdatedAt.After(req.UpdatedAt))
		require.Equal(t, req.Status, updated.Status)
	})
}

func TestMemoryRequestStore_Delete(t *testing.T) {
	t.Run("delete removes the record", func(t *testing.T) {
		store := NewMemoryRequestStore()
		ctx := context.Background()

		require.NoError(t, store.Put(ctx, newTestRequest("req-1")))
		require.NoError(t, store.Delete(ctx, "req-1"))

		_, err := store.Get(ctx, "req-1")
		require.ErrorIs(t, err, ErrRequestNotFound)
	})

	t.Run("delete nonexistent id is not an error", func(t *testing.T) {
		store := NewMemoryRequestStore()

		require.NoError(t, store.Delete(context.Background(), "missing"))
	})
}

func TestMemoryRequestStore_List(t *testing.T) {
	t.Run("filter by client id honours limit and filter", func(t *testing.T) {
		store := NewMemoryRequestStore()
		ctx := context.Background()

		for i := 0; i < 8; i++ {
			req := newTestRequest(fmt.Sprintf("acme-%d", i))
			req.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
			require.NoError(t, store.Put(ctx, req))
		}
		other := newTestRequest("other-1")
		other.ClientID = "globex"
		require.NoError(t, store.Put(ctx, other))

		result, err := store.List(ctx, ListRequestsOptions{ClientID: "acme", Limit: 5})
		require.NoError(t, err)
		require.Len(t, result, 5)
		for _, req := range result {
			require.Equal(t, "acme", req.ClientID)
		}
	})

	t.Run("filter by client id and status", func(t *testing.T) {
		store := NewMemoryRequestStore()
		ctx := context.Background()

		pending := newTestRequest("req-1")
		require.NoError(t, store.Put(ctx, pending))

		completed := newTestRequest("req-2")
		completed.Status = StatusCompleted
		require.NoError(t, store.Put(ctx, completed))

		result, err := store.List(ctx, ListRequestsOptions{ClientID: "acme", Status: StatusCompleted})
		require.NoError(t, err)
		require.Len(t, result, 1)
		require.Equal(t, "req-2", result[0].RequestID)
	})

	t.Run("most recent entries first", func(t *testing.T) {
		store := NewMemoryRequestStore()
		ctx := context.Background()

		old := newTestRequest("req-old")
		old.CreatedAt = time.Now().UTC().Add(-time.Hour)
		require.NoError(t, store.Put(ctx, old))

		recent := newTestRequest("req-recent")
		recent.CreatedAt = time.Now().UTC()
		require.NoError(t, store.Put(ctx, recent))

		result, err := store.List(ctx, ListRequestsOptions{})
		require.NoError(t, err)
		require.Len(t, result, 2)
		require.Equal(t, "req-recent", result[0].RequestID)
	})

	t.Run("empty store returns empty result", func(t *testing.T) {
		store := NewMemoryRequestStore()

		result, err := store.List(context.Background(), ListRequestsOptions{})
		require.NoError(t, err)
		require.Empty(t, result)
	})
}

func TestMemoryRequestStoreImplementsInterface(t *testing.T) {
	var _ RequestStore = (*MemoryRequestStore)(nil)
}
