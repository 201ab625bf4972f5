package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgflow/internal/store"
)

func TestMapPostgresError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "unique violation maps to already exists",
			err:  &pgconn.PgError{Code: pgerrcode.UniqueViolation},
			want: store.ErrRequestAlreadyExists,
		},
		{
			name: "connection failure maps to backend unavailable",
			err:  &pgconn.PgError{Code: pgerrcode.ConnectionFailure},
			want: store.ErrBackendUnavailable,
		},
		{
			name: "deadlock maps to backend unavailable",
			err:  &pgconn.PgError{Code: pgerrcode.DeadlockDetected},
			want: store.ErrBackendUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, mapPostgresError(tt.err), tt.want)
		})
	}

	t.Run("non-postgres error passes through", func(t *testing.T) {
		err := errors.New("plain error")
		require.Equal(t, err, mapPostgresError(err))
	})

	t.Run("nil error stays nil", func(t *testing.T) {
		require.NoError(t, mapPostgresError(nil))
	})
}

func TestRequestStoreImplementsInterface(t *testing.T) {
	var _ store.RequestStore = (*RequestStore)(nil)
}
