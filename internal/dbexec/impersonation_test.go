package dbexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neo4j-graphql/internal/cypher"
)

type recordingExecutor struct {
	opts  []RunOptions
	txRun bool
}

func (r *recordingExecutor) Run(_ context.Context, _ cypher.Statement, opts RunOptions) (*Result, error) {
	r.opts = append(r.opts, opts)
	return &Result{}, nil
}

type recordingTxExecutor struct {
	recordingExecutor
}

func (r *recordingTxExecutor) WriteTx(ctx context.Context, opts RunOptions, fn func(QueryExecutor) error) error {
	r.txRun = true
	r.opts = append(r.opts, opts)
	return fn(&r.recordingExecutor)
}

func userFrom(user string, ok bool) func(context.Context) (string, bool) {
	return func(context.Context) (string, bool) { return user, ok }
}

func TestImpersonationValidation(t *testing.T) {
	tests := []struct {
		name         string
		user         string
		hasUser      bool
		allowedUsers []string
		validate     bool
		expectErr    bool
		expectUser   string
	}{
		{
			name:         "allowed user with validation",
			user:         "analyst",
			hasUser:      true,
			allowedUsers: []string{"admin", "analyst"},
			validate:     true,
			expectUser:   "analyst",
		},
		{
			name:         "unknown user with validation",
			user:         "root",
			hasUser:      true,
			allowedUsers: []string{"admin"},
			validate:     true,
			expectErr:    true,
		},
		{
			name:         "unknown user without validation",
			user:         "root",
			hasUser:      true,
			allowedUsers: []string{"admin"},
			expectUser:   "root",
		},
		{
			name:         "no user runs as service account",
			allowedUsers: []string{"admin"},
			validate:     true,
		},
		{
			name:         "empty user runs as service account",
			hasUser:      true,
			allowedUsers: []string{"admin"},
			validate:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &recordingExecutor{}
			executor := NewImpersonatingExecutor(ImpersonatingExecutorConfig{
				Next:         next,
				UserFromCtx:  userFrom(tt.user, tt.hasUser),
				AllowedUsers: tt.allowedUsers,
				ValidateUser: tt.validate,
			})

			_, err := executor.Run(context.Background(), cypher.Statement{Cypher: "RETURN 1"}, RunOptions{Mode: ReadMode})
			if tt.expectErr {
				require.ErrorContains(t, err, "not allowed")
				assert.Empty(t, next.opts)
				return
			}
			require.NoError(t, err)
			require.Len(t, next.opts, 1)
			assert.Equal(t, tt.expectUser, next.opts[0].ImpersonatedUser)
			assert.Equal(t, ReadMode, next.opts[0].Mode)
		})
	}
}

func TestImpersonatingWriteTx(t *testing.T) {
	t.Run("opens the transaction as the user", func(t *testing.T) {
		next := &recordingTxExecutor{}
		executor := NewImpersonatingExecutor(ImpersonatingExecutorConfig{Next: next, UserFromCtx: userFrom("alice", true)})

		err := executor.WriteTx(context.Background(), RunOptions{}, func(tx QueryExecutor) error {
			_, err := tx.Run(context.Background(), cypher.Statement{}, RunOptions{})
			return err
		})
		require.NoError(t, err)
		assert.True(t, next.txRun)
		assert.Equal(t, "alice", next.opts[0].ImpersonatedUser)
	})

	t.Run("falls back to per statement impersonation", func(t *testing.T) {
		next := &recordingExecutor{}
		executor := NewImpersonatingExecutor(ImpersonatingExecutorConfig{Next: next, UserFromCtx: userFrom("alice", true)})

		err := InWriteTx(context.Background(), executor, RunOptions{}, func(tx QueryExecutor) error {
			_, err := tx.Run(context.Background(), cypher.Statement{}, RunOptions{})
			return err
		})
		require.NoError(t, err)
		require.Len(t, next.opts, 1)
		assert.Equal(t, "alice", next.opts[0].ImpersonatedUser)
	})
}
