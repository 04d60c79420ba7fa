package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSQLiteUsers(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	asha, err := s.CreateUser(ctx, "Asha Rao", "asha@example.com", "")
	require.NoError(t, err)
	ravi, err := s.CreateUser(ctx, "Ravi", "", "/ravi.png")
	require.NoError(t, err)

	got, err := s.GetUserByID(ctx, asha.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Asha Rao", got.FullName)
	assert.Equal(t, "asha@example.com", got.Email)

	others, err := s.ListUsersExcept(ctx, asha.ID)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, ravi.ID, others[0].ID)
	assert.Equal(t, "/ravi.png", others[0].ProfilePic)

	count, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestSQLiteMissingUser(t *testing.T) {
	s := newTestSQLite(t)

	got, err := s.GetUserByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}
