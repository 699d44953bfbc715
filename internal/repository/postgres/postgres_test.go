package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/webproof-contributors/internal/model"
)

// newTestDB connects to TEST_DATABASE_URL and skips the test when it is unset.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	db, err := New(ctx, dsn, logger)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsert_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// A unique owner keeps reruns against a shared database independent.
	owner := "octo-" + xid.New().String()

	first := &model.VerifiedContribution{
		GitHubUsername:    "alice",
		RepoOwner:         owner,
		RepoName:          "hello",
		ContributionCount: 7,
		Proof:             json.RawMessage(`{"data":"one"}`),
	}
	require.NoError(t, db.Upsert(ctx, first))
	assert.NotEmpty(t, first.ID)

	time.Sleep(10 * time.Millisecond)

	second := &model.VerifiedContribution{
		GitHubUsername:    "ALICE",
		RepoOwner:         owner,
		RepoName:          "hello",
		ContributionCount: 9,
		Proof:             json.RawMessage(`{"data":"two"}`),
	}
	require.NoError(t, db.Upsert(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, 9, second.ContributionCount)
	assert.Equal(t, "alice", second.GitHubUsername)
	assert.JSONEq(t, `{"data":"two"}`, string(second.Proof))

	owned, err := db.ListByUsername(ctx, "ALICE")
	require.NoError(t, err)
	found := 0
	for _, c := range owned {
		if c.RepoOwner == owner {
			found++
		}
	}
	assert.Equal(t, 1, found)

	got, err := db.Get(ctx, "Alice", owner, "hello")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}
