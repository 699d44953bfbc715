package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/webproof-contributors/internal/apperror"
)

func newTestContributionService(t *testing.T) (*ContributionService, *fakeRelay, *fakeRepo) {
	t.Helper()
	relay := newFakeRelay()
	repo := newFakeRepo()
	return NewContributionService(relay, repo, testLogger()), relay, repo
}

func TestUpload_StoresVerifiedContribution(t *testing.T) {
	svc, relay, _ := newTestContributionService(t)
	proof := json.RawMessage(`{"data":"alice-proof"}`)
	relay.responses[string(proof)] = searchVerification("octo", "hello", "alice", 7)

	got, err := svc.Upload(context.Background(), proof, "  alice ")

	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "alice", got.GitHubUsername)
	assert.Equal(t, "octo", got.RepoOwner)
	assert.Equal(t, "hello", got.RepoName)
	assert.Equal(t, 7, got.ContributionCount)
	assert.Equal(t, "https://github.com/alice.png", got.AvatarURL)
	assert.Equal(t, Digest(proof), got.ProofDigest)
	assert.Len(t, got.ProofDigest, 64)
	assert.JSONEq(t, string(proof), string(got.Proof))
}

func TestUpload_ReuploadKeepsIdentity(t *testing.T) {
	svc, relay, repo := newTestContributionService(t)
	ctx := context.Background()

	first := json.RawMessage(`{"data":"first"}`)
	second := json.RawMessage(`{"data":"second"}`)
	relay.responses[string(first)] = searchVerification("octo", "hello", "alice", 3)
	relay.responses[string(second)] = searchVerification("octo", "hello", "alice", 5)

	a, err := svc.Upload(ctx, first, "alice")
	require.NoError(t, err)
	b, err := svc.Upload(ctx, second, "alice")
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, 5, b.ContributionCount)
	assert.Len(t, repo.rows, 1)
}

func TestUpload_Validation(t *testing.T) {
	svc, relay, _ := newTestContributionService(t)

	tests := []struct {
		name     string
		proof    json.RawMessage
		username string
		field    string
	}{
		{"missing proof", nil, "alice", "proof"},
		{"null proof", json.RawMessage("null"), "alice", "proof"},
		{"blank username", json.RawMessage(`{"data":"x"}`), "   ", "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tt.proof, tt.username)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.True(t, errors.Is(err, apperror.ErrValidation))
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
	assert.Zero(t, relay.verified, "validation failures must not reach the prover")
}

func TestUpload_WrongUser(t *testing.T) {
	svc, relay, repo := newTestContributionService(t)
	proof := json.RawMessage(`{"data":"nodes"}`)
	body := `{"data":{"repository":{"pullRequests":{"nodes":[{"author":{"login":"bob"}}]}}}}`
	reqBody, _ := json.Marshal(map[string]any{"variables": map[string]string{"owner": "octo", "name": "hello"}})
	relay.responses[string(proof)], _ = json.Marshal(map[string]any{
		"request":  map[string]any{"body": string(reqBody)},
		"response": map[string]any{"body": body},
	})

	_, err := svc.Upload(context.Background(), proof, "alice")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	assert.Equal(t, "No contributions found for username: alice", err.Error())
	assert.Empty(t, repo.rows)
}

func TestUpload_ZeroCount(t *testing.T) {
	svc, relay, _ := newTestContributionService(t)
	proof := json.RawMessage(`{"data":"zero"}`)
	relay.responses[string(proof)] = searchVerification("octo", "hello", "alice", 0)

	_, err := svc.Upload(context.Background(), proof, "alice")

	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestUpload_MissingRepository(t *testing.T) {
	svc, relay, _ := newTestContributionService(t)
	proof := json.RawMessage(`{"data":"norepo"}`)
	relay.responses[string(proof)] = json.RawMessage(`{"request":{"url":"https://api.github.com/graphql","body":"{\"query\":\"{ viewer { login } }\"}"},"response":{"body":"{}"}}`)

	_, err := svc.Upload(context.Background(), proof, "alice")

	require.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Equal(t, "Could not extract repository information from verification response", err.Error())
}

func TestUpload_MissingResponseBody(t *testing.T) {
	svc, relay, _ := newTestContributionService(t)
	proof := json.RawMessage(`{"data":"nobody"}`)
	relay.responses[string(proof)] = json.RawMessage(`{"request":{"url":"https://api.github.com/repos/octo/hello/contributors"}}`)

	_, err := svc.Upload(context.Background(), proof, "alice")

	require.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Equal(t, "Verification response does not contain contributor data", err.Error())
}

func TestUpload_UpstreamFailurePropagates(t *testing.T) {
	svc, relay, _ := newTestContributionService(t)
	relay.err = apperror.Upstream(401, "Verification failed: 401 - unauthorized")

	_, err := svc.Upload(context.Background(), json.RawMessage(`{"data":"x"}`), "alice")

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 401, appErr.Status)
}

func TestUpload_PersistenceGuidance(t *testing.T) {
	tests := []struct {
		name    string
		repoErr error
		want    string
	}{
		{"missing sqlite table", errors.New("sqlite: upserting: SQL logic error: no such table: verified_contributions (1)"), msgTableMissing},
		{"missing postgres relation", errors.New(`ERROR: relation "verified_contributions" does not exist (SQLSTATE 42P01)`), msgTableMissing},
		{"connection refused", errors.New("failed to connect to `host=db`: dial error"), msgConnectionFailed},
		{"anything else", errors.New("disk I/O error"), msgDatabaseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, relay, repo := newTestContributionService(t)
			proof := json.RawMessage(`{"data":"p"}`)
			relay.responses[string(proof)] = searchVerification("octo", "hello", "alice", 2)
			repo.err = tt.repoErr

			_, err := svc.Upload(context.Background(), proof, "alice")

			require.True(t, errors.Is(err, apperror.ErrPersistence))
			assert.True(t, errors.Is(err, tt.repoErr))
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestListVerified_DerivesURLs(t *testing.T) {
	svc, _, repo := newTestContributionService(t)
	proof := json.RawMessage(`{}`)
	c := searchRow("alice", "octo", "hello", 7, proof)
	require.NoError(t, repo.Upsert(context.Background(), c))

	got, err := svc.ListVerified(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Username)
	assert.Equal(t, 7, got[0].Contributions)
	assert.Equal(t, "https://github.com/alice.png", got[0].Avatar)
	assert.Equal(t, "https://github.com/alice", got[0].GitHubURL)
	assert.Equal(t, "https://github.com/octo/hello", got[0].RepoURL)
	assert.True(t, got[0].Verified)
}

func TestListOwned(t *testing.T) {
	svc, _, repo := newTestContributionService(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, searchRow("alice", "octo", "hello", 7, json.RawMessage(`{"data":"a"}`))))
	require.NoError(t, repo.Upsert(ctx, searchRow("bob", "octo", "hello", 2, json.RawMessage(`{"data":"b"}`))))

	owned, err := svc.ListOwned(ctx, "Alice")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.JSONEq(t, `{"data":"a"}`, string(owned[0].Proof))

	_, err = svc.ListOwned(ctx, "")
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
}
