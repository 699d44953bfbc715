package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sakif/webproof-contributors/internal/apperror"
	"github.com/sakif/webproof-contributors/internal/model"
	"github.com/sakif/webproof-contributors/internal/prover"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeRelay implements Prover and Verifier. Verify answers by looking up the
// proof text in responses; unknown proofs get err (or a 400 when err is nil).
type fakeRelay struct {
	mu        sync.Mutex
	responses map[string]json.RawMessage
	err       error
	proved    []prover.Request
	verified  int
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{responses: make(map[string]json.RawMessage)}
}

func (f *fakeRelay) Prove(_ context.Context, req prover.Request) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proved = append(f.proved, req)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"data":"web-proof"}`), nil
}

func (f *fakeRelay) Verify(_ context.Context, proof json.RawMessage) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified++
	if resp, ok := f.responses[strings.TrimSpace(string(proof))]; ok {
		return resp, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	return nil, apperror.Upstream(400, "Verification failed: 400 - invalid proof")
}

// searchVerification is a prover verify response for a merged-PR search
// proof of username in owner/repo that found count PRs.
func searchVerification(owner, repo, username string, count int) json.RawMessage {
	reqBody, _ := json.Marshal(map[string]any{"query": prover.MergedPRCountQuery(owner, repo, username)})
	out, _ := json.Marshal(map[string]any{
		"request": map[string]any{
			"url":    prover.GitHubGraphQLURL,
			"method": "POST",
			"body":   string(reqBody),
		},
		"response": map[string]any{
			"status": 200,
			"body":   fmt.Sprintf(`{"data":{"search":{"issueCount":%d}}}`, count),
		},
	})
	return out
}

// fakeRepo is an in-memory repository.ContributionRepository.
type fakeRepo struct {
	mu     sync.Mutex
	rows   map[string]*model.VerifiedContribution
	nextID int
	err    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]*model.VerifiedContribution)}
}

func key(username, owner, name string) string {
	return strings.ToLower(username) + "|" + owner + "|" + name
}

func (f *fakeRepo) Upsert(_ context.Context, c *model.VerifiedContribution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	now := time.Now()
	k := key(c.GitHubUsername, c.RepoOwner, c.RepoName)
	if existing, ok := f.rows[k]; ok {
		c.ID = existing.ID
		c.GitHubUsername = existing.GitHubUsername
		c.CreatedAt = existing.CreatedAt
	} else {
		f.nextID++
		c.ID = fmt.Sprintf("fake-%d", f.nextID)
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	stored := *c
	f.rows[k] = &stored
	return nil
}

func (f *fakeRepo) ListPublic(context.Context) ([]model.VerifiedContribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []model.VerifiedContribution{}
	for _, r := range f.rows {
		c := *r
		c.Proof = nil
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeRepo) ListByUsername(_ context.Context, username string) ([]model.VerifiedContribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []model.VerifiedContribution{}
	for _, r := range f.rows {
		if strings.EqualFold(r.GitHubUsername, username) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRepo) Get(_ context.Context, username, owner, name string) (*model.VerifiedContribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[key(username, owner, name)]
	if !ok {
		return nil, apperror.NotFound("contribution", key(username, owner, name))
	}
	c := *r
	return &c, nil
}

func searchRow(username, owner, name string, count int, proof json.RawMessage) *model.VerifiedContribution {
	return &model.VerifiedContribution{
		GitHubUsername:    username,
		RepoOwner:         owner,
		RepoName:          name,
		ContributionCount: count,
		Proof:             proof,
		ProofDigest:       Digest(proof),
	}
}
