package handler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakif/webproof-contributors/internal/auth"
	"github.com/sakif/webproof-contributors/internal/handler"
	"github.com/sakif/webproof-contributors/internal/model"
	"github.com/sakif/webproof-contributors/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type mockProofs struct {
	captured  service.ProveInput
	verified  json.RawMessage
	proveRes  json.RawMessage
	verifyRes json.RawMessage
	returnErr error
}

func (m *mockProofs) Prove(_ context.Context, in service.ProveInput) (json.RawMessage, error) {
	m.captured = in
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return m.proveRes, nil
}

func (m *mockProofs) Verify(_ context.Context, proof json.RawMessage) (json.RawMessage, error) {
	m.verified = proof
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return m.verifyRes, nil
}

type mockContributions struct {
	uploadedProof json.RawMessage
	uploadedUser  string
	ownedLogin    string
	stored        *model.VerifiedContribution
	public        []model.PublicContributor
	owned         []model.OwnedContribution
	returnErr     error
}

func (m *mockContributions) Upload(_ context.Context, proof json.RawMessage, username string) (*model.VerifiedContribution, error) {
	m.uploadedProof = proof
	m.uploadedUser = username
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return m.stored, nil
}

func (m *mockContributions) ListVerified(context.Context) ([]model.PublicContributor, error) {
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return m.public, nil
}

func (m *mockContributions) ListOwned(_ context.Context, login string) ([]model.OwnedContribution, error) {
	m.ownedLogin = login
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return m.owned, nil
}

var (
	_ handler.ProofService        = (*mockProofs)(nil)
	_ handler.ContributionService = (*mockContributions)(nil)
)

func post(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(req *http.Request, login string) *http.Request {
	return req.WithContext(auth.WithLogin(req.Context(), login))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var res handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	return res
}
