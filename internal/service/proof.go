// Package service holds the business logic between the HTTP handlers and the
// prover relay and store. Nothing here knows about HTTP.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/webproof-contributors/internal/apperror"
	"github.com/sakif/webproof-contributors/internal/prover"
)

// Prover produces web-proofs. *prover.Relay implements it.
type Prover interface {
	Prove(ctx context.Context, req prover.Request) (json.RawMessage, error)
}

// Verifier checks web-proofs. *prover.Relay implements it.
type Verifier interface {
	Verify(ctx context.Context, proof json.RawMessage) (json.RawMessage, error)
}

// ProveInput describes what to prove. Query takes precedence over URL; when
// both are empty, Owner, Repo and Username build a merged-PR count query.
type ProveInput struct {
	Query       string         `json:"query"`
	Variables   map[string]any `json:"variables"`
	GitHubToken string         `json:"githubToken"`

	URL     string   `json:"url"`
	Headers []string `json:"headers"`

	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Username string `json:"username"`
}

// ProofService relays prove and verify calls.
type ProofService struct {
	prover   Prover
	verifier Verifier
	logger   *slog.Logger
}

func NewProofService(p Prover, v Verifier, logger *slog.Logger) *ProofService {
	return &ProofService{prover: p, verifier: v, logger: logger}
}

// Prove builds the notarization request for in and returns the prover's
// web-proof verbatim.
func (s *ProofService) Prove(ctx context.Context, in ProveInput) (json.RawMessage, error) {
	req, err := buildRequest(in)
	if err != nil {
		return nil, err
	}

	proof, err := s.prover.Prove(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("service/proof: proving %s: %w", req.URL, err)
	}
	return proof, nil
}

func buildRequest(in ProveInput) (prover.Request, error) {
	switch {
	case strings.TrimSpace(in.Query) != "":
		return prover.GraphQLRequest(in.Query, in.Variables, in.GitHubToken)
	case strings.TrimSpace(in.URL) != "":
		return prover.RESTRequest(strings.TrimSpace(in.URL), in.Headers), nil
	}

	owner := strings.TrimSpace(in.Owner)
	repo := strings.TrimSpace(in.Repo)
	username := strings.TrimSpace(in.Username)
	if owner != "" && repo != "" && username != "" {
		return prover.GraphQLRequest(prover.MergedPRCountQuery(owner, repo, username), nil, in.GitHubToken)
	}

	return prover.Request{}, apperror.ValidationFailed("query", "Either query (GraphQL) or url (REST) must be provided")
}

// Verify sends proof to the prover and returns its verification verbatim.
func (s *ProofService) Verify(ctx context.Context, proof json.RawMessage) (json.RawMessage, error) {
	if isMissing(proof) {
		return nil, apperror.ValidationFailed("proof", "Proof is required")
	}

	result, err := s.verifier.Verify(ctx, proof)
	if err != nil {
		return nil, fmt.Errorf("service/proof: verifying: %w", err)
	}
	return result, nil
}

// isMissing reports whether a proof value is absent or a JSON falsy literal.
func isMissing(proof json.RawMessage) bool {
	switch string(bytes.TrimSpace(proof)) {
	case "", "null", `""`, "false", "0":
		return true
	}
	return false
}
