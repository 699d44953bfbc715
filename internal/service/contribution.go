package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/sakif/webproof-contributors/internal/apperror"
	"github.com/sakif/webproof-contributors/internal/model"
	"github.com/sakif/webproof-contributors/internal/normalize"
	"github.com/sakif/webproof-contributors/internal/repository"
)

const (
	msgTableMissing     = "Database table not found. Please run the schema migration first (webproofs migrate)."
	msgConnectionFailed = "Database connection failed. Please check your DATABASE_URL environment variable."
	msgDatabaseError    = "Database error. The request could not be completed."
)

// ContributionService verifies uploaded proofs and manages stored results.
type ContributionService struct {
	verifier   Verifier
	repo       repository.ContributionRepository
	normalizer *normalize.Normalizer
	logger     *slog.Logger
}

func NewContributionService(v Verifier, repo repository.ContributionRepository, logger *slog.Logger) *ContributionService {
	return &ContributionService{
		verifier:   v,
		repo:       repo,
		normalizer: normalize.New(logger),
		logger:     logger,
	}
}

// Upload verifies proof, checks that it attests contributions by username,
// and stores the result. Re-uploading for the same user and repository
// overwrites the earlier row.
func (s *ContributionService) Upload(ctx context.Context, proof json.RawMessage, username string) (*model.VerifiedContribution, error) {
	if isMissing(proof) {
		return nil, apperror.ValidationFailed("proof", "Proof is required")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "GitHub username is required")
	}

	raw, err := s.verifier.Verify(ctx, proof)
	if err != nil {
		return nil, fmt.Errorf("service/contribution: verifying proof for %s: %w", username, err)
	}

	verification, err := normalize.ParseVerification(raw)
	if err != nil {
		return nil, apperror.ValidationFailed("proof", "Could not parse the verification response")
	}

	repo := s.normalizer.ExtractRepoInfo(verification)
	if !repo.Complete() {
		return nil, apperror.ValidationFailed("proof", "Could not extract repository information from verification response")
	}

	body := verification.ResponseBody()
	if body == "" {
		return nil, apperror.ValidationFailed("proof", "Verification response does not contain contributor data")
	}

	rec := s.normalizer.Normalize(body, username)
	if rec == nil || !strings.EqualFold(rec.Username, username) {
		s.logger.Info("proof carries no contributions for user",
			slog.String("username", username),
			slog.String("repo", repo.Owner+"/"+repo.Name),
		)
		return nil, apperror.NoData(fmt.Sprintf("No contributions found for username: %s", username))
	}

	c := &model.VerifiedContribution{
		GitHubUsername:    rec.Username,
		RepoOwner:         repo.Owner,
		RepoName:          repo.Name,
		ContributionCount: rec.Contributions,
		Proof:             proof,
		ProofDigest:       Digest(proof),
		AvatarURL:         rec.Avatar,
		GitHubURL:         rec.GitHubURL,
	}
	if err := s.repo.Upsert(ctx, c); err != nil {
		s.logger.Error("storing contribution failed",
			slog.String("username", rec.Username),
			slog.String("error", err.Error()),
		)
		return nil, classifyStoreError(err)
	}

	s.logger.Info("contribution verified",
		slog.String("id", c.ID),
		slog.String("username", c.GitHubUsername),
		slog.String("repo", c.RepoOwner+"/"+c.RepoName),
		slog.Int("count", c.ContributionCount),
	)
	return c, nil
}

// ListVerified returns every stored contribution in public form.
func (s *ContributionService) ListVerified(ctx context.Context) ([]model.PublicContributor, error) {
	rows, err := s.repo.ListPublic(ctx)
	if err != nil {
		s.logger.Error("listing contributions failed", slog.String("error", err.Error()))
		return nil, classifyStoreError(err)
	}

	out := make([]model.PublicContributor, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Public())
	}
	return out, nil
}

// ListOwned returns the stored contributions of a GitHub login, proofs
// included.
func (s *ContributionService) ListOwned(ctx context.Context, login string) ([]model.OwnedContribution, error) {
	if strings.TrimSpace(login) == "" {
		return nil, apperror.Forbidden("authentication required")
	}

	rows, err := s.repo.ListByUsername(ctx, login)
	if err != nil {
		return nil, classifyStoreError(err)
	}

	out := make([]model.OwnedContribution, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Owned())
	}
	return out, nil
}

// Digest is the hex BLAKE2b-256 digest of a proof.
func Digest(proof []byte) string {
	sum := blake2b.Sum256(proof)
	return hex.EncodeToString(sum[:])
}

// classifyStoreError turns a storage failure into a persistence error whose
// message tells the operator what to fix.
func classifyStoreError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	msg := err.Error()
	switch {
	case containsAny(msg, "does not exist", "no such table", "relation"):
		return apperror.Persistence(msgTableMissing, err)
	case containsAny(msg, "connection", "connect", "DATABASE_URL"):
		return apperror.Persistence(msgConnectionFailed, err)
	default:
		return apperror.Persistence(msgDatabaseError, err)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
