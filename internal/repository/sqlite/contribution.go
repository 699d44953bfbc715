package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/webproof-contributors/internal/apperror"
	"github.com/sakif/webproof-contributors/internal/model"
	"github.com/sakif/webproof-contributors/internal/repository"
)

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

const selectColumns = `id, github_username, repo_owner, repo_name, contribution_count,
	proof, proof_digest, avatar_url, github_url, created_at, updated_at`

// Upsert writes c and reads the stored row back inside one transaction, so
// a concurrent upload for the same triple cannot slip in between. The
// conflict target is the UNIQUE (github_username, repo_owner, repo_name)
// constraint; github_username is NOCASE, so the first casing stored wins and
// the generated id is discarded on the update path.
func (db *DB) Upsert(ctx context.Context, c *model.VerifiedContribution) error {
	now := time.Now().UTC()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning upsert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO verified_contributions (
			id, github_username, repo_owner, repo_name, contribution_count,
			proof, proof_digest, avatar_url, github_url, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (github_username, repo_owner, repo_name) DO UPDATE SET
			contribution_count = excluded.contribution_count,
			proof              = excluded.proof,
			proof_digest       = excluded.proof_digest,
			avatar_url         = excluded.avatar_url,
			github_url         = excluded.github_url,
			updated_at         = excluded.updated_at`,
		xid.New().String(),
		c.GitHubUsername,
		c.RepoOwner,
		c.RepoName,
		c.ContributionCount,
		string(c.Proof),
		c.ProofDigest,
		c.AvatarURL,
		c.GitHubURL,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting %s on %s/%s: %w", c.GitHubUsername, c.RepoOwner, c.RepoName, err)
	}

	stored, err := scanContribution(tx.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM verified_contributions
		 WHERE github_username = ? AND repo_owner = ? AND repo_name = ?`,
		c.GitHubUsername, c.RepoOwner, c.RepoName,
	))
	if err != nil {
		return fmt.Errorf("sqlite: reading back %s on %s/%s: %w", c.GitHubUsername, c.RepoOwner, c.RepoName, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing upsert: %w", err)
	}
	*c = *stored

	db.logger.Debug("contribution stored",
		slog.String("id", c.ID),
		slog.String("username", c.GitHubUsername),
		slog.Int("count", c.ContributionCount),
	)
	return nil
}

// Get returns the row for the triple. The username match ignores case.
func (db *DB) Get(ctx context.Context, username, owner, name string) (*model.VerifiedContribution, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM verified_contributions
		 WHERE github_username = ? AND repo_owner = ? AND repo_name = ?`,
		username, owner, name,
	)

	c, err := scanContribution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("contribution", fmt.Sprintf("%s/%s/%s", username, owner, name))
		}
		return nil, fmt.Errorf("sqlite: getting contribution %s/%s/%s: %w", username, owner, name, err)
	}
	return c, nil
}

// ListPublic returns every row without its proof.
func (db *DB) ListPublic(ctx context.Context) ([]model.VerifiedContribution, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, github_username, repo_owner, repo_name, contribution_count,
			'', proof_digest, avatar_url, github_url, created_at, updated_at
		 FROM verified_contributions
		 ORDER BY contribution_count DESC, created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing contributions: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

// ListByUsername returns one user's rows, proof included.
func (db *DB) ListByUsername(ctx context.Context, username string) ([]model.VerifiedContribution, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM verified_contributions
		 WHERE github_username = ? COLLATE NOCASE
		 ORDER BY contribution_count DESC, created_at DESC`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing contributions for %s: %w", username, err)
	}
	defer rows.Close()

	return collect(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContribution(s scanner) (*model.VerifiedContribution, error) {
	var (
		c     model.VerifiedContribution
		proof string
	)
	err := s.Scan(
		&c.ID,
		&c.GitHubUsername,
		&c.RepoOwner,
		&c.RepoName,
		&c.ContributionCount,
		&proof,
		&c.ProofDigest,
		&c.AvatarURL,
		&c.GitHubURL,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if proof != "" {
		c.Proof = json.RawMessage(proof)
	}
	return &c, nil
}

func collect(rows *sql.Rows) ([]model.VerifiedContribution, error) {
	result := []model.VerifiedContribution{}
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning contribution: %w", err)
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating contributions: %w", err)
	}
	return result, nil
}
