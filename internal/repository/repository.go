// Package repository declares the storage contract for verified
// contributions. The sqlite and postgres subpackages implement it.
package repository

import (
	"context"

	"github.com/sakif/webproof-contributors/internal/model"
)

// Table is the single table both stores use.
const Table = "verified_contributions"

// ContributionRepository stores at most one row per
// (GitHubUsername, RepoOwner, RepoName). GitHubUsername compares without
// regard to case; RepoOwner and RepoName compare exactly.
type ContributionRepository interface {
	// Upsert inserts c, or overwrites the count, proof, digest, avatar and
	// profile URL of the existing row for the same triple. ID, CreatedAt
	// and the stored username casing of an existing row are kept. c is updated in place from the stored row.
	Upsert(ctx context.Context, c *model.VerifiedContribution) error

	// ListPublic returns every row, highest count first, then newest first.
	// Proof is left empty.
	ListPublic(ctx context.Context) ([]model.VerifiedContribution, error)

	// ListByUsername returns the rows of one GitHub user, proof included.
	// The username match is case-insensitive.
	ListByUsername(ctx context.Context, username string) ([]model.VerifiedContribution, error)

	// Get returns the row for the triple, or an apperror.ErrNotFound.
	Get(ctx context.Context, username, owner, name string) (*model.VerifiedContribution, error)
}

// Store is a ContributionRepository with a managed schema and connection.
type Store interface {
	ContributionRepository
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
