// Package postgres implements the contribution store on PostgreSQL through
// the pgx database/sql driver. Unlike the SQLite store it does not migrate on
// open; run `webproofs migrate` once against a new database.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/xid"

	"github.com/sakif/webproof-contributors/internal/apperror"
	"github.com/sakif/webproof-contributors/internal/model"
	"github.com/sakif/webproof-contributors/internal/repository"
)

//go:embed schema.sql
var schema string

var _ repository.Store = (*DB)(nil)

// DB wraps the pgx-backed connection pool.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// New connects to the database named by dsn, a postgres:// URL.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening database: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("postgres: connection to DATABASE_URL failed: %w", err)
	}

	logger.Debug("postgres store ready")
	return &DB{conn: conn, logger: logger}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Migrate creates the table and indexes if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: creating verified_contributions table: %w", err)
	}
	db.logger.Info("database schema is up to date")
	return nil
}

const returningColumns = `id, github_username, repo_owner, repo_name, contribution_count,
	proof, proof_digest, COALESCE(avatar_url, ''), COALESCE(github_url, ''), created_at, updated_at`

// Upsert writes c with a single INSERT ... ON CONFLICT statement and reads
// the stored row back through RETURNING. The conflict target is the
// LOWER(github_username) unique index; the first casing stored is kept.
func (db *DB) Upsert(ctx context.Context, c *model.VerifiedContribution) error {
	row := db.conn.QueryRowContext(ctx,
		`INSERT INTO verified_contributions (
			id, github_username, repo_owner, repo_name, contribution_count,
			proof, proof_digest, avatar_url, github_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, NULLIF($8, ''), NULLIF($9, ''), NOW(), NOW())
		ON CONFLICT (LOWER(github_username), repo_owner, repo_name) DO UPDATE SET
			contribution_count = EXCLUDED.contribution_count,
			proof              = EXCLUDED.proof,
			proof_digest       = EXCLUDED.proof_digest,
			avatar_url         = EXCLUDED.avatar_url,
			github_url         = EXCLUDED.github_url,
			updated_at         = NOW()
		RETURNING `+returningColumns,
		xid.New().String(),
		c.GitHubUsername,
		c.RepoOwner,
		c.RepoName,
		c.ContributionCount,
		string(c.Proof),
		c.ProofDigest,
		c.AvatarURL,
		c.GitHubURL,
	)

	stored, err := scanContribution(row)
	if err != nil {
		return fmt.Errorf("postgres: upserting %s on %s/%s: %w", c.GitHubUsername, c.RepoOwner, c.RepoName, err)
	}
	*c = *stored
	return nil
}

func (db *DB) Get(ctx context.Context, username, owner, name string) (*model.VerifiedContribution, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+returningColumns+` FROM verified_contributions
		 WHERE LOWER(github_username) = LOWER($1) AND repo_owner = $2 AND repo_name = $3`,
		username, owner, name,
	)
	c, err := scanContribution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("contribution", fmt.Sprintf("%s/%s/%s", username, owner, name))
		}
		return nil, fmt.Errorf("postgres: getting contribution %s/%s/%s: %w", username, owner, name, err)
	}
	return c, nil
}

func (db *DB) ListPublic(ctx context.Context) ([]model.VerifiedContribution, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, github_username, repo_owner, repo_name, contribution_count,
			'null'::jsonb, proof_digest, COALESCE(avatar_url, ''), COALESCE(github_url, ''), created_at, updated_at
		 FROM verified_contributions
		 ORDER BY contribution_count DESC, created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing contributions: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func (db *DB) ListByUsername(ctx context.Context, username string) ([]model.VerifiedContribution, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+returningColumns+` FROM verified_contributions
		 WHERE LOWER(github_username) = LOWER($1)
		 ORDER BY contribution_count DESC, created_at DESC`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing contributions for %s: %w", username, err)
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
		proof []byte
	)
	if err := s.Scan(
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
	); err != nil {
		return nil, err
	}
	if len(proof) > 0 && string(proof) != "null" {
		c.Proof = json.RawMessage(proof)
	}
	return &c, nil
}

func collect(rows *sql.Rows) ([]model.VerifiedContribution, error) {
	result := []model.VerifiedContribution{}
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning contribution: %w", err)
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating contributions: %w", err)
	}
	return result, nil
}
