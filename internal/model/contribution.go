// Package model holds the data types shared across layers.
//
// JSON tags use camelCase to match what the browser client expects.
// The db tags document the column each field maps to.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ContributorRecord is the canonical shape every upstream GitHub response is
// normalized into. It is never stored directly.
type ContributorRecord struct {
	Username      string `json:"username"`
	Contributions int    `json:"contributions"`
	Avatar        string `json:"avatar"`
	GitHubURL     string `json:"githubUrl"`
}

// VerifiedContribution is one row of the verified_contributions table.
// There is at most one row per (GitHubUsername, RepoOwner, RepoName).
//
// Proof is never serialized here; OwnedContribution exposes it to the owner.
type VerifiedContribution struct {
	ID                string          `json:"id"                db:"id"`
	GitHubUsername    string          `json:"githubUsername"    db:"github_username"`
	RepoOwner         string          `json:"repoOwner"         db:"repo_owner"`
	RepoName          string          `json:"repoName"          db:"repo_name"`
	ContributionCount int             `json:"contributionCount" db:"contribution_count"`
	Proof             json.RawMessage `json:"-"                 db:"proof"`
	ProofDigest       string          `json:"proofDigest"       db:"proof_digest"`
	AvatarURL         string          `json:"avatarUrl,omitempty" db:"avatar_url"`
	GitHubURL         string          `json:"githubUrl,omitempty" db:"github_url"`
	CreatedAt         time.Time       `json:"createdAt"         db:"created_at"`
	UpdatedAt         time.Time       `json:"updatedAt"         db:"updated_at"`
}

// OwnedContribution is a stored row as seen by the GitHub user it belongs to.
type OwnedContribution struct {
	VerifiedContribution
	Proof json.RawMessage `json:"proof"`
}

// Owned wraps c so its proof is included in JSON output.
func (c VerifiedContribution) Owned() OwnedContribution {
	return OwnedContribution{VerifiedContribution: c, Proof: c.Proof}
}

// PublicContributor is the public read model for a verified contribution.
type PublicContributor struct {
	Username      string `json:"username"`
	Contributions int    `json:"contributions"`
	Avatar        string `json:"avatar"`
	GitHubURL     string `json:"githubUrl"`
	Verified      bool   `json:"verified"`
	RepoOwner     string `json:"repoOwner,omitempty"`
	RepoName      string `json:"repoName,omitempty"`
	RepoURL       string `json:"repoUrl,omitempty"`
}

// NewPublicContributor combines a normalized record with the repository it
// was proven against. The repo URL is only set when both parts are known.
func NewPublicContributor(rec ContributorRecord, owner, name string) PublicContributor {
	pc := PublicContributor{
		Username:      rec.Username,
		Contributions: rec.Contributions,
		Avatar:        rec.Avatar,
		GitHubURL:     rec.GitHubURL,
		Verified:      true,
		RepoOwner:     owner,
		RepoName:      name,
	}
	if owner != "" && name != "" {
		pc.RepoURL = RepoURL(owner, name)
	}
	return pc
}

// Public converts a stored row to its public shape, deriving the avatar and
// profile URL from the username when none was stored.
func (c VerifiedContribution) Public() PublicContributor {
	avatar := c.AvatarURL
	if avatar == "" {
		avatar = AvatarURL(c.GitHubUsername)
	}
	profile := c.GitHubURL
	if profile == "" {
		profile = ProfileURL(c.GitHubUsername)
	}
	return NewPublicContributor(ContributorRecord{
		Username:      c.GitHubUsername,
		Contributions: c.ContributionCount,
		Avatar:        avatar,
		GitHubURL:     profile,
	}, c.RepoOwner, c.RepoName)
}

// BatchResult is the outcome of verifying every stored proof document.
type BatchResult struct {
	Contributors   []PublicContributor `json:"contributors"`
	TotalVerified  int                 `json:"totalVerified"`
	FilesProcessed int                 `json:"filesProcessed"`
	Message        string              `json:"message,omitempty"`
}

func AvatarURL(username string) string {
	return fmt.Sprintf("https://github.com/%s.png", username)
}

func ProfileURL(username string) string {
	return fmt.Sprintf("https://github.com/%s", username)
}

func RepoURL(owner, name string) string {
	return fmt.Sprintf("https://github.com/%s/%s", owner, name)
}
