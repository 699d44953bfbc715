// Package normalize turns the GitHub responses carried inside verified
// web-proofs into canonical contributor records, and recovers the repository
// a proof was made against.
//
// Nothing in this package returns an error or panics. An unrecognized payload
// yields a nil record or an empty RepoInfo, and the caller decides what
// "no data" means for it.
package normalize

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/sakif/webproof-contributors/internal/model"
)

// unknownUser is the username used when neither the payload nor the caller
// supplies one.
const unknownUser = "unknown"

// shape is the closed set of upstream payloads the normalizer recognizes.
// Classification walks them in declaration order and the first match wins.
type shape int

const (
	shapeNone shape = iota
	shapeErrors
	shapeSearchCount
	shapeTotalCount
	shapePRNodes
	shapeContributors
	shapeCommits
)

func (s shape) String() string {
	switch s {
	case shapeErrors:
		return "errors"
	case shapeSearchCount:
		return "search_count"
	case shapeTotalCount:
		return "total_count"
	case shapePRNodes:
		return "pr_nodes"
	case shapeContributors:
		return "contributors"
	case shapeCommits:
		return "commits"
	default:
		return "none"
	}
}

// envelope is a GraphQL response. The lenient field types distinguish
// "absent" from zero: an empty nodes list is present, a null totalCount is
// not.
type envelope struct {
	Errors json.RawMessage      `json:"errors"`
	Data   object[envelopeData] `json:"data"`
}

type envelopeData struct {
	Search     object[searchResult] `json:"search"`
	Repository object[repository]   `json:"repository"`
}

type searchResult struct {
	IssueCount jsonCount `json:"issueCount"`
}

type repository struct {
	PullRequests object[pullRequests] `json:"pullRequests"`
}

type pullRequests struct {
	TotalCount jsonCount    `json:"totalCount"`
	Nodes      list[prNode] `json:"nodes"`
}

type prNode struct {
	Author object[prAuthor] `json:"author"`
}

type prAuthor struct {
	Login     jsonString `json:"login"`
	AvatarURL jsonString `json:"avatarUrl"`
	URL       jsonString `json:"url"`
}

// legacyEntry covers both REST list shapes: /contributors and /commits.
type legacyEntry struct {
	Login         jsonString         `json:"login"`
	Contributions jsonCount          `json:"contributions"`
	AvatarURL     jsonString         `json:"avatar_url"`
	HTMLURL       jsonString         `json:"html_url"`
	SHA           jsonString         `json:"sha"`
	Commit        json.RawMessage    `json:"commit"`
	Author        object[legacyUser] `json:"author"`
	Committer     object[legacyUser] `json:"committer"`
}

type legacyUser struct {
	Login     jsonString `json:"login"`
	AvatarURL jsonString `json:"avatar_url"`
}

func (e legacyEntry) isCommit() bool {
	return e.SHA != "" || (len(e.Commit) > 0 && !bytes.Equal(e.Commit, jsonNull))
}

// payload is a decoded response body, either an object or a legacy array.
type payload struct {
	env    *envelope
	legacy []legacyEntry
}

func (p *payload) classify() shape {
	if p.legacy != nil {
		if len(p.legacy) == 0 {
			return shapeNone
		}
		first := p.legacy[0]
		switch {
		case first.Login != "":
			return shapeContributors
		case first.isCommit():
			return shapeCommits
		}
		return shapeNone
	}

	env := p.env
	if hasErrors(env.Errors) {
		return shapeErrors
	}
	data := env.Data.v
	if data == nil {
		return shapeNone
	}
	if s := data.Search.v; s != nil && s.IssueCount.set {
		return shapeSearchCount
	}
	if r := data.Repository.v; r != nil && r.PullRequests.v != nil {
		prs := r.PullRequests.v
		if prs.TotalCount.set {
			return shapeTotalCount
		}
		if prs.Nodes.set {
			return shapePRNodes
		}
	}
	return shapeNone
}

func hasErrors(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var errs []json.RawMessage
	if err := json.Unmarshal(raw, &errs); err != nil {
		return false
	}
	return len(errs) > 0
}

// Normalizer maps upstream payloads to contributor records. The zero value is
// not usable; call New.
type Normalizer struct {
	logger *slog.Logger
}

// New returns a Normalizer that reports skipped payloads at debug level.
// A nil logger discards them.
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Normalizer{logger: logger}
}

var quiet = New(nil)

// Normalize is Normalizer.Normalize without logging.
func Normalize(body any, fallbackUsername string) *model.ContributorRecord {
	return quiet.Normalize(body, fallbackUsername)
}

// Normalize converts body into a ContributorRecord. body may be a JSON
// string, raw bytes, or an already decoded value. fallbackUsername is used
// when the payload carries no author identity; an empty fallback means none
// was given. It returns nil when the payload is unrecognized, reports an
// upstream error, or counts zero contributions.
func (n *Normalizer) Normalize(body any, fallbackUsername string) *model.ContributorRecord {
	p, ok := decode(body)
	if !ok {
		n.logger.Debug("normalize: payload is not valid JSON")
		return nil
	}

	s := p.classify()
	var rec *model.ContributorRecord
	switch s {
	case shapeSearchCount:
		rec = fromCount(p.env.Data.v.Search.v.IssueCount.n, fallbackUsername)
	case shapeTotalCount:
		rec = fromCount(p.env.Data.v.Repository.v.PullRequests.v.TotalCount.n, fallbackUsername)
	case shapePRNodes:
		rec = fromPRNodes(p.env.Data.v.Repository.v.PullRequests.v.Nodes.items, fallbackUsername)
	case shapeContributors:
		rec = fromContributors(p.legacy, fallbackUsername)
	case shapeCommits:
		rec = fromCommits(p.legacy, fallbackUsername)
	}

	if rec == nil {
		n.logger.Debug("normalize: no contributor record",
			slog.String("shape", s.String()),
			slog.String("fallback", fallbackUsername),
		)
	}
	return rec
}

func decode(body any) (*payload, bool) {
	var raw []byte
	switch v := body.(type) {
	case nil:
		return nil, false
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		raw = b
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false
	}

	if raw[0] == '[' {
		legacy, ok := decodeList[legacyEntry](raw)
		if !ok {
			return nil, false
		}
		return &payload{legacy: legacy}, true
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	return &payload{env: &env}, true
}

func derived(username string, contributions int) *model.ContributorRecord {
	return &model.ContributorRecord{
		Username:      username,
		Contributions: contributions,
		Avatar:        model.AvatarURL(username),
		GitHubURL:     model.ProfileURL(username),
	}
}

func orUnknown(username string) string {
	if username == "" {
		return unknownUser
	}
	return username
}

// fromCount handles responses that carry only a count. The author filter
// lives in the query, so the caller's username is authoritative.
func fromCount(count int, fallback string) *model.ContributorRecord {
	if count <= 0 {
		return nil
	}
	return derived(orUnknown(fallback), count)
}

func fromPRNodes(nodes []prNode, fallback string) *model.ContributorRecord {
	if len(nodes) == 0 {
		return nil
	}

	matched := nodes
	if fallback != "" {
		matched = make([]prNode, 0, len(nodes))
		for _, pr := range nodes {
			if a := pr.Author.v; a != nil && strings.EqualFold(string(a.Login), fallback) {
				matched = append(matched, pr)
			}
		}
	}
	if len(matched) == 0 {
		return nil
	}

	author := matched[0].Author.v
	if author == nil || author.Login == "" {
		return derived(orUnknown(fallback), len(matched))
	}

	rec := derived(string(author.Login), len(matched))
	if author.AvatarURL != "" {
		rec.Avatar = string(author.AvatarURL)
	}
	if author.URL != "" {
		rec.GitHubURL = string(author.URL)
	}
	return rec
}

func fromContributors(entries []legacyEntry, fallback string) *model.ContributorRecord {
	target := entries[0]
	if fallback != "" {
		for _, e := range entries {
			if e.Login != "" && strings.EqualFold(string(e.Login), fallback) {
				target = e
				break
			}
		}
	}

	count := target.Contributions.n
	if count == 0 {
		count = len(entries)
	}

	rec := derived(string(target.Login), count)
	if target.AvatarURL != "" {
		rec.Avatar = string(target.AvatarURL)
	}
	if target.HTMLURL != "" {
		rec.GitHubURL = string(target.HTMLURL)
	}
	return rec
}

func fromCommits(entries []legacyEntry, fallback string) *model.ContributorRecord {
	first := entries[0]
	author, committer := first.Author.v, first.Committer.v

	username := fallback
	if username == "" && author != nil {
		username = string(author.Login)
	}
	if username == "" && committer != nil {
		username = string(committer.Login)
	}
	username = orUnknown(username)

	rec := derived(username, len(entries))
	switch {
	case author != nil && author.AvatarURL != "":
		rec.Avatar = string(author.AvatarURL)
	case committer != nil && committer.AvatarURL != "":
		rec.Avatar = string(committer.AvatarURL)
	}
	return rec
}
