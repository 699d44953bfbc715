package normalize

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

var (
	searchRepoPattern   = regexp.MustCompile(`repo:([^/\s"']+)/([^\s"']+)`)
	contributorsPattern = regexp.MustCompile(`/repos/([^/]+)/([^/]+)/contributors`)
	commitsPattern      = regexp.MustCompile(`/repos/([^/]+)/([^/]+)/commits`)
)

// RepoInfo identifies the GitHub repository a proof was made against.
// Either field may be empty when it could not be recovered.
type RepoInfo struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// Complete reports whether both owner and name are known.
func (r RepoInfo) Complete() bool {
	return r.Owner != "" && r.Name != ""
}

// ExtractRepoInfo is Normalizer.ExtractRepoInfo without logging.
func ExtractRepoInfo(v *Verification) RepoInfo {
	return quiet.ExtractRepoInfo(v)
}

// ExtractRepoInfo recovers the repository from a verification. It looks, in
// order, at GraphQL variables owner and name, at a repo:<owner>/<name>
// qualifier in the GraphQL query, and at a REST /repos/<owner>/<name>/...
// path in the response URL or else the request URL.
func (n *Normalizer) ExtractRepoInfo(v *Verification) RepoInfo {
	var info RepoInfo
	if v == nil {
		return info
	}

	if v.Request != nil && v.Request.Body != "" {
		info = n.fromGraphQLBody(string(v.Request.Body))
	}
	if info.Complete() {
		return info
	}

	url := ""
	switch {
	case v.Response != nil && v.Response.URL != "":
		url = v.Response.URL
	case v.Request != nil && v.Request.URL != "":
		url = v.Request.URL
	}
	if url != "" {
		if m := contributorsPattern.FindStringSubmatch(url); m != nil {
			info = RepoInfo{Owner: m[1], Name: m[2]}
		} else if m := commitsPattern.FindStringSubmatch(url); m != nil {
			info = RepoInfo{Owner: m[1], Name: m[2]}
		}
	}

	if !info.Complete() {
		n.logger.Debug("extract: repository not found", slog.String("url", url))
	}
	return info
}

type repoVariables struct {
	Owner jsonString `json:"owner"`
	Name  jsonString `json:"name"`
}

func (n *Normalizer) fromGraphQLBody(body string) RepoInfo {
	var req struct {
		Query     jsonString            `json:"query"`
		Variables object[repoVariables] `json:"variables"`
	}
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return RepoInfo{}
	}

	var info RepoInfo
	if vars := req.Variables.v; vars != nil {
		info = RepoInfo{Owner: string(vars.Owner), Name: string(vars.Name)}
	}
	if info.Complete() {
		return info
	}

	query := string(req.Query)
	if query == "" {
		return info
	}
	m := searchRepoPattern.FindStringSubmatch(query)
	if m == nil {
		n.logger.Debug("extract: no repo qualifier in query", slog.String("query", truncate(query, 100)))
		return info
	}
	return RepoInfo{
		Owner: m[1],
		Name:  strings.TrimSpace(strings.NewReplacer(`"`, "", `'`, "").Replace(m[2])),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
