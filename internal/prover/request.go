// Package prover talks to the external web-prover service. It builds the
// notarization requests for GitHub's GraphQL and REST APIs and relays prove
// and verify calls, returning the prover's JSON verbatim.
package prover

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sakif/webproof-contributors/internal/apperror"
)

const (
	// GitHubGraphQLURL is the endpoint GraphQL proofs are made against.
	GitHubGraphQLURL = "https://api.github.com/graphql"

	userAgent = "User-Agent: Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36"
	acceptGH  = "Accept: application/vnd.github+json"
)

// Request is the HTTP request the prover performs and notarizes.
// Headers use the "Name: value" form the prover expects.
type Request struct {
	URL     string   `json:"url"`
	Method  string   `json:"method,omitempty"`
	Headers []string `json:"headers"`
	Body    string   `json:"body,omitempty"`
}

// GraphQLRequest builds a POST to GitHub's GraphQL API. Variables are sent
// only when non-empty; the token, if any, becomes a bearer header.
func GraphQLRequest(query string, variables map[string]any, githubToken string) (Request, error) {
	if strings.TrimSpace(query) == "" {
		return Request{}, apperror.ValidationFailed("query", "GraphQL query is required")
	}

	body := map[string]any{"query": query}
	if len(variables) > 0 {
		body["variables"] = variables
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return Request{}, apperror.ValidationFailed("variables", fmt.Sprintf("Invalid GraphQL variables: %v", err))
	}

	headers := []string{userAgent, "Content-Type: application/json", acceptGH}
	if githubToken != "" {
		headers = append(headers, "Authorization: Bearer "+githubToken)
	}

	return Request{
		URL:     GitHubGraphQLURL,
		Method:  "POST",
		Headers: headers,
		Body:    string(encoded),
	}, nil
}

// RESTRequest builds a GET against a GitHub REST URL. Default headers are
// used when none are given.
func RESTRequest(url string, headers []string) Request {
	if len(headers) == 0 {
		headers = []string{userAgent, acceptGH}
	}
	return Request{URL: url, Headers: headers}
}

// MergedPRCountQuery is a GraphQL document counting the merged pull requests
// username authored in owner/repo.
func MergedPRCountQuery(owner, repo, username string) string {
	search := fmt.Sprintf("repo:%s/%s is:pr is:merged author:%s", owner, repo, username)
	return fmt.Sprintf(`query MergedPrCount {
  search(query: %q, type: ISSUE, first: 1) {
    issueCount
  }
}`, search)
}
