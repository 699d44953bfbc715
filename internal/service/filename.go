package service

import (
	"fmt"
	"strings"
	"time"
)

const proofFilePrefix = "github-webproof"

// ProofFilename is the name a downloaded proof is saved under:
//
//	github-webproof-<yyyy>-<mm>-<dd>-<username>.json
//
// The username part is omitted when username is empty.
func ProofFilename(at time.Time, username string) string {
	name := fmt.Sprintf("%s-%s", proofFilePrefix, at.UTC().Format("2006-01-02"))
	if username = strings.TrimSpace(username); username != "" {
		name += "-" + username
	}
	return name + ".json"
}

// ParseProofFilename returns the username encoded in a proof filename. Any
// ".json" suffix is ignored and the name is split on "-"; the username is
// everything after the fifth segment, rejoined with "-" so hyphenated GitHub
// logins survive. Names with five or fewer segments carry no username and
// yield "".
//
//	github-webproof-2025-01-31-alice.json    → "alice"
//	github-webproof-2025-01-31-jane-doe.json → "jane-doe"
//	github-webproof-2025-01-31.json          → ""
func ParseProofFilename(name string) string {
	parts := strings.Split(strings.TrimSuffix(name, ".json"), "-")
	if len(parts) <= 5 {
		return ""
	}
	return strings.Join(parts[5:], "-")
}
