package parse

import (
	"fmt"
	"strings"
)

// ParsedProjectID holds the components of a composite project id.
type ParsedProjectID struct {
	Name      string
	CreatedAt string
}

// ProjectID splits a composite project id of the form "name#created-at"
// into its parts. Project names may themselves contain '#', so the created
// timestamp is always the final segment. Sentinel ids ("none", "none#")
// and ids with no timestamp segment are rejected.
func ProjectID(raw string) (ParsedProjectID, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "none" || s == "none#" {
		return ParsedProjectID{}, fmt.Errorf("no project associated with id %q", raw)
	}

	idx := strings.LastIndex(s, "#")
	if idx <= 0 || idx == len(s)-1 {
		return ParsedProjectID{}, fmt.Errorf("malformed project id: %q", raw)
	}

	return ParsedProjectID{
		Name:      s[:idx],
		CreatedAt: s[idx+1:],
	}, nil
}
