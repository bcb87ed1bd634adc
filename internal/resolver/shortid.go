// Package resolver resolves short id prefixes typed at the CLI into the
// full UUIDs used by the store.
package resolver

import (
	"fmt"
	"strings"
)

// MinPrefixLength is the minimum accepted short-id prefix. Planner
// collections are small (one user's backlog or day), so four characters is
// plenty to stay unambiguous in practice.
const MinPrefixLength = 4

// Resolve matches a short id prefix against the candidate ids of one
// collection. Returns the full id when exactly one candidate matches.
//
// Three cases:
//  1. Input is already a full UUID (36 chars, 4 hyphens) - returned as-is
//     if present among the candidates.
//  2. Input is shorter than MinPrefixLength - validation error.
//  3. Input is a prefix - exactly one match required.
func Resolve(candidates []string, shortID string) (string, error) {
	if len(shortID) == 36 && strings.Count(shortID, "-") == 4 {
		for _, id := range candidates {
			if id == shortID {
				return id, nil
			}
		}
		return "", &NotFoundError{ShortID: shortID}
	}

	if len(shortID) < MinPrefixLength {
		return "", fmt.Errorf("short id must be at least %d characters (got %d)", MinPrefixLength, len(shortID))
	}

	var matches []string
	for _, id := range candidates {
		if strings.HasPrefix(id, shortID) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no candidate matched the short id.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("nothing found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple candidates matched the short id.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short id '%s' matches %d entries", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError creates a user-friendly message listing the matches.
func FormatAmbiguousError(err *AmbiguousError) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: ambiguous short id '%s' matches %d entries:\n", err.ShortID, len(err.Matches))

	for _, id := range err.Matches {
		fmt.Fprintf(&sb, "  %s\n", id)
	}

	sb.WriteString("\nUse a longer prefix to uniquely identify the entry.")
	return sb.String()
}

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguous checks if an error is an AmbiguousError.
func IsAmbiguous(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
