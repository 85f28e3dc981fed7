// Package session keeps per-session query memory: every query a session has
// issued and the distinct terms drawn from them, used to expand later queries.
package session

import (
	"context"
	"sort"
	"strings"

	"github.com/hyperjump/recall/internal/models"
)

// DefaultID is the session used when a request names none.
const DefaultID = "default"

// Store records queries and terms per session. Calls for the same session are
// serialized; calls for different sessions do not block each other.
type Store interface {
	// StoreQuery appends query to the session history. Duplicates are kept.
	StoreQuery(ctx context.Context, sessionID, query string) error
	// StoreTerms appends the terms the session has not seen yet, in order.
	// Comparison is case-sensitive.
	StoreTerms(ctx context.Context, sessionID string, terms []string) error
	Terms(ctx context.Context, sessionID string) ([]string, error)
	Queries(ctx context.Context, sessionID string) ([]string, error)
	// BuildEnhancedQuery expands current with the session's stored terms.
	BuildEnhancedQuery(ctx context.Context, sessionID, current string) (string, error)
	Snapshot(ctx context.Context, sessionID string) (models.SessionSnapshot, error)
	Close() error
}

// EnhanceTerms returns current unchanged when terms is empty. Otherwise it
// returns the set union of the whitespace-split current query and terms,
// joined by single spaces. Word order is not part of the contract.
func EnhanceTerms(current string, terms []string) string {
	if len(terms) == 0 {
		return current
	}
	seen := make(map[string]struct{}, len(terms))
	for _, w := range strings.Fields(current) {
		seen[w] = struct{}{}
	}
	for _, t := range terms {
		if t == "" {
			continue
		}
		seen[t] = struct{}{}
	}
	words := make([]string, 0, len(seen))
	for w := range seen {
		words = append(words, w)
	}
	sort.Strings(words)
	return strings.Join(words, " ")
}

func orDefault(id string) string {
	if strings.TrimSpace(id) == "" {
		return DefaultID
	}
	return id
}
