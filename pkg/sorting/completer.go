package sorting

import (
	"sort"
	"strings"
)

// DefaultCompletions bounds the number of suggestions Filter returns.
const DefaultCompletions = 10

// Completer suggests ledger accounts for partial input.
type Completer struct {
	accounts []string
	limit    int
}

// NewCompleter creates a completer over accounts. Duplicates are dropped and
// suggestions come back in lexical order. A limit of zero or less means
// DefaultCompletions.
func NewCompleter(accounts []string, limit int) *Completer {
	if limit <= 0 {
		limit = DefaultCompletions
	}

	seen := make(map[string]bool, len(accounts))
	uniq := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		if acc == "" || seen[acc] {
			continue
		}
		seen[acc] = true
		uniq = append(uniq, acc)
	}
	sort.Strings(uniq)

	return &Completer{accounts: uniq, limit: limit}
}

// Filter returns the accounts containing input, ignoring case.
func (c *Completer) Filter(input string) []string {
	needle := strings.ToLower(strings.TrimSpace(input))

	var matches []string
	for _, acc := range c.accounts {
		if len(matches) == c.limit {
			break
		}
		if strings.Contains(strings.ToLower(acc), needle) {
			matches = append(matches, acc)
		}
	}
	return matches
}

// Resolve maps input to a known account when it names exactly one, either by
// an exact case-insensitive match or as the only substring match. Otherwise
// input is returned as typed so new accounts can be entered.
func (c *Completer) Resolve(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}

	var only string
	count := 0
	for _, acc := range c.accounts {
		if strings.EqualFold(acc, input) {
			return acc
		}
		if strings.Contains(strings.ToLower(acc), strings.ToLower(input)) {
			only = acc
			count++
		}
	}
	if count == 1 {
		return only
	}
	return input
}
