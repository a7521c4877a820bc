package ledger

import (
	"sort"
	"strings"

	"github.com/zahanm/collect-beans/pkg/beancount"
)

// autoCategory returns the account of the first category whose pattern
// appears in the payee, ignoring case.
func autoCategory(categories []Category, payee string) *string {
	payee = strings.ToLower(payee)
	for _, c := range categories {
		if strings.Contains(payee, strings.ToLower(c.Pattern)) {
			account := c.Account
			return &account
		}
	}
	return nil
}

// rankOrder puts the most promising transactions first: entries are grouped
// by suggested category, larger groups come first, entries within a group
// are ordered by payee, and uncategorized entries come last.
func rankOrder(entries []beancount.DirectiveForSort) []beancount.DirectiveForSort {
	groups := make(map[string][]beancount.DirectiveForSort)
	var keys []string
	var uncategorized []beancount.DirectiveForSort

	for _, e := range entries {
		if e.AutoCategory == nil {
			uncategorized = append(uncategorized, e)
			continue
		}
		key := *e.AutoCategory
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], e)
	}

	sort.Strings(keys)
	sort.SliceStable(keys, func(i, j int) bool {
		return len(groups[keys[i]]) > len(groups[keys[j]])
	})

	byPayee := func(g []beancount.DirectiveForSort) {
		sort.SliceStable(g, func(i, j int) bool { return g[i].Entry.Payee < g[j].Entry.Payee })
	}

	out := make([]beancount.DirectiveForSort, 0, len(entries))
	for _, key := range keys {
		byPayee(groups[key])
		out = append(out, groups[key]...)
	}
	byPayee(uncategorized)
	return append(out, uncategorized...)
}
