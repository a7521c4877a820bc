package beancount

import "fmt"

// ModType discriminates the kinds of pending edit.
type ModType string

const (
	// ModReplace replaces the Equity:TODO posting with new postings.
	ModReplace ModType = "replace"
	// ModSkip marks the entry reviewed by tagging it #skip-sort.
	ModSkip ModType = "skip"
	// ModDelete removes the entry from the ledger.
	ModDelete ModType = "delete"
)

// Mod is a pending edit to a ledger entry, keyed by the DirectiveForSort ID.
// Postings, Payee and Narration are only meaningful for ModReplace.
type Mod struct {
	ID        string    `json:"id"`
	Type      ModType   `json:"type"`
	Postings  []Posting `json:"postings,omitempty"`
	Payee     *string   `json:"payee,omitempty"`
	Narration *string   `json:"narration,omitempty"`
}

// Validate checks the mod is well formed for its type.
func (m Mod) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("mod has no transaction id")
	}
	switch m.Type {
	case ModReplace:
		if len(m.Postings) == 0 && m.Payee == nil && m.Narration == nil {
			return fmt.Errorf("replace mod %s changes nothing", m.ID)
		}
	case ModSkip, ModDelete:
		if len(m.Postings) > 0 || m.Payee != nil || m.Narration != nil {
			return fmt.Errorf("%s mod %s must not carry changes", m.Type, m.ID)
		}
	default:
		return fmt.Errorf("mod %s has unknown type %q", m.ID, m.Type)
	}
	return nil
}

// Apply returns the entry as it reads after the mod. Deleted entries return
// ok=false.
func (m Mod) Apply(d Directive) (Directive, bool) {
	out := d
	switch m.Type {
	case ModReplace:
		if len(m.Postings) > 0 {
			postings := make([]Posting, 0, len(d.Postings)+len(m.Postings))
			for _, p := range d.Postings {
				if p.Account != TodoAccount {
					postings = append(postings, p)
				}
			}
			out.Postings = append(postings, m.Postings...)
		}
		if m.Payee != nil {
			out.Payee = *m.Payee
		}
		if m.Narration != nil {
			out.Narration = *m.Narration
		}
	case ModSkip:
		if !d.HasTag(SkipTag) {
			out.Tags = append(append([]string{}, d.Tags...), SkipTag)
		}
	case ModDelete:
		return Directive{}, false
	}
	return out, true
}
