package beancount

import (
	"fmt"
	"strings"
)

// amountColumn is the column amounts are right-aligned to.
const amountColumn = 60

// FormatDirective formats a directive as Beancount text.
func FormatDirective(d Directive) string {
	var sb strings.Builder

	// Transaction header
	sb.WriteString(d.Date)
	flag := d.Flag
	if flag == "" {
		flag = "*"
	}
	sb.WriteString(" ")
	sb.WriteString(flag)
	if d.Payee != "" {
		sb.WriteString(fmt.Sprintf(" %q", d.Payee))
	}
	sb.WriteString(fmt.Sprintf(" %q", d.Narration))
	for _, tag := range d.Tags {
		sb.WriteString(" #")
		sb.WriteString(tag)
	}
	for _, link := range d.Links {
		sb.WriteString(" ^")
		sb.WriteString(link)
	}
	sb.WriteString("\n")

	for _, posting := range d.Postings {
		sb.WriteString(FormatPosting(posting, "  "))
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatPosting formats a single posting line with the given indent.
// Inferred amounts are left blank.
func FormatPosting(p Posting, indent string) string {
	if p.Units.Inferred() {
		return indent + p.Account
	}

	amount := p.Units.String()
	spaces := amountColumn - len(p.Account) - len(amount)
	if spaces < 2 {
		spaces = 2
	}
	return indent + p.Account + strings.Repeat(" ", spaces) + amount
}

// FormatDirectives formats directives separated by blank lines.
func FormatDirectives(ds []Directive) string {
	parts := make([]string, 0, len(ds))
	for _, d := range ds {
		parts = append(parts, FormatDirective(d))
	}
	return strings.Join(parts, "\n")
}
