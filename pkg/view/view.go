// Package view renders transactions, mods and progress for the terminal.
package view

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/zahanm/collect-beans/pkg/beancount"
	"github.com/zahanm/collect-beans/pkg/bookkeeper"
	"github.com/zahanm/collect-beans/pkg/collect"
	"github.com/zahanm/collect-beans/pkg/commit"
	"github.com/zahanm/collect-beans/pkg/progress"
	"github.com/zahanm/collect-beans/pkg/sorting"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89b4fa"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af"))
	hunkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#94e2d5"))
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa")).Bold(true)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#45475a")).Padding(0, 1)
)

// Title renders a section heading.
func Title(s string) string {
	return titleStyle.Render(s)
}

// Muted renders secondary text.
func Muted(s string) string {
	return mutedStyle.Render(s)
}

// Error renders an error message.
func Error(err error) string {
	return errorStyle.Render("error: " + err.Error())
}

// Transaction renders a transaction queued for sorting. The TODO posting is
// muted and the suggested category, if any, is shown below.
func Transaction(index int, drs beancount.DirectiveForSort) string {
	var b strings.Builder

	prefix := fmt.Sprintf("[%d] ", index)
	if index == 0 {
		prefix = cursorStyle.Render("> ")
	}
	b.WriteString(prefix)
	b.WriteString(titleStyle.Render(drs.Entry.Date + " " + drs.Entry.Payee))
	if drs.Entry.Narration != "" {
		b.WriteString(" " + drs.Entry.Narration)
	}
	if drs.Entry.Filename != "" {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  %s:%d", drs.Entry.Filename, drs.Entry.Lineno)))
	}
	b.WriteString("\n")

	for _, p := range drs.Entry.Postings {
		line := beancount.FormatPosting(p, "    ")
		if p.Account == beancount.TodoAccount {
			if todo, ok := drs.TodoAmount(); ok && p.Units.Inferred() {
				line = beancount.FormatPosting(beancount.Posting{Account: p.Account, Units: todo}, "    ")
			}
			line = mutedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	if cat := drs.Category(); cat != "" {
		b.WriteString(mutedStyle.Render("    suggested: "+cat) + "\n")
	}
	return b.String()
}

// Mod renders a pending mod next to the entry it applies to.
func Mod(drs beancount.DirectiveForSort, mod beancount.Mod) string {
	head := drs.Entry.Date + " " + drs.Entry.Payee

	switch mod.Type {
	case beancount.ModReplace:
		entry, _ := mod.Apply(drs.Entry)
		var b strings.Builder
		b.WriteString(successStyle.Render("sorted  ") + head + "\n")
		for _, p := range mod.Postings {
			b.WriteString(beancount.FormatPosting(p, "    ") + "\n")
		}
		if mod.Payee != nil || mod.Narration != nil {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("    now %q %q", entry.Payee, entry.Narration)) + "\n")
		}
		return b.String()
	case beancount.ModSkip:
		return warnStyle.Render("skipped ") + head + mutedStyle.Render("  #"+beancount.SkipTag) + "\n"
	case beancount.ModDelete:
		return errorStyle.Render("deleted ") + head + "\n"
	default:
		return errorStyle.Render(fmt.Sprintf("unknown mod %q ", mod.Type)) + head + "\n"
	}
}

// Counts renders queue progress.
func Counts(c sorting.Counts) string {
	done := c.Saved + c.Pending
	line := fmt.Sprintf("sorted %d/%d", done, c.Total)
	if c.Pending > 0 {
		line += warnStyle.Render(fmt.Sprintf(" (%d unsaved)", c.Pending))
	}
	line += mutedStyle.Render(fmt.Sprintf("  %d in queue, %d left", c.Unsorted, c.RemainTodo))
	return line
}

// Rows renders the editor's posting rows with the remaining balance.
func Rows(e *sorting.Editor) string {
	var b strings.Builder
	for i, r := range e.Rows() {
		account := r.Account
		if account == "" {
			account = mutedStyle.Render("(no account)")
		}
		b.WriteString(fmt.Sprintf("  %d. %-50s %12s %s\n", i+1, account, r.Amount, e.Todo().Currency))
	}

	remaining, err := e.Remaining()
	switch {
	case err != nil:
		b.WriteString(errorStyle.Render("  "+err.Error()) + "\n")
	case remaining.Abs().LessThan(sorting.Epsilon):
		b.WriteString(successStyle.Render("  balanced") + "\n")
	default:
		b.WriteString(warnStyle.Render(fmt.Sprintf("  %s %s left to allocate", remaining.StringFixed(2), e.Todo().Currency)) + "\n")
	}
	return b.String()
}

// State renders a progress badge.
func State(s progress.State, err error) string {
	switch s {
	case progress.InProcess:
		return warnStyle.Render("running…")
	case progress.Success:
		return successStyle.Render("done")
	case progress.Error:
		if err != nil {
			return errorStyle.Render("failed: " + err.Error())
		}
		return errorStyle.Render("failed")
	default:
		return mutedStyle.Render("idle")
	}
}

// Diff colors a unified diff.
func Diff(diff string) string {
	if diff == "" {
		return mutedStyle.Render("no changes") + "\n"
	}

	var b strings.Builder
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		text := strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(text, "+++"), strings.HasPrefix(text, "---"):
			text = titleStyle.Render(text)
		case strings.HasPrefix(text, "@@"):
			text = hunkStyle.Render(text)
		case strings.HasPrefix(text, "+"):
			text = successStyle.Render(text)
		case strings.HasPrefix(text, "-"):
			text = errorStyle.Render(text)
		}
		b.WriteString(text + "\n")
	}
	return b.String()
}

// Check renders the checker's verdict with one line per error.
func Check(result *commit.CheckResult) string {
	if result.Passed {
		return successStyle.Render("check passed") + "\n"
	}

	var b strings.Builder
	b.WriteString(errorStyle.Render(fmt.Sprintf("check failed with %d errors", len(result.Errors))) + "\n")
	for _, e := range result.Errors {
		b.WriteString(mutedStyle.Render("  "+shortHash(e.Hash)+" ") + e.Message + "\n")
	}
	return b.String()
}

// Importers renders the configured importers with their last result.
func Importers(r *collect.Runner) string {
	var b strings.Builder
	for _, imp := range r.Importers() {
		tracker := r.Progress(imp.Name)
		b.WriteString(fmt.Sprintf("%-20s %-14s %s\n",
			imp.Name, State(tracker.State(), tracker.Err()),
			mutedStyle.Render(strings.Join(imp.AccountNames(), ", "))))
	}
	return b.String()
}

// Results renders the outcome of a run-all.
func Results(results []collect.Result) string {
	var b strings.Builder
	for _, res := range results {
		if res.Err == nil {
			b.WriteString(successStyle.Render("✓ ") + res.Importer + "\n")
			continue
		}
		b.WriteString(errorStyle.Render("✗ ") + res.Importer + "\n")
		if res.Response != nil && len(res.Response.Errors) > 0 {
			for _, msg := range res.Response.Errors {
				b.WriteString(errorStyle.Render("    "+msg) + "\n")
			}
		} else {
			b.WriteString(errorStyle.Render("    "+res.Err.Error()) + "\n")
		}
	}
	return b.String()
}

// LastImported renders the last imported date per account, oldest first,
// with never-imported accounts at the top.
func LastImported(last map[string]*string) string {
	accounts := make([]string, 0, len(last))
	for acc := range last {
		accounts = append(accounts, acc)
	}
	sort.Slice(accounts, func(i, j int) bool {
		a, b := last[accounts[i]], last[accounts[j]]
		switch {
		case a == nil && b == nil:
			return accounts[i] < accounts[j]
		case a == nil:
			return true
		case b == nil:
			return false
		case *a != *b:
			return *a < *b
		default:
			return accounts[i] < accounts[j]
		}
	})

	var b strings.Builder
	for _, acc := range accounts {
		date := mutedStyle.Render("never")
		if d := last[acc]; d != nil {
			date = *d
		}
		b.WriteString(fmt.Sprintf("%-40s %s\n", acc, date))
	}
	return b.String()
}

// OtherImporters renders importers that are run by hand, with instructions.
func OtherImporters(importers []bookkeeper.OtherImporter) string {
	var blocks []string
	for _, imp := range importers {
		var b strings.Builder
		b.WriteString(titleStyle.Render(imp.Name) + mutedStyle.Render("  via "+imp.Downloader) + "\n")
		for _, acc := range imp.Accounts {
			b.WriteString(fmt.Sprintf("  %s (%s)\n", acc.Name, acc.Currency))
		}
		if imp.Instructions != nil && *imp.Instructions != "" {
			b.WriteString(mutedStyle.Render(*imp.Instructions))
		}
		blocks = append(blocks, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
	}
	return strings.Join(blocks, "\n") + "\n"
}

// Backup renders the time of the last backup.
func Backup(resp *bookkeeper.BackupResponse) string {
	if resp.Timestamps.LastBackup <= 0 {
		return mutedStyle.Render("no backup yet")
	}
	sec := int64(resp.Timestamps.LastBackup)
	at := time.Unix(sec, 0)
	return "last backup " + at.Format("2006-01-02 15:04:05")
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
