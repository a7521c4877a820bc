package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zahanm/collect-beans/pkg/beancount"
	"github.com/zahanm/collect-beans/pkg/progress"
	"github.com/zahanm/collect-beans/pkg/sorting"
	"github.com/zahanm/collect-beans/pkg/view"
)

const prompt = "sort> "

const sessionHelp = `commands (N and I count from 1):
  list                 show the queue
  show                 show the focused transaction and its postings
  focus N              edit the Nth transaction in the queue
  account I NAME       set the account of posting I (partial names complete)
  amount I AMOUNT      set the amount of posting I
  add | remove I       add or remove a posting
  payee TEXT           change the payee
  narration TEXT       change the narration
  accounts [TEXT]      list accounts matching TEXT
  submit               sort the focused transaction with its postings
  skip | delete        skip or delete the focused transaction
  link [K]             find counterparts, or sort against counterpart K
  sorted               list sorted transactions
  revert N             put the Nth sorted transaction back in the queue
  save                 send sorted transactions to the backend
  more                 fetch more transactions
  quit                 leave (quit! drops unsaved work)`

var errUsage = errors.New("usage")

// session is an interactive sorting session. Commands come from a line
// reader (run) or from the terminal UI (sortModel); both go through exec.
type session struct {
	ctx    context.Context
	queue  *sorting.Queue
	out    io.Writer
	saving *progress.Tracker

	focus  string
	editor *sorting.Editor
	links  []beancount.DirectiveForSort
}

func newSession(ctx context.Context, backend sorting.Backend, target int, out io.Writer) *session {
	s := &session{
		ctx:    ctx,
		out:    out,
		saving: progress.NewTracker(),
	}
	s.queue = sorting.NewQueue(backend, sorting.WithTarget(target), sorting.WithFocus(s.follow))
	return s
}

// follow is the queue's focus hook. The focused transaction keeps its
// editor until it leaves the unsorted list.
func (s *session) follow(id string) {
	if s.focus != "" && s.focus != id && s.queue.IsUnsorted(s.focus) {
		return
	}
	s.setFocus(id)
}

func (s *session) setFocus(id string) {
	if id == s.focus {
		return
	}
	s.focus = id
	s.editor = nil
	s.links = nil
}

// start loads the first batch and shows it.
func (s *session) start() error {
	if _, err := s.queue.Fetch(s.ctx); err != nil {
		return err
	}
	s.printStatus()
	s.printFocused()
	return nil
}

// run reads commands from in until quit or end of input.
func (s *session) run(in io.Reader) error {
	if err := s.start(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			s.warnUnsaved()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		done, err := s.exec(line)
		if err != nil {
			s.reportError(err)
		}
		if done {
			return nil
		}
	}
}

func (s *session) exec(line string) (bool, error) {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(line, name))

	switch name {
	case "help", "?":
		fmt.Fprintln(s.out, sessionHelp)
	case "list", "ls":
		s.printQueue()
	case "show":
		s.printFocused()
	case "focus":
		i, err := index(args, 0, len(s.queue.Unsorted()))
		if err != nil {
			return false, err
		}
		s.setFocus(s.queue.Unsorted()[i].ID)
		s.printFocused()
	case "account":
		return false, s.setAccount(args)
	case "amount":
		ed, err := s.currentEditor()
		if err != nil {
			return false, err
		}
		if len(args) != 2 {
			return false, fmt.Errorf("%w: amount I AMOUNT", errUsage)
		}
		i, err := index(args, 0, len(ed.Rows()))
		if err != nil {
			return false, err
		}
		if err := ed.SetAmount(i, args[1]); err != nil {
			return false, err
		}
		fmt.Fprint(s.out, view.Rows(ed))
	case "add":
		ed, err := s.currentEditor()
		if err != nil {
			return false, err
		}
		ed.AddRow()
		fmt.Fprint(s.out, view.Rows(ed))
	case "remove", "rm":
		ed, err := s.currentEditor()
		if err != nil {
			return false, err
		}
		i, err := index(args, 0, len(ed.Rows()))
		if err != nil {
			return false, err
		}
		if err := ed.RemoveRow(i); err != nil {
			return false, err
		}
		fmt.Fprint(s.out, view.Rows(ed))
	case "payee", "narration":
		ed, err := s.currentEditor()
		if err != nil {
			return false, err
		}
		if name == "payee" {
			ed.SetPayee(rest)
		} else {
			ed.SetNarration(rest)
		}
	case "accounts":
		matches := sorting.NewCompleter(s.queue.Accounts(), 0).Filter(rest)
		if len(matches) == 0 {
			fmt.Fprintln(s.out, view.Muted("no matching accounts"))
		}
		for _, acc := range matches {
			fmt.Fprintln(s.out, "  "+acc)
		}
	case "submit", "ok":
		ed, err := s.currentEditor()
		if err != nil {
			return false, err
		}
		mod, err := ed.Submit()
		if err != nil {
			return false, err
		}
		return false, s.apply(mod)
	case "skip", "delete":
		ed, err := s.currentEditor()
		if err != nil {
			return false, err
		}
		mod := ed.Skip()
		if name == "delete" {
			mod = ed.Delete()
		}
		return false, s.apply(mod)
	case "link":
		return false, s.link(args)
	case "sorted":
		s.printSorted()
	case "revert":
		sorted := s.queue.Sorted()
		i, err := index(args, 0, len(sorted))
		if err != nil {
			return false, err
		}
		if err := s.queue.Revert(sorted[i].ID); err != nil {
			return false, err
		}
		s.printStatus()
	case "save":
		err := s.saving.Track(func() error { return s.queue.Save(s.ctx) })
		fmt.Fprintln(s.out, "save "+view.State(s.saving.State(), s.saving.Err()))
		if err != nil {
			return false, err
		}
		s.printStatus()
		s.printFocused()
	case "more", "fetch":
		added, err := s.queue.Fetch(s.ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "fetched %d\n", added)
		s.printStatus()
	case "quit", "q", "exit":
		if n := s.queue.Counts().Pending; n > 0 {
			return false, fmt.Errorf("%d sorted transactions are not saved, run save or quit!", n)
		}
		return true, nil
	case "quit!":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q, try help", name)
	}
	return false, nil
}

func (s *session) warnUnsaved() {
	if n := s.queue.Counts().Pending; n > 0 {
		slog.Warn("leaving with unsaved sorted transactions", "count", n)
	}
}

func (s *session) currentEditor() (*sorting.Editor, error) {
	if s.editor != nil {
		return s.editor, nil
	}
	if s.focus == "" {
		return nil, errors.New("nothing to sort, try more")
	}
	drs, ok := s.queue.Get(s.focus)
	if !ok {
		return nil, fmt.Errorf("%w: %s", sorting.ErrUnknownTransaction, s.focus)
	}
	ed, err := sorting.NewEditor(drs)
	if err != nil {
		return nil, err
	}
	s.editor = ed
	return ed, nil
}

func (s *session) setAccount(args []string) error {
	ed, err := s.currentEditor()
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("%w: account I NAME", errUsage)
	}
	i, err := index(args, 0, len(ed.Rows()))
	if err != nil {
		return err
	}

	completer := sorting.NewCompleter(s.queue.Accounts(), 0)
	input := strings.Join(args[1:], " ")
	account := completer.Resolve(input)
	if err := ed.SetAccount(i, account); err != nil {
		return err
	}

	if account == input {
		if matches := completer.Filter(input); len(matches) > 0 && !contains(matches, input) {
			fmt.Fprintln(s.out, view.Muted("did you mean: "+strings.Join(matches, ", ")))
		}
	}
	fmt.Fprint(s.out, view.Rows(ed))
	return nil
}

func (s *session) apply(mod beancount.Mod) error {
	drs, _ := s.queue.Get(mod.ID)
	if err := s.queue.Apply(mod); err != nil {
		return err
	}
	fmt.Fprint(s.out, view.Mod(drs, mod))
	s.printStatus()
	s.printFocused()
	return nil
}

func (s *session) link(args []string) error {
	if s.focus == "" {
		return errors.New("nothing to sort, try more")
	}

	if len(args) == 0 {
		links, err := s.queue.Link(s.ctx, s.focus)
		if err != nil {
			return err
		}
		s.links = links
		if len(links) == 0 {
			fmt.Fprintln(s.out, view.Muted("no matching transactions"))
			return nil
		}
		for i, drs := range links {
			fmt.Fprint(s.out, view.Transaction(i+1, drs))
		}
		return nil
	}

	i, err := index(args, 0, len(s.links))
	if err != nil {
		return err
	}
	other := s.links[i]
	id := s.focus
	drs, _ := s.queue.Get(id)

	mods, err := s.queue.LinkWith(id, other)
	if err != nil {
		return err
	}
	for _, mod := range mods {
		if mod.ID == id {
			fmt.Fprint(s.out, view.Mod(drs, mod))
		} else {
			fmt.Fprint(s.out, view.Mod(other, mod))
		}
	}
	s.printStatus()
	s.printFocused()
	return nil
}

func (s *session) printStatus() {
	fmt.Fprintln(s.out, view.Counts(s.queue.Counts()))
}

func (s *session) printFocused() {
	if s.focus == "" {
		fmt.Fprintln(s.out, view.Muted("nothing left in the queue"))
		return
	}
	drs, ok := s.queue.Get(s.focus)
	if !ok {
		return
	}
	fmt.Fprint(s.out, view.Transaction(0, drs))
	if ed, err := s.currentEditor(); err == nil {
		fmt.Fprint(s.out, view.Rows(ed))
	}
}

func (s *session) printQueue() {
	for i, drs := range s.queue.Unsorted() {
		n := i + 1
		if drs.ID == s.focus {
			n = 0
		}
		fmt.Fprint(s.out, view.Transaction(n, drs))
	}
	s.printStatus()
}

func (s *session) printSorted() {
	sorted := s.queue.Sorted()
	if len(sorted) == 0 {
		fmt.Fprintln(s.out, view.Muted("nothing sorted yet"))
		return
	}
	for i, drs := range sorted {
		mod, _ := s.queue.Mod(drs.ID)
		fmt.Fprintf(s.out, "%d. %s", i+1, view.Mod(drs, mod))
	}
}

// reportError is where every failed session action ends up.
func (s *session) reportError(err error) {
	slog.Debug("session action failed", "error", err)
	fmt.Fprintln(s.out, view.Error(err))
}

// index parses args[pos] as a 1-based position into a list of n items.
func index(args []string, pos, n int) (int, error) {
	if len(args) <= pos {
		return 0, fmt.Errorf("%w: missing position", errUsage)
	}
	i, err := strconv.Atoi(args[pos])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errUsage, args[pos])
	}
	if i < 1 || i > n {
		return 0, fmt.Errorf("position %d out of range 1-%d", i, n)
	}
	return i - 1, nil
}

func contains(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}
