package cmd

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/zahanm/collect-beans/pkg/view"
)

var sortPlain bool

// sortCmd represents the sort command.
var sortCmd = &cobra.Command{
	Use:   "sort",
	Short: "Sort transactions out of Equity:TODO",
	Long: `Start an interactive session over the transactions in the destination
file that still post to Equity:TODO.

Each transaction can be split across accounts, skipped, deleted or linked
to its counterpart in another account. Sorted transactions are sent to the
backend with 'save' and written to the file with 'bookkeeper commit'.

Type 'help' in the session for the list of commands. When stdin is not a
terminal, or with --plain, commands are read line by line instead.

Example:
  bookkeeper sort`,
	Run: runSort,
}

func runSort(cmd *cobra.Command, args []string) {
	a := setup()
	defer a.close()

	ctx := context.Background()
	dest, err := a.destination(ctx)
	exitOnError(err, "failed to find destination file")

	fmt.Println(view.Title("sorting " + dest))
	if sortPlain || !isatty.IsTerminal(os.Stdin.Fd()) {
		s := newSession(ctx, a.client, a.cfg.Sort.BatchSize, os.Stdout)
		exitOnError(s.run(os.Stdin), "sort session failed")
	} else {
		var log bytes.Buffer
		s := newSession(ctx, a.client, a.cfg.Sort.BatchSize, &log)
		exitOnError(s.start(), "sort session failed")
		_, err := tea.NewProgram(newSortModel(s, &log), tea.WithAltScreen()).Run()
		exitOnError(err, "sort session failed")
		s.warnUnsaved()
	}

	slog.Info("Sort session finished", "destination", dest)
}

func init() {
	sortCmd.Flags().BoolVar(&sortPlain, "plain", false, "read commands line by line instead of the terminal UI")
}
