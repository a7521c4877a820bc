package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/zahanm/collect-beans/pkg/beancount"
	"github.com/zahanm/collect-beans/pkg/commit"
	"github.com/zahanm/collect-beans/pkg/view"
)

var (
	commitCheck bool
	commitWrite bool
	commitForce bool
)

// commitCmd represents the commit command.
var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Preview, check and write the sorted transactions",
	Long: `Show the change the saved mods make to the destination file.

This command:
1. Fetches the destination file before and after the mods and diffs them
2. With --check, runs the ledger checker on the new contents
3. With --write, snapshots the old contents and writes the new ones

A write needs a passing check in the same invocation, so --write implies
--check. Use --force to write despite check errors.

Example:
  bookkeeper commit
  bookkeeper commit --check
  bookkeeper commit --write`,
	Run: runCommit,
}

func init() {
	commitCmd.Flags().BoolVar(&commitCheck, "check", false, "run the ledger checker")
	commitCmd.Flags().BoolVar(&commitWrite, "write", false, "write the destination file (runs the checker first)")
	commitCmd.Flags().BoolVar(&commitForce, "force", false, "write even if the check fails")
}

func runCommit(cmd *cobra.Command, args []string) {
	a := setup()
	defer a.close()

	ctx := context.Background()
	dest, err := a.destination(ctx)
	exitOnError(err, "failed to find destination file")

	flow := commit.NewFlow(a.client, dest,
		commit.WithSnapshots(beancount.NewFileSystemRepository(a.paths)),
		commit.WithHistory(a.history),
	)

	preview, err := flow.Preview(ctx)
	exitOnError(err, "failed to preview commit")
	fmt.Print(view.Diff(preview.Diff))

	if !commitCheck && !commitWrite {
		return
	}

	result, err := flow.Check(ctx)
	exitOnError(err, "failed to check ledger")
	fmt.Print(view.Check(result))

	if !commitWrite {
		return
	}
	if preview.Diff == "" {
		fmt.Println(view.Muted("nothing to write"))
		return
	}

	written, err := flow.Write(ctx, commitForce)
	if errors.Is(err, commit.ErrCheckFailed) {
		exitOnError(fmt.Errorf("%w, fix the errors or pass --force", err), "refusing to write "+dest)
	}
	exitOnError(err, "failed to write "+dest)

	if written.SnapshotPath != "" {
		fmt.Println(view.Muted("previous contents saved to " + written.SnapshotPath))
	}
	fmt.Println("wrote " + dest)
	slog.Info("Commit finished", "destination", dest, "forced", written.Forced)
}
