package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/zahanm/collect-beans/pkg/db"
	"github.com/zahanm/collect-beans/pkg/view"
)

// progressCmd represents the progress command.
var progressCmd = &cobra.Command{
	Use:   "progress [destination-file]",
	Short: "Show or choose the ledger file to sort into",
	Long: `Show the sorting destination and the journal files of the ledger.

With an argument, choose that journal file as the destination. The choice is
remembered locally and on the backend.

Example:
  bookkeeper progress
  bookkeeper progress 2024.beancount`,
	Args: cobra.MaximumNArgs(1),
	Run:  runProgress,
}

func runProgress(cmd *cobra.Command, args []string) {
	a := setup()
	defer a.close()

	ctx := context.Background()

	if len(args) == 1 {
		progress, err := a.client.SetDestination(ctx, args[0])
		exitOnError(err, "failed to set destination file")
		exitOnError(a.history.SetMetadata(db.KeyDestinationFile, args[0]), "failed to remember destination file")
		slog.Info("Destination file set", "file", *progress.DestinationFile)
	}

	progress, err := a.client.SortProgress(ctx)
	exitOnError(err, "failed to fetch progress")

	fmt.Println(view.Title("main file") + "  " + progress.MainFile)
	if progress.DestinationFile != nil {
		fmt.Println(view.Title("destination") + "  " + *progress.DestinationFile)
	} else {
		fmt.Println(view.Title("destination") + "  " + view.Muted("(none, pass one of the files below)"))
	}
	fmt.Println()
	for _, f := range progress.JournalFiles {
		marker := "  "
		if progress.DestinationFile != nil && *progress.DestinationFile == f {
			marker = "* "
		}
		fmt.Println(marker + f)
	}
}

// destination returns the backend's destination file, falling back to the
// one remembered locally.
func (a *app) destination(ctx context.Context) (string, error) {
	progress, err := a.client.SortProgress(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch progress: %w", err)
	}
	if progress.DestinationFile != nil {
		return *progress.DestinationFile, nil
	}

	remembered, err := a.history.GetMetadata(db.KeyDestinationFile)
	if err != nil {
		return "", err
	}
	if remembered == "" {
		return "", fmt.Errorf("no destination file, choose one with 'bookkeeper progress <file>'")
	}

	slog.Info("Restoring destination file", "file", remembered)
	if _, err := a.client.SetDestination(ctx, remembered); err != nil {
		return "", fmt.Errorf("failed to restore destination file: %w", err)
	}
	return remembered, nil
}
