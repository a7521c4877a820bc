package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zahanm/collect-beans/pkg/view"
)

var reviewMax int

// reviewCmd represents the review command.
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List transactions sorted on the backend but not yet committed",
	Long: `List the transactions saved to the backend with the change each one will
make to the destination file on commit.

Example:
  bookkeeper review
  bookkeeper review revert 3`,
	Run: runReview,
}

// reviewRevertCmd represents the review revert command.
var reviewRevertCmd = &cobra.Command{
	Use:   "revert N",
	Short: "Put a saved transaction back in the sorting queue",
	Args:  cobra.ExactArgs(1),
	Run:   runReviewRevert,
}

func init() {
	reviewCmd.PersistentFlags().IntVar(&reviewMax, "max", 100, "maximum number of transactions to list")
	reviewCmd.AddCommand(reviewRevertCmd)
}

func runReview(cmd *cobra.Command, args []string) {
	a := setup()
	defer a.close()

	resp, err := a.client.Sorted(context.Background(), reviewMax)
	exitOnError(err, "failed to fetch sorted transactions")

	if len(resp.Sorted) == 0 {
		fmt.Println(view.Muted("nothing sorted since the last commit"))
		return
	}
	for i, drs := range resp.Sorted {
		fmt.Printf("%d. %s", i+1, view.Mod(drs, resp.Mods[drs.ID]))
	}
}

func runReviewRevert(cmd *cobra.Command, args []string) {
	a := setup()
	defer a.close()

	ctx := context.Background()
	resp, err := a.client.Sorted(ctx, reviewMax)
	exitOnError(err, "failed to fetch sorted transactions")

	i, err := index(args, 0, len(resp.Sorted))
	exitOnError(err, "invalid position")

	drs := resp.Sorted[i]
	after, err := a.client.RevertSorted(ctx, drs.ID, reviewMax)
	exitOnError(err, "failed to revert transaction")

	fmt.Println("reverted " + drs.Entry.Date + " " + drs.Entry.Payee)
	fmt.Println(view.Muted(fmt.Sprintf("%d sorted transactions left", len(after.Sorted))))
}
