package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zahanm/collect-beans/pkg/bookkeeper"
	"github.com/zahanm/collect-beans/pkg/collect"
	"github.com/zahanm/collect-beans/pkg/commit"
	"github.com/zahanm/collect-beans/pkg/db"
	"github.com/zahanm/collect-beans/pkg/view"
)

var (
	collectFrom     string
	collectTo       string
	collectMode     string
	collectSchedule bool
	backupRun       bool
)

// collectCmd represents the collect command.
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run importers to bring new transactions into the ledger",
	Long: `Run the importers configured in the workspace file on the backend.

Without dates, a run starts a few days before the last imported transaction
of the importer's accounts so nothing is missed, and ends today.

Example:
  bookkeeper collect list
  bookkeeper collect run chase --from 2024-01-01
  bookkeeper collect run-all
  bookkeeper collect run-all --schedule
  bookkeeper collect backup --run`,
}

var collectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured importers with their last run",
	Run:   runCollectList,
}

var collectRunCmd = &cobra.Command{
	Use:   "run IMPORTER",
	Short: "Run one importer",
	Args:  cobra.ExactArgs(1),
	Run:   runCollectRun,
}

var collectRunAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Run every importer, one after another",
	Run:   runCollectRunAll,
}

var collectLastImportedCmd = &cobra.Command{
	Use:   "last-imported [ACCOUNT...]",
	Short: "Show the date of the last imported transaction per account",
	Run:   runCollectLastImported,
}

var collectOthersCmd = &cobra.Command{
	Use:   "others",
	Short: "Show importers that have to be run by hand",
	Run:   runCollectOthers,
}

var collectBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Show the change since the last ledger backup, or take one",
	Run:   runCollectBackup,
}

func init() {
	collectCmd.PersistentFlags().StringVar(&collectMode, "mode", string(bookkeeper.ModeTransactions), "what to collect: transactions or balance")

	for _, c := range []*cobra.Command{collectRunCmd, collectRunAllCmd} {
		c.Flags().StringVar(&collectFrom, "from", "", "Start date (YYYY-MM-DD), defaults to before the last import")
		c.Flags().StringVar(&collectTo, "to", "", "End date (YYYY-MM-DD), defaults to today")
	}
	collectRunAllCmd.Flags().BoolVar(&collectSchedule, "schedule", false, "keep running on the configured cron schedule")
	collectBackupCmd.Flags().BoolVar(&backupRun, "run", false, "take a new backup")

	collectCmd.AddCommand(collectListCmd)
	collectCmd.AddCommand(collectRunCmd)
	collectCmd.AddCommand(collectRunAllCmd)
	collectCmd.AddCommand(collectLastImportedCmd)
	collectCmd.AddCommand(collectOthersCmd)
	collectCmd.AddCommand(collectBackupCmd)
}

func (a *app) runner() *collect.Runner {
	return collect.NewRunner(a.client, a.cfg.Importers,
		collect.WithHistory(a.history),
		collect.WithWindow(a.cfg.Collect.OverlapDays, a.cfg.Collect.LookbackDays),
	)
}

func runOptions() (collect.RunOptions, error) {
	opts := collect.RunOptions{Mode: bookkeeper.CollectMode(collectMode)}
	switch opts.Mode {
	case bookkeeper.ModeTransactions, bookkeeper.ModeBalance:
	default:
		return opts, fmt.Errorf("unknown mode %q", collectMode)
	}

	var err error
	if collectFrom != "" {
		if opts.Start, err = time.Parse("2006-01-02", collectFrom); err != nil {
			return opts, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if collectTo != "" {
		if opts.End, err = time.Parse("2006-01-02", collectTo); err != nil {
			return opts, fmt.Errorf("invalid --to: %w", err)
		}
	}
	if !opts.Start.IsZero() && !opts.End.IsZero() && opts.End.Before(opts.Start) {
		return opts, fmt.Errorf("--to %s is before --from %s", collectTo, collectFrom)
	}
	return opts, nil
}

func runCollectList(cmd *cobra.Command, args []string) {
	a := setup()
	defer a.close()

	if len(a.cfg.Importers) == 0 {
		fmt.Println(view.Muted("no importers configured in the workspace file"))
		return
	}

	for _, imp := range a.cfg.Importers {
		last, err := a.history.LastRun(imp.Name)
		exitOnError(err, "failed to read run history")

		status := view.Muted("never run")
		if last != nil {
			state := "ok"
			if !last.Succeeded() {
				state = fmt.Sprintf("failed (%d errors)", len(last.Errors))
			}
			status = last.RunAt.Local().Format("2006-01-02 15:04") + " " + state
		}
		fmt.Printf("%-20s %-32s %v\n", imp.Name, status, imp.AccountNames())
	}
}

func runCollectRun(cmd *cobra.Command, args []string) {
	a := setup()
	defer a.close()

	opts, err := runOptions()
	exitOnError(err, "invalid options")

	r := a.runner()
	if _, ok := r.Importer(args[0]); !ok {
		exitOnError(fmt.Errorf("unknown importer: %s", args[0]), "failed to run importer")
	}

	resp, err := r.Run(context.Background(), args[0], opts)
	fmt.Print(view.Results([]collect.Result{{Importer: args[0], Response: resp, Err: err}}))
	if err != nil {
		os.Exit(1)
	}
}

func runCollectRunAll(cmd *cobra.Command, args []string) {
	a := setup()
	defer a.close()

	opts, err := runOptions()
	exitOnError(err, "invalid options")

	if len(a.cfg.Importers) == 0 {
		exitOnError(fmt.Errorf("no importers configured"), "nothing to run")
	}

	r := a.runner()

	if !collectSchedule {
		results := r.RunAll(context.Background(), opts)
		fmt.Print(view.Results(results))
		if err := a.history.SetMetadata(db.KeyLastRunAll, time.Now().UTC().Format(time.RFC3339)); err != nil {
			slog.Warn("failed to record run-all time", "error", err)
		}
		for _, res := range results {
			if res.Err != nil {
				os.Exit(1)
			}
		}
		return
	}

	if err := a.cfg.Validate([]string{"collect", "schedule"}); err != nil {
		exitOnError(err, "invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := r.Schedule(ctx, a.cfg.Collect.Schedule, opts)
	exitOnError(err, "failed to schedule importers")
	defer c.Stop()

	slog.Info("Importers scheduled", "schedule", a.cfg.Collect.Schedule, "importers", len(a.cfg.Importers))
	<-ctx.Done()
	slog.Info("Stopping scheduled importers")
}

func runCollectLastImported(cmd *cobra.Command, args []string) {
	a := setup()
	defer a.close()

	accounts := args
	if len(accounts) == 0 {
		for _, imp := range a.cfg.Importers {
			accounts = append(accounts, imp.AccountNames()...)
		}
	}
	if len(accounts) == 0 {
		exitOnError(fmt.Errorf("no accounts given and no importers configured"), "nothing to look up")
	}

	last, err := a.runner().LastImported(context.Background(), accounts)
	exitOnError(err, "failed to get last imported dates")
	fmt.Print(view.LastImported(last))
}

func runCollectOthers(cmd *cobra.Command, args []string) {
	a := setup()
	defer a.close()

	others, err := a.runner().OtherImporters(context.Background(), bookkeeper.CollectMode(collectMode))
	exitOnError(err, "failed to list other importers")

	if len(others) == 0 {
		fmt.Println(view.Muted("no importers to run by hand"))
		return
	}
	fmt.Print(view.OtherImporters(others))
}

func runCollectBackup(cmd *cobra.Command, args []string) {
	a := setup()
	defer a.close()

	ctx := context.Background()
	r := a.runner()

	var resp *bookkeeper.BackupResponse
	var err error
	if backupRun {
		resp, err = r.RunBackup(ctx)
		exitOnError(err, "failed to run backup")
		fmt.Println("backup " + view.State(r.BackupProgress().State(), r.BackupProgress().Err()))
	} else {
		resp, err = r.BackupDiff(ctx)
		exitOnError(err, "failed to get backup diff")
		diff, err := commit.UnifiedDiff("ledger", resp.Contents.Old, resp.Contents.New)
		exitOnError(err, "failed to diff backup")
		fmt.Print(view.Diff(diff))
	}
	fmt.Println(view.Backup(resp))
}
