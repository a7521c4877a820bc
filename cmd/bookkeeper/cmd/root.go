// Package cmd provides CLI commands for bookkeeper.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/zahanm/collect-beans/pkg/bookkeeper"
	"github.com/zahanm/collect-beans/pkg/config"
	"github.com/zahanm/collect-beans/pkg/db"
	"github.com/zahanm/collect-beans/pkg/pathutil"
)

var (
	cfgFile string
	debug   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "bookkeeper",
	Short: "Sort and collect transactions in a Beancount ledger",
	Long: `bookkeeper is a CLI front end for a Beancount bookkeeping backend.

It supports:
- Sorting imported transactions out of Equity:TODO
- Reviewing, checking and committing the sorted transactions
- Running importers to collect new transactions and balances
- Keeping run and commit history in SQLite

Example:
  bookkeeper progress 2024.beancount
  bookkeeper sort
  bookkeeper commit --check --write
  bookkeeper collect run-all`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(sortCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(statsCmd)
}

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	client  *bookkeeper.Client
	paths   *pathutil.PathResolver
	conn    *db.Connection
	history *db.History
}

// setup loads configuration, connects to the backend and opens the history
// database. Callers must call close.
func setup() *app {
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate(
		[]string{"bookkeeper", "url"},
		[]string{"data", "dir"},
	); err != nil {
		exitOnError(err, "invalid configuration")
	}
	if cfg.Debug && !debug {
		debug = true
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	paths := pathutil.New(pathutil.Config{
		DataDir:      cfg.Data.Dir,
		DatabasePath: cfg.Data.DatabasePath,
		SnapshotsDir: cfg.Data.SnapshotsDir,
	})

	dbPath := paths.GetDatabasePath()
	slog.Debug("Opening database", "path", dbPath)
	conn, err := db.Open(dbPath)
	exitOnError(err, "failed to open database")

	client := bookkeeper.NewClient(bookkeeper.ClientConfig{
		BaseURL: cfg.Bookkeeper.URL,
		Timeout: cfg.Bookkeeper.Timeout,
	})
	slog.Debug("Using bookkeeping backend", "url", client.BaseURL())

	return &app{
		cfg:     cfg,
		client:  client,
		paths:   paths,
		conn:    conn,
		history: db.NewHistory(conn),
	}
}

func (a *app) close() {
	if err := a.conn.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}

// Helper function to get config file path.
func getConfigFile() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "" // Will use default .env loading
}

// Helper function to handle errors and exit.
func exitOnError(err error, msg string) {
	if err != nil {
		slog.Error(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}
