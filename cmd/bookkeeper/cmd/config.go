package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// configCmd represents the config command.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the backend's configuration",
}

var configReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Make the backend re-read its configuration file",
	Run:   runConfigReload,
}

func init() {
	configCmd.AddCommand(configReloadCmd)
}

func runConfigReload(cmd *cobra.Command, args []string) {
	a := setup()
	defer a.close()

	resp, err := a.client.ReloadConfig(context.Background())
	exitOnError(err, "failed to reload configuration")
	if !resp.Success {
		exitOnError(fmt.Errorf("backend reported failure"), "failed to reload configuration")
	}
	fmt.Println("configuration reloaded")
}
