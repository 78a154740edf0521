package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"invoicemix/internal/cli"
)

// app is the wired session shared by the subcommands.
var app *cli.App

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "invoicemix",
	Short: "Find invoice combinations that reach a target amount",
	Long: `invoicemix asks the Combination Service which subsets of your invoices
sum to a target amount.

Invoices come from the command line (search) or from a spreadsheet (upload).
Requests can be saved as named scenarios, re-run later, and exported as CSV.

Configuration is read from the environment and from .env files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadAndValidateConfig()
		if err != nil {
			return err
		}
		logger := cli.SetupLogger(cfg)
		app, err = cli.NewApp(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app == nil {
			return nil
		}
		return app.Close()
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(scenariosCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
