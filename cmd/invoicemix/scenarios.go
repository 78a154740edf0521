package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"invoicemix/internal/amqp"
	"invoicemix/internal/cli"
	"invoicemix/internal/core"
	"invoicemix/internal/log"
)

var runExport bool

// scenariosCmd groups saved scenario management
var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Manage saved scenarios",
	Long: `List, re-run and delete saved scenarios.

Available subcommands:
  list   - Show every saved scenario
  run    - Load a scenario and search again with it
  delete - Remove a scenario
  watch  - Follow scenario changes published by other sessions`,
}

var scenariosListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show every saved scenario",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		printScenarios(cmd.OutOrStdout(), app.Formatter, app.Scenarios.List(ctx), app.Orchestrator.State().ActiveScenario())
		return nil
	},
}

var scenariosRunCmd = &cobra.Command{
	Use:   "run ID",
	Short: "Load a scenario and search again with it",
	Args:  cobra.ExactArgs(1),
	RunE:  runScenario,
}

var scenariosDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Remove a scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := app.Orchestrator.DeleteScenario(cmd.Context(), args[0])
		if err != nil {
			return flowError(core.SourceManual, err)
		}
		if !removed {
			return fmt.Errorf("no scenario with id %s", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted scenario %s\n", args[0])
		return nil
	},
}

var scenariosWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow scenario changes published by other sessions",
	Long: `Follow scenario saved and deleted events on the configured AMQP queue.
Requires AMQP_URL. Stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	scenariosRunCmd.Flags().BoolVar(&runExport, "export", false, "Export the combinations as CSV after a successful search")

	scenariosCmd.AddCommand(scenariosListCmd)
	scenariosCmd.AddCommand(scenariosRunCmd)
	scenariosCmd.AddCommand(scenariosDeleteCmd)
	scenariosCmd.AddCommand(scenariosWatchCmd)
}

func runScenario(cmd *cobra.Command, args []string) error {
	orch := app.Orchestrator
	res, err := orch.LoadScenario(cmd.Context(), args[0])
	if err != nil {
		return flowError(core.SourceManual, err)
	}
	printResults(cmd.OutOrStdout(), app.Formatter, orch.State().Snapshot(), core.SourceManual, res)
	return afterSearch(cmd, core.SourceManual, requestFlags{export: runExport})
}

func runWatch(cmd *cobra.Command, args []string) error {
	events := app.Backend.Events
	if events == nil {
		return fmt.Errorf("scenario events are disabled: set AMQP_URL")
	}

	logger := app.Logger.WithComponent(log.ComponentAMQP)
	parent, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	ctx, done := cli.GracefulShutdown(parent, logger, 5*time.Second, nil)
	out := cmd.OutOrStdout()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return events.ConsumeScenarioEvents(gctx, func(ev *amqp.ScenarioEvent) error {
			app.Scenarios.Reload(gctx)
			fmt.Fprintf(out, "%s  %-16s %s  %s\n",
				ev.Timestamp.Local().Format(time.DateTime), ev.Type, ev.ScenarioID, ev.Name)
			return nil
		})
	})

	fmt.Fprintln(out, "Watching scenario events. Press Ctrl+C to stop.")
	err := g.Wait()
	cancel()
	<-done
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
