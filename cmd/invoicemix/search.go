package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"invoicemix/internal/core"
	"invoicemix/internal/validation"
)

// requestFlags are the constraint flags shared by search and upload.
type requestFlags struct {
	target   string
	min      string
	max      string
	required string
	export   bool
	save     bool
	name     string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.target, "target", "t", "", "Target amount the combinations must reach")
	cmd.Flags().StringVar(&f.min, "min", "", "Minimum number of invoices per combination")
	cmd.Flags().StringVar(&f.max, "max", "", "Maximum number of invoices per combination")
	cmd.Flags().StringVarP(&f.required, "required", "r", "", "Comma-separated invoice ids every combination must include")
	cmd.Flags().BoolVar(&f.export, "export", false, "Export the combinations as CSV after a successful search")
	cmd.Flags().BoolVar(&f.save, "save", false, "Save the request as a scenario after a successful search")
	cmd.Flags().StringVar(&f.name, "name", "", "Scenario name for --save (prompts when empty)")
}

var manualFlags requestFlags

var invoiceArgs []string

// searchCmd runs a search over invoices given on the command line
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search combinations over invoices given as flags",
	Long: `Search combinations over invoices entered on the command line.

Each invoice is given as ID=AMOUNT, for example:
  invoicemix search --target 1500 -i INV-1=1000 -i INV-2=500 -i INV-3=250`,
	Example: `  invoicemix search -t 100 -i A=60 -i B=40 -i C=25 --max 2
  invoicemix search -t 100 -i A=60 -i B=40 --required A --save --name "Q3 close"`,
	RunE: runSearch,
}

func init() {
	manualFlags.register(searchCmd)
	searchCmd.Flags().StringArrayVarP(&invoiceArgs, "invoice", "i", nil, "Invoice as ID=AMOUNT (repeatable)")
}

// parseInvoiceArgs splits ID=AMOUNT arguments. The amount is kept as typed
// so validation reports it the same way as any other entry.
func parseInvoiceArgs(args []string) ([]core.InvoiceEntry, error) {
	entries := make([]core.InvoiceEntry, 0, len(args))
	for _, arg := range args {
		idx := strings.LastIndex(arg, "=")
		if idx < 0 {
			return nil, fmt.Errorf("invalid invoice %q: expected ID=AMOUNT", arg)
		}
		entries = append(entries, core.InvoiceEntry{ID: arg[:idx], Amount: arg[idx+1:]})
	}
	return entries, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	entries, err := parseInvoiceArgs(invoiceArgs)
	if err != nil {
		return err
	}

	orch := app.Orchestrator
	orch.State().SetManualForm(validation.ManualForm{
		Target:      manualFlags.target,
		MinInvoices: manualFlags.min,
		MaxInvoices: manualFlags.max,
		RequiredIDs: manualFlags.required,
		Invoices:    entries,
	})

	res, err := orch.SubmitManual(ctx)
	if err != nil {
		return flowError(core.SourceManual, err)
	}
	printResults(cmd.OutOrStdout(), app.Formatter, orch.State().Snapshot(), core.SourceManual, res)
	return afterSearch(cmd, core.SourceManual, manualFlags)
}

// afterSearch runs the optional export and save steps of a search.
func afterSearch(cmd *cobra.Command, flow core.Source, flags requestFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	orch := app.Orchestrator

	if flags.export {
		path, err := orch.Export(ctx, flow)
		if err != nil {
			return flowError(flow, err)
		}
		fmt.Fprintf(out, "\nExported combinations to %s\n", path)
	}

	if flags.save {
		sc, err := orch.SaveScenario(ctx, flow, namePrompt(cmd, flags.name))
		if err != nil {
			return flowError(flow, err)
		}
		if sc == nil {
			fmt.Fprintln(out, "\nScenario not saved.")
			return nil
		}
		fmt.Fprintf(out, "\nSaved scenario %q (%s)\n", sc.Name, sc.ID)
	}
	return nil
}

// flowError returns the message recorded on the session for flow, which is
// what the user should see, falling back to err itself.
func flowError(flow core.Source, err error) error {
	if msg := app.Orchestrator.State().Error(flow); msg != "" {
		return fmt.Errorf("%s", msg)
	}
	return err
}
