package main

import (
	"fmt"
	"io"

	"invoicemix/internal/core"
	"invoicemix/internal/session"
)

// printResults writes the request summary and every combination.
func printResults(w io.Writer, f session.Formatter, snap session.Snapshot, flow core.Source, res *core.CombinationResult) {
	sum := f.SummaryFor(snap, flow)
	fmt.Fprintf(w, "Target:   %s\n", sum.Target)
	fmt.Fprintf(w, "Invoices: %s\n", sum.InvoiceCount)
	fmt.Fprintf(w, "Range:    %s\n", sum.Range)
	fmt.Fprintf(w, "Required: %s\n\n", sum.Required)

	count := 0
	if res != nil {
		count = res.CombinationCount
	}
	fmt.Fprintln(w, session.ResultsIntro(count))
	for _, line := range f.CombinationLines(res) {
		fmt.Fprintf(w, "\n%s (total %s)\n", line.Label, line.Total)
		for _, item := range line.Items {
			fmt.Fprintf(w, "  %-20s %s\n", item.ID, item.Amount)
		}
	}
}

// printScenarios lists saved scenarios, marking the active one.
func printScenarios(w io.Writer, f session.Formatter, scenarios []core.SavedScenario, activeID string) {
	if len(scenarios) == 0 {
		fmt.Fprintln(w, "No saved scenarios.")
		return
	}
	for _, sc := range scenarios {
		card := f.ScenarioCard(sc, activeID)
		marker := " "
		if card.Active {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s  %s\n", marker, card.ID, card.Name)
		fmt.Fprintf(w, "    %s\n", card.Summary)
		if card.Requires != "" {
			fmt.Fprintf(w, "    %s\n", card.Requires)
		}
	}
}
