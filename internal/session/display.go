package session

import (
	"fmt"
	"strconv"
	"strings"

	"invoicemix/internal/core"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	NotSet       = "Not set"
	NoneRequired = "None"
	RequiresText = "Requires: "
	missing      = "-"
	openBound    = "—"
)

// CanExport reports whether the flow's results can be exported: a record
// exists, it came from this flow, there are results, and no export is
// running.
func CanExport(snap Snapshot, flow core.Source) bool {
	fs := snap.Flow(flow)
	return snap.LastRequest != nil &&
		!fs.Results.Empty() &&
		snap.LastRequest.Source == flow &&
		!fs.Exporting
}

// CanSave reports whether there is a request to save.
func CanSave(snap Snapshot) bool {
	return snap.LastRequest != nil
}

// Formatter renders amounts for one locale.
type Formatter struct {
	printer *message.Printer
}

func NewFormatter(tag language.Tag) Formatter {
	return Formatter{printer: message.NewPrinter(tag)}
}

// Amount formats a number with as many fraction digits as it has, at
// least 2 and at most 6. Strings are parsed first and returned unchanged
// when they are not numeric. Anything else renders as "-".
func (f Formatter) Amount(v any) string {
	var d decimal.Decimal
	switch x := v.(type) {
	case decimal.Decimal:
		d = x
	case *decimal.Decimal:
		if x == nil {
			return missing
		}
		d = *x
	case string:
		parsed, err := core.ParseNumber(x)
		if err != nil {
			return x
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	default:
		return missing
	}

	digits := fractionDigits(d)
	p := f.printer
	if p == nil {
		p = message.NewPrinter(language.English)
	}
	return p.Sprint(number.Decimal(d.Round(int32(digits)).InexactFloat64(),
		number.MinFractionDigits(digits),
		number.MaxFractionDigits(digits)))
}

func fractionDigits(d decimal.Decimal) int {
	_, frac, ok := strings.Cut(d.String(), ".")
	if !ok {
		return 2
	}
	return min(max(len(frac), 2), 6)
}

// RangeDisplay renders the min/max constraint, "—" for an open bound.
func RangeDisplay(minInvoices, maxInvoices *int) string {
	if minInvoices == nil && maxInvoices == nil {
		return NotSet
	}
	return bound(minInvoices) + " - " + bound(maxInvoices)
}

func bound(v *int) string {
	if v == nil {
		return openBound
	}
	return strconv.Itoa(*v)
}

// RequiredDisplay joins the required ids or returns "None".
func RequiredDisplay(ids []string) string {
	if len(ids) == 0 {
		return NoneRequired
	}
	return strings.Join(ids, ", ")
}

// Summary describes the last request as shown next to a flow.
type Summary struct {
	Available    bool
	Target       string
	InvoiceCount string
	Range        string
	Required     string
}

// SummaryFor summarizes the last request when it came from flow, and
// returns placeholders otherwise.
func (f Formatter) SummaryFor(snap Snapshot, flow core.Source) Summary {
	rec := snap.LastRequest
	if rec == nil || rec.Source != flow {
		return Summary{Target: NotSet, InvoiceCount: NotSet, Range: NotSet, Required: NoneRequired}
	}
	return Summary{
		Available:    true,
		Target:       f.Amount(rec.Target),
		InvoiceCount: strconv.Itoa(len(rec.Invoices)),
		Range:        RangeDisplay(rec.MinInvoices, rec.MaxInvoices),
		Required:     RequiredDisplay(rec.RequiredInvoiceIDs),
	}
}

// Card is the list entry for a saved scenario.
type Card struct {
	ID       string
	Name     string
	Summary  string
	Requires string
	Active   bool
}

// ScenarioCard renders a saved scenario. A target that is not a number
// shows as "-".
func (f Formatter) ScenarioCard(sc core.SavedScenario, activeID string) Card {
	amount := missing
	if d, err := core.ParseNumber(sc.Target); err == nil {
		amount = f.Amount(d)
	}
	n := len(sc.Invoices)
	summary := fmt.Sprintf("Target %s · %d invoices", amount, n)
	if n == 1 {
		summary = fmt.Sprintf("Target %s · 1 invoice", amount)
	}
	card := Card{
		ID:      sc.ID,
		Name:    sc.Name,
		Summary: summary,
		Active:  sc.ID != "" && sc.ID == activeID,
	}
	if len(sc.RequiredInvoiceIDs) > 0 {
		card.Requires = RequiresText + strings.Join(sc.RequiredInvoiceIDs, ", ")
	}
	return card
}

// CombinationItem is one invoice inside a combination.
type CombinationItem struct {
	ID     string
	Amount string
}

// CombinationLine is one rendered combination.
type CombinationLine struct {
	Label string
	Items []CombinationItem
	Total string
}

// CombinationLines renders every combination with its known total.
// Ids without an amount show "-" and add nothing to the total.
func (f Formatter) CombinationLines(res *core.CombinationResult) []CombinationLine {
	if res.Empty() {
		return []CombinationLine{}
	}
	return lo.Map(res.Combinations, func(combo []string, i int) CombinationLine {
		return CombinationLine{
			Label: fmt.Sprintf("Combination %d", i+1),
			Items: lo.Map(combo, func(id string, _ int) CombinationItem {
				amount, ok := res.InvoiceAmounts[id]
				if !ok {
					return CombinationItem{ID: id, Amount: missing}
				}
				return CombinationItem{ID: id, Amount: f.Amount(amount)}
			}),
			Total: f.Amount(res.Total(i)),
		}
	})
}

// ResultsIntro is the headline above the results of a search.
func ResultsIntro(count int) string {
	switch count {
	case 0:
		return "No combinations reach the target."
	case 1:
		return "Found 1 combination that reaches the target."
	default:
		return fmt.Sprintf("Found %d combinations that reach the target.", count)
	}
}
