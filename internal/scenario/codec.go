package scenario

import (
	"bytes"
	"encoding/json"
	"strings"

	"invoicemix/internal/core"
)

// decodeScenarios reads a persisted collection leniently. Anything that is
// not a JSON array yields an empty collection; items that are not objects
// are skipped; missing lists become empty lists.
func decodeScenarios(data []byte) []core.SavedScenario {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return []core.SavedScenario{}
	}

	out := make([]core.SavedScenario, 0, len(items))
	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			continue
		}
		sc := core.SavedScenario{
			ID:   text(fields["id"]),
			Name: text(fields["name"]),
			RequestSnapshot: core.RequestSnapshot{
				Target:             text(fields["target"]),
				Invoices:           invoices(fields["invoices"]),
				MinInvoices:        count(fields["minInvoices"]),
				MaxInvoices:        count(fields["maxInvoices"]),
				RequiredInvoiceIDs: strs(fields["requiredInvoiceIds"]),
			},
		}
		out = append(out, sc)
	}
	return out
}

func encodeScenarios(scenarios []core.SavedScenario) ([]byte, error) {
	if scenarios == nil {
		scenarios = []core.SavedScenario{}
	}
	return json.Marshal(scenarios)
}

// text returns a JSON string as is and a JSON number as its literal.
func text(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func count(raw json.RawMessage) *int {
	if len(raw) == 0 {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil
	}
	v, ok := core.ParsePositiveInt(n.String())
	if !ok {
		return nil
	}
	return &v
}

func invoices(raw json.RawMessage) []core.InvoiceEntry {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []core.InvoiceEntry{}
	}
	out := make([]core.InvoiceEntry, 0, len(items))
	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			continue
		}
		out = append(out, core.InvoiceEntry{ID: text(fields["id"]), Amount: text(fields["amount"])})
	}
	return out
}

func strs(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := text(item); strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
