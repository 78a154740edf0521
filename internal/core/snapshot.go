package core

import (
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type (
	// InvoiceEntry is an invoice as the user typed it.
	InvoiceEntry struct {
		ID     string `json:"id"`
		Amount string `json:"amount"`
	}

	// RequestSnapshot is the recorded form of a request. Text fields are kept
	// verbatim so a loaded scenario saves back field-for-field.
	RequestSnapshot struct {
		Target             string         `json:"target"`
		Invoices           []InvoiceEntry `json:"invoices"`
		MinInvoices        *int           `json:"minInvoices,omitempty"`
		MaxInvoices        *int           `json:"maxInvoices,omitempty"`
		RequiredInvoiceIDs []string       `json:"requiredInvoiceIds"`
	}

	SavedScenario struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		RequestSnapshot
	}

	// LastRequestRecord is the most recent submitted or loaded request.
	LastRequestRecord struct {
		RequestSnapshot
		Source Source `json:"source"`
	}
)

// Clone returns a deep copy of the snapshot.
func (s RequestSnapshot) Clone() RequestSnapshot {
	out := RequestSnapshot{
		Target:             s.Target,
		Invoices:           append([]InvoiceEntry{}, s.Invoices...),
		RequiredInvoiceIDs: append([]string{}, s.RequiredInvoiceIDs...),
	}
	if s.MinInvoices != nil {
		out.MinInvoices = lo.ToPtr(*s.MinInvoices)
	}
	if s.MaxInvoices != nil {
		out.MaxInvoices = lo.ToPtr(*s.MaxInvoices)
	}
	return out
}

// ParseTarget returns the target when it parses to a positive number.
func (s RequestSnapshot) ParseTarget() (decimal.Decimal, bool) {
	return ParsePositive(s.Target)
}

// ValidInvoices returns the entries with a non-blank id and a positive
// amount, ids trimmed. Invalid entries are skipped rather than reported.
func (s RequestSnapshot) ValidInvoices() []InvoiceLineItem {
	out := make([]InvoiceLineItem, 0, len(s.Invoices))
	for _, entry := range s.Invoices {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			continue
		}
		amount, ok := ParsePositive(entry.Amount)
		if !ok {
			continue
		}
		out = append(out, InvoiceLineItem{ID: id, Amount: amount})
	}
	return out
}

// Request builds a request from the snapshot's constraints and the given
// already-parsed target and invoices.
func (s RequestSnapshot) Request(target decimal.Decimal, invoices []InvoiceLineItem) CombinationRequest {
	c := s.Clone()
	return CombinationRequest{
		Target:             target,
		Invoices:           invoices,
		MinInvoices:        c.MinInvoices,
		MaxInvoices:        c.MaxInvoices,
		RequiredInvoiceIDs: c.RequiredInvoiceIDs,
	}
}

// Record tags a copy of the snapshot with its source.
func (s RequestSnapshot) Record(source Source) *LastRequestRecord {
	return &LastRequestRecord{RequestSnapshot: s.Clone(), Source: source}
}

// Clone returns a deep copy of the record.
func (r *LastRequestRecord) Clone() *LastRequestRecord {
	if r == nil {
		return nil
	}
	return r.RequestSnapshot.Record(r.Source)
}

// Clone returns a deep copy of the scenario.
func (sc SavedScenario) Clone() SavedScenario {
	return SavedScenario{ID: sc.ID, Name: sc.Name, RequestSnapshot: sc.RequestSnapshot.Clone()}
}
