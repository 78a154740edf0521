package core

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	SourceManual Source = "manual"
	SourceUpload Source = "upload"
)

type (
	// Source records which intake flow produced a request.
	Source string

	InvoiceLineItem struct {
		ID     string
		Amount decimal.Decimal
	}

	// CombinationRequest is a validated search request. It is built fresh on
	// every submit and not modified once sent.
	CombinationRequest struct {
		Target             decimal.Decimal
		Invoices           []InvoiceLineItem
		MinInvoices        *int
		MaxInvoices        *int
		RequiredInvoiceIDs []string
	}

	// UploadRequest is a validated spreadsheet search. Invoices are unknown
	// until the service parses the file.
	UploadRequest struct {
		Target             decimal.Decimal
		TargetText         string // sent verbatim as typed
		File               *UploadFile
		MinInvoices        *int
		MaxInvoices        *int
		RequiredInvoiceIDs []string
	}

	UploadFile struct {
		Name    string
		Content []byte
	}

	CombinationResult struct {
		Combinations     [][]string
		CombinationCount int
		InvoiceAmounts   map[string]decimal.Decimal
	}
)

// IsValid returns true if the source is one of the known flows
func (s Source) IsValid() bool {
	switch s {
	case SourceManual, SourceUpload:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer
func (s Source) String() string {
	return string(s)
}

// InvoiceIDs returns the ids in request order.
func (r CombinationRequest) InvoiceIDs() []string {
	return lo.Map(r.Invoices, func(inv InvoiceLineItem, _ int) string { return inv.ID })
}

// Empty reports whether the result holds no combinations.
func (r *CombinationResult) Empty() bool {
	return r == nil || len(r.Combinations) == 0
}

// Total sums the known amounts of the i-th combination. Ids missing from
// InvoiceAmounts contribute nothing.
func (r *CombinationResult) Total(i int) decimal.Decimal {
	if r == nil || i < 0 || i >= len(r.Combinations) {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, id := range r.Combinations[i] {
		if amount, ok := r.InvoiceAmounts[id]; ok {
			total = total.Add(amount)
		}
	}
	return total
}

// Clone returns a deep copy so that callers can hand results out of a
// locked session without sharing slices.
func (r *CombinationResult) Clone() *CombinationResult {
	if r == nil {
		return nil
	}
	out := &CombinationResult{
		Combinations:     make([][]string, len(r.Combinations)),
		CombinationCount: r.CombinationCount,
		InvoiceAmounts:   make(map[string]decimal.Decimal, len(r.InvoiceAmounts)),
	}
	for i, combo := range r.Combinations {
		out.Combinations[i] = append([]string(nil), combo...)
	}
	for id, amount := range r.InvoiceAmounts {
		out.InvoiceAmounts[id] = amount
	}
	return out
}
