// Package validation turns raw form input into a well-formed combination
// request or a specific validation error. It never touches the network.
package validation

import (
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"invoicemix/internal/core"
	ierr "invoicemix/internal/errors"
)

type (
	// ManualForm holds the manual-entry fields exactly as typed.
	ManualForm struct {
		Target      string
		MinInvoices string
		MaxInvoices string
		RequiredIDs string
		Invoices    []core.InvoiceEntry
	}

	// UploadForm holds the spreadsheet-upload fields exactly as typed.
	UploadForm struct {
		Target      string
		MinInvoices string
		MaxInvoices string
		RequiredIDs string
		File        *core.UploadFile
	}

	constraints struct {
		target   decimal.Decimal
		min      *int
		max      *int
		required []string
	}
)

// ValidateManual validates a manual-entry form. Rules run in order and the
// first failure is returned.
func ValidateManual(form ManualForm) (core.CombinationRequest, error) {
	c, err := validateCommon(form.Target, form.MinInvoices, form.MaxInvoices, form.RequiredIDs)
	if err != nil {
		return core.CombinationRequest{}, err
	}

	rows := NonBlankRows(form.Invoices)
	if len(rows) == 0 {
		return core.CombinationRequest{}, ierr.Validation(ierr.ErrNoInvoicesProvided)
	}
	for _, row := range rows {
		if row.ID == "" || row.Amount == "" {
			return core.CombinationRequest{}, ierr.Validation(ierr.ErrMissingInvoiceField)
		}
	}

	invoices := make([]core.InvoiceLineItem, 0, len(rows))
	for _, row := range rows {
		amount, ok := core.ParsePositive(row.Amount)
		if !ok {
			return core.CombinationRequest{}, ierr.Validation(ierr.ErrAmountNotPositive)
		}
		invoices = append(invoices, core.InvoiceLineItem{ID: row.ID, Amount: amount})
	}

	seen := make(map[string]struct{}, len(invoices))
	for _, inv := range invoices {
		if _, dup := seen[inv.ID]; dup {
			return core.CombinationRequest{}, ierr.DuplicateInvoiceID(inv.ID)
		}
		seen[inv.ID] = struct{}{}
	}

	return core.CombinationRequest{
		Target:             c.target,
		Invoices:           invoices,
		MinInvoices:        c.min,
		MaxInvoices:        c.max,
		RequiredInvoiceIDs: c.required,
	}, nil
}

// ValidateUpload validates a spreadsheet-upload form. Invoice rows are not
// checked here; the service parses them from the file.
func ValidateUpload(form UploadForm) (core.UploadRequest, error) {
	c, err := validateCommon(form.Target, form.MinInvoices, form.MaxInvoices, form.RequiredIDs)
	if err != nil {
		return core.UploadRequest{}, err
	}
	if form.File == nil {
		return core.UploadRequest{}, ierr.Validation(ierr.ErrFileRequired)
	}
	return core.UploadRequest{
		Target:             c.target,
		TargetText:         strings.TrimSpace(form.Target),
		File:               form.File,
		MinInvoices:        c.min,
		MaxInvoices:        c.max,
		RequiredInvoiceIDs: c.required,
	}, nil
}

// validateCommon checks the fields both flows share. The count range is
// checked before the target so that an inverted range is always reported as
// such.
func validateCommon(target, minText, maxText, required string) (constraints, error) {
	var c constraints

	if strings.TrimSpace(minText) != "" {
		n, ok := core.ParsePositiveInt(minText)
		if !ok {
			return c, ierr.Validation(ierr.ErrMinNotPositiveInteger)
		}
		c.min = &n
	}
	if strings.TrimSpace(maxText) != "" {
		n, ok := core.ParsePositiveInt(maxText)
		if !ok {
			return c, ierr.Validation(ierr.ErrMaxNotPositiveInteger)
		}
		c.max = &n
	}
	if c.min != nil && c.max != nil && *c.max < *c.min {
		return c, ierr.Validation(ierr.ErrMaxLessThanMin)
	}

	t, ok := core.ParsePositive(target)
	if !ok {
		return c, ierr.Validation(ierr.ErrTargetNotPositive)
	}
	c.target = t
	c.required = ParseRequiredIDs(required)
	return c, nil
}

// ParseRequiredIDs splits comma-separated ids, trims them, drops blanks and
// keeps the first occurrence of each.
func ParseRequiredIDs(s string) []string {
	parts := lo.Map(strings.Split(s, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	})
	return lo.Uniq(lo.Compact(parts))
}

// NonBlankRows trims every row and drops rows where both fields are blank.
func NonBlankRows(rows []core.InvoiceEntry) []core.InvoiceEntry {
	out := make([]core.InvoiceEntry, 0, len(rows))
	for _, row := range rows {
		row.ID = strings.TrimSpace(row.ID)
		row.Amount = strings.TrimSpace(row.Amount)
		if row.ID == "" && row.Amount == "" {
			continue
		}
		out = append(out, row)
	}
	return out
}

// Snapshot records a validated manual form the way the user typed it.
func (f ManualForm) Snapshot(req core.CombinationRequest) core.RequestSnapshot {
	return core.RequestSnapshot{
		Target:             strings.TrimSpace(f.Target),
		Invoices:           NonBlankRows(f.Invoices),
		MinInvoices:        req.MinInvoices,
		MaxInvoices:        req.MaxInvoices,
		RequiredInvoiceIDs: req.RequiredInvoiceIDs,
	}.Clone()
}

// Snapshot records a validated upload form. The invoice list stays empty
// until the service reports what it parsed from the file.
func (f UploadForm) Snapshot(req core.UploadRequest) core.RequestSnapshot {
	return core.RequestSnapshot{
		Target:             req.TargetText,
		Invoices:           []core.InvoiceEntry{},
		MinInvoices:        req.MinInvoices,
		MaxInvoices:        req.MaxInvoices,
		RequiredInvoiceIDs: req.RequiredInvoiceIDs,
	}.Clone()
}

// Clone returns a copy that shares no rows with f.
func (f ManualForm) Clone() ManualForm {
	f.Invoices = append([]core.InvoiceEntry(nil), f.Invoices...)
	return f
}

// FormFromSnapshot repopulates the manual fields from a recorded request.
// An empty invoice list yields a single blank row to type into.
func FormFromSnapshot(s core.RequestSnapshot) ManualForm {
	form := ManualForm{
		Target:      s.Target,
		RequiredIDs: strings.Join(s.RequiredInvoiceIDs, ", "),
		Invoices:    append([]core.InvoiceEntry(nil), s.Invoices...),
	}
	if s.MinInvoices != nil {
		form.MinInvoices = strconv.Itoa(*s.MinInvoices)
	}
	if s.MaxInvoices != nil {
		form.MaxInvoices = strconv.Itoa(*s.MaxInvoices)
	}
	if len(form.Invoices) == 0 {
		form.Invoices = []core.InvoiceEntry{{}}
	}
	return form
}
