// Package errors defines the error taxonomy shared by the validation engine,
// the orchestrator and the scenario store.
//
// Every error produced here carries a hint: the single human-readable message
// shown to the user. Category sentinels (ErrValidation, ErrPrecondition,
// ErrService) and rule sentinels are attached as marks so callers can match
// with Is regardless of wrapping.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Categories
var (
	ErrValidation   = errors.New("validation error")
	ErrPrecondition = errors.New("precondition failed")
	ErrService      = errors.New("combination service error")
)

// Validation rules
var (
	ErrTargetNotPositive     = errors.New("target not positive")
	ErrMinNotPositiveInteger = errors.New("min invoices not a positive integer")
	ErrMaxNotPositiveInteger = errors.New("max invoices not a positive integer")
	ErrMaxLessThanMin        = errors.New("max invoices less than min invoices")
	ErrMissingInvoiceField   = errors.New("invoice row missing id or amount")
	ErrNoInvoicesProvided    = errors.New("no invoices provided")
	ErrAmountNotPositive     = errors.New("invoice amount not positive")
	ErrDuplicateInvoiceID    = errors.New("duplicate invoice id")
	ErrFileRequired          = errors.New("file required")
)

// Preconditions
var (
	ErrRunSearchBeforeSave   = errors.New("no search to save")
	ErrRunSearchBeforeExport = errors.New("no search to export")
	ErrInvalidLastTarget     = errors.New("last target invalid")
	ErrNoValidInvoices       = errors.New("no valid invoices in last request")
	ErrScenarioNotFound      = errors.New("scenario not found")
)

// Fallback messages used when the service does not provide one.
const (
	FallbackSearch   = "Unable to fetch combinations right now."
	FallbackUpload   = "Unable to process the uploaded Excel file."
	FallbackExport   = "An unexpected error occurred while exporting combinations."
	FallbackScenario = "Unable to update saved scenarios right now."
)

var hints = map[error]string{
	ErrTargetNotPositive:     "Please provide a target amount greater than zero.",
	ErrMinNotPositiveInteger: "Minimum invoice count must be a positive integer.",
	ErrMaxNotPositiveInteger: "Maximum invoice count must be a positive integer.",
	ErrMaxLessThanMin:        "Maximum invoice count cannot be less than the minimum.",
	ErrMissingInvoiceField:   "Each invoice needs both an id and an amount.",
	ErrNoInvoicesProvided:    "Add at least one invoice before searching.",
	ErrAmountNotPositive:     "Invoice amounts must be numbers greater than zero.",
	ErrFileRequired:          "Please select an .xlsx file containing invoice data.",
	ErrRunSearchBeforeSave:   "Run a search before saving a scenario.",
	ErrRunSearchBeforeExport: "Run a search before exporting combinations.",
	ErrInvalidLastTarget:     "Unable to export because the last target amount is invalid.",
	ErrNoValidInvoices:       "Unable to export because no valid invoices were found in the last request.",
	ErrScenarioNotFound:      "That scenario no longer exists.",
}

// DuplicateIDError carries the first repeated invoice id.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("invoice id %q is duplicated", e.ID)
}

// Validation builds the validation error for the given rule sentinel.
func Validation(rule error) error {
	return NewError(rule.Error()).
		WithHint(hints[rule]).
		Mark(rule, ErrValidation)
}

// Precondition builds the precondition error for the given sentinel.
func Precondition(rule error) error {
	return NewError(rule.Error()).
		WithHint(hints[rule]).
		Mark(rule, ErrPrecondition)
}

// DuplicateInvoiceID reports id as the first repeated invoice id.
func DuplicateInvoiceID(id string) error {
	return WithError(&DuplicateIDError{ID: id}).
		WithHintf("Invoice id %q is duplicated. Use unique ids.", id).
		Mark(ErrDuplicateInvoiceID, ErrValidation)
}

// Service wraps a failed remote call. message is the text provided by the
// service, if any; an empty message leaves the caller's fallback in charge.
func Service(op string, cause error, message string) error {
	b := WithError(cause).WithMessage(op)
	if message != "" {
		b = b.WithHint(message)
	}
	return b.Mark(ErrService)
}

// UserMessage returns the message to surface for err, or fallback when err
// carries none.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if hints := errors.GetAllHints(err); len(hints) > 0 && hints[0] != "" {
		return hints[0]
	}
	return fallback
}

// DuplicateID extracts the offending id from a duplicate-id error.
func DuplicateID(err error) (string, bool) {
	var dup *DuplicateIDError
	if errors.As(err, &dup) {
		return dup.ID, true
	}
	return "", false
}

func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsPrecondition checks if an error is a precondition error
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}

// IsService checks if an error is a service error
func IsService(err error) bool {
	return errors.Is(err, ErrService)
}
