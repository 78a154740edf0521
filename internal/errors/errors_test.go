package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorsCarryRuleAndCategory(t *testing.T) {
	err := Validation(ErrMaxLessThanMin)

	assert.True(t, Is(err, ErrMaxLessThanMin))
	assert.True(t, IsValidation(err))
	assert.False(t, IsPrecondition(err))
	assert.False(t, Is(err, ErrMinNotPositiveInteger))
	assert.Equal(t, "Maximum invoice count cannot be less than the minimum.", UserMessage(err, "fallback"))
}

func TestPreconditionErrors(t *testing.T) {
	err := Precondition(ErrRunSearchBeforeExport)

	assert.True(t, IsPrecondition(err))
	assert.True(t, Is(err, ErrRunSearchBeforeExport))
	assert.Equal(t, "Run a search before exporting combinations.", UserMessage(err, ""))
}

func TestDuplicateInvoiceID(t *testing.T) {
	err := DuplicateInvoiceID("INV-1")

	assert.True(t, Is(err, ErrDuplicateInvoiceID))
	assert.True(t, IsValidation(err))
	id, ok := DuplicateID(err)
	assert.True(t, ok)
	assert.Equal(t, "INV-1", id)
	assert.Equal(t, `Invoice id "INV-1" is duplicated. Use unique ids.`, UserMessage(err, ""))

	_, ok = DuplicateID(Validation(ErrTargetNotPositive))
	assert.False(t, ok)
}

func TestServiceErrorMessage(t *testing.T) {
	withMessage := Service("search", fmt.Errorf("status 400"), "Validation failed")
	assert.True(t, IsService(withMessage))
	assert.Equal(t, "Validation failed", UserMessage(withMessage, FallbackSearch))

	withoutMessage := Service("search", fmt.Errorf("dial tcp: connection refused"), "")
	assert.True(t, IsService(withoutMessage))
	assert.Equal(t, FallbackSearch, UserMessage(withoutMessage, FallbackSearch))
}

func TestUserMessageNil(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil, "fallback"))
	assert.Equal(t, "fallback", UserMessage(fmt.Errorf("plain"), "fallback"))
}
