package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeDuplicateID, status: http.StatusConflict, detailsOK: true},
		{code: CodeStorage, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
		{code: CodeLocked, status: http.StatusConflict, retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		assert.Equal(t, tt.status, meta.HTTPStatus, "status for %s", tt.code)
		assert.Equal(t, tt.retryable, meta.Retryable, "retryable for %s", tt.code)
		assert.Equal(t, tt.detailsOK, meta.DetailsAllowed, "details for %s", tt.code)
		assert.NotEmpty(t, meta.PublicMessage)
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
}

func TestWrapKeepsCauseInChain(t *testing.T) {
	cause := stdErrors.New("disk full")
	err := fmt.Errorf("save project: %w", Wrap(CodeStorage, cause, "save failed"))

	require.True(t, IsCode(err, CodeStorage))
	assert.False(t, IsCode(err, CodeValidation))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")

	typed := As(err)
	require.NotNil(t, typed)
	assert.Equal(t, "save failed", typed.Message())
}

func TestDetailsAndNilSafety(t *testing.T) {
	err := Newf(CodeValidation, "exposed %d ft exceeds %d ft", 500, 400).WithDetails(map[string]string{"exposed_ft": "too large"})
	assert.Equal(t, "VALIDATION_ERROR: exposed 500 ft exceeds 400 ft", err.Error())
	assert.NotNil(t, err.Details())

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Nil(t, nilErr.WithDetails("x"))
	assert.Nil(t, As(nil))
}
