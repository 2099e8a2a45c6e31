package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryCodeHasMetadata(t *testing.T) {
	codes := []Code{
		CodeValidation, CodeUnauthorized, CodeForbidden, CodeNotFound, CodeConflict,
		CodeIdempotency, CodeRateLimit, CodeInternal, CodeDependency,
		CodeOutOfStock, CodeInsufficientStock, CodeProductUnavailable, CodeEmptyCart, CodeInvalidTransition,
	}
	for _, code := range codes {
		meta, ok := metadataByCode[code]
		require.True(t, ok, "missing metadata for %s", code)
		assert.NotEmpty(t, meta.PublicMessage, code)
		assert.GreaterOrEqual(t, meta.HTTPStatus, 400, code)
	}
	assert.Len(t, metadataByCode, len(codes), "metadata table carries codes nothing raises")
}

func TestStockErrorsAreConflictsWithDetails(t *testing.T) {
	for _, code := range []Code{CodeOutOfStock, CodeInsufficientStock, CodeProductUnavailable} {
		meta := MetadataFor(code)
		assert.Equal(t, http.StatusConflict, meta.HTTPStatus, code)
		assert.True(t, meta.DetailsAllowed, code)
		assert.False(t, meta.Retryable, code)
	}
	assert.Equal(t, http.StatusUnprocessableEntity, MetadataFor(CodeInvalidTransition).HTTPStatus)
	assert.Equal(t, http.StatusUnprocessableEntity, MetadataFor(CodeEmptyCart).HTTPStatus)
}

func TestServerSideCodesAreRetryable(t *testing.T) {
	assert.True(t, MetadataFor(CodeInternal).Retryable)
	assert.True(t, MetadataFor(CodeDependency).Retryable)
	assert.True(t, MetadataFor(CodeRateLimit).Retryable)
	assert.Equal(t, http.StatusServiceUnavailable, MetadataFor(CodeDependency).HTTPStatus)
}

func TestUnknownCodeFallsBackToInternal(t *testing.T) {
	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestWrapKeepsCauseReachable(t *testing.T) {
	cause := stdErrors.New("connection refused")
	wrapped := fmt.Errorf("load cart: %w", Wrap(CodeDependency, cause, "lookup cart"))

	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, IsCode(wrapped, CodeDependency))
	assert.False(t, IsCode(wrapped, CodeInternal))
	assert.Contains(t, wrapped.Error(), "connection refused")

	typed := As(wrapped)
	require.NotNil(t, typed)
	assert.Equal(t, "lookup cart", typed.Message())
	assert.Nil(t, As(nil))
	assert.Nil(t, As(stdErrors.New("plain")))
}

func TestNewfAndDetails(t *testing.T) {
	err := Newf(CodeValidation, "quantity must be at least %d", 1).WithDetails(map[string]any{"field": "quantity"})
	assert.Equal(t, "quantity must be at least 1", err.Message())
	assert.Equal(t, "VALIDATION_ERROR: quantity must be at least 1", err.Error())
	assert.Equal(t, map[string]any{"field": "quantity"}, err.Details())

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Nil(t, nilErr.WithDetails("x"))
}
