package usenet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyErrorMapsKnownStatusCodes(t *testing.T) {
	assert.Equal(t, ErrorNotFound, ClassifyError(420, nil))
	assert.Equal(t, ErrorNotFound, ClassifyError(430, nil))
	assert.Equal(t, ErrorFatal, ClassifyError(480, nil))
	assert.Equal(t, ErrorFatal, ClassifyError(482, nil))
	assert.Equal(t, ErrorRetryable, ClassifyError(400, nil))
}

func TestClassifyErrorFallsBackToAuthSniffWhenCodeUnknown(t *testing.T) {
	assert.Equal(t, ErrorFatal, ClassifyError(0, errors.New("403 Forbidden")))
	assert.Equal(t, ErrorFatal, ClassifyError(0, errors.New("authentication required")))
	assert.Equal(t, ErrorRetryable, ClassifyError(0, errors.New("connection reset")))
	assert.Equal(t, ErrorRetryable, ClassifyError(0, nil))
}

func TestClassAndErrorUnwrapThroughWrappedErrors(t *testing.T) {
	base := classifyAndWrap(430, "no such article", nil)
	wrapped := fmtWrap(base)
	assert.Equal(t, ErrorNotFound, Class(wrapped))
}

func TestClassDefaultsToRetryableForUnrelatedErrors(t *testing.T) {
	assert.Equal(t, ErrorRetryable, Class(errors.New("some other error")))
}

func fmtWrap(err error) error {
	return &wrappedErr{cause: err}
}

type wrappedErr struct{ cause error }

func (w *wrappedErr) Error() string { return "wrapped: " + w.cause.Error() }
func (w *wrappedErr) Unwrap() error { return w.cause }
