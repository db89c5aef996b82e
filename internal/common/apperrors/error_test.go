package apperrors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorChaining(t *testing.T) {
	ErrBase := New("base error")
	assert.Equal(t, "base error", ErrBase.Error())
	assert.Equal(t, http.StatusInternalServerError, ErrBase.StatusCode())

	ErrChild := ErrBase.New("child error")
	assert.Equal(t, "child error", ErrChild.Error())
	assert.ErrorIs(t, ErrChild, ErrBase)

	ErrGrandChild := ErrChild.Msg("grandchild error")
	assert.Equal(t, "grandchild error", ErrGrandChild.Error())
	assert.ErrorIs(t, ErrGrandChild, ErrChild)
	assert.ErrorIs(t, ErrGrandChild, ErrBase)

	// plain errors attached as causes stay matchable
	cause := errors.New("io failure")
	wrapped := ErrChild.Err(cause)
	assert.Equal(t, "child error", wrapped.Error())
	assert.ErrorIs(t, wrapped, ErrBase)
	assert.ErrorIs(t, wrapped, cause)

	other := fmt.Errorf("other failure")
	remessaged := ErrChild.MsgErr("request failed", cause, other)
	assert.Equal(t, "request failed", remessaged.Error())
	assert.ErrorIs(t, remessaged, ErrChild)
	assert.ErrorIs(t, remessaged, cause)
	assert.ErrorIs(t, remessaged, other)
}

func TestErrorStatusCode(t *testing.T) {
	ErrBase := New("base error").SetStatusCode(http.StatusBadGateway)
	assert.Equal(t, http.StatusBadGateway, ErrBase.StatusCode())

	// derived errors inherit the code unless overridden
	ErrChild := ErrBase.New("child error")
	assert.Equal(t, http.StatusBadGateway, ErrChild.StatusCode())

	ErrOverride := ErrChild.SetStatusCode(http.StatusRequestTimeout)
	assert.Equal(t, http.StatusRequestTimeout, ErrOverride.StatusCode())
	assert.ErrorIs(t, ErrOverride, ErrBase)

	assert.Equal(t, http.StatusBadGateway, ErrChild.Msg("re-messaged").StatusCode())
}

func TestErrorAll(t *testing.T) {
	ErrBase := New("base error")
	cause := errors.New("underlying cause")
	wrapped := ErrBase.MsgErr("operation failed", cause)
	assert.Equal(t, "operation failed", wrapped.Error())
	assert.Equal(t, "operation failed; underlying cause", wrapped.ErrorAll())
	assert.Contains(t, wrapped.UnwrapAll(), cause)
}

func TestErrorNilTarget(t *testing.T) {
	ErrBase := New("base error")
	assert.False(t, errors.Is(ErrBase, nil))
}
