package oops

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	base := errors.New("connection refused")
	err := New(base, "failed to fetch article %s", "abc")

	assert.Equal(t, "failed to fetch article abc: connection refused", err.Error())
	assert.True(t, errors.Is(err, base))

	var oopsErr *Error
	if assert.True(t, errors.As(err, &oopsErr)) {
		if assert.NotEmpty(t, oopsErr.Stack) {
			assert.True(t, strings.HasSuffix(oopsErr.Stack[0].Function, "TestNew"), oopsErr.Stack[0].Function)
		}
	}
}

func TestNewWithoutWrapped(t *testing.T) {
	err := New(nil, "slug allocation gave up")
	assert.Equal(t, "slug allocation gave up", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}

func TestStackMarshaler(t *testing.T) {
	assert.NotNil(t, ZerologStackMarshaler(New(nil, "boom")))
	assert.Nil(t, ZerologStackMarshaler(errors.New("plain")))
}
