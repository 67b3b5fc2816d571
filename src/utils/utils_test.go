package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arsyadal/fastblog/src/oops"
	"github.com/stretchr/testify/assert"
)

func TestOrDefault(t *testing.T) {
	assert.Equal(t, 20, OrDefault(0, 20))
	assert.Equal(t, 5, OrDefault(5, 20))
	assert.Equal(t, "draft", OrDefault("", "draft"))
}

func TestDerefOr(t *testing.T) {
	assert.Equal(t, "x", DerefOr(nil, "x"))
	assert.Equal(t, "y", DerefOr(P("y"), "x"))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, Clamp(1, -3, 100))
	assert.Equal(t, 100, Clamp(1, 500, 100))
	assert.Equal(t, 42, Clamp(1, 42, 100))
}

func TestNumPages(t *testing.T) {
	assert.Equal(t, 1, NumPages(0, 20))
	assert.Equal(t, 1, NumPages(20, 20))
	assert.Equal(t, 2, NumPages(21, 20))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", TruncateRunes("héllo", 4))
	assert.Equal(t, "hi", TruncateRunes("hi", 10))
	assert.Equal(t, "", TruncateRunes("hi", 0))
}

func TestRecoverPanicAsError(t *testing.T) {
	f := func() (err error) {
		defer RecoverPanicAsError(&err)
		panic("at the disco")
	}
	err := f()
	if assert.NotNil(t, err) {
		var oopsErr *oops.Error
		assert.True(t, errors.As(err, &oopsErr))
		assert.Contains(t, err.Error(), "at the disco")
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, ErrSleepInterrupted, SleepContext(ctx, time.Hour))
	assert.Nil(t, SleepContext(context.Background(), time.Millisecond))
}
