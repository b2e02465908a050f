package oops

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

var SampleErrorValue = errors.New("some error occurred that you should handle")

type SampleErrorType struct {
	Message string
}

func (s SampleErrorType) Error() string {
	return s.Message
}

func init() {
	zerolog.ErrorStackMarshaler = ZerologStackMarshaler
}

func TestNew(t *testing.T) {
	t.Run("errors.Is", func(t *testing.T) {
		err := New(SampleErrorValue, "test error")
		if !errors.Is(err, SampleErrorValue) {
			t.Fatal("error did not appear to wrap the sample value")
		}
	})
	t.Run("errors.As", func(t *testing.T) {
		err := New(SampleErrorType{Message: "some fancy error type has occurred"}, "test error")
		var sErr SampleErrorType
		if !errors.As(err, &sErr) {
			t.Fatal("error did not appear to wrap the sample error type")
		}
	})
	t.Run("message", func(t *testing.T) {
		assert.Equal(t, "failed to merge 3 posts: "+SampleErrorValue.Error(), New(SampleErrorValue, "failed to merge %d posts", 3).Error())
		assert.Equal(t, "nothing wrapped", New(nil, "nothing wrapped").Error())
	})
	t.Run("stack starts at caller", func(t *testing.T) {
		err := New(nil, "test error").(*Error)
		if assert.NotEmpty(t, err.Stack) {
			assert.True(t, strings.HasSuffix(err.Stack[0].Function, "TestNew.func4"), err.Stack[0].Function)
		}
	})
}

func TestZerologStackMarshaler(t *testing.T) {
	inner := New(SampleErrorValue, "inner").(*Error)
	outer := New(inner, "outer")
	wrappedByStdlib := fmt.Errorf("context: %w", outer)

	assert.Equal(t, inner.Stack, ZerologStackMarshaler(wrappedByStdlib))
	assert.Nil(t, ZerologStackMarshaler(SampleErrorValue))
}
