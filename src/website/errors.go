package website

import (
	"fmt"
	"net/http"
)

func FourOhFour(c *RequestContext) ResponseData {
	return c.ErrorResponse(http.StatusNotFound)
}

// A SafeError can be used to wrap another error and explicitly provide
// an error message that is safe to show to a user. This allows the original
// error to easily be logged and for servers to consistently return errors
// in a standard format, without having to worry about leaking sensitive
// info.
type SafeError struct {
	Wrapped error
	Msg     string
}

func NewSafeError(err error, msg string, args ...any) error {
	return &SafeError{
		Wrapped: err,
		Msg:     fmt.Sprintf(msg, args...),
	}
}

func (s *SafeError) Error() string {
	if s.Wrapped != nil {
		return fmt.Sprintf("%s: %v", s.Msg, s.Wrapped)
	}
	return s.Msg
}

func (s *SafeError) Unwrap() error {
	return s.Wrapped
}
