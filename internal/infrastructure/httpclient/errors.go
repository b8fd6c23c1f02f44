package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedEnvelope is returned when a response is not a well-formed
// envelope or its data does not match the expected shape.
var ErrMalformedEnvelope = errors.New("malformed response envelope")

// TransportError means no response was obtained
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// BusinessError is a response whose envelope code is not 200. Responses
// without an envelope but with an error status carry the HTTP status as code.
type BusinessError struct {
	Code    int
	Message string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("business error %d: %s", e.Code, e.Message)
}

// IsAuthFailure reports whether the code signals an expired or rejected session
func (e *BusinessError) IsAuthFailure() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}

// IsAuthFailure reports whether err is a BusinessError with code 401 or 403
func IsAuthFailure(err error) bool {
	var be *BusinessError
	return errors.As(err, &be) && be.IsAuthFailure()
}

// IsTransport reports whether err is a TransportError
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
