package relay

import (
	"errors"

	"txboost/jsonrpc"
)

// ErrInvalidAuthorization is returned by New when the authorization value
// is not a valid HTTP header value.
var ErrInvalidAuthorization = errors.New("invalid authorization header value")

// ClientError is a 4xx answer from the relay. Text is the raw response body.
type ClientError struct {
	StatusCode int
	Text       string
}

func (e *ClientError) Error() string {
	return "client error: " + e.Text
}

// RequestError is a transport failure or a 5xx answer from the relay.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return "failed to send request: " + e.Err.Error()
}

func (e *RequestError) Unwrap() error { return e.Err }

// ResponseError is a JSON-RPC error object reported by the relay.
type ResponseError struct {
	Text string
	Err  *jsonrpc.Error
}

func (e *ResponseError) Error() string {
	return "error response: " + e.Text
}

func (e *ResponseError) Unwrap() error { return e.Err }

func (e *ResponseError) ErrorCode() int { return e.Err.Code }
