// Package jsonrpc holds the JSON-RPC 2.0 envelopes exchanged with a relay.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const Version = "2.0"

// ErrMalformedResponse is returned when a response body is not a JSON-RPC
// response object.
var ErrMalformedResponse = errors.New("malformed JSON-RPC response")

type Request struct {
	ID      uint64      `json:"id"`
	Version string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

func NewRequest(id uint64, method string, params interface{}) Request {
	return Request{
		ID:      id,
		Version: Version,
		Method:  method,
		Params:  params,
	}
}

// Error is the error object a relay reports for a failed call.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("code %d: %s (data: %s)", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("code %d: %s", e.Code, e.Message)
}

func (e *Error) ErrorCode() int { return e.Code }

type Response struct {
	ID      uint64          `json:"id"`
	Version string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`

	// nullID is set for error responses carrying "id": null, which servers
	// send when they could not read the request id.
	nullID bool
}

// DecodeResponse parses a response body. The body must carry "jsonrpc":
// "2.0" and an id; the id may only be null on an error response. Exactly
// one of result or error may be set; a null or absent result with no error
// is a valid empty outcome.
func DecodeResponse(body []byte) (*Response, error) {
	var wire struct {
		ID      json.RawMessage `json:"id"`
		Version string          `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
		Error   *Error          `json:"error"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if wire.Version != Version {
		return nil, fmt.Errorf("%w: jsonrpc version %q", ErrMalformedResponse, wire.Version)
	}

	resp := &Response{
		Version: wire.Version,
		Result:  wire.Result,
		Error:   wire.Error,
	}
	switch {
	case len(wire.ID) == 0:
		return nil, fmt.Errorf("%w: missing id", ErrMalformedResponse)
	case isNull(wire.ID):
		if wire.Error == nil {
			return nil, fmt.Errorf("%w: null id without error", ErrMalformedResponse)
		}
		resp.nullID = true
	default:
		if err := json.Unmarshal(wire.ID, &resp.ID); err != nil {
			return nil, fmt.Errorf("%w: id: %v", ErrMalformedResponse, err)
		}
	}

	if resp.Error != nil && !resp.isNull() {
		return nil, fmt.Errorf("%w: both result and error are set", ErrMalformedResponse)
	}
	return resp, nil
}

// MatchesID reports whether the response answers the request with id. A
// null id error response matches any request.
func (r *Response) MatchesID(id uint64) bool {
	if r.nullID {
		return true
	}
	return r.ID == id
}

func (r *Response) isNull() bool {
	return isNull(r.Result)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Result splits a response into its outcome: a decoded value, no value
// (nil, nil) or the relay's *Error.
func Result[R any](resp *Response) (*R, error) {
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.isNull() {
		return nil, nil
	}
	var result R
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("%w: result: %v", ErrMalformedResponse, err)
	}
	return &result, nil
}
