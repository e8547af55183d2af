// Package relay implements an authenticated JSON-RPC client for bundle relays.
//
// Authentication is a static Authorization header fixed when the Relay is
// built. A Relay may also carry a Signer; with WithPayloadSignature every
// request body is additionally signed and sent in the X-Flashbots-Signature
// header.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/net/http/httpguts"

	"txboost/jsonrpc"
	"txboost/metrics"
)

// Relay is a client for one relay endpoint. It is safe for concurrent use.
type Relay struct {
	id           atomic.Uint64
	client       *http.Client
	url          string
	signer       Signer
	signPayloads bool
	logger       log.Logger
}

type Option func(*Relay)

// WithHTTPClient sets the client requests go through. The client is copied;
// its transport is wrapped to add the authorization header.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Relay) {
		r.client = client
	}
}

func WithLogger(logger log.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithPayloadSignature signs every request body with the relay's signer.
// It has no effect when the relay has no signer.
func WithPayloadSignature() Option {
	return func(r *Relay) {
		r.signPayloads = true
	}
}

// New creates a relay client for rawURL. The authorization value is sent
// as the Authorization header of every request.
func New(rawURL string, signer Signer, authorization string, opts ...Option) (*Relay, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid relay url %q: scheme must be http or https", rawURL)
	}
	if !httpguts.ValidHeaderFieldValue(authorization) {
		return nil, ErrInvalidAuthorization
	}

	r := &Relay{
		url:    u.String(),
		signer: signer,
		logger: log.New("module", "relay", "url", u.Redacted()),
	}
	for _, opt := range opts {
		opt(r)
	}

	client := &http.Client{}
	if r.client != nil {
		*client = *r.client
	}
	if authorization != "" {
		client.Transport = &authTransport{
			authorization: authorization,
			base:          client.Transport,
		}
	}
	r.client = client
	return r, nil
}

// Clone returns a relay sharing the URL, signer and HTTP client, with its
// own request counter starting at zero.
func (r *Relay) Clone() *Relay {
	return &Relay{
		client:       r.client,
		url:          r.url,
		signer:       r.signer,
		signPayloads: r.signPayloads,
		logger:       r.logger,
	}
}

func (r *Relay) URL() string {
	return r.url
}

// Signer returns the relay's signer, or nil.
func (r *Relay) Signer() Signer {
	return r.signer
}

// Request sends method with params to the relay and decodes the result into
// R. A successful call with a null result returns (nil, nil).
//
// Errors are *ClientError for 4xx answers, *RequestError for transport
// failures and 5xx answers, *ResponseError for JSON-RPC errors and an error
// wrapping jsonrpc.ErrMalformedResponse for undecodable bodies and for
// answers carrying another request's id.
func Request[R any](ctx context.Context, r *Relay, method string, params interface{}) (*R, error) {
	id := r.id.Add(1)
	start := time.Now()

	result, outcome, err := doRequest[R](ctx, r, id, method, params)

	metrics.RecordRelayRequest(method, outcome, time.Since(start))
	if err != nil {
		r.logger.Debug("Relay request failed", "method", method, "id", id, "outcome", outcome, "err", err)
	}
	return result, err
}

func doRequest[R any](ctx context.Context, r *Relay, id uint64, method string, params interface{}) (*R, string, error) {
	body, err := json.Marshal(jsonrpc.NewRequest(id, method, params))
	if err != nil {
		return nil, metrics.OutcomeInvalidRequest, fmt.Errorf("encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, metrics.OutcomeInvalidRequest, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if r.signPayloads && r.signer != nil {
		signature, err := signatureHeaderValue(r.signer, body)
		if err != nil {
			return nil, metrics.OutcomeInvalidRequest, fmt.Errorf("sign %s request: %w", method, err)
		}
		req.Header.Set(SignatureHeader, signature)
	}

	r.logger.Debug("Relay request", "method", method, "id", id, "size", len(body))
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, metrics.OutcomeTransport, &RequestError{Err: err}
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, metrics.OutcomeTransport, &RequestError{StatusCode: resp.StatusCode, Err: err}
	}
	r.logger.Debug("Relay response", "method", method, "id", id, "status", resp.StatusCode, "size", len(text))

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, metrics.OutcomeClientError, &ClientError{StatusCode: resp.StatusCode, Text: string(text)}
	case resp.StatusCode >= 500:
		return nil, metrics.OutcomeTransport, &RequestError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("relay responded %s", resp.Status),
		}
	}

	decoded, err := jsonrpc.DecodeResponse(text)
	if err != nil {
		return nil, metrics.OutcomeMalformed, fmt.Errorf("%s response: %w", method, err)
	}
	if !decoded.MatchesID(id) {
		r.logger.Warn("Relay answered another request", "method", method, "id", id, "got", decoded.ID)
		return nil, metrics.OutcomeMalformed, fmt.Errorf("%s response: %w: id %d does not match request id %d",
			method, jsonrpc.ErrMalformedResponse, decoded.ID, id)
	}
	result, err := jsonrpc.Result[R](decoded)
	if err != nil {
		var rpcErr *jsonrpc.Error
		if errors.As(err, &rpcErr) {
			return nil, metrics.OutcomeRPCError, &ResponseError{Text: rpcErr.Error(), Err: rpcErr}
		}
		return nil, metrics.OutcomeMalformed, fmt.Errorf("%s response: %w", method, err)
	}
	if result == nil {
		return nil, metrics.OutcomeEmpty, nil
	}
	return result, metrics.OutcomeSuccess, nil
}

// authTransport sets the static Authorization header on outgoing requests.
type authTransport struct {
	authorization string
	base          http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", t.authorization)
	return t.transport().RoundTrip(req)
}

func (t *authTransport) transport() http.RoundTripper {
	if t.base == nil {
		return http.DefaultTransport
	}
	return t.base
}
