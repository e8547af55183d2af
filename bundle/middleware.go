// Package bundle sends and simulates transaction bundles through a relay
// while delegating every other call to an inner provider.
package bundle

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"

	"txboost/relay"
)

const (
	MethodSendBundle = "eth_sendBundle"
	MethodCallBundle = "eth_callBundle"
)

// ErrBundleSim is returned when the relay answers a bundle call without a
// result.
var ErrBundleSim = errors.New("failed to simulate bundle: relay returned no result")

// Provider dispatches JSON-RPC calls. A go-ethereum *rpc.Client satisfies
// it, as does *Middleware, so middlewares can be stacked.
type Provider interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// ProviderError wraps a failure of the inner provider.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string { return e.Err.Error() }

func (e *ProviderError) Unwrap() error { return e.Err }

// FromProviderError wraps an inner provider error. It returns nil for nil.
func FromProviderError(err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Err: err}
}

// AsInner returns the inner provider error carried by err, if any.
func AsInner(err error) (error, bool) {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Err, true
	}
	return nil, false
}

// Middleware routes bundle calls to relays and everything else to inner.
//
// Errors from SendBundle and SimulateBundle are the relay package's error
// types unchanged, or ErrBundleSim. Errors from the inner provider are
// *ProviderError.
type Middleware struct {
	inner           Provider
	relay           *relay.Relay
	simulationRelay *relay.Relay
	logger          log.Logger
}

// NewMiddleware builds a middleware. simulationRelay may be nil, in which
// case simulations go to the primary relay. It panics if primary is nil.
func NewMiddleware(inner Provider, primary *relay.Relay, simulationRelay *relay.Relay) *Middleware {
	if primary == nil {
		panic("bundle: nil primary relay")
	}
	return &Middleware{
		inner:           inner,
		relay:           primary,
		simulationRelay: simulationRelay,
		logger:          log.New("module", "bundle"),
	}
}

func (m *Middleware) Relay() *relay.Relay {
	return m.relay
}

// SimulationRelay returns the dedicated simulation relay, or nil.
func (m *Middleware) SimulationRelay() *relay.Relay {
	return m.simulationRelay
}

func (m *Middleware) Inner() Provider {
	return m.inner
}

// SendBundle submits a bundle with eth_sendBundle.
func (m *Middleware) SendBundle(ctx context.Context, req *SendBundleRequest) (*SendBundleResponse, error) {
	resp, err := relay.Request[SendBundleResponse](ctx, m.relay, MethodSendBundle, []interface{}{req})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrBundleSim
	}
	m.logger.Info("Sent bundle", "block", uint64(req.BlockNumber), "txs", len(req.Txs), "hash", resp.BundleHash)
	return resp, nil
}

// SimulateBundle simulates a bundle with eth_callBundle.
func (m *Middleware) SimulateBundle(ctx context.Context, req *SimulateBundleRequest) (*SimulateBundleResponse, error) {
	r := m.simulationRelay
	if r == nil {
		r = m.relay
	}
	resp, err := relay.Request[SimulateBundleResponse](ctx, r, MethodCallBundle, []interface{}{req})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrBundleSim
	}
	m.logger.Debug("Simulated bundle", "block", req.Block(), "state", req.StateBlockNumber, "gas", resp.TotalGasUsed)
	return resp, nil
}

// CallContext forwards a call to the inner provider.
func (m *Middleware) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	return FromProviderError(m.inner.CallContext(ctx, result, method, args...))
}

// NextBlock returns the block after the inner provider's latest block.
func (m *Middleware) NextBlock(ctx context.Context) (uint64, error) {
	var latest hexutil.Uint64
	if err := m.CallContext(ctx, &latest, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(latest) + 1, nil
}
