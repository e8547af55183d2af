package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txboost/jsonrpc"
	"txboost/relay"
)

const sendBundleResult = `{"bundleGasPrice":"1","bundleHash":"0xbeef","coinbaseDiff":"2","ethSentToCoinbase":"3","gasFees":"4","results":[],"stateBlockNumber":9,"totalGasUsed":21000}`

// recordingRelay is a relay endpoint answering every call with body.
type recordingRelay struct {
	mu      sync.Mutex
	methods []string
	params  []json.RawMessage
	status  int
	body    string
}

func newRecordingRelay(t *testing.T, status int, body string) (*recordingRelay, *relay.Relay) {
	t.Helper()
	rec := &recordingRelay{status: status, body: body}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &req)

		rec.mu.Lock()
		rec.methods = append(rec.methods, req.Method)
		if len(req.Params) > 0 {
			rec.params = append(rec.params, req.Params[0])
		}
		rec.mu.Unlock()

		w.WriteHeader(rec.status)
		_, _ = io.WriteString(w, rec.body)
	}))
	t.Cleanup(srv.Close)

	r, err := relay.New(srv.URL, nil, "test-key")
	require.NoError(t, err)
	return rec, r
}

func okResult(result string) string {
	return `{"id":1,"jsonrpc":"2.0","result":` + result + `}`
}

type fakeProvider struct {
	calls  []string
	result json.RawMessage
	err    error
}

func (p *fakeProvider) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	p.calls = append(p.calls, method)
	if p.err != nil {
		return p.err
	}
	return json.Unmarshal(p.result, result)
}

func TestSendBundle(t *testing.T) {
	rec, r := newRecordingRelay(t, http.StatusOK, okResult(sendBundleResult))
	inner := &fakeProvider{}
	mw := NewMiddleware(inner, r, nil)

	req := NewSendBundleRequest([]hexutil.Bytes{rawTx1, rawTx2}, 100).WithMaxTimestamp(42)
	resp, err := mw.SendBundle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "0xbeef", resp.BundleHash)
	assert.Equal(t, uint64(21000), resp.TotalGasUsed)

	require.Equal(t, []string{MethodSendBundle}, rec.methods)
	assert.JSONEq(t, `{"txs":["0x02f86b0180843b9aca00","0x02f86b0101843b9aca01"],"blockNumber":"0x64","maxTimestamp":42}`, string(rec.params[0]))
	assert.Empty(t, inner.calls)
}

func TestSendBundleMissingResult(t *testing.T) {
	_, r := newRecordingRelay(t, http.StatusOK, `{"id":1,"jsonrpc":"2.0","result":null}`)
	mw := NewMiddleware(&fakeProvider{}, r, nil)

	resp, err := mw.SendBundle(context.Background(), NewSendBundleRequest([]hexutil.Bytes{rawTx1}, 1))
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrBundleSim)
}

func TestSendBundleEmptyTxsReachesRelay(t *testing.T) {
	rec, r := newRecordingRelay(t, http.StatusOK, `{"id":1,"jsonrpc":"2.0","error":{"code":-32602,"message":"bundle missing txs"}}`)
	mw := NewMiddleware(&fakeProvider{}, r, nil)

	_, err := mw.SendBundle(context.Background(), NewSendBundleRequest(nil, 1))

	var respErr *relay.ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Contains(t, err.Error(), "bundle missing txs")
	assert.JSONEq(t, `{"txs":[],"blockNumber":"0x1"}`, string(rec.params[0]))
}

func TestSendBundlePassesRelayErrorsThrough(t *testing.T) {
	_, r := newRecordingRelay(t, http.StatusUnauthorized, "bad auth")
	mw := NewMiddleware(&fakeProvider{}, r, nil)

	_, err := mw.SendBundle(context.Background(), NewSendBundleRequest([]hexutil.Bytes{rawTx1}, 1))

	var clientErr *relay.ClientError
	require.True(t, errors.As(err, &clientErr))
	assert.Equal(t, "bad auth", clientErr.Text)

	_, isProvider := AsInner(err)
	assert.False(t, isProvider)
}

func TestSimulateBundleUsesSimulationRelay(t *testing.T) {
	primary, r := newRecordingRelay(t, http.StatusOK, okResult(sendBundleResult))
	simulation, sim := newRecordingRelay(t, http.StatusOK, okResult(sendBundleResult))
	mw := NewMiddleware(&fakeProvider{}, r, sim)
	assert.Same(t, sim, mw.SimulationRelay())
	assert.Same(t, r, mw.Relay())

	req := NewSimulateBundleRequest([]hexutil.Bytes{rawTx1}, 10, StateAt(9))
	resp, err := mw.SimulateBundle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), resp.StateBlockNumber)

	assert.Empty(t, primary.methods)
	require.Equal(t, []string{MethodCallBundle}, simulation.methods)
	assert.JSONEq(t, `{"txs":["0x02f86b0180843b9aca00"],"blockNumber":"0xa","stateBlockNumber":"0x9"}`, string(simulation.params[0]))
}

func TestSimulateBundleFallsBackToPrimaryRelay(t *testing.T) {
	primary, r := newRecordingRelay(t, http.StatusOK, okResult(sendBundleResult))
	mw := NewMiddleware(&fakeProvider{}, r, nil)
	assert.Nil(t, mw.SimulationRelay())

	_, err := mw.SimulateBundle(context.Background(), NewSimulateBundleRequest([]hexutil.Bytes{rawTx1}, 10, Latest))
	require.NoError(t, err)
	assert.Equal(t, []string{MethodCallBundle}, primary.methods)
}

func TestSimulateBundleMissingResult(t *testing.T) {
	_, r := newRecordingRelay(t, http.StatusOK, `{"id":1,"jsonrpc":"2.0"}`)
	mw := NewMiddleware(&fakeProvider{}, r, nil)

	_, err := mw.SimulateBundle(context.Background(), NewSimulateBundleRequest([]hexutil.Bytes{rawTx1}, 10, Latest))
	assert.ErrorIs(t, err, ErrBundleSim)
}

func TestCallContextDelegatesToInner(t *testing.T) {
	inner := &fakeProvider{result: json.RawMessage(`"0x1"`)}
	rec, r := newRecordingRelay(t, http.StatusOK, okResult(sendBundleResult))
	mw := NewMiddleware(inner, r, nil)
	assert.Same(t, inner, mw.Inner())

	var chainID hexutil.Uint64
	require.NoError(t, mw.CallContext(context.Background(), &chainID, "eth_chainId"))
	assert.Equal(t, hexutil.Uint64(1), chainID)
	assert.Equal(t, []string{"eth_chainId"}, inner.calls)
	assert.Empty(t, rec.methods)
}

func TestCallContextWrapsInnerErrors(t *testing.T) {
	innerErr := errors.New("connection refused")
	_, r := newRecordingRelay(t, http.StatusOK, okResult(sendBundleResult))
	mw := NewMiddleware(&fakeProvider{err: innerErr}, r, nil)

	err := mw.CallContext(context.Background(), new(json.RawMessage), "eth_blockNumber")

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.ErrorIs(t, err, innerErr)
	assert.Equal(t, "connection refused", err.Error())

	got, ok := AsInner(err)
	assert.True(t, ok)
	assert.Equal(t, innerErr, got)
}

func TestMiddlewaresStack(t *testing.T) {
	inner := &fakeProvider{result: json.RawMessage(`"0x10"`)}
	_, r := newRecordingRelay(t, http.StatusOK, okResult(sendBundleResult))
	outer := NewMiddleware(NewMiddleware(inner, r, nil), r.Clone(), nil)

	next, err := outer.NextBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(17), next)
	assert.Equal(t, []string{"eth_blockNumber"}, inner.calls)
}

func TestNewMiddlewareRequiresPrimaryRelay(t *testing.T) {
	_, r := newRecordingRelay(t, http.StatusOK, okResult(sendBundleResult))

	assert.PanicsWithValue(t, "bundle: nil primary relay", func() {
		NewMiddleware(&fakeProvider{}, nil, r)
	})
	assert.NotPanics(t, func() {
		NewMiddleware(&fakeProvider{}, r, nil)
	})
}

func TestSendBundleNonEnvelopeIsMalformed(t *testing.T) {
	_, r := newRecordingRelay(t, http.StatusOK, `{"status":"ok"}`)
	mw := NewMiddleware(&fakeProvider{}, r, nil)

	_, err := mw.SendBundle(context.Background(), NewSendBundleRequest([]hexutil.Bytes{rawTx1}, 1))
	assert.ErrorIs(t, err, jsonrpc.ErrMalformedResponse)
	assert.NotErrorIs(t, err, ErrBundleSim)
}

func TestFromProviderErrorNil(t *testing.T) {
	assert.NoError(t, FromProviderError(nil))
}
