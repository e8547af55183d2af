// Package server exposes the bundle middleware as a JSON-RPC endpoint that
// wallets can use as their node URL.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"txboost/bundle"
	"txboost/jsonrpc"
)

const (
	maxBodySize = 5 * 1024 * 1024

	codeInvalidParams = -32602
	codeServerError   = -32000
)

type Server struct {
	ListenAddress string
	Middleware    *bundle.Middleware
	Whitelist     []string

	// TrustedProxies are the peer address prefixes whose X-Forwarded-For
	// header is believed. Empty means the header is ignored.
	TrustedProxies []string

	logger log.Logger
}

func NewServer(listenAddress string, mw *bundle.Middleware, whitelist []string) *Server {
	return &Server{
		ListenAddress: listenAddress,
		Middleware:    mw,
		Whitelist:     whitelist,
		logger:        log.New("module", "server"),
	}
}

// Start serves JSON-RPC on / and Prometheus metrics on /metrics. It blocks
// until the listener fails.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", s)

	s.logger.Info("Starting txboost endpoint", "addr", s.ListenAddress)
	return http.ListenAndServe(s.ListenAddress, mux)
}

func (s *Server) ServeHTTP(respw http.ResponseWriter, req *http.Request) {
	ip := GetIP(req, s.TrustedProxies)
	if !IsWhitelisted(ip, s.Whitelist) {
		s.logger.Warn("Blocked request", "ip", ip)
		respw.WriteHeader(http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(respw, req.Body, maxBodySize))
	if err != nil {
		s.logger.Error("Failed to read request body", "ip", ip, "err", err)
		respw.WriteHeader(http.StatusBadRequest)
		return
	}
	defer req.Body.Close()

	var jsonReq JsonRpcRequest
	if err := json.Unmarshal(body, &jsonReq); err != nil || jsonReq.Method == "" {
		s.logger.Error("Failed to parse JSON RPC request", "ip", ip, "err", err)
		respw.WriteHeader(http.StatusBadRequest)
		return
	}
	s.logger.Debug("Received", "ip", ip, "method", jsonReq.Method)

	jsonResp := &JsonRpcResponse{Id: jsonReq.Id, Version: jsonrpc.Version}
	result, err := s.dispatch(req.Context(), &jsonReq)
	if err != nil {
		s.logger.Warn("Call failed", "method", jsonReq.Method, "err", err)
		jsonResp.Error = errorObject(err)
	} else {
		jsonResp.Result = result
	}

	respw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(respw).Encode(jsonResp); err != nil {
		s.logger.Error("Failed to encode JSON RPC response", "err", err)
	}
}

func (s *Server) dispatch(ctx context.Context, req *JsonRpcRequest) (interface{}, error) {
	switch req.Method {
	case bundle.MethodSendBundle:
		var b bundle.SendBundleRequest
		if err := decodeParam(req.Params, &b); err != nil {
			return nil, err
		}
		return s.Middleware.SendBundle(ctx, &b)

	case bundle.MethodCallBundle:
		var b bundle.SimulateBundleRequest
		if err := decodeParam(req.Params, &b); err != nil {
			return nil, err
		}
		return s.Middleware.SimulateBundle(ctx, &b)

	case "eth_sendRawTransaction":
		return s.sendRawTransaction(ctx, req.Params)
	}

	args := make([]interface{}, len(req.Params))
	for i := range req.Params {
		args[i] = req.Params[i]
	}
	var result json.RawMessage
	if err := s.Middleware.CallContext(ctx, &result, req.Method, args...); err != nil {
		return nil, err
	}
	return result, nil
}

// errorObject keeps the relay's or node's error code when there is one.
func errorObject(err error) *jsonrpc.Error {
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	obj := &jsonrpc.Error{Code: codeServerError, Message: err.Error()}
	var coded rpc.Error
	if errors.As(err, &coded) {
		obj.Code = coded.ErrorCode()
	} else if errors.Is(err, errInvalidParams) || errors.Is(err, errInvalidRawTx) {
		obj.Code = codeInvalidParams
	}
	var withData rpc.DataError
	if errors.As(err, &withData) {
		if data, err := json.Marshal(withData.ErrorData()); err == nil {
			obj.Data = data
		}
	}
	return obj
}
