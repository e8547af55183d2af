package server

import (
	"encoding/json"

	"txboost/jsonrpc"
)

// JsonRpcRequest is a call received from a wallet. The id is echoed back
// untouched.
type JsonRpcRequest struct {
	Id      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	Version string            `json:"jsonrpc,omitempty"`
}

type JsonRpcResponse struct {
	Id      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *jsonrpc.Error  `json:"error,omitempty"`
	Version string          `json:"jsonrpc"`
}
