package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const latestTag = "latest"

// StateBlockNumber selects the state a simulation executes on: the latest
// block (the zero value) or a specific block number. Numbers encode as 0x
// prefixed hex and decode with or without the 0x prefix.
type StateBlockNumber struct {
	number   uint64
	isNumber bool
}

// Latest is the default simulation state.
var Latest = StateBlockNumber{}

func StateAt(number uint64) StateBlockNumber {
	return StateBlockNumber{number: number, isNumber: true}
}

func (s StateBlockNumber) IsLatest() bool {
	return !s.isNumber
}

// Number returns the block number and true, or false for Latest.
func (s StateBlockNumber) Number() (uint64, bool) {
	return s.number, s.isNumber
}

func (s StateBlockNumber) String() string {
	if !s.isNumber {
		return latestTag
	}
	return "0x" + strconv.FormatUint(s.number, 16)
}

func (s StateBlockNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the strings ParseStateBlockNumber accepts.
func (s *StateBlockNumber) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("state block number: %w", err)
	}
	parsed, err := ParseStateBlockNumber(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStateBlockNumber parses "latest" (case-sensitive) or a base-16 block
// number. The number may carry a 0x prefix so that String output parses
// back; "10" is block 16.
func ParseStateBlockNumber(str string) (StateBlockNumber, error) {
	if str == latestTag {
		return Latest, nil
	}
	digits := strings.TrimPrefix(str, "0x")
	if digits == "" {
		return Latest, errors.New("state block number: empty hex string")
	}
	n, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return Latest, fmt.Errorf("state block number %q: %w", str, err)
	}
	return StateAt(n), nil
}

// SendBundleRequest is the eth_sendBundle parameter. Txs are raw signed
// transactions in execution order.
type SendBundleRequest struct {
	Txs               []hexutil.Bytes `json:"txs"`
	BlockNumber       hexutil.Uint64  `json:"blockNumber"`
	MinTimestamp      *uint64         `json:"minTimestamp,omitempty"`
	MaxTimestamp      *uint64         `json:"maxTimestamp,omitempty"`
	RevertingTxHashes []common.Hash   `json:"revertingTxHashes,omitempty"`
}

func NewSendBundleRequest(txs []hexutil.Bytes, blockNumber uint64) *SendBundleRequest {
	return &SendBundleRequest{
		Txs:         txs,
		BlockNumber: hexutil.Uint64(blockNumber),
	}
}

func (r *SendBundleRequest) WithMinTimestamp(ts uint64) *SendBundleRequest {
	r.MinTimestamp = &ts
	return r
}

func (r *SendBundleRequest) WithMaxTimestamp(ts uint64) *SendBundleRequest {
	r.MaxTimestamp = &ts
	return r
}

// WithRevertingTxHashes lists transactions allowed to revert without
// invalidating the bundle.
func (r *SendBundleRequest) WithRevertingTxHashes(hashes []common.Hash) *SendBundleRequest {
	r.RevertingTxHashes = hashes
	return r
}

func (r SendBundleRequest) MarshalJSON() ([]byte, error) {
	type request SendBundleRequest
	if r.Txs == nil {
		r.Txs = []hexutil.Bytes{}
	}
	return json.Marshal(request(r))
}

// SimulateBundleRequest is the eth_callBundle parameter.
type SimulateBundleRequest struct {
	Txs              []hexutil.Bytes  `json:"txs"`
	BlockNumber      hexutil.Uint64   `json:"blockNumber"`
	StateBlockNumber StateBlockNumber `json:"stateBlockNumber"`
	Timestamp        *uint64          `json:"timestamp,omitempty"`
}

func NewSimulateBundleRequest(txs []hexutil.Bytes, blockNumber uint64, state StateBlockNumber) *SimulateBundleRequest {
	return &SimulateBundleRequest{
		Txs:              txs,
		BlockNumber:      hexutil.Uint64(blockNumber),
		StateBlockNumber: state,
	}
}

// WithTimestamp overrides the timestamp the bundle is simulated at.
func (r *SimulateBundleRequest) WithTimestamp(ts uint64) *SimulateBundleRequest {
	r.Timestamp = &ts
	return r
}

func (r *SimulateBundleRequest) WithStateBlockNumber(state StateBlockNumber) *SimulateBundleRequest {
	r.StateBlockNumber = state
	return r
}

func (r *SimulateBundleRequest) Block() uint64 {
	return uint64(r.BlockNumber)
}

func (r SimulateBundleRequest) MarshalJSON() ([]byte, error) {
	type request SimulateBundleRequest
	if r.Txs == nil {
		r.Txs = []hexutil.Bytes{}
	}
	return json.Marshal(request(r))
}

// TxResult is the relay's accounting for one transaction of a bundle.
// Wei amounts are decimal strings.
type TxResult struct {
	TxHash            string `json:"txHash,omitempty"`
	BundleHash        string `json:"bundleHash,omitempty"`
	CoinbaseDiff      string `json:"coinbaseDiff"`
	EthSentToCoinbase string `json:"ethSentToCoinbase"`
	GasFees           string `json:"gasFees"`
	GasPrice          string `json:"gasPrice,omitempty"`
	GasUsed           uint64 `json:"gasUsed,omitempty"`
	FromAddress       string `json:"fromAddress,omitempty"`
	ToAddress         string `json:"toAddress,omitempty"`
	Value             string `json:"value,omitempty"`
	Error             string `json:"error,omitempty"`
	Revert            string `json:"revert,omitempty"`
	StateBlockNumber  uint64 `json:"stateBlockNumber,omitempty"`
	TotalGasUsed      uint64 `json:"totalGasUsed,omitempty"`
}

// SendBundleResponse is the eth_sendBundle result.
type SendBundleResponse struct {
	BundleGasPrice    string     `json:"bundleGasPrice"`
	BundleHash        string     `json:"bundleHash"`
	CoinbaseDiff      string     `json:"coinbaseDiff"`
	EthSentToCoinbase string     `json:"ethSentToCoinbase"`
	GasFees           string     `json:"gasFees"`
	Results           []TxResult `json:"results"`
	StateBlockNumber  uint64     `json:"stateBlockNumber"`
	TotalGasUsed      uint64     `json:"totalGasUsed"`
}

// SimulateBundleResponse is the eth_callBundle result. It has the same
// shape as SendBundleResponse.
type SimulateBundleResponse SendBundleResponse
