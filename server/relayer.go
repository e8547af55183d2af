package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"txboost/bundle"
)

var (
	errInvalidParams = errors.New("invalid params")
	errInvalidRawTx  = errors.New("invalid raw transaction")
)

// sendRawTransaction turns an eth_sendRawTransaction call into a one
// transaction bundle for the next block and answers the transaction hash.
func (s *Server) sendRawTransaction(ctx context.Context, params []json.RawMessage) (interface{}, error) {
	if len(params) == 0 {
		return nil, errInvalidParams
	}
	var rawTx hexutil.Bytes
	if err := json.Unmarshal(params[0], &rawTx); err != nil || len(rawTx) == 0 {
		return nil, errInvalidRawTx
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidRawTx, err)
	}

	blockNumber, err := s.Middleware.NextBlock(ctx)
	if err != nil {
		return nil, err
	}
	req := bundle.NewSendBundleRequest([]hexutil.Bytes{rawTx}, blockNumber)
	if _, err := s.Middleware.SendBundle(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info("Relayed transaction as bundle", "hash", tx.Hash(), "block", blockNumber)
	return tx.Hash().Hex(), nil
}

// decodeParam decodes the single bundle parameter of a bundle call.
func decodeParam(params []json.RawMessage, v interface{}) error {
	if len(params) != 1 {
		return errInvalidParams
	}
	if err := json.Unmarshal(params[0], v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}
