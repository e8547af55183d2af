package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"txboost/bundle"
	"txboost/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a JSON-RPC endpoint that relays transactions and bundles privately",
	RunE: func(cmd *cobra.Command, args []string) error {
		mw, client, err := newMiddleware(cmd.Context(), loadConfig())
		if err != nil {
			return err
		}
		defer client.Close()

		s := server.NewServer(v.GetString("listen"), mw, v.GetStringSlice("whitelist"))
		s.TrustedProxies = v.GetStringSlice("trusted-proxy")
		return s.Start()
	},
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a bundle with eth_sendBundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mw, client, err := newMiddleware(ctx, loadConfig())
		if err != nil {
			return err
		}
		defer client.Close()

		txs, err := parseTxs(v.GetStringSlice("tx"))
		if err != nil {
			return err
		}
		block, err := targetBlock(ctx, mw)
		if err != nil {
			return err
		}

		req := bundle.NewSendBundleRequest(txs, block)
		if ts := v.GetUint64("min-timestamp"); ts != 0 {
			req.WithMinTimestamp(ts)
		}
		if ts := v.GetUint64("max-timestamp"); ts != 0 {
			req.WithMaxTimestamp(ts)
		}
		if reverting := v.GetStringSlice("reverting"); len(reverting) > 0 {
			hashes := make([]common.Hash, len(reverting))
			for i, h := range reverting {
				hashes[i] = common.HexToHash(h)
			}
			req.WithRevertingTxHashes(hashes)
		}

		resp, err := mw.SendBundle(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate a bundle with eth_callBundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mw, client, err := newMiddleware(ctx, loadConfig())
		if err != nil {
			return err
		}
		defer client.Close()

		txs, err := parseTxs(v.GetStringSlice("tx"))
		if err != nil {
			return err
		}
		block, err := targetBlock(ctx, mw)
		if err != nil {
			return err
		}
		state, err := bundle.ParseStateBlockNumber(v.GetString("state-block"))
		if err != nil {
			return err
		}

		req := bundle.NewSimulateBundleRequest(txs, block, state)
		if ts := v.GetUint64("timestamp"); ts != 0 {
			req.WithTimestamp(ts)
		}

		resp, err := mw.SimulateBundle(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(resp)
	},
}

func init() {
	serveCmd.Flags().String("listen", defaultListenAddress, "Listen address")
	serveCmd.Flags().StringSlice("whitelist", []string{"127.0.0.1"}, "IP prefixes allowed to call the endpoint (empty allows all); matched against the peer address unless it is a trusted proxy")
	serveCmd.Flags().StringSlice("trusted-proxy", nil, "IP prefixes of reverse proxies whose X-Forwarded-For header is honoured")

	for _, cmd := range []*cobra.Command{sendCmd, simulateCmd} {
		cmd.Flags().StringSlice("tx", nil, "raw signed transaction, repeat in execution order")
		cmd.Flags().Uint64("block", 0, "target block number (defaults to the block after the node's latest)")
	}
	sendCmd.Flags().Uint64("min-timestamp", 0, "earliest inclusion timestamp")
	sendCmd.Flags().Uint64("max-timestamp", 0, "latest inclusion timestamp")
	sendCmd.Flags().StringSlice("reverting", nil, "hash of a transaction allowed to revert")
	simulateCmd.Flags().String("state-block", "latest", "state to simulate on: latest or a hex block number")
	simulateCmd.Flags().Uint64("timestamp", 0, "timestamp to simulate at")
}

func parseTxs(raw []string) ([]hexutil.Bytes, error) {
	txs := make([]hexutil.Bytes, len(raw))
	for i, tx := range raw {
		b, err := hexutil.Decode(tx)
		if err != nil {
			return nil, fmt.Errorf("invalid raw transaction %d: %w", i, err)
		}
		txs[i] = b
	}
	return txs, nil
}

func targetBlock(ctx context.Context, mw *bundle.Middleware) (uint64, error) {
	if block := v.GetUint64("block"); block != 0 {
		return block, nil
	}
	return mw.NextBlock(ctx)
}

func printJSON(x interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(x)
}
