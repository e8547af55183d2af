package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"txboost/bundle"
	"txboost/relay"
)

// ChainID: 1, Flashbots relay, local node:
// ./bin/txboost serve --listen 127.0.0.1:9000 --proxy http://127.0.0.1:8545 --relay https://relay.flashbots.net

const (
	defaultListenAddress = "127.0.0.1:9000"
	defaultProxyUrl      = "http://127.0.0.1:8545"
	defaultRelayUrl      = "https://relay.flashbots.net"
)

type config struct {
	ProxyUrl           string
	RelayUrl           string
	SimulationRelayUrl string
	Authorization      string
	PrivateKey         string
	SignPayloads       bool
}

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "txboost",
	Short: "Send and simulate transaction bundles through a private relay",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		setupLogging(v.GetInt("verbosity"))
		return nil
	},
	SilenceUsage: true,
}

func init() {
	v.SetEnvPrefix("TXBOOST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags := rootCmd.PersistentFlags()
	flags.String("proxy", defaultProxyUrl, "URL of the node every non-bundle call goes to")
	flags.String("relay", defaultRelayUrl, "URL of the relay bundles are sent to")
	flags.String("simulation-relay", "", "URL of a separate relay for eth_callBundle (defaults to --relay)")
	flags.String("authorization", "", "value of the Authorization header sent to relays")
	flags.String("private-key", "", "hex private key identifying this client to the relay")
	flags.Bool("sign-payloads", false, "sign every request body into the X-Flashbots-Signature header")
	flags.Int("verbosity", 3, "log level: 0=crit 1=error 2=warn 3=info 4=debug 5=trace")

	rootCmd.AddCommand(serveCmd, sendCmd, simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(verbosity int) {
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(verbosity), true)
	log.SetDefault(log.NewLogger(handler))
}

func loadConfig() *config {
	return &config{
		ProxyUrl:           v.GetString("proxy"),
		RelayUrl:           v.GetString("relay"),
		SimulationRelayUrl: v.GetString("simulation-relay"),
		Authorization:      v.GetString("authorization"),
		PrivateKey:         v.GetString("private-key"),
		SignPayloads:       v.GetBool("sign-payloads"),
	}
}

// newMiddleware dials the inner node and builds the relays. The returned
// client must be closed by the caller.
func newMiddleware(ctx context.Context, cfg *config) (*bundle.Middleware, *rpc.Client, error) {
	var signer relay.Signer
	if cfg.PrivateKey != "" {
		keySigner, err := relay.NewKeySignerFromHex(cfg.PrivateKey)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid private key: %w", err)
		}
		log.Info("Loaded relay signer", "address", keySigner.Address())
		signer = keySigner
	}

	var opts []relay.Option
	if cfg.SignPayloads {
		if signer == nil {
			return nil, nil, errors.New("--sign-payloads requires --private-key")
		}
		opts = append(opts, relay.WithPayloadSignature())
	}

	primary, err := relay.New(cfg.RelayUrl, signer, cfg.Authorization, opts...)
	if err != nil {
		return nil, nil, err
	}
	var simulation *relay.Relay
	if cfg.SimulationRelayUrl != "" {
		simulation, err = relay.New(cfg.SimulationRelayUrl, signer, cfg.Authorization, opts...)
		if err != nil {
			return nil, nil, err
		}
	}

	client, err := rpc.DialContext(ctx, cfg.ProxyUrl)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.ProxyUrl, err)
	}
	return bundle.NewMiddleware(client, primary, simulation), client, nil
}
