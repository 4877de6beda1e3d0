package test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github/chapool/batch-sender/internal/config"
	"github/chapool/batch-sender/internal/runner"
)

const (
	// PrivateKey is a well-known throwaway key, never use it outside tests.
	PrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	// PrivateKeyAddress is the address of PrivateKey.
	PrivateKeyAddress = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	// Mnemonic derives 0x9858EfFD232B4033E47d90003D41EC34EcaEda94 at m/44'/60'/0'/0/0.
	Mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	NetworkKey = "testnet"
)

// WriteLines writes lines to dir/name and returns the path.
func WriteLines(t *testing.T, dir string, name string, lines ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}

	return path
}

// WriteNetworksFile writes an rpc.json with a single network named NetworkKey.
func WriteNetworksFile(t *testing.T, dir string, chainID int64, rpcURL string) string {
	t.Helper()

	return WriteLines(t, dir, "rpc.json", fmt.Sprintf(`{
  "networks": [
    {"key": %q, "name": "Test Network", "chainId": %d, "rpc": %q, "symbol": "TST", "explorer": "https://explorer.example"}
  ]
}`, NetworkKey, chainID, rpcURL))
}

// SenderConfig returns a config with all files in a temp dir, connected to node. The
// key file holds PrivateKey, no addresses or receiver are written.
func SenderConfig(t *testing.T, node *ChainNode) config.Sender {
	t.Helper()

	dir := t.TempDir()

	return config.Sender{
		NetworkKey: NetworkKey,
		Files: config.Files{
			Networks:  WriteNetworksFile(t, dir, node.ChainID.Int64(), node.URL()),
			Keys:      WriteLines(t, dir, "privatekeys.txt", PrivateKey),
			Addresses: filepath.Join(dir, "address.txt"),
			Receiver:  filepath.Join(dir, "received.txt"),
		},
		Results: config.Results{
			CSVPath: filepath.Join(dir, "send_results.csv"),
		},
		Executor: config.Executor{
			Concurrency:    2,
			MaxRetries:     1,
			RetryBaseDelay: time.Millisecond,
			RetryMaxDelay:  10 * time.Millisecond,
			ConfirmTimeout: 5 * time.Second,
		},
		Scan: config.Scan{
			Window:    config.DefaultScanWindow,
			ChunkSize: config.DefaultScanChunkSize,
		},
		Chain: config.Chain{
			RPCTimeout: 5 * time.Second,
		},
		Logger: config.Logger{
			Level: zerolog.DebugLevel,
		},
	}
}

// WithTestRunner initializes a runner against node and shuts it down afterwards.
func WithTestRunner(t *testing.T, node *ChainNode, closure func(r *runner.Runner)) {
	t.Helper()

	WithTestRunnerFromConfig(t, SenderConfig(t, node), closure)
}

// WithTestRunnerFromConfig is like WithTestRunner with a custom config.
func WithTestRunnerFromConfig(t *testing.T, cfg config.Sender, closure func(r *runner.Runner)) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := runner.New(cfg)
	if err := r.Init(ctx); err != nil {
		t.Fatalf("failed to initialize runner: %v", err)
	}

	defer func() {
		for _, err := range r.Shutdown(ctx) {
			t.Errorf("failed to shut down runner: %v", err)
		}
	}()

	closure(r)
}
