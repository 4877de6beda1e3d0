package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github/chapool/batch-sender/internal/util"
)

// Files holds the paths of the line-oriented input lists and the network config.
type Files struct {
	Networks  string
	Keys      string
	Addresses string
	Receiver  string
	Ratios    string
}

// Results configures where transfer outcomes are recorded.
type Results struct {
	CSVPath    string
	SQLitePath string // empty disables the SQLite store
}

// Executor tunes concurrency and the retry policy of the transfer executor.
type Executor struct {
	Concurrency    int
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	ConfirmTimeout time.Duration
}

// Scan tunes the ERC721 event-scan fallback.
type Scan struct {
	Window    uint64 // number of blocks behind the latest block
	ChunkSize uint64 // blocks per eth_getLogs call, 0 queries the whole window at once
}

// Chain tunes the JSON-RPC client.
type Chain struct {
	RPCTimeout time.Duration
}

type Metrics struct {
	ListenAddress string // empty disables the metrics endpoint
}

type Logger struct {
	Level              zerolog.Level
	PrettyPrintConsole bool
}

// Sender is the run configuration of the batch sender.
type Sender struct {
	NetworkKey string
	Files      Files
	Results    Results
	Executor   Executor
	Scan       Scan
	Chain      Chain
	Metrics    Metrics
	Logger     Logger
}

const (
	DefaultConcurrency    = 3
	DefaultMaxRetries     = 2
	DefaultScanWindow     = 200000
	DefaultScanChunkSize  = 10000
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 30 * time.Second
	defaultConfirmTimeout = 2 * time.Minute
	defaultRPCTimeout     = 30 * time.Second
)

// DefaultSenderConfigFromEnv returns the sender config as parsed from environment variables
// and their respective defaults defined below.
// We don't expect that ENV_VARs change while we are running our application or our tests.
func DefaultSenderConfigFromEnv() Sender {
	// An `.env.local` file in your project root can override the currently set ENV variables.
	//
	// We never automatically apply `.env.local` when running "go test" as these ENV variables
	// may be sensitive (e.g. secrets to external APIs) and applying them modifies the process-global "os.Env" state (it should be applied via t.Setenv instead).
	//
	// If you need dotenv ENV variables available in a test, do that explicitly within that test before executing DefaultSenderConfigFromEnv.
	// See /internal/config/dot_env_test.go.
	if !util.RunningInTest() {
		DotEnvTryLoad(filepath.Join(util.GetProjectRootDir(), ".env.local"), os.Setenv)
		DotEnvTryLoad(filepath.Join(util.GetProjectRootDir(), ".env"), os.Setenv)
	}

	return Sender{
		NetworkKey: util.GetEnv("SENDER_NETWORK", ""),
		Files: Files{
			Networks:  util.GetEnv("SENDER_NETWORKS_FILE", "rpc.json"),
			Keys:      util.GetEnv("SENDER_KEYS_FILE", "privatekeys.txt"),
			Addresses: util.GetEnv("SENDER_ADDRESSES_FILE", "address.txt"),
			Receiver:  util.GetEnv("SENDER_RECEIVER_FILE", "received.txt"),
			Ratios:    util.GetEnv("SENDER_RATIOS_FILE", ""),
		},
		Results: Results{
			CSVPath:    util.GetEnv("SENDER_RESULTS_CSV", "send_results.csv"),
			SQLitePath: util.GetEnv("SENDER_RESULTS_SQLITE", ""),
		},
		Executor: Executor{
			Concurrency:    util.GetEnvAsInt("SENDER_CONCURRENCY", DefaultConcurrency),
			MaxRetries:     util.GetEnvAsInt("SENDER_MAX_RETRIES", DefaultMaxRetries),
			RetryBaseDelay: util.GetEnvAsDuration("SENDER_RETRY_BASE_DELAY", defaultRetryBaseDelay),
			RetryMaxDelay:  util.GetEnvAsDuration("SENDER_RETRY_MAX_DELAY", defaultRetryMaxDelay),
			ConfirmTimeout: util.GetEnvAsDuration("SENDER_CONFIRM_TIMEOUT", defaultConfirmTimeout),
		},
		Scan: Scan{
			Window:    util.GetEnvAsUint64("SENDER_SCAN_WINDOW", DefaultScanWindow),
			ChunkSize: util.GetEnvAsUint64("SENDER_SCAN_CHUNK_SIZE", DefaultScanChunkSize),
		},
		Chain: Chain{
			RPCTimeout: util.GetEnvAsDuration("SENDER_RPC_TIMEOUT", defaultRPCTimeout),
		},
		Metrics: Metrics{
			ListenAddress: util.GetEnv("SENDER_METRICS_ADDR", ""),
		},
		Logger: Logger{
			Level:              util.LogLevelFromString(util.GetEnv("SENDER_LOGGER_LEVEL", zerolog.InfoLevel.String())),
			PrettyPrintConsole: util.GetEnvAsBool("SENDER_LOGGER_PRETTY_PRINT_CONSOLE", true),
		},
	}
}
