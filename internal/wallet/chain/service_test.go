package chain_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/batch-sender/internal/wallet/chain"
)

const rpcJSON = `{
  "networks": [
    {"key": "bsc-testnet", "name": "BSC Testnet", "chainId": 97, "rpc": "https://rpc-a.example, https://rpc-b.example", "symbol": "tBNB", "explorer": "https://testnet.bscscan.com/"},
    {"key": "sepolia", "name": "Sepolia", "chainId": 11155111, "rpc": "https://sepolia.example", "symbol": "ETH"}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadNetworks(t *testing.T) {
	networks, err := chain.LoadNetworks(writeFile(t, "rpc.json", rpcJSON))
	require.NoError(t, err)
	require.Len(t, networks, 2)

	bsc := networks[0]
	assert.Equal(t, "bsc-testnet", bsc.Key)
	assert.Equal(t, "BSC Testnet", bsc.Name)
	assert.Equal(t, int64(97), bsc.ChainID)
	assert.Equal(t, "tBNB", bsc.Symbol)
	assert.Equal(t, "https://testnet.bscscan.com/tx/0xabc", bsc.TxURL("0xabc"))
	assert.Empty(t, networks[1].TxURL("0xabc"))
}

func TestLoadNetworksYAML(t *testing.T) {
	yml := `networks:
  - key: local
    name: Anvil
    chainId: 31337
    rpc: http://127.0.0.1:8545
    symbol: ETH
`
	networks, err := chain.LoadNetworks(writeFile(t, "rpc.yaml", yml))
	require.NoError(t, err)
	require.Len(t, networks, 1)
	assert.Equal(t, int64(31337), networks[0].ChainID)
}

func TestLoadNetworksErrors(t *testing.T) {
	_, err := chain.LoadNetworks(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	_, err = chain.LoadNetworks(writeFile(t, "rpc.json", `{"networks": []}`))
	require.ErrorIs(t, err, chain.ErrNoNetworks)

	_, err = chain.LoadNetworks(writeFile(t, "rpc.json", `{"networks": [{"key": "x"}]}`))
	require.ErrorIs(t, err, chain.ErrInvalidNetwork)

	_, err = chain.LoadNetworks(writeFile(t, "rpc.json", `{"networks": [{"key": "x", "rpc": "http://a"}, {"key": "x", "rpc": "http://b"}]}`))
	require.ErrorIs(t, err, chain.ErrInvalidNetwork)
}

func TestServiceGetNetwork(t *testing.T) {
	svc, err := chain.NewServiceFromFile(writeFile(t, "rpc.json", rpcJSON))
	require.NoError(t, err)

	n, err := svc.GetNetwork("sepolia")
	require.NoError(t, err)
	assert.Equal(t, int64(11155111), n.ChainID)

	_, err = svc.GetNetwork("mainnet")
	require.ErrorIs(t, err, chain.ErrNetworkNotFound)

	list := svc.ListNetworks()
	require.Len(t, list, 2)
	assert.Equal(t, "bsc-testnet", list[0].Key)

	assert.Equal(t, []string{"https://rpc-a.example", "https://rpc-b.example"}, svc.ParseRPCURLs(list[0].RPC))
}

func TestParseRPCURLs(t *testing.T) {
	assert.Nil(t, chain.ParseRPCURLs(""))
	assert.Equal(t, []string{"http://a"}, chain.ParseRPCURLs(" http://a ,, "))
}
