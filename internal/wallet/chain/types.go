package chain

import (
	"math/big"

	"github.com/pkg/errors"
)

var (
	ErrNetworkNotFound = errors.New("network not found")
	ErrNoNetworks      = errors.New("no networks configured")
	ErrInvalidNetwork  = errors.New("invalid network")
)

// Network 描述 rpc.json 中的一条链配置
type Network struct {
	Key      string `mapstructure:"key"`
	Name     string `mapstructure:"name"`
	ChainID  int64  `mapstructure:"chainId"`
	RPC      string `mapstructure:"rpc"` // 支持多个，逗号分隔
	Symbol   string `mapstructure:"symbol"`
	Explorer string `mapstructure:"explorer"`
}

// TxURL returns the explorer link of a transaction, or "" when no explorer is configured.
func (n *Network) TxURL(txHash string) string {
	if n.Explorer == "" {
		return ""
	}

	return trimTrailingSlash(n.Explorer) + "/tx/" + txHash
}

// Service 定义链配置服务接口
type Service interface {
	// GetNetwork 根据 key 查询链配置
	GetNetwork(key string) (*Network, error)

	// ListNetworks 查询所有链配置，保持文件中的顺序
	ListNetworks() []*Network

	// ParseRPCURLs 解析 RPC URL（支持多个，逗号分隔）
	ParseRPCURLs(rpcURL string) []string
}

// FeeQuote holds the resolved fee parameters for one transaction.
// GasFeeCap is set for fee-market (EIP-1559) chains, GasPrice otherwise.
type FeeQuote struct {
	BaseFee   *big.Int
	GasTipCap *big.Int
	GasFeeCap *big.Int
	GasPrice  *big.Int
}

// IsDynamic reports whether the quote uses the EIP-1559 fee model.
func (q FeeQuote) IsDynamic() bool {
	return q.GasFeeCap != nil
}

// CostPerGas is the worst-case price of one gas unit under this quote.
func (q FeeQuote) CostPerGas() *big.Int {
	if q.IsDynamic() {
		return new(big.Int).Set(q.GasFeeCap)
	}
	if q.GasPrice == nil {
		return new(big.Int)
	}

	return new(big.Int).Set(q.GasPrice)
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}

	return s
}
