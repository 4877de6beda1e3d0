package chain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultEIP1559Multiplier   int64 = 2
	defaultReceiptPollInterval       = 3 * time.Second
)

// ErrAllClientsUnavailable is returned when no configured RPC URL answered.
var ErrAllClientsUnavailable = errors.New("all RPC clients are unavailable")

// ClientConfig configures a Client.
type ClientConfig struct {
	URLs                []string
	Timeout             time.Duration // per-call bound, 0 disables
	ReceiptPollInterval time.Duration
}

// Client 封装以太坊 RPC 客户端，支持同一条链的多个 URL 和故障转移
type Client struct {
	urls         []string
	clients      []*ethclient.Client
	mu           sync.RWMutex
	current      int // 当前使用的客户端索引
	timeout      time.Duration
	pollInterval time.Duration
}

// NewClient 创建新的 RPC 客户端
func NewClient(cfg ClientConfig) (*Client, error) {
	if len(cfg.URLs) == 0 {
		return nil, errors.New("at least one RPC URL is required")
	}

	clients := make([]*ethclient.Client, 0, len(cfg.URLs))
	for _, url := range cfg.URLs {
		client, err := ethclient.Dial(url)
		if err != nil {
			log.Warn().
				Str("url", url).
				Err(err).
				Msg("Failed to connect to RPC node, will retry on use")
			// 继续尝试其他 URL，不立即失败
			clients = append(clients, nil)
			continue
		}
		clients = append(clients, client)
	}

	if allClientsNil(clients) {
		return nil, errors.New("failed to connect to any RPC node")
	}

	pollInterval := cfg.ReceiptPollInterval
	if pollInterval <= 0 {
		pollInterval = defaultReceiptPollInterval
	}

	return &Client{
		urls:         cfg.URLs,
		clients:      clients,
		timeout:      cfg.Timeout,
		pollInterval: pollInterval,
	}, nil
}

// allClientsNil 检查所有客户端是否都是 nil
func allClientsNil(clients []*ethclient.Client) bool {
	for _, client := range clients {
		if client != nil {
			return false
		}
	}
	return true
}

// Close 关闭所有客户端连接
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, client := range c.clients {
		if client != nil {
			client.Close()
		}
	}
}

// ChainID 获取链 ID
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var chainID *big.Int
	err := c.do(ctx, "failed to get chain ID", func(ctx context.Context, ec *ethclient.Client) (err error) {
		chainID, err = ec.ChainID(ctx)
		return err
	})

	return chainID, err
}

// BlockNumber 获取最新区块号
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var number uint64
	err := c.do(ctx, "failed to get latest block number", func(ctx context.Context, ec *ethclient.Client) (err error) {
		number, err = ec.BlockNumber(ctx)
		return err
	})

	return number, err
}

// HeaderByNumber 获取区块头，number 为 nil 时返回最新区块
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var header *types.Header
	err := c.do(ctx, "failed to get block header", func(ctx context.Context, ec *ethclient.Client) (err error) {
		header, err = ec.HeaderByNumber(ctx, number)
		return err
	})

	return header, err
}

// BalanceAt returns the native balance of an address at the latest known block.
func (c *Client) BalanceAt(ctx context.Context, address common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.do(ctx, "failed to get balance", func(ctx context.Context, ec *ethclient.Client) (err error) {
		balance, err = ec.BalanceAt(ctx, address, nil)
		return err
	})

	return balance, err
}

// TokenBalance returns the ERC20 token balance for the given account.
func (c *Client) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	return c.callBigInt(ctx, "balanceOf", token, func() ([]byte, error) {
		return ERC20ABI.Pack("balanceOf", account)
	}, func(out []byte) (*big.Int, error) {
		return unpackOne[*big.Int](ERC20ABI, "balanceOf", out)
	})
}

// TokenDecimals returns the decimals() of an ERC20 contract.
func (c *Client) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	data, err := ERC20ABI.Pack("decimals")
	if err != nil {
		return 0, errors.Wrap(err, "failed to pack decimals")
	}

	out, err := c.CallContract(ctx, token, data)
	if err != nil {
		return 0, errors.Wrap(err, "failed to call decimals")
	}

	return unpackOne[uint8](ERC20ABI, "decimals", out)
}

// TokenSymbol returns the symbol() of an ERC20 contract.
func (c *Client) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	data, err := ERC20ABI.Pack("symbol")
	if err != nil {
		return "", errors.Wrap(err, "failed to pack symbol")
	}

	out, err := c.CallContract(ctx, token, data)
	if err != nil {
		return "", errors.Wrap(err, "failed to call symbol")
	}

	return unpackOne[string](ERC20ABI, "symbol", out)
}

// NFTBalanceOf returns the number of ERC721 tokens held by owner.
func (c *Client) NFTBalanceOf(ctx context.Context, contract, owner common.Address) (*big.Int, error) {
	return c.callBigInt(ctx, "balanceOf", contract, func() ([]byte, error) {
		return ERC721ABI.Pack("balanceOf", owner)
	}, func(out []byte) (*big.Int, error) {
		return unpackOne[*big.Int](ERC721ABI, "balanceOf", out)
	})
}

// TokenOfOwnerByIndex calls the ERC721 enumerable extension.
func (c *Client) TokenOfOwnerByIndex(ctx context.Context, contract, owner common.Address, index *big.Int) (*big.Int, error) {
	return c.callBigInt(ctx, "tokenOfOwnerByIndex", contract, func() ([]byte, error) {
		return ERC721ABI.Pack("tokenOfOwnerByIndex", owner, index)
	}, func(out []byte) (*big.Int, error) {
		return unpackOne[*big.Int](ERC721ABI, "tokenOfOwnerByIndex", out)
	})
}

// OwnerOf returns the current owner of an ERC721 token.
func (c *Client) OwnerOf(ctx context.Context, contract common.Address, tokenID *big.Int) (common.Address, error) {
	data, err := ERC721ABI.Pack("ownerOf", tokenID)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to pack ownerOf")
	}

	out, err := c.CallContract(ctx, contract, data)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to call ownerOf")
	}

	return unpackOne[common.Address](ERC721ABI, "ownerOf", out)
}

// CallContract 执行只读合约调用 (latest block)
func (c *Client) CallContract(ctx context.Context, contract common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := c.do(ctx, "failed to call contract", func(ctx context.Context, ec *ethclient.Client) (err error) {
		out, err = ec.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
		return err
	})

	return out, err
}

// FilterLogs 过滤日志（用于 Transfer 事件）
func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.do(ctx, "failed to filter logs", func(ctx context.Context, ec *ethclient.Client) (err error) {
		logs, err = ec.FilterLogs(ctx, query)
		return err
	})

	return logs, err
}

// EstimateGas 估算 Gas 用量
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := c.do(ctx, "failed to estimate gas", func(ctx context.Context, ec *ethclient.Client) (err error) {
		gas, err = ec.EstimateGas(ctx, msg)
		return err
	})

	return gas, err
}

// SuggestGasTipCap 建议 Gas 小费上限 (EIP-1559)
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var tipCap *big.Int
	err := c.do(ctx, "failed to suggest gas tip cap", func(ctx context.Context, ec *ethclient.Client) (err error) {
		tipCap, err = ec.SuggestGasTipCap(ctx)
		return err
	})

	return tipCap, err
}

// SuggestGasPrice 建议 legacy gas price
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var gasPrice *big.Int
	err := c.do(ctx, "failed to suggest gas price", func(ctx context.Context, ec *ethclient.Client) (err error) {
		gasPrice, err = ec.SuggestGasPrice(ctx)
		return err
	})

	return gasPrice, err
}

// FeeQuote resolves the fee parameters for a new transaction. Chains whose latest
// header carries a base fee get an EIP-1559 quote with maxFee = 2*baseFee + tip,
// all others a legacy gas price.
func (c *Client) FeeQuote(ctx context.Context) (FeeQuote, error) {
	header, err := c.HeaderByNumber(ctx, nil)
	if err != nil {
		return FeeQuote{}, err
	}

	if header.BaseFee == nil {
		gasPrice, err := c.SuggestGasPrice(ctx)
		if err != nil {
			return FeeQuote{}, err
		}

		return FeeQuote{GasPrice: gasPrice}, nil
	}

	tipCap, err := c.SuggestGasTipCap(ctx)
	if err != nil {
		return FeeQuote{}, err
	}

	maxFee := new(big.Int).Add(
		new(big.Int).Mul(header.BaseFee, big.NewInt(defaultEIP1559Multiplier)),
		tipCap,
	)

	return FeeQuote{
		BaseFee:   new(big.Int).Set(header.BaseFee),
		GasTipCap: tipCap,
		GasFeeCap: maxFee,
	}, nil
}

// PendingNonceAt returns the pending nonce for the given address.
func (c *Client) PendingNonceAt(ctx context.Context, address common.Address) (uint64, error) {
	var nonce uint64
	err := c.do(ctx, "failed to get pending nonce", func(ctx context.Context, ec *ethclient.Client) (err error) {
		nonce, err = ec.PendingNonceAt(ctx, address)
		return err
	})

	return nonce, err
}

// SendTransaction 发送已签名的交易
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.do(ctx, "failed to send transaction", func(ctx context.Context, ec *ethclient.Client) error {
		return ec.SendTransaction(ctx, tx)
	})
}

// TransactionReceipt 获取交易回执
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.do(ctx, "failed to get transaction receipt", func(ctx context.Context, ec *ethclient.Client) (err error) {
		receipt, err = ec.TransactionReceipt(ctx, txHash)
		return err
	})

	return receipt, err
}

// WaitForReceipt polls for the receipt of txHash until it is mined or ctx is done.
// Callers bound the wait through ctx.
func (c *Client) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "context canceled while waiting for receipt")
			}
		} else if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "context canceled while waiting for receipt")
		case <-ticker.C:
			continue
		}
	}
}

func (c *Client) callBigInt(
	ctx context.Context,
	method string,
	contract common.Address,
	pack func() ([]byte, error),
	unpack func([]byte) (*big.Int, error),
) (*big.Int, error) {
	data, err := pack()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s", method)
	}

	out, err := c.CallContract(ctx, contract, data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call %s", method)
	}

	return unpack(out)
}

// do runs fn against the current client and fails over to the next URL on transport
// errors. JSON-RPC errors returned by a node (reverts, unknown tx) are final.
func (c *Client) do(ctx context.Context, msg string, fn func(ctx context.Context, ec *ethclient.Client) error) error {
	var lastErr error

	c.mu.RLock()
	start, n := c.current, len(c.clients)
	c.mu.RUnlock()

	for i := 0; i < n; i++ {
		idx := (start + i) % n

		client, err := c.getClient(idx)
		if err != nil {
			lastErr = err
			continue
		}

		callCtx, cancel := c.withTimeout(ctx)
		err = fn(callCtx, client)
		cancel()

		if err == nil {
			c.setCurrent(idx)
			return nil
		}

		if isFinal(err) || ctx.Err() != nil {
			return errors.Wrap(err, msg)
		}

		log.Warn().
			Str("url", c.urls[idx]).
			Err(err).
			Msg("RPC call failed, trying next node")
		lastErr = err
	}

	if lastErr == nil {
		lastErr = ErrAllClientsUnavailable
	}

	return errors.Wrap(lastErr, msg)
}

// getClient 获取指定索引的客户端，未连接时尝试重新连接
func (c *Client) getClient(idx int) (*ethclient.Client, error) {
	c.mu.RLock()
	client := c.clients[idx]
	c.mu.RUnlock()

	if client != nil {
		return client, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.clients[idx] == nil {
		client, err := ethclient.Dial(c.urls[idx])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to dial %s", c.urls[idx])
		}
		c.clients[idx] = client
	}

	return c.clients[idx], nil
}

func (c *Client) setCurrent(idx int) {
	c.mu.Lock()
	c.current = idx
	c.mu.Unlock()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.timeout)
}

func isFinal(err error) bool {
	if errors.Is(err, ethereum.NotFound) {
		return true
	}

	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}
