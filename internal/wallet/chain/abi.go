package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

const erc721ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"index","type":"uint256"}],"name":"tokenOfOwnerByIndex","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"name":"","type":"address"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"name":"safeTransferFrom","outputs":[],"type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":true,"name":"tokenId","type":"uint256"}],"name":"Transfer","type":"event"}
]`

var (
	ERC20ABI  = mustParseABI(erc20ABIJSON)
	ERC721ABI = mustParseABI(erc721ABIJSON)

	// TransferEventTopic is shared by ERC20 and ERC721; ERC721 logs carry the token id as a
	// fourth (indexed) topic.
	TransferEventTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

// ERC721TransferTopics is the topic count of an ERC721 Transfer log.
const ERC721TransferTopics = 4

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}

	return parsed
}

// PackERC20Transfer encodes transfer(to, amount).
func PackERC20Transfer(to common.Address, amount *big.Int) ([]byte, error) {
	data, err := ERC20ABI.Pack("transfer", to, amount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack ERC20 transfer")
	}

	return data, nil
}

// PackERC721SafeTransferFrom encodes safeTransferFrom(from, to, tokenId).
func PackERC721SafeTransferFrom(from, to common.Address, tokenID *big.Int) ([]byte, error) {
	data, err := ERC721ABI.Pack("safeTransferFrom", from, to, tokenID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack ERC721 safeTransferFrom")
	}

	return data, nil
}

// TransferLog is a decoded Transfer event.
type TransferLog struct {
	Contract common.Address
	From     common.Address
	To       common.Address
	Value    *big.Int // ERC20 amount or ERC721 token id
	IsNFT    bool
}

// DecodeTransferLog decodes an ERC20 or ERC721 Transfer log. ok is false for any other log.
func DecodeTransferLog(raw types.Log) (TransferLog, bool) {
	if len(raw.Topics) < 3 || raw.Topics[0] != TransferEventTopic {
		return TransferLog{}, false
	}

	l := TransferLog{
		Contract: raw.Address,
		From:     common.BytesToAddress(raw.Topics[1].Bytes()),
		To:       common.BytesToAddress(raw.Topics[2].Bytes()),
	}

	switch {
	case len(raw.Topics) == ERC721TransferTopics:
		l.Value = new(big.Int).SetBytes(raw.Topics[3].Bytes())
		l.IsNFT = true
	case len(raw.Data) >= common.HashLength:
		l.Value = new(big.Int).SetBytes(raw.Data[:common.HashLength])
	default:
		return TransferLog{}, false
	}

	return l, true
}

func unpackOne[T any](contract abi.ABI, method string, out []byte) (T, error) {
	var zero T

	values, err := contract.Unpack(method, out)
	if err != nil {
		return zero, errors.Wrapf(err, "failed to unpack %s", method)
	}
	if len(values) == 0 {
		return zero, errors.Errorf("empty %s result", method)
	}

	v, ok := values[0].(T)
	if !ok {
		return zero, errors.Errorf("unexpected %s result type %T", method, values[0])
	}

	return v, nil
}
