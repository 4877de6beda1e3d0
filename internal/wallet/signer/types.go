package signer

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github/chapool/batch-sender/internal/wallet/chain"
)

// Service provides transaction signing functionality
type Service interface {
	// Sign signs skel with key using the fee model of fee (EIP-1559 or legacy)
	Sign(ctx context.Context, key *ecdsa.PrivateKey, skel *TxSkeleton, fee chain.FeeQuote) (*SignedTx, error)

	// ChainID returns the chain id transactions are signed for
	ChainID() *big.Int
}

// TxSkeleton is an unsigned transaction without fee parameters
type TxSkeleton struct {
	From     common.Address // Must match the signing key
	To       common.Address // Recipient, or the token contract for contract calls
	Value    *big.Int       // Amount in wei, nil for contract calls
	Data     []byte         // Transaction data (for contract calls)
	Nonce    uint64
	GasLimit uint64
}

// SignedTx represents a signed EVM transaction
type SignedTx struct {
	Tx  *types.Transaction
	Raw []byte // RLP-encoded (or typed envelope) signed transaction
}

// Hash returns the transaction hash
func (s *SignedTx) Hash() common.Hash {
	return s.Tx.Hash()
}
