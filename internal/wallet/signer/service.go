package signer

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github/chapool/batch-sender/internal/wallet/chain"
)

var ErrKeyMismatch = errors.New("from address does not match private key")

type service struct {
	chainID *big.Int
}

// NewService creates a new signer for chainID
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(chainID *big.Int) Service {
	return &service{
		chainID: new(big.Int).Set(chainID),
	}
}

func (s *service) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// Sign signs an EVM transaction, EIP-1559 when the fee quote is dynamic
func (s *service) Sign(ctx context.Context, key *ecdsa.PrivateKey, skel *TxSkeleton, fee chain.FeeQuote) (*SignedTx, error) {
	if key == nil || skel == nil {
		return nil, errors.New("key and transaction are required")
	}

	// Verify from address matches private key
	if derived := crypto.PubkeyToAddress(key.PublicKey); derived != skel.From {
		return nil, errors.Wrapf(ErrKeyMismatch, "key belongs to %s, not %s", derived.Hex(), skel.From.Hex())
	}

	if fee.IsDynamic() {
		return s.signEIP1559Transaction(ctx, key, skel, fee)
	}

	return s.signLegacyTransaction(ctx, key, skel, fee)
}
