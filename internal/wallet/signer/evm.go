package signer

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github/chapool/batch-sender/internal/wallet/chain"
)

// signEIP1559Transaction signs an EIP-1559 transaction
func (s *service) signEIP1559Transaction(
	_ context.Context,
	key *ecdsa.PrivateKey,
	skel *TxSkeleton,
	fee chain.FeeQuote,
) (*SignedTx, error) {
	tipCap := fee.GasTipCap
	if tipCap == nil {
		tipCap = new(big.Int)
	}

	//nolint:varnamelen // tx is a common abbreviation for transaction
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.ChainID(),
		Nonce:     skel.Nonce,
		GasTipCap: new(big.Int).Set(tipCap),
		GasFeeCap: new(big.Int).Set(fee.GasFeeCap),
		Gas:       skel.GasLimit,
		To:        &skel.To,
		Value:     valueOrZero(skel.Value),
		Data:      skel.Data,
	})

	return s.sign(tx, types.NewLondonSigner(s.chainID), key)
}

// signLegacyTransaction signs a pre-London transaction with EIP-155 replay protection
func (s *service) signLegacyTransaction(
	_ context.Context,
	key *ecdsa.PrivateKey,
	skel *TxSkeleton,
	fee chain.FeeQuote,
) (*SignedTx, error) {
	if fee.GasPrice == nil {
		return nil, errors.New("gas price is required for legacy transactions")
	}

	//nolint:varnamelen // tx is a common abbreviation for transaction
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    skel.Nonce,
		GasPrice: new(big.Int).Set(fee.GasPrice),
		Gas:      skel.GasLimit,
		To:       &skel.To,
		Value:    valueOrZero(skel.Value),
		Data:     skel.Data,
	})

	return s.sign(tx, types.NewEIP155Signer(s.chainID), key)
}

func (s *service) sign(tx *types.Transaction, signer types.Signer, key *ecdsa.PrivateKey) (*SignedTx, error) {
	signedTx, err := types.SignTx(tx, signer, key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	// Encode transaction to RLP
	raw, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal transaction")
	}

	return &SignedTx{
		Tx:  signedTx,
		Raw: raw,
	}, nil
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}

	return new(big.Int).Set(v)
}
