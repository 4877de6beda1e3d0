package account

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// DefaultDerivationPath is used for mnemonic lines.
	DefaultDerivationPath = "m/44'/60'/0'/0/0"
)

// Account is a signing identity held in memory for one run.
type Account struct {
	Address common.Address
	Line    int // line of the key file the account was read from

	key *ecdsa.PrivateKey
}

// New wraps an ECDSA key.
func New(key *ecdsa.PrivateKey) *Account {
	return &Account{
		Address: addressOf(key),
		key:     key,
	}
}

// Key returns the signing key.
func (a *Account) Key() *ecdsa.PrivateKey {
	return a.key
}

// String never prints key material.
func (a *Account) String() string {
	return a.Address.Hex()
}
