package keystore

import (
	"github.com/pkg/errors"
)

var (
	ErrInvalidPassword = errors.New("invalid password: MAC mismatch")
	ErrUnsupported     = errors.New("unsupported keystore")
)

// KeystoreJSON represents the Ethereum keystore v3 JSON structure. The ciphertext is the
// encrypted content of a key list file.
//
//nolint:revive // KeystoreJSON is the standard name for Ethereum keystore JSON structure
type KeystoreJSON struct {
	Version int    `json:"version"`
	ID      string `json:"id"`
	Crypto  struct {
		Ciphertext   string `json:"ciphertext"`
		CipherParams struct {
			IV string `json:"iv"`
		} `json:"cipherparams"`
		Cipher    string `json:"cipher"`
		KDF       string `json:"kdf"`
		KDFParams struct {
			DKLen int    `json:"dklen"`
			Salt  string `json:"salt"`
			N     int    `json:"n"`
			R     int    `json:"r"`
			P     int    `json:"p"`
		} `json:"kdfparams"`
		MAC string `json:"mac"`
	} `json:"crypto"`
}

// ScryptParams are the scrypt cost parameters written into new keystores.
type ScryptParams struct {
	DKLen int
	N     int
	R     int
	P     int
}

const (
	keystoreVersion = 3
	cipherName      = "aes-128-ctr"
	kdfName         = "scrypt"
	saltSize        = 32
	ivSize          = 16
	aesKeySize      = 16
)

// DefaultScryptParams matches the "standard" scrypt profile of geth keystores.
func DefaultScryptParams() ScryptParams {
	return ScryptParams{DKLen: 32, N: 1 << 18, R: 8, P: 1} //nolint:mnd
}

// LightScryptParams trade security for speed, use them in tests only.
func LightScryptParams() ScryptParams {
	p := DefaultScryptParams()
	p.N = 1 << 12

	return p
}
