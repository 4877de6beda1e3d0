package account

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github/chapool/batch-sender/internal/config"
	"github/chapool/batch-sender/internal/util"
)

// ParseKey parses one key-file line: a hex private key (with or without 0x) or a
// BIP39 mnemonic, which is derived at DefaultDerivationPath.
func ParseKey(line string, passphrase string) (*Account, error) {
	line = strings.TrimSpace(line)

	if strings.Contains(line, " ") {
		seed, err := SeedFromMnemonic(line, passphrase)
		if err != nil {
			return nil, err
		}

		return DeriveAccount(seed, DefaultDerivationPath)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimPrefix(line, "0x"), "0X"))
	if err != nil {
		return nil, err //nolint:wrapcheck // the caller reports the line without echoing the key
	}

	return New(key), nil
}

// LoadAccounts parses the lines of the key file named file. Any invalid line fails the
// whole list; the error names the line but never its content. Duplicate keys are dropped.
func LoadAccounts(file string, lines []util.Line, passphrase string) ([]*Account, error) {
	if len(lines) == 0 {
		return nil, &config.InputError{File: file, Reason: "no private keys found"}
	}

	accounts := make([]*Account, 0, len(lines))
	seen := make(map[common.Address]struct{}, len(lines))
	for _, l := range lines {
		acc, err := ParseKey(l.Text, passphrase)
		if err != nil {
			reason := "invalid private key"
			if strings.Contains(l.Text, " ") {
				reason = "invalid mnemonic"
			}
			return nil, &config.InputError{File: file, Line: l.Number, Reason: reason}
		}

		if _, ok := seen[acc.Address]; ok {
			continue
		}
		seen[acc.Address] = struct{}{}

		acc.Line = l.Number
		accounts = append(accounts, acc)
	}

	return accounts, nil
}

// ParseAddresses parses the lines of an address file. Addresses must be 0x-prefixed
// 20-byte hex strings; the checksum is not enforced.
func ParseAddresses(file string, lines []util.Line) ([]common.Address, error) {
	if len(lines) == 0 {
		return nil, &config.InputError{File: file, Reason: "no addresses found"}
	}

	addresses := make([]common.Address, 0, len(lines))
	for _, l := range lines {
		if !common.IsHexAddress(l.Text) || !strings.HasPrefix(strings.ToLower(l.Text), "0x") {
			return nil, &config.InputError{File: file, Line: l.Number, Reason: "invalid address " + l.Text}
		}
		addresses = append(addresses, common.HexToAddress(l.Text))
	}

	return addresses, nil
}
