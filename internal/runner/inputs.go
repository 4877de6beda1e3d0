package runner

import (
	"bytes"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github/chapool/batch-sender/internal/config"
	"github/chapool/batch-sender/internal/util"
	"github/chapool/batch-sender/internal/wallet/account"
	"github/chapool/batch-sender/internal/wallet/amount"
	"github/chapool/batch-sender/internal/wallet/keystore"
)

// LoadSenders reads the key file. passphrase applies to mnemonic lines. An encrypted key
// file is decrypted with the password returned by KeysPassword.
func (r *Runner) LoadSenders(passphrase string) ([]*account.Account, error) {
	path := r.Config.Files.Keys

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &config.InputError{File: path, Reason: errors.Cause(err).Error()}
	}

	if ks, ok := keystore.Parse(raw); ok {
		if r.KeysPassword == nil {
			return nil, &config.InputError{File: path, Reason: "encrypted key file needs a password"}
		}

		password, err := r.KeysPassword()
		if err != nil {
			return nil, err
		}

		if raw, err = keystore.Decrypt(ks, password); err != nil {
			return nil, &config.InputError{File: path, Reason: errors.Cause(err).Error()}
		}
	}

	lines, err := util.ParseLines(bytes.NewReader(raw), path)
	if err != nil {
		return nil, &config.InputError{File: path, Reason: errors.Cause(err).Error()}
	}

	return account.LoadAccounts(path, lines, passphrase)
}

// LoadRecipients reads the address file.
func (r *Runner) LoadRecipients() ([]common.Address, error) {
	lines, err := readList(r.Config.Files.Addresses)
	if err != nil {
		return nil, err
	}

	return account.ParseAddresses(r.Config.Files.Addresses, lines)
}

// LoadReceiver returns the first address of the receiver file.
func (r *Runner) LoadReceiver() (common.Address, error) {
	lines, err := readList(r.Config.Files.Receiver)
	if err != nil {
		return common.Address{}, err
	}

	addresses, err := account.ParseAddresses(r.Config.Files.Receiver, lines)
	if err != nil {
		return common.Address{}, err
	}

	return addresses[0], nil
}

// LoadRatios reads the optional ratios file: comma separated weights, on one or more
// lines. No file configured means an equal split.
func (r *Runner) LoadRatios() ([]*big.Int, error) {
	path := r.Config.Files.Ratios
	if path == "" {
		return nil, nil
	}

	lines, err := readList(path)
	if err != nil {
		return nil, err
	}

	var values []string
	for _, l := range lines {
		values = append(values, util.SplitAndTrim(l.Text, ",")...)
	}

	ratios, err := amount.ParseRatios(values)
	if err != nil {
		return nil, &config.InputError{File: path, Reason: err.Error()}
	}
	if len(ratios) == 0 {
		return nil, &config.InputError{File: path, Reason: "no ratios found"}
	}

	return ratios, nil
}

// ParseRatioList parses comma separated weights given on the command line.
func ParseRatioList(s string) ([]*big.Int, error) {
	if s == "" {
		return nil, nil
	}

	ratios, err := amount.ParseRatios(util.SplitAndTrim(s, ","))
	if err != nil {
		return nil, errors.Wrap(err, "invalid ratios")
	}

	return ratios, nil
}

func readList(path string) ([]util.Line, error) {
	lines, err := util.ReadLines(path)
	if err != nil {
		return nil, &config.InputError{File: path, Reason: errors.Cause(err).Error()}
	}

	return lines, nil
}
