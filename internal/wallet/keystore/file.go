package keystore

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Parse decodes raw file content. ok is false if raw is not a keystore, e.g. a plain key list.
func Parse(raw []byte) (ks *KeystoreJSON, ok bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}

	ks = &KeystoreJSON{}
	if err := json.Unmarshal(trimmed, ks); err != nil || ks.Crypto.Ciphertext == "" {
		return nil, false
	}

	return ks, true
}

// WriteFile encrypts plaintext with password and writes the keystore to path, readable
// by the owner only. Existing files are never overwritten.
func WriteFile(path string, plaintext []byte, password string, params ScryptParams) error {
	ks, err := Encrypt(plaintext, password, params)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal keystore")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}

	return errors.Wrapf(f.Close(), "failed to close %s", path)
}
