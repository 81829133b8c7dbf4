// Copyright (c) 2026 GridBanner Team
// Keyproof - SSH key proof-of-possession signer
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/gridbanner/keyproof/internal/security"
)

// cipherSpec describes one supported container cipher: key and IV sizes in
// bytes, and whether it runs in counter mode.
type cipherSpec struct {
	keyBytes int
	ivBytes  int
	ctr      bool
}

var supportedCiphers = map[string]cipherSpec{
	"aes128-cbc": {keyBytes: 16, ivBytes: 16},
	"aes192-cbc": {keyBytes: 24, ivBytes: 16},
	"aes256-cbc": {keyBytes: 32, ivBytes: 16},
	"aes128-ctr": {keyBytes: 16, ivBytes: 16, ctr: true},
	"aes192-ctr": {keyBytes: 24, ivBytes: 16, ctr: true},
	"aes256-ctr": {keyBytes: 32, ivBytes: 16, ctr: true},
}

// lookupCipher resolves a container cipher name before any key derivation
// happens, so an unsupported cipher fails fast without burning KDF rounds.
func lookupCipher(name string) (cipherSpec, error) {
	spec, ok := supportedCiphers[name]
	if !ok {
		return cipherSpec{}, fmt.Errorf("%w: %q", ErrUnsupportedCipher, name)
	}
	return spec, nil
}

// decryptPrivateBlob decrypts the container's private-key section with the
// derived key and IV. cipherName "none" returns a copy of the input
// unchanged. Container sections are always block-aligned, so CBC runs
// without padding.
func decryptPrivateBlob(ciphertext []byte, key, iv security.Secret, cipherName string) ([]byte, error) {
	if cipherName == cipherNone {
		out := make([]byte, len(ciphertext))
		copy(out, ciphertext)
		return out, nil
	}

	spec, err := lookupCipher(cipherName)
	if err != nil {
		return nil, err
	}
	if len(key) != spec.keyBytes || len(iv) != spec.ivBytes {
		return nil, fmt.Errorf("%w: %q derived %d/%d key/iv bytes", ErrUnsupportedCipher, cipherName, len(key), len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, len(ciphertext))
	copy(plaintext, ciphertext)

	if spec.ctr {
		ctrXORKeyStream(block, iv, plaintext)
		return plaintext, nil
	}

	if len(ciphertext)%aes.BlockSize != 0 {
		security.Wipe(plaintext)
		return nil, &ParseError{Field: "private section length"}
	}
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, plaintext)
	return plaintext, nil
}

// ctrXORKeyStream applies AES-CTR in place: each keystream block is the
// encryption of the counter, and the counter increments as a single
// big-endian 128-bit integer with carry rippling from the last byte
// backward (wrapping at 0xFF...FF).
func ctrXORKeyStream(b cipher.Block, iv []byte, data []byte) {
	bs := b.BlockSize()
	counter := make([]byte, bs)
	stream := make([]byte, bs)
	copy(counter, iv)
	defer security.Wipe(counter)
	defer security.Wipe(stream)

	for off := 0; off < len(data); off += bs {
		b.Encrypt(stream, counter)

		n := len(data) - off
		if n > bs {
			n = bs
		}
		for i := 0; i < n; i++ {
			data[off+i] ^= stream[i]
		}

		for i := len(counter) - 1; i >= 0; i-- {
			counter[i]++
			if counter[i] != 0 {
				break
			}
		}
	}
}
