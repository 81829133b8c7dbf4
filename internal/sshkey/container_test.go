// Copyright (c) 2026 GridBanner Team
// Keyproof - SSH key proof-of-possession signer
// This source code is licensed under the MIT license found in the LICENSE file.
package sshkey

import (
	"encoding/binary"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// test helpers for building container bytes by hand.

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendBytes(b, v []byte) []byte {
	b = appendU32(b, uint32(len(v)))
	return append(b, v...)
}

func appendString(b []byte, s string) []byte {
	return appendBytes(b, []byte(s))
}

// containerDER decodes a fixture file down to the raw container bytes.
func containerDER(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		t.Fatalf("fixture %s has no PEM block", name)
	}
	return block.Bytes
}

func TestParseContainerPlain(t *testing.T) {
	c, err := ParseContainer(containerDER(t, "id_ed25519_plain"))
	if err != nil {
		t.Fatalf("ParseContainer failed: %v", err)
	}
	if c.CipherName != "none" || c.KDFName != "none" {
		t.Errorf("unexpected cipher/kdf: %q/%q", c.CipherName, c.KDFName)
	}
	if c.Encrypted() {
		t.Errorf("plain container reported as encrypted")
	}
	if len(c.PublicKey) == 0 || len(c.PrivateBlob) == 0 {
		t.Errorf("empty public key or private section")
	}
}

func TestParseContainerEncrypted(t *testing.T) {
	for _, tc := range []struct {
		fixture string
		cipher  string
	}{
		{"id_ed25519_pass", "aes256-ctr"},
		{"id_ed25519_cbc", "aes256-cbc"},
		{"id_ed25519_aes128", "aes128-ctr"},
	} {
		c, err := ParseContainer(containerDER(t, tc.fixture))
		if err != nil {
			t.Fatalf("%s: ParseContainer failed: %v", tc.fixture, err)
		}
		if c.CipherName != tc.cipher {
			t.Errorf("%s: cipher = %q, want %q", tc.fixture, c.CipherName, tc.cipher)
		}
		if c.KDFName != "bcrypt" {
			t.Errorf("%s: kdf = %q, want bcrypt", tc.fixture, c.KDFName)
		}
		if len(c.KDFSalt) != 16 {
			t.Errorf("%s: salt length = %d, want 16", tc.fixture, len(c.KDFSalt))
		}
		if c.KDFRounds == 0 {
			t.Errorf("%s: zero KDF rounds", tc.fixture)
		}
		if !c.Encrypted() {
			t.Errorf("%s: encrypted container reported as plain", tc.fixture)
		}
	}
}

func TestParseContainerBadMagic(t *testing.T) {
	_, err := ParseContainer([]byte("not-an-openssh-key-at-all"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestParseContainerMultiKey(t *testing.T) {
	raw := []byte(authMagic)
	raw = appendString(raw, "none")
	raw = appendString(raw, "none")
	raw = appendBytes(raw, nil)
	raw = appendU32(raw, 2) // two keys
	raw = appendBytes(raw, []byte("pub"))
	raw = appendBytes(raw, []byte("priv"))

	_, err := ParseContainer(raw)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for multi-key container, got %v", err)
	}
}

// Truncating a valid container at every possible length must always yield a
// clean error, never a panic or out-of-bounds read.
func TestParseContainerTruncation(t *testing.T) {
	der := containerDER(t, "id_ed25519_pass")
	for i := len(authMagic); i < len(der); i++ {
		// Any result is acceptable except a panic; errors are expected
		// whenever the cut lands inside a declared field.
		_, _ = ParseContainer(der[:i])
	}
	// A cut inside the private section's declared length must error.
	if _, err := ParseContainer(der[:len(der)-1]); err == nil {
		t.Fatalf("expected error for truncated private section")
	}
	var perr *ParseError
	if _, err := ParseContainer(der[:len(der)-1]); !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
}

// Length prefixes larger than the remaining buffer must be rejected.
func TestParseContainerOversizedLength(t *testing.T) {
	raw := []byte(authMagic)
	raw = appendU32(raw, 0xFFFFFFFF) // cipher name claims 4 GiB

	var perr *ParseError
	if _, err := ParseContainer(raw); !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Field != "cipher name" {
		t.Errorf("unexpected field: %q", perr.Field)
	}
}

func TestParseContainerTruncatedKDFOptions(t *testing.T) {
	raw := []byte(authMagic)
	raw = appendString(raw, "aes256-ctr")
	raw = appendString(raw, "bcrypt")
	raw = appendBytes(raw, appendU32(nil, 16)) // salt declares 16 bytes, has none
	raw = appendU32(raw, 1)
	raw = appendBytes(raw, []byte("pub"))
	raw = appendBytes(raw, []byte("priv"))

	var perr *ParseError
	if _, err := ParseContainer(raw); !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
}
