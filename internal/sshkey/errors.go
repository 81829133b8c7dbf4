// Copyright (c) 2026 GridBanner Team
// Keyproof - SSH key proof-of-possession signer
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import (
	"errors"
	"fmt"
)

// Sentinel errors for the signing pipeline. The dispatcher in signer.go is
// the only layer that maps low-level failures to these; callers classify
// with errors.Is and decide whether to re-prompt, report, or give up.
var (
	// ErrKeyNotFound means no private key exists at the derived path.
	ErrKeyNotFound = errors.New("private key not found")

	// ErrUnsupportedFormat means the file matches none of the known
	// private-key encodings (OpenSSH container, PEM RSA/EC/PKCS#8).
	ErrUnsupportedFormat = errors.New("unsupported private key format")

	// ErrUnsupportedKDF means the container names a key-derivation
	// function other than bcrypt.
	ErrUnsupportedKDF = errors.New("unsupported key derivation function")

	// ErrUnsupportedCipher means the container names a cipher outside the
	// supported AES-CBC/CTR set.
	ErrUnsupportedCipher = errors.New("unsupported cipher")

	// ErrUnsupportedCurve means an ECDSA key uses a curve other than
	// nistp256, nistp384 or nistp521.
	ErrUnsupportedCurve = errors.New("unsupported curve")

	// ErrUnsupportedKeyType means the decrypted block carries a key type
	// other than ssh-rsa, ssh-ed25519 or ecdsa-sha2-*.
	ErrUnsupportedKeyType = errors.New("unsupported key type")

	// ErrWrongPassword means the check-pair integrity test failed after
	// decryption. The passphrase is wrong or the container is corrupt;
	// callers may re-prompt a bounded number of times.
	ErrWrongPassword = errors.New("incorrect passphrase or corrupt key")

	// ErrPasswordRequired means the container is encrypted but no
	// passphrase was supplied.
	ErrPasswordRequired = errors.New("passphrase required")

	// ErrInvalidChallenge means the challenge string is not valid base64.
	ErrInvalidChallenge = errors.New("invalid challenge encoding")
)

// ParseError reports a structural violation in the binary key container:
// a length prefix overrunning the buffer, truncated fields, bad padding.
// Input triggering it is treated as corrupt or malicious and never retried.
type ParseError struct {
	Field  string // which field was being read
	Offset int    // byte offset where the violation was detected
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed key container: %s at offset %d", e.Field, e.Offset)
}
