// Copyright (c) 2026 GridBanner Team
// Keyproof - SSH key proof-of-possession signer
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	"github.com/gridbanner/keyproof/internal/security"
)

// sign produces the raw signature bytes for the challenge. RSA uses
// PKCS#1 v1.5 over SHA-256, ECDSA signs the SHA-256 digest as ASN.1 DER,
// and Ed25519 signs the raw challenge with no pre-hash. Pure computation;
// no I/O.
func sign(material KeyMaterial, challenge []byte) ([]byte, error) {
	switch m := material.(type) {
	case *rsaMaterial:
		digest := sha256.Sum256(challenge)
		return rsa.SignPKCS1v15(rand.Reader, m.key, crypto.SHA256, digest[:])
	case *ecdsaMaterial:
		digest := sha256.Sum256(challenge)
		return ecdsa.SignASN1(rand.Reader, m.key, digest[:])
	case *ed25519Material:
		priv := ed25519.NewKeyFromSeed(m.seed)
		defer security.Wipe(priv)
		return ed25519.Sign(priv, challenge), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKeyType, material)
	}
}
