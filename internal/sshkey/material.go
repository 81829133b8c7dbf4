// Copyright (c) 2026 GridBanner Team
// Keyproof - SSH key proof-of-possession signer
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/gridbanner/keyproof/internal/security"
)

// KeyMaterial is the closed set of key types the signer supports: RSA,
// Ed25519 and ECDSA. Implementations hold raw private material and must be
// wiped once the signature is produced.
type KeyMaterial interface {
	// KeyType returns the SSH wire name, e.g. "ssh-ed25519".
	KeyType() string
	// Wipe destroys the private material. Best effort for big.Int-backed
	// keys, which do not expose their buffers.
	Wipe()

	sealed()
}

type rsaMaterial struct{ key *rsa.PrivateKey }

func (m *rsaMaterial) KeyType() string { return "ssh-rsa" }
func (m *rsaMaterial) sealed()         {}
func (m *rsaMaterial) Wipe() {
	m.key.D.SetInt64(0)
	for _, p := range m.key.Primes {
		p.SetInt64(0)
	}
	m.key.Precomputed = rsa.PrecomputedValues{}
}

type ed25519Material struct {
	seed security.Secret
}

func (m *ed25519Material) KeyType() string { return "ssh-ed25519" }
func (m *ed25519Material) sealed()         {}
func (m *ed25519Material) Wipe()           { m.seed.Zero() }

type ecdsaMaterial struct {
	keyType string
	key     *ecdsa.PrivateKey
}

func (m *ecdsaMaterial) KeyType() string { return m.keyType }
func (m *ecdsaMaterial) sealed()         {}
func (m *ecdsaMaterial) Wipe()           { m.key.D.SetInt64(0) }

// decodeKeyMaterial parses the decrypted private-key block. The two leading
// check integers are the only integrity signal: they are compared before
// anything else, and a mismatch is surfaced as ErrWrongPassword so callers
// can re-prompt instead of reporting a generic parse failure.
func decodeKeyMaterial(plain []byte) (KeyMaterial, error) {
	r := &reader{buf: plain}

	check1, err := r.readUint32("check1")
	if err != nil {
		return nil, err
	}
	check2, err := r.readUint32("check2")
	if err != nil {
		return nil, err
	}
	if check1 != check2 {
		return nil, ErrWrongPassword
	}

	keyType, err := r.readString("key type")
	if err != nil {
		return nil, err
	}

	var material KeyMaterial
	switch {
	case keyType == "ssh-rsa":
		material, err = decodeRSA(r)
	case keyType == "ssh-ed25519":
		material, err = decodeEd25519(r)
	case strings.HasPrefix(keyType, "ecdsa-sha2-"):
		material, err = decodeECDSA(r, keyType)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, keyType)
	}
	if err != nil {
		return nil, err
	}

	// Comment, then deterministic padding 1,2,3,... up to the cipher block
	// size. Bad padding after a passing check pair means the plaintext is
	// corrupt in a way the checks did not catch.
	if _, err := r.readString("comment"); err != nil {
		material.Wipe()
		return nil, err
	}
	for i, b := range r.rest() {
		if b != byte(i+1) {
			material.Wipe()
			return nil, &ParseError{Field: "padding", Offset: len(plain) - len(r.rest()) + i}
		}
	}

	return material, nil
}

// readBigInt reads a length-prefixed big-endian integer. big.Int.SetBytes
// absorbs the leading zero byte OpenSSH emits for values with the high bit
// set.
func (r *reader) readBigInt(field string) (*big.Int, error) {
	b, err := r.readBytes(field)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// decodeRSA reads the six stored RSA components. The container stores
// n, e, d, iqmp, p, q; the CRT exponents dP and dQ are not stored and are
// recomputed via Precompute.
func decodeRSA(r *reader) (KeyMaterial, error) {
	n, err := r.readBigInt("rsa modulus")
	if err != nil {
		return nil, err
	}
	e, err := r.readBigInt("rsa public exponent")
	if err != nil {
		return nil, err
	}
	d, err := r.readBigInt("rsa private exponent")
	if err != nil {
		return nil, err
	}
	iqmp, err := r.readBigInt("rsa crt coefficient")
	if err != nil {
		return nil, err
	}
	p, err := r.readBigInt("rsa prime p")
	if err != nil {
		return nil, err
	}
	q, err := r.readBigInt("rsa prime q")
	if err != nil {
		return nil, err
	}

	if !e.IsInt64() || e.Int64() <= 0 {
		return nil, &ParseError{Field: "rsa public exponent"}
	}

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: n, E: int(e.Int64())},
		D:         d,
		Primes:    []*big.Int{p, q},
	}
	key.Precompute()
	if key.Precomputed.Qinv.Cmp(iqmp) != 0 {
		return nil, ErrWrongPassword
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongPassword, err)
	}
	return &rsaMaterial{key: key}, nil
}

// decodeEd25519 reads the stored public key (discarded) and the 64-byte
// private blob; the signing seed is its first 32 bytes.
func decodeEd25519(r *reader) (KeyMaterial, error) {
	if _, err := r.readBytes("ed25519 public key"); err != nil {
		return nil, err
	}
	priv, err := r.readBytes("ed25519 private key")
	if err != nil {
		return nil, err
	}
	if len(priv) != ed25519.PrivateKeySize {
		return nil, &ParseError{Field: "ed25519 private key"}
	}
	return &ed25519Material{seed: security.FromBytes(priv[:ed25519.SeedSize])}, nil
}

// ecdsaKeyType returns the SSH wire name for a supported curve, e.g.
// "ecdsa-sha2-nistp256" for P-256.
func ecdsaKeyType(curve elliptic.Curve) (string, error) {
	switch curve {
	case elliptic.P256():
		return "ecdsa-sha2-nistp256", nil
	case elliptic.P384():
		return "ecdsa-sha2-nistp384", nil
	case elliptic.P521():
		return "ecdsa-sha2-nistp521", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurve, curve.Params().Name)
	}
}

// decodeECDSA reads the curve name, the stored public point (discarded) and
// the private scalar, and rebuilds the key on the named curve.
func decodeECDSA(r *reader, keyType string) (KeyMaterial, error) {
	curveName, err := r.readString("ecdsa curve")
	if err != nil {
		return nil, err
	}
	var curve elliptic.Curve
	switch curveName {
	case "nistp256":
		curve = elliptic.P256()
	case "nistp384":
		curve = elliptic.P384()
	case "nistp521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCurve, curveName)
	}

	if _, err := r.readBytes("ecdsa public point"); err != nil {
		return nil, err
	}
	scalar, err := r.readBigInt("ecdsa private scalar")
	if err != nil {
		return nil, err
	}
	if scalar.Sign() <= 0 || scalar.Cmp(curve.Params().N) >= 0 {
		return nil, &ParseError{Field: "ecdsa private scalar"}
	}

	key := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve},
		D:         scalar,
	}
	key.PublicKey.X, key.PublicKey.Y = curve.ScalarBaseMult(scalar.Bytes())
	return &ecdsaMaterial{keyType: keyType, key: key}, nil
}
