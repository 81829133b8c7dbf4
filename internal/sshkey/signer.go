// Copyright (c) 2026 GridBanner Team
// Keyproof - SSH key proof-of-possession signer
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/gridbanner/keyproof/internal/security"
)

// PEM block types the dispatcher routes on.
const (
	pemTypeOpenSSH = "OPENSSH PRIVATE KEY"
	pemTypeRSA     = "RSA PRIVATE KEY"
	pemTypeEC      = "EC PRIVATE KEY"
	pemTypePKCS8   = "PRIVATE KEY"
)

type options struct {
	password security.Secret
	progress func(Event)
}

// Option configures a SignChallenge call.
type Option func(*options)

// WithPassword supplies the passphrase for an encrypted key. The Secret is
// borrowed, not owned: the caller zeroes it when the call returns.
func WithPassword(p security.Secret) Option {
	return func(o *options) { o.password = p }
}

// WithProgress registers a callback receiving key-derivation progress
// events, replacing any process-global logging hook.
func WithProgress(fn func(Event)) Option {
	return func(o *options) { o.progress = fn }
}

// PrivateKeyPath derives the private-key path from a public-key path by
// stripping a trailing ".pub". A path without the suffix is returned as-is.
func PrivateKeyPath(publicKeyPath string) string {
	return strings.TrimSuffix(publicKeyPath, ".pub")
}

// SignChallenge proves possession of the private key matching
// publicKeyPath: it loads the key, decrypts it if needed, signs the
// base64-decoded challenge, and returns the base64-encoded signature.
// The private key never leaves this process.
//
// Failures are classified: ErrKeyNotFound, ErrInvalidChallenge,
// ErrPasswordRequired, ErrWrongPassword, the ErrUnsupported* family, or a
// *ParseError for structurally corrupt containers.
func SignChallenge(ctx context.Context, publicKeyPath, challenge string, opts ...Option) (string, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	keyPath := PrivateKeyPath(publicKeyPath)
	data, err := os.ReadFile(keyPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrKeyNotFound, keyPath)
		}
		return "", fmt.Errorf("read private key: %w", err)
	}
	// The file holds private material, armored but possibly unencrypted.
	defer security.Wipe(data)

	raw, err := base64.StdEncoding.DecodeString(challenge)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidChallenge, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return "", fmt.Errorf("%w: no PEM block found", ErrUnsupportedFormat)
	}
	defer security.Wipe(block.Bytes)

	var sig []byte
	switch block.Type {
	case pemTypeOpenSSH:
		sig, err = signWithContainer(ctx, block.Bytes, raw, &o)
	case pemTypeRSA, pemTypeEC, pemTypePKCS8:
		sig, err = signWithPEM(block, raw, &o)
	default:
		return "", fmt.Errorf("%w: PEM type %q", ErrUnsupportedFormat, block.Type)
	}
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

// signWithContainer runs the full pipeline over the binary OpenSSH
// container: parse, derive, decrypt, decode, sign. Every intermediate
// secret is wiped on all exit paths.
func signWithContainer(ctx context.Context, der, challenge []byte, o *options) ([]byte, error) {
	// der carries the private section in the clear when the container is
	// unencrypted; this function owns it from here on.
	defer security.Wipe(der)

	cont, err := ParseContainer(der)
	if err != nil {
		return nil, err
	}

	var plain []byte
	if !cont.Encrypted() {
		plain = make([]byte, len(cont.PrivateBlob))
		copy(plain, cont.PrivateBlob)
	} else {
		// Resolve the cipher before deriving so an unsupported name
		// fails without burning KDF rounds.
		spec, err := lookupCipher(cont.CipherName)
		if err != nil {
			return nil, err
		}
		if cont.KDFName != kdfBcrypt {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedKDF, cont.KDFName)
		}
		if len(o.password) == 0 {
			return nil, ErrPasswordRequired
		}

		derived, err := deriveKey(ctx, o.password, cont.KDFSalt, cont.KDFRounds, spec.keyBytes, spec.ivBytes, o.progress)
		if err != nil {
			return nil, err
		}
		plain, err = decryptPrivateBlob(cont.PrivateBlob, derived.Key, derived.IV, cont.CipherName)
		derived.Zero()
		if err != nil {
			return nil, err
		}
	}
	defer security.Wipe(plain)

	material, err := decodeKeyMaterial(plain)
	if err != nil {
		return nil, err
	}
	defer material.Wipe()

	return sign(material, challenge)
}

// signWithPEM handles the standardized PEM encodings (PKCS#1 RSA, SEC 1 EC,
// PKCS#8) through crypto/x509; these formats need no custom parsing.
func signWithPEM(block *pem.Block, challenge []byte, o *options) ([]byte, error) {
	// For an unencrypted block these bytes are the private key itself.
	defer security.Wipe(block.Bytes)

	der := block.Bytes

	// Legacy RFC 1423 encryption is deprecated in crypto/x509 but still
	// what ssh-keygen -m PEM emits for passphrase-protected keys.
	//nolint:staticcheck
	if x509.IsEncryptedPEMBlock(block) {
		if len(o.password) == 0 {
			return nil, ErrPasswordRequired
		}
		pw := o.password.Bytes()
		defer security.Wipe(pw)
		//nolint:staticcheck
		decrypted, err := x509.DecryptPEMBlock(block, pw)
		if err != nil {
			if errors.Is(err, x509.IncorrectPasswordError) {
				return nil, ErrWrongPassword
			}
			return nil, fmt.Errorf("decrypt PEM block: %w", err)
		}
		der = decrypted
		defer security.Wipe(der)
	}

	material, err := pemKeyMaterial(block.Type, der)
	if err != nil {
		return nil, err
	}
	defer material.Wipe()

	return sign(material, challenge)
}

// pemKeyMaterial imports a parsed DER key into the same tagged union the
// container pipeline produces, so signing has a single path.
func pemKeyMaterial(blockType string, der []byte) (KeyMaterial, error) {
	switch blockType {
	case pemTypeRSA:
		key, err := x509.ParsePKCS1PrivateKey(der)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return &rsaMaterial{key: key}, nil
	case pemTypeEC:
		key, err := x509.ParseECPrivateKey(der)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		keyType, err := ecdsaKeyType(key.Curve)
		if err != nil {
			return nil, err
		}
		return &ecdsaMaterial{keyType: keyType, key: key}, nil
	case pemTypePKCS8:
		key, err := x509.ParsePKCS8PrivateKey(der)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		switch k := key.(type) {
		case *rsa.PrivateKey:
			return &rsaMaterial{key: k}, nil
		case *ecdsa.PrivateKey:
			keyType, err := ecdsaKeyType(k.Curve)
			if err != nil {
				return nil, err
			}
			return &ecdsaMaterial{keyType: keyType, key: k}, nil
		case ed25519.PrivateKey:
			return &ed25519Material{seed: security.FromBytes(k.Seed())}, nil
		default:
			return nil, fmt.Errorf("%w: PKCS#8 %T", ErrUnsupportedKeyType, key)
		}
	default:
		return nil, fmt.Errorf("%w: PEM type %q", ErrUnsupportedFormat, blockType)
	}
}

// IsPasswordProtected reports whether the private key behind publicKeyPath
// needs a passphrase, by inspecting the container's cipher name (or legacy
// PEM headers) without attempting any decryption. Callers use it to decide
// whether to prompt before signing.
func IsPasswordProtected(publicKeyPath string) (bool, error) {
	keyPath := PrivateKeyPath(publicKeyPath)
	data, err := os.ReadFile(keyPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("%w: %s", ErrKeyNotFound, keyPath)
		}
		return false, fmt.Errorf("read private key: %w", err)
	}
	defer security.Wipe(data)

	block, _ := pem.Decode(data)
	if block == nil {
		return false, fmt.Errorf("%w: no PEM block found", ErrUnsupportedFormat)
	}
	defer security.Wipe(block.Bytes)

	switch block.Type {
	case pemTypeOpenSSH:
		cont, err := ParseContainer(block.Bytes)
		if err != nil {
			return false, err
		}
		return cont.Encrypted(), nil
	case pemTypeRSA, pemTypeEC, pemTypePKCS8:
		//nolint:staticcheck
		return x509.IsEncryptedPEMBlock(block), nil
	default:
		return false, fmt.Errorf("%w: PEM type %q", ErrUnsupportedFormat, block.Type)
	}
}

// Fingerprint returns the SHA-256 fingerprint of the public key at
// publicKeyPath in the usual "SHA256:..." form. The keyring service
// identifies registered keys by this value.
func Fingerprint(publicKeyPath string) (string, error) {
	data, err := os.ReadFile(publicKeyPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrKeyNotFound, publicKeyPath)
		}
		return "", fmt.Errorf("read public key: %w", err)
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return ssh.FingerprintSHA256(pub), nil
}
