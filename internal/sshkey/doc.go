// Copyright (c) 2026 GridBanner Team
// Keyproof - SSH key proof-of-possession signer
// This source code is licensed under the MIT license found in the LICENSE file.

// Package sshkey proves possession of a locally stored SSH private key by
// signing a server-supplied challenge, without the key ever leaving the
// process.
//
// The pipeline decodes the OpenSSH private-key container, derives the
// decryption key with bcrypt_pbkdf when the container is encrypted,
// decrypts with AES in CBC or counter mode, decodes the algorithm-specific
// key material (RSA, Ed25519 or ECDSA), and signs the challenge. Legacy
// PEM-encoded RSA/EC keys short-circuit through crypto/x509. Every buffer
// that has held secret material is wiped before release, on error paths
// included.
package sshkey
