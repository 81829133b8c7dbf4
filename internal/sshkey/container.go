// Copyright (c) 2026 GridBanner Team
// Keyproof - SSH key proof-of-possession signer
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import (
	"encoding/binary"
	"fmt"
)

// authMagic is the fixed prefix of the OpenSSH private-key container,
// including the terminating NUL.
const authMagic = "openssh-key-v1\x00"

const (
	cipherNone = "none"
	kdfNone    = "none"
	kdfBcrypt  = "bcrypt"
)

// Container is the decoded OpenSSH private-key container header plus the
// (possibly encrypted) private-key section. It is produced by ParseContainer
// and discarded after the pipeline completes.
type Container struct {
	CipherName  string
	KDFName     string
	KDFSalt     []byte
	KDFRounds   uint32
	PublicKey   []byte
	PrivateBlob []byte
}

// Encrypted reports whether the private-key section requires decryption.
func (c *Container) Encrypted() bool { return c.CipherName != cipherNone }

// reader is a bounds-checked cursor over untrusted container bytes. Every
// read validates the length prefix against the remaining buffer; it never
// slices past the end.
type reader struct {
	buf []byte
	off int
}

func (r *reader) readUint32(field string) (uint32, error) {
	if r.off+4 > len(r.buf) {
		return 0, &ParseError{Field: field, Offset: r.off}
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) readBytes(field string) ([]byte, error) {
	n, err := r.readUint32(field)
	if err != nil {
		return nil, err
	}
	if uint64(r.off)+uint64(n) > uint64(len(r.buf)) {
		return nil, &ParseError{Field: field, Offset: r.off}
	}
	v := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return v, nil
}

func (r *reader) readString(field string) (string, error) {
	b, err := r.readBytes(field)
	return string(b), err
}

// rest returns the unread tail of the buffer.
func (r *reader) rest() []byte { return r.buf[r.off:] }

// ParseContainer decodes the binary OpenSSH private-key container (the bytes
// inside the "OPENSSH PRIVATE KEY" PEM armor). It performs no cryptographic
// work; the private-key section comes back as-is, encrypted or not.
func ParseContainer(raw []byte) (*Container, error) {
	if len(raw) < len(authMagic) || string(raw[:len(authMagic)]) != authMagic {
		return nil, fmt.Errorf("%w: missing openssh-key-v1 magic", ErrUnsupportedFormat)
	}

	r := &reader{buf: raw, off: len(authMagic)}

	cipherName, err := r.readString("cipher name")
	if err != nil {
		return nil, err
	}
	kdfName, err := r.readString("kdf name")
	if err != nil {
		return nil, err
	}
	kdfOpts, err := r.readBytes("kdf options")
	if err != nil {
		return nil, err
	}
	numKeys, err := r.readUint32("key count")
	if err != nil {
		return nil, err
	}
	if numKeys != 1 {
		return nil, fmt.Errorf("%w: container holds %d keys, want 1", ErrUnsupportedFormat, numKeys)
	}
	publicKey, err := r.readBytes("public key")
	if err != nil {
		return nil, err
	}
	privateBlob, err := r.readBytes("private section")
	if err != nil {
		return nil, err
	}

	c := &Container{
		CipherName:  cipherName,
		KDFName:     kdfName,
		PublicKey:   publicKey,
		PrivateBlob: privateBlob,
	}

	// The KDF options blob is itself length-prefixed: salt, then rounds.
	// Only decode it for the bcrypt KDF; "none" carries an empty blob.
	if kdfName == kdfBcrypt {
		or := &reader{buf: kdfOpts}
		salt, err := or.readBytes("kdf salt")
		if err != nil {
			return nil, err
		}
		rounds, err := or.readUint32("kdf rounds")
		if err != nil {
			return nil, err
		}
		c.KDFSalt = salt
		c.KDFRounds = rounds
	}

	return c, nil
}
