// Copyright (c) 2026 GridBanner Team
// Keyproof - SSH key proof-of-possession signer
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import (
	"context"
	"crypto/sha512"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blowfish"

	"github.com/gridbanner/keyproof/internal/security"
)

// bcrypt_pbkdf as OpenSSH uses it to turn a passphrase into cipher key
// material. The construction is bcrypt's EksBlowfish core with a fixed
// 32-byte magic block, SHA-512 pre-hashing of both inputs, rounds chained
// by XOR (not replacement), and the final key assembled by striding each
// hash across the output. Validated against ssh-keygen-generated containers
// and the published golden vector for ("password", "salt", 4, 32).

const (
	bcryptHashSize = 32
	bcryptMagic    = "OxychromaticBlowfishSwatDynamite"

	// kdfCancelStride bounds how many bcrypt rounds run between
	// context checks. Round counts are attacker-controllable input,
	// so derivation must stay interruptible.
	kdfCancelStride = 16
)

// Event reports key-derivation progress so an interactive caller can show
// feedback during a slow derivation. Rounds scale the work factor; high
// counts can take tens of seconds.
type Event struct {
	Block  int // 1-based output block being derived
	Blocks int // total output blocks
	Round  int // 1-based round within the block
	Rounds int // total rounds per block
}

// DerivedSecret holds the symmetric key and IV derived from a passphrase.
// It is as sensitive as the passphrase itself; callers must Zero it as soon
// as decryption completes.
type DerivedSecret struct {
	Key security.Secret
	IV  security.Secret
}

// Zero wipes both halves of the derived secret.
func (d *DerivedSecret) Zero() {
	d.Key.Zero()
	d.IV.Zero()
}

// deriveKey runs bcrypt_pbkdf over the passphrase and container salt and
// splits the output into key and IV of the requested sizes. The context is
// checked between rounds so a runaway derivation can be cancelled.
func deriveKey(ctx context.Context, password security.Secret, salt []byte, rounds uint32, keyLen, ivLen int, progress func(Event)) (*DerivedSecret, error) {
	out, err := bcryptPBKDF(ctx, password, salt, rounds, keyLen+ivLen, progress)
	if err != nil {
		return nil, err
	}
	d := &DerivedSecret{
		Key: security.FromBytes(out[:keyLen]),
		IV:  security.FromBytes(out[keyLen : keyLen+ivLen]),
	}
	security.Wipe(out)
	return d, nil
}

// bcryptPBKDF derives keyLen bytes from password and salt. Output blocks are
// indexed from 1; each block's salt is salt||be32(block). Within a block,
// round n re-hashes the previous digest and XORs the result into the
// accumulator. The final key interleaves block outputs with a stride of
// ceil(keyLen/32), matching OpenSSH exactly.
func bcryptPBKDF(ctx context.Context, password []byte, salt []byte, rounds uint32, keyLen int, progress func(Event)) ([]byte, error) {
	if rounds < 1 {
		return nil, &ParseError{Field: "kdf rounds"}
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: empty passphrase", ErrPasswordRequired)
	}
	if keyLen <= 0 || keyLen > 1024 {
		return nil, fmt.Errorf("bcrypt_pbkdf: invalid output length %d", keyLen)
	}

	numBlocks := (keyLen + bcryptHashSize - 1) / bcryptHashSize

	shapass := sha512.Sum512(password)
	defer security.Wipe(shapass[:])

	key := make([]byte, keyLen)
	tmp := make([]byte, bcryptHashSize)
	acc := make([]byte, bcryptHashSize)
	defer security.Wipe(tmp)
	defer security.Wipe(acc)

	h := sha512.New()
	shasalt := make([]byte, 0, sha512.Size)
	cnt := make([]byte, 4)

	for block := 1; block <= numBlocks; block++ {
		h.Reset()
		h.Write(salt)
		binary.BigEndian.PutUint32(cnt, uint32(block))
		h.Write(cnt)
		shasalt = h.Sum(shasalt[:0])

		if err := bcryptHash(tmp, shapass[:], shasalt); err != nil {
			security.Wipe(key)
			return nil, err
		}
		copy(acc, tmp)
		if progress != nil {
			progress(Event{Block: block, Blocks: numBlocks, Round: 1, Rounds: int(rounds)})
		}

		for r := uint32(2); r <= rounds; r++ {
			if (r-2)%kdfCancelStride == 0 {
				if err := ctx.Err(); err != nil {
					security.Wipe(key)
					return nil, err
				}
			}
			h.Reset()
			h.Write(tmp)
			shasalt = h.Sum(shasalt[:0])
			if err := bcryptHash(tmp, shapass[:], shasalt); err != nil {
				security.Wipe(key)
				return nil, err
			}
			for i := range acc {
				acc[i] ^= tmp[i]
			}
			if progress != nil {
				progress(Event{Block: block, Blocks: numBlocks, Round: int(r), Rounds: int(rounds)})
			}
		}

		for i, v := range acc {
			idx := i*numBlocks + (block - 1)
			if idx < keyLen {
				key[idx] = v
			}
		}
	}

	return key, nil
}

// bcryptHash computes one 32-byte bcrypt digest over pre-hashed inputs.
// The schedule is the expensive part: a salted Blowfish key setup followed
// by 64 alternating re-expansions with salt and passphrase, then 64
// encryptions of the magic block. Output words are stored little-endian.
func bcryptHash(out, shapass, shasalt []byte) error {
	c, err := blowfish.NewSaltedCipher(shapass, shasalt)
	if err != nil {
		return err
	}
	for i := 0; i < 64; i++ {
		blowfish.ExpandKey(shasalt, c)
		blowfish.ExpandKey(shapass, c)
	}

	copy(out, bcryptMagic)
	for i := 0; i < 64; i++ {
		for j := 0; j < bcryptHashSize; j += blowfish.BlockSize {
			c.Encrypt(out[j:j+blowfish.BlockSize], out[j:j+blowfish.BlockSize])
		}
	}

	for i := 0; i < bcryptHashSize; i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = out[i+3], out[i+2], out[i+1], out[i]
	}
	return nil
}
