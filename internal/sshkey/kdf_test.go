// Copyright (c) 2026 GridBanner Team
// Keyproof - SSH key proof-of-possession signer
// This source code is licensed under the MIT license found in the LICENSE file.
package sshkey

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/gridbanner/keyproof/internal/security"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex in test: %v", err)
	}
	return b
}

// Golden vectors computed with OpenSSH's bcrypt_pbkdf. The first is the
// widely published ("password", "salt", 4, 32) vector; the others were
// cross-checked against keys ssh-keygen itself encrypted.
func TestBcryptPBKDFGoldenVectors(t *testing.T) {
	tests := []struct {
		name     string
		password string
		salt     []byte
		rounds   uint32
		keyLen   int
		want     string
	}{
		{
			name:     "published vector",
			password: "password",
			salt:     []byte("salt"),
			rounds:   4,
			keyLen:   32,
			want:     "5bbf0cc293587f1c3635555c27796598d47e579071bf427e9d8fbe842aba34d9",
		},
		{
			name:     "single zero byte salt",
			password: "password",
			salt:     []byte{0},
			rounds:   4,
			keyLen:   16,
			want:     "c12b566235eee04c212598970a579a67",
		},
		{
			name:     "multi-block output",
			password: "correct",
			salt:     []byte("0123456789abcdef"),
			rounds:   2,
			keyLen:   48,
			want:     "56c0d0dff63a014910951f5c0f812c3cc9a699eb906d71f3f4b84beda7cf65f0e17f8da66e69007bec72614631d5abf9",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := bcryptPBKDF(context.Background(), []byte(tc.password), tc.salt, tc.rounds, tc.keyLen, nil)
			if err != nil {
				t.Fatalf("bcryptPBKDF failed: %v", err)
			}
			if want := mustHex(t, tc.want); !bytes.Equal(got, want) {
				t.Errorf("derived key mismatch\n got %x\nwant %x", got, want)
			}
		})
	}
}

func TestBcryptPBKDFDeterministic(t *testing.T) {
	ctx := context.Background()
	a, err := bcryptPBKDF(ctx, []byte("hunter2"), []byte("pepper"), 8, 32, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := bcryptPBKDF(ctx, []byte("hunter2"), []byte("pepper"), 8, 32, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("same inputs produced different keys")
	}

	c, err := bcryptPBKDF(ctx, []byte("hunter3"), []byte("pepper"), 8, 32, nil)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, c) {
		t.Errorf("different passwords produced the same key")
	}
}

func TestBcryptPBKDFRejectsBadInput(t *testing.T) {
	ctx := context.Background()

	if _, err := bcryptPBKDF(ctx, nil, []byte("salt"), 4, 32, nil); !errors.Is(err, ErrPasswordRequired) {
		t.Errorf("empty password: got %v, want ErrPasswordRequired", err)
	}

	var perr *ParseError
	if _, err := bcryptPBKDF(ctx, []byte("x"), []byte("salt"), 0, 32, nil); !errors.As(err, &perr) {
		t.Errorf("zero rounds: got %v, want *ParseError", err)
	}

	if _, err := bcryptPBKDF(ctx, []byte("x"), []byte("salt"), 4, 0, nil); err == nil {
		t.Errorf("zero output length accepted")
	}
}

func TestBcryptPBKDFCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := bcryptPBKDF(ctx, []byte("password"), []byte("salt"), 64, 32, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBcryptPBKDFProgress(t *testing.T) {
	var events []Event
	_, err := bcryptPBKDF(context.Background(), []byte("password"), []byte("salt"), 4, 48, func(ev Event) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatal(err)
	}
	// 48 bytes means 2 blocks of 4 rounds each.
	if len(events) != 8 {
		t.Fatalf("got %d progress events, want 8", len(events))
	}
	last := events[len(events)-1]
	if last.Block != 2 || last.Blocks != 2 || last.Round != 4 || last.Rounds != 4 {
		t.Errorf("unexpected final event: %+v", last)
	}
}

func TestDeriveKeySplit(t *testing.T) {
	full, err := bcryptPBKDF(context.Background(), []byte("correct"), []byte("0123456789abcdef"), 2, 48, nil)
	if err != nil {
		t.Fatal(err)
	}

	d, err := deriveKey(context.Background(), security.FromString("correct"), []byte("0123456789abcdef"), 2, 32, 16, nil)
	if err != nil {
		t.Fatalf("deriveKey failed: %v", err)
	}
	defer d.Zero()

	if !bytes.Equal(d.Key, full[:32]) {
		t.Errorf("key half mismatch")
	}
	if !bytes.Equal(d.IV, full[32:]) {
		t.Errorf("iv half mismatch")
	}
}

func TestDerivedSecretZero(t *testing.T) {
	d := &DerivedSecret{
		Key: security.FromString("keykeykey"),
		IV:  security.FromString("iviviv"),
	}
	d.Zero()
	for _, b := range append([]byte(d.Key), d.IV...) {
		if b != 0 {
			t.Fatal("derived secret not wiped")
		}
	}
}
