// Copyright (c) 2026 GridBanner Team
// Keyproof - SSH key proof-of-possession signer
// This source code is licensed under the MIT license found in the LICENSE file.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInspectPlainKey(t *testing.T) {
	out, err := runCommand(t, "inspect", "../../internal/sshkey/testdata/id_ed25519_plain.pub")
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !strings.Contains(out, "passphrase protected: false") {
		t.Errorf("missing protection line in output:\n%s", out)
	}
	if !strings.Contains(out, "fingerprint: SHA256:") {
		t.Errorf("missing fingerprint line in output:\n%s", out)
	}
}

func TestInspectEncryptedKey(t *testing.T) {
	out, err := runCommand(t, "inspect", "../../internal/sshkey/testdata/id_ed25519_pass")
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !strings.Contains(out, "passphrase protected: true") {
		t.Errorf("missing protection line in output:\n%s", out)
	}
}

func TestSignCommandPlainKey(t *testing.T) {
	out, err := runCommand(t, "sign", "../../internal/sshkey/testdata/id_ed25519_plain", "dGVzdA==")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		t.Fatal("sign printed no signature")
	}
}

func TestSignCommandMissingKey(t *testing.T) {
	_, err := runCommand(t, "sign", "/nonexistent/key", "dGVzdA==")
	if err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestConfigCommandPersists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := runCommand(t, "config", "--server-url", "https://keyring.example.com", "--api-key", "sekrit")
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}

	path := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "keyproof", "keyproof.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), "https://keyring.example.com") {
		t.Errorf("server url missing from written config:\n%s", data)
	}
	if !strings.Contains(string(data), "sekrit") {
		t.Errorf("api key missing from written config:\n%s", data)
	}
}

func TestTrimNewline(t *testing.T) {
	tests := []struct{ in, want string }{
		{"secret\n", "secret"},
		{"secret\r\n", "secret"},
		{"secret", "secret"},
		{"", ""},
		{"\n", ""},
		{"line1\nline2\n", "line1\nline2"},
	}
	for _, tc := range tests {
		if got := string(trimNewline([]byte(tc.in))); got != tc.want {
			t.Errorf("trimNewline(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
