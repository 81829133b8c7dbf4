// Copyright (c) 2026 GridBanner Team
// Keyproof - SSH key proof-of-possession signer
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface for keyproof using Cobra.
// The CLI is the orchestrator: it locates nothing by itself, takes explicit
// key paths, prompts for passphrases when needed, and talks to the remote
// keyring service. All cryptography lives in internal/sshkey.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gridbanner/keyproof/buildvars"
	"github.com/gridbanner/keyproof/internal/config"
	"github.com/gridbanner/keyproof/internal/keyring"
	"github.com/gridbanner/keyproof/internal/logging"
	"github.com/gridbanner/keyproof/internal/security"
	"github.com/gridbanner/keyproof/internal/sshkey"
)

// maxPassphraseAttempts bounds re-prompting after a wrong passphrase.
const maxPassphraseAttempts = 3

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// The error is already printed by Cobra on failure.
		os.Exit(1)
	}
}

// newRootCmd creates and configures a new root cobra command. Tests create
// fresh instances for isolation.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyproof",
		Short: "keyproof proves possession of a local SSH private key.",
		Long: `Keyproof signs server-issued challenges with a locally stored SSH
private key, proving possession of the key without the key ever leaving
this machine. It reads OpenSSH and legacy PEM private-key files, including
passphrase-protected ones.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newSignCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newProveCmd())
	cmd.AddCommand(newConfigCmd())

	cmd.Version = buildvars.VersionOrDefault("dev")

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is keyproof.yaml in the user or system config dir)")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	return cmd
}

// loadConfig builds the effective configuration for a command and applies
// the logging level.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cmd, cfgFile)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	logging.SetDebug(cfg.Debug)
	return cfg, nil
}

func newSignCmd() *cobra.Command {
	var passphraseFile string

	cmd := &cobra.Command{
		Use:   "sign <key-path> <challenge-base64>",
		Short: "Sign a base64 challenge with a local private key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sig, err := signWithPrompt(cmd.Context(), cfg, args[0], args[1], passphraseFile)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sig)
			return nil
		},
	}

	cmd.Flags().StringVar(&passphraseFile, "passphrase-file", "", "read the key passphrase from this file instead of prompting")
	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <key-path>",
		Short: "Show whether a key needs a passphrase, and its fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd); err != nil {
				return err
			}
			protected, err := sshkey.IsPasswordProtected(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "passphrase protected: %v\n", protected)

			// The fingerprint needs the public half; only print it when
			// the caller handed us a .pub path.
			if args[0] != sshkey.PrivateKeyPath(args[0]) {
				fp, err := sshkey.Fingerprint(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "fingerprint: %s\n", fp)
			}
			return nil
		},
	}
}

func newProveCmd() *cobra.Command {
	var passphraseFile string

	cmd := &cobra.Command{
		Use:   "prove <public-key-path>",
		Short: "Fetch a challenge from the keyring service, sign it, and submit the proof",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Server.URL == "" {
				return errors.New("no keyring server configured (set server.url or KEYPROOF_SERVER_URL)")
			}

			pubPath := args[0]
			fp, err := sshkey.Fingerprint(pubPath)
			if err != nil {
				return err
			}

			client := keyring.New(cfg.Server.URL, cfg.Server.APIKey, cfg.Server.Timeout)
			ch, err := client.FetchChallenge(cmd.Context(), fp)
			if err != nil {
				return err
			}
			logging.Debugf("fetched challenge for %s", fp)

			sig, err := signWithPrompt(cmd.Context(), cfg, pubPath, ch.Challenge, passphraseFile)
			if err != nil {
				return err
			}

			if err := client.SubmitProof(cmd.Context(), keyring.Proof{
				Fingerprint: fp,
				Challenge:   ch.Challenge,
				Signature:   sig,
			}); err != nil {
				return err
			}
			logging.Infof("proof accepted for %s", fp)
			return nil
		},
	}

	cmd.Flags().StringVar(&passphraseFile, "passphrase-file", "", "read the key passphrase from this file instead of prompting")
	return cmd
}

func newConfigCmd() *cobra.Command {
	var serverURL, apiKey string
	var system bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Persist keyring service settings to the config file",
		Long: `Config saves the keyring service settings so that prove runs without
flags. Values not given on the command line keep their current value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if serverURL != "" {
				cfg.Server.URL = serverURL
			}
			if apiKey != "" {
				cfg.Server.APIKey = apiKey
			}
			if err := config.Write(&cfg, system); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			logging.Infof("configuration saved")
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server-url", "", "keyring service base URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "keyring service API key")
	cmd.Flags().BoolVar(&system, "system", false, "write the system-wide config instead of the user config")
	return cmd
}

// signWithPrompt signs a challenge, prompting for the passphrase when the
// key is protected and re-prompting a bounded number of times on a wrong
// one. The KDF runs under the configured timeout.
func signWithPrompt(parent context.Context, cfg config.Config, keyPath, challenge, passphraseFile string) (string, error) {
	protected, err := sshkey.IsPasswordProtected(keyPath)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(parent, cfg.KDF.Timeout)
	defer cancel()

	progress := func(ev sshkey.Event) {
		if ev.Round == ev.Rounds {
			logging.Debugf("kdf block %d/%d complete", ev.Block, ev.Blocks)
		}
	}

	if !protected {
		return sshkey.SignChallenge(ctx, keyPath, challenge)
	}

	if passphraseFile != "" {
		raw, err := os.ReadFile(passphraseFile)
		if err != nil {
			return "", fmt.Errorf("read passphrase file: %w", err)
		}
		pass := security.Secret(trimNewline(raw))
		defer pass.Zero()
		return sshkey.SignChallenge(ctx, keyPath, challenge,
			sshkey.WithPassword(pass), sshkey.WithProgress(progress))
	}

	for attempt := 1; attempt <= maxPassphraseAttempts; attempt++ {
		pass, err := promptPassphrase(keyPath)
		if err != nil {
			return "", err
		}
		sig, err := sshkey.SignChallenge(ctx, keyPath, challenge,
			sshkey.WithPassword(pass), sshkey.WithProgress(progress))
		pass.Zero()
		if errors.Is(err, sshkey.ErrWrongPassword) && attempt < maxPassphraseAttempts {
			logging.Warnf("incorrect passphrase (attempt %d/%d)", attempt, maxPassphraseAttempts)
			continue
		}
		return sig, err
	}
	return "", sshkey.ErrWrongPassword
}

// promptPassphrase reads a passphrase from the terminal without echo.
func promptPassphrase(keyPath string) (security.Secret, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("key is passphrase protected and stdin is not a terminal (use --passphrase-file)")
	}
	fmt.Fprintf(os.Stderr, "Enter passphrase for %s: ", sshkey.PrivateKeyPath(keyPath))
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	return security.Secret(raw), nil
}

// trimNewline strips one trailing LF or CRLF, the usual tail of a
// passphrase file.
func trimNewline(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
		if n := len(b); n > 0 && b[n-1] == '\r' {
			b = b[:n-1]
		}
	}
	return b
}
