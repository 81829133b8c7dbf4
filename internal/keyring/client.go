// Copyright (c) 2026 GridBanner Team
// Keyproof - SSH key proof-of-possession signer
// This source code is licensed under the MIT license found in the LICENSE file.

// Package keyring is a thin client for the remote keyring service: it
// fetches signing challenges and uploads proofs. The signing pipeline never
// touches this package; only the CLI orchestrator wires the two together.
package keyring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrRejected is returned when the service refuses a proof (bad signature,
// unknown key, expired challenge).
var ErrRejected = errors.New("proof rejected by keyring service")

// Client talks to the keyring service over HTTPS. All requests carry the
// admin-issued API key in the X-API-Key header.
type Client struct {
	http *resty.Client
}

// New builds a Client for the service at baseURL. Transient failures are
// retried with backoff; the timeout bounds each attempt.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("X-API-Key", apiKey).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second)
	return &Client{http: c}
}

// Challenge is the server-issued nonce to sign. The bytes are opaque to the
// client; they are handed to the signer still base64-encoded.
type Challenge struct {
	Challenge string `json:"challenge"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// Proof is the completed possession proof uploaded for verification.
type Proof struct {
	Fingerprint string `json:"fingerprint"`
	Challenge   string `json:"challenge"`
	Signature   string `json:"signature"`
}

type errorBody struct {
	Error string `json:"error"`
}

// FetchChallenge requests a fresh challenge for the key identified by its
// SHA-256 fingerprint.
func (c *Client) FetchChallenge(ctx context.Context, fingerprint string) (Challenge, error) {
	var out Challenge
	var apiErr errorBody

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"fingerprint": fingerprint}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/keyring/challenge")
	if err != nil {
		return Challenge{}, fmt.Errorf("fetch challenge: %w", err)
	}
	if resp.IsError() {
		return Challenge{}, fmt.Errorf("fetch challenge: %s: %s", resp.Status(), apiErr.Error)
	}
	if out.Challenge == "" {
		return Challenge{}, fmt.Errorf("fetch challenge: empty challenge in response")
	}
	return out, nil
}

// SubmitProof uploads a signed challenge. A 4xx response maps to
// ErrRejected so callers can distinguish a bad proof from a transport
// failure.
func (c *Client) SubmitProof(ctx context.Context, proof Proof) error {
	var apiErr errorBody

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(proof).
		SetError(&apiErr).
		Post("/api/keyring/verify")
	if err != nil {
		return fmt.Errorf("submit proof: %w", err)
	}
	if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
		return fmt.Errorf("%w: %s", ErrRejected, apiErr.Error)
	}
	if resp.IsError() {
		return fmt.Errorf("submit proof: %s: %s", resp.Status(), apiErr.Error)
	}
	return nil
}
