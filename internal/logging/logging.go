// Copyright (c) 2026 GridBanner Team
// Keyproof - SSH key proof-of-possession signer
// This source code is licensed under the MIT license found in the LICENSE file.

// Package logging is a small facade over zerolog. Nothing inside the
// signing pipeline logs; only the CLI orchestrator does, and secrets are
// redacted at the type level before they can reach a log line.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
	With().Timestamp().Logger().
	Level(zerolog.InfoLevel)

// SetDebug enables or disables debug logging for the application.
func SetDebug(enabled bool) {
	if enabled {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
}

// SetOutput redirects log output; tests use this to capture lines.
func SetOutput(w io.Writer) {
	logger = logger.Output(w)
}

// Debugf logs a formatted debug message when debug is enabled.
func Debugf(format string, v ...any) {
	logger.Debug().Msgf(format, v...)
}

// Infof logs an informational formatted message.
func Infof(format string, v ...any) {
	logger.Info().Msgf(format, v...)
}

// Warnf logs a warning formatted message.
func Warnf(format string, v ...any) {
	logger.Warn().Msgf(format, v...)
}

// Errorf logs an error formatted message.
func Errorf(format string, v ...any) {
	logger.Error().Msgf(format, v...)
}
