/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package log provides structured logging helpers shared across the
// connector: a thin re-export of logutil-go's zap-backed Log type plus a
// vocabulary of typed fields (fields.go) and common log statements
// (common.go) specific to this module's domain.
package log

import (
	llog "github.com/trustbloc/logutil-go/pkg/log"
	"go.uber.org/zap"
)

// Log is the structured, zap-backed logger used throughout the connector.
type Log = llog.Log

// Option configures a Log instance.
type Option = llog.Option

// New returns a new structured logger for the given module.
func New(module string, opts ...Option) *Log {
	return llog.New(module, opts...)
}

// WithFields sets fields that are included on every log statement emitted
// by the logger.
func WithFields(fields ...zap.Field) Option {
	return llog.WithFields(fields...)
}
