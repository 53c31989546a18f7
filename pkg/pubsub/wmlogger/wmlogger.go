/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package wmlogger

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

// Module is the name of the Watermill module used for logging.
const Module = "watermill"

// Logger adapts the connector's structured logger to the Watermill logger
// interface.
type Logger struct {
	logger *log.Log
	fields watermill.LogFields
}

// New returns a new Watermill logger adapter.
func New() *Logger {
	return &Logger{logger: log.New(Module)}
}

// Error logs an error.
func (l *Logger) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Error(msg, append(l.zapFields(fields), zap.Error(err))...)
}

// Info logs an informational message. Watermill is chatty at INFO, so these
// are emitted at DEBUG.
func (l *Logger) Info(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, l.zapFields(fields)...)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, l.zapFields(fields)...)
}

// Trace logs a trace message at the debug level.
func (l *Logger) Trace(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, l.zapFields(fields)...)
}

// With returns a new logger that includes the supplied fields in each log.
func (l *Logger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &Logger{
		logger: l.logger,
		fields: l.fields.Add(fields),
	}
}

func (l *Logger) zapFields(additionalFields watermill.LogFields) []zap.Field {
	all := l.fields.Add(additionalFields)

	zapFields := make([]zap.Field, 0, len(all))

	for k, v := range all {
		if stringer, ok := v.(fmt.Stringer); ok {
			zapFields = append(zapFields, zap.String(k, stringer.String()))
			continue
		}

		zapFields = append(zapFields, zap.Any(k, v))
	}

	return zapFields
}
