// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"sync/atomic"

	"mixdeck/internal/log"
)

// LoggingTransport implements the Transport interface by logging data at
// debug level.
type LoggingTransport struct {
	logger *log.Logger
	sent   atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	lt := &LoggingTransport{logger: log.Named("feed-log")}
	lt.logger.Infof("using logging transport")
	return lt
}

// Send logs the JSON form of data. It never fails: data that cannot be
// marshalled is logged with its Go syntax instead.
func (lt *LoggingTransport) Send(data any) error {
	n := lt.sent.Add(1)
	if log.GetLevel() > log.LevelDebug {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		lt.logger.Debugf("#%d (%T): %+v (marshal error: %v)", n, data, data, err)
		return nil
	}
	lt.logger.Debugf("#%d: %s", n, b)
	return nil
}

// Sent returns the number of messages sent so far.
func (lt *LoggingTransport) Sent() uint64 { return lt.sent.Load() }

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	lt.logger.Debugf("closed after %d messages", lt.sent.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
