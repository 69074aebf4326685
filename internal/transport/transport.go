// SPDX-License-Identifier: MIT
//
// Package transport carries the analyzer feed out of the engine and control
// messages back in. A Feed samples the engine on a ticker and hands each
// Frame to every configured Transport.
package transport

import "errors"

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe and must not retain data after Send
// returns: the feed reuses its buffers.
type Transport interface {
	Send(data any) error
	Close() error
}

// MessageHandler handles a message received from a client and returns the
// reply to send back to that client, or nil for none.
type MessageHandler func(data []byte) any
