// Package engine defines the transport capability the Connection
// Supervisor drives: dial a server, exchange Messages, and close. The
// default implementation in ws.go speaks WebSocket and is the
// Supervisor's default DialFunc; beyond that default the Supervisor
// only depends on the Engine interface, so a test or an alternate
// transport can substitute its own DialFunc.
package engine

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrHandshakeRejected is returned by a DialFunc when the server
// actively refused the connection attempt (bad handshake status,
// authentication failure) rather than the attempt merely timing out or
// hitting a transient network error. The Supervisor treats both cases
// identically — it logs the error and still reconnects per its
// BackoffStrategy, whose Next sees only the attempt number. A
// caller-supplied DialFunc that wraps Dial can inspect this via
// errors.Is.
var ErrHandshakeRejected = errors.New("engine: handshake rejected")

// Message is a single frame exchanged with the server. Text reports
// whether Data should be treated as a UTF-8 text frame (the WebSocket
// text opcode) as opposed to a binary frame.
type Message struct {
	Data []byte
	Text bool
}

// TextMessage builds a text-frame Message from s.
func TextMessage(s string) Message {
	return Message{Data: []byte(s), Text: true}
}

// BinaryMessage builds a binary-frame Message from b.
func BinaryMessage(b []byte) Message {
	return Message{Data: b}
}

// String returns the message payload interpreted as UTF-8, regardless
// of the Text flag.
func (m Message) String() string {
	return string(m.Data)
}

// Engine is a single, already-established connection to a server. It is
// not reusable after Close: a reconnect always dials a fresh Engine.
type Engine interface {
	// Stream returns the channel of inbound Messages. It is closed when
	// the connection ends, whether by a call to Close, a read error, or
	// the peer closing the connection; a receive on Err (if the channel
	// carries a value before closing) explains why.
	Stream() <-chan Message
	// Err returns a channel that receives at most one error describing
	// why Stream closed. It is closed alongside Stream. A clean,
	// peer-initiated close delivers no error before closing.
	Err() <-chan error
	// Send writes a single outbound Message. Send may be called
	// concurrently with Stream/Err delivery but not concurrently with
	// another Send.
	Send(Message) error
	// Close ends the connection, unblocking any goroutine reading from
	// Stream. Close must be safe to call more than once.
	Close(ctx context.Context) error
}

// DialOptions configures a single dial attempt.
type DialOptions struct {
	// URL is the server address, e.g. "wss://example.com/socket".
	URL string
	// Header carries additional HTTP headers for the handshake request,
	// e.g. Authorization.
	Header http.Header
	// HandshakeTimeout bounds the time spent establishing the
	// connection before the attempt is treated as failed.
	HandshakeTimeout time.Duration
	// TransportPingInterval, when positive, requests a protocol-level
	// keepalive independent of any application-level heartbeat the
	// Supervisor layers on top. Zero disables it. The default Dial has
	// no control-frame ping available from its underlying package and
	// logs a warning rather than fake one with a data frame; a DialFunc
	// backed by a transport that does expose one may honor it.
	TransportPingInterval time.Duration
}

// DialFunc establishes a single Engine. The Supervisor calls it once
// per connection attempt and never again for that Engine. The
// Supervisor passes a context it never cancels; an Engine that arrives
// after the attempt was superseded is closed instead of used.
type DialFunc func(ctx context.Context, opts DialOptions) (Engine, error)
