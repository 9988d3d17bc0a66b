package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/net/websocket"

	"github.com/lwj1994/okws-client/pkg/wslog"
)

// defaultHandshakeTimeout bounds a dial attempt when DialOptions does
// not specify one.
const defaultHandshakeTimeout = 10 * time.Second

// dnsRetryAttempts bounds how many times Dial retries a single dial on
// a transient DNS resolution failure. This is independent of, and much
// narrower than, the Supervisor's own reconnect backoff: it smooths
// over a single flaky resolver lookup within one connection attempt,
// it does not replace the Supervisor deciding whether to try again
// after the whole attempt fails.
const dnsRetryAttempts = 3

// Dial is the default DialFunc: it speaks WebSocket over
// golang.org/x/net/websocket and exchanges raw frames rather than any
// particular application envelope, leaving framing to whatever layers
// on top of Engine.
func Dial(ctx context.Context, opts DialOptions) (Engine, error) {
	origin := "http://localhost/"
	if strings.HasPrefix(opts.URL, "wss://") {
		origin = "https://localhost/"
	}

	wsCfg, err := websocket.NewConfig(opts.URL, origin)
	if err != nil {
		return nil, fmt.Errorf("engine: config: %w", err)
	}
	if opts.Header != nil {
		wsCfg.Header = opts.Header
	}

	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	var conn *websocket.Conn
	dialErr := retry.Do(
		func() error {
			c, dialErr := dialOnce(ctx, wsCfg, timeout)
			if dialErr != nil {
				return dialErr
			}
			conn = c
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(dnsRetryAttempts),
		retry.Delay(100*time.Millisecond),
		retry.RetryIf(isTransientDNSError),
	)
	if dialErr != nil {
		return nil, classifyDialError(dialErr)
	}

	e := &wsEngine{
		conn:    conn,
		streamC: make(chan Message, 32),
		errC:    make(chan error, 1),
		closeC:  make(chan struct{}),
	}
	go e.readLoop()
	if opts.TransportPingInterval > 0 {
		// golang.org/x/net/websocket exposes no API for a protocol-level
		// control-frame ping; sending one would mean injecting an
		// ordinary application data frame instead, which a real server
		// echoes back as a spurious message on the inbound stream. Warn
		// once rather than silently do that, and leave the transport
		// ping unimplemented here.
		wslog.Logf("engine: transport ping interval requested but not supported by this dialer; ignoring")
	}
	return e, nil
}

func dialOnce(ctx context.Context, cfg *websocket.Config, timeout time.Duration) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		conn *websocket.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := websocket.DialConfig(cfg)
		ch <- result{conn, err}
	}()

	select {
	case <-dialCtx.Done():
		return nil, dialCtx.Err()
	case r := <-ch:
		return r.conn, r.err
	}
}

func isTransientDNSError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such host") || strings.Contains(msg, "lookup")
}

// classifyDialError turns the string-shaped errors the underlying
// websocket package returns into ErrHandshakeRejected when the server
// actively refused the handshake, as opposed to a network-level
// failure.
func classifyDialError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("engine: dial: %w", err)
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(msg, "bad status") {
		if strings.Contains(msg, "403") || strings.Contains(lower, "forbidden") ||
			strings.Contains(msg, "401") || strings.Contains(lower, "unauthorized") {
			return fmt.Errorf("%w: %s", ErrHandshakeRejected, msg)
		}
	}
	return fmt.Errorf("engine: dial: %w", err)
}

// wsEngine is the default Engine, backed by a single
// golang.org/x/net/websocket connection.
type wsEngine struct {
	conn *websocket.Conn

	streamC chan Message
	errC    chan error

	closeOnce sync.Once
	closeC    chan struct{}

	sendMu sync.Mutex
}

func (e *wsEngine) Stream() <-chan Message { return e.streamC }

func (e *wsEngine) Err() <-chan error { return e.errC }

func (e *wsEngine) Send(m Message) error {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	if m.Text {
		return websocket.Message.Send(e.conn, string(m.Data))
	}
	return websocket.Message.Send(e.conn, m.Data)
}

func (e *wsEngine) Close(context.Context) error {
	var err error
	e.closeOnce.Do(func() {
		close(e.closeC)
		err = e.conn.Close()
	})
	return err
}

// readLoop is the sole reader of the underlying connection. It
// forwards every frame onto streamC until the connection ends, then
// reports why (if anything) on errC before closing both channels.
func (e *wsEngine) readLoop() {
	defer close(e.streamC)
	defer close(e.errC)

	for {
		var data []byte
		err := websocket.Message.Receive(e.conn, &data)
		if err != nil {
			select {
			case <-e.closeC:
				// A local Close caused this read to unblock; not a
				// stream error worth reporting.
			default:
				// A clean close by the peer ends the stream with io.EOF,
				// which is not reported as an error either.
				if !errors.Is(err, io.EOF) {
					e.errC <- fmt.Errorf("engine: read: %w", err)
				}
			}
			return
		}

		select {
		case e.streamC <- Message{Data: data}:
		case <-e.closeC:
			return
		}
	}
}
