package okws

import (
	"net/http"
	"time"

	"github.com/lwj1994/okws-client/pkg/backoff"
	"github.com/lwj1994/okws-client/pkg/engine"
	"github.com/lwj1994/okws-client/pkg/heartbeat"
	"github.com/lwj1994/okws-client/pkg/supervisor"
	"github.com/lwj1994/okws-client/pkg/wslog"
)

// State mirrors supervisor.State so callers never need to import the
// supervisor package directly.
type State = supervisor.State

const (
	Disconnected = supervisor.Disconnected
	Connecting   = supervisor.Connecting
	Connected    = supervisor.Connected
)

// Message is a single inbound or outbound frame.
type Message = engine.Message

// HeartbeatConfig configures the application-level heartbeat monitor
// passed to WithHeartbeat.
type HeartbeatConfig = heartbeat.Config

// Client is the public handle to one supervised WebSocket connection.
// Construct with New; the zero value is not usable.
type Client struct {
	sup *supervisor.Supervisor
}

// Option configures a Client constructed by New.
type Option func(*supervisor.Options)

// WithHeaders attaches additional HTTP headers to every handshake
// request, e.g. Authorization.
func WithHeaders(h http.Header) Option {
	return func(o *supervisor.Options) { o.Header = h }
}

// WithTransportPingInterval requests a protocol-level keepalive ping
// on the underlying connection, independent of any application
// heartbeat configured with WithHeartbeat. The default dialer has no
// control-frame ping available and ignores this, logging a warning;
// it only takes effect with a WithDialer transport that supports one.
func WithTransportPingInterval(d time.Duration) Option {
	return func(o *supervisor.Options) { o.TransportPingInterval = d }
}

// WithBackoff overrides the default linear-3s reconnect Backoff
// Strategy.
func WithBackoff(b backoff.Strategy) Option {
	return func(o *supervisor.Options) { o.Backoff = b }
}

// WithHeartbeat enables the application-level heartbeat monitor.
// Without this option, no heartbeat is sent and liveness is judged
// purely by the transport.
func WithHeartbeat(cfg heartbeat.Config) Option {
	return func(o *supervisor.Options) {
		c := cfg
		o.Heartbeat = &c
	}
}

// WithDialer overrides how a connection attempt is made, replacing
// the default golang.org/x/net/websocket-based engine.Dial. Tests and
// alternate transports use this.
func WithDialer(d engine.DialFunc) Option {
	return func(o *supervisor.Options) { o.Dial = d }
}

// Init configures the process-wide log sink. See wslog.Init.
func Init(enableLogging bool, logAdapter func(string)) {
	wslog.Init(enableLogging, logAdapter)
}

// New constructs a Client targeting url and immediately starts its
// event loop in Disconnected state; call Connect to begin the first
// handshake attempt.
func New(url string, opts ...Option) (*Client, error) {
	var supOpts supervisor.Options
	supOpts.URL = url
	for _, opt := range opts {
		opt(&supOpts)
	}

	sup, err := supervisor.New(supOpts)
	if err != nil {
		return nil, err
	}
	return &Client{sup: sup}, nil
}

// State synchronously reports the current Connection State.
func (c *Client) State() State {
	return c.sup.State()
}

// OnStateChange subscribes to state transitions. The returned
// function unsubscribes; it is safe to call more than once.
func (c *Client) OnStateChange() (<-chan State, func()) {
	return c.sup.OnStateChange()
}

// OnReceive subscribes to inbound messages, already filtered through
// the heartbeat monitor if one is configured.
func (c *Client) OnReceive() (<-chan Message, func()) {
	return c.sup.OnReceive()
}

// Connect is idempotent and blocks until the resulting handshake
// attempt resolves, successfully or not.
func (c *Client) Connect() {
	c.sup.Connect()
}

// Disconnect forces a terminal Disconnected state and suppresses any
// scheduled reconnect.
func (c *Client) Disconnect() {
	c.sup.Disconnect()
}

// Send accepts a string or []byte payload and transmits it, buffering
// for up to 5 seconds if not currently connected. Any other payload
// type is rejected and logged; this is the type-system boundary that
// stands in for the source implementation's runtime type check.
func (c *Client) Send(payload any) bool {
	var msg Message
	switch v := payload.(type) {
	case string:
		msg = engine.TextMessage(v)
	case []byte:
		msg = engine.BinaryMessage(v)
	default:
		wslog.Logf("okws: rejected send of unsupported type %T", payload)
		return false
	}
	return c.sup.Send(msg)
}

// Dispose disconnects (if needed), closes both broadcast streams, and
// permanently stops the Client. Idempotent.
func (c *Client) Dispose() {
	c.sup.Dispose()
}
