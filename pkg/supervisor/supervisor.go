// Package supervisor owns the Connection Supervisor state machine:
// connect/disconnect lifecycle, reconnect scheduling via a Backoff
// Strategy, heartbeat-driven liveness, and short-window send
// buffering. Every mutable field is touched from exactly one
// goroutine — the Supervisor's own event loop, modeled after the
// teacher's hub.Run select loop — so the rest of the package reads
// like single-threaded code even though callers invoke it from many
// goroutines concurrently.
package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lwj1994/okws-client/internal/broadcast"
	"github.com/lwj1994/okws-client/pkg/backoff"
	"github.com/lwj1994/okws-client/pkg/engine"
	"github.com/lwj1994/okws-client/pkg/heartbeat"
	"github.com/lwj1994/okws-client/pkg/wslog"
)

// State is the Supervisor's connection state. The zero value is
// Disconnected.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// sendTimeout bounds how long a Send call waits for a Connected
// transition before giving up.
const sendTimeout = 5 * time.Second

// engineCloseTimeout bounds the context passed to Engine.Close when a
// superseded or disconnected Engine is torn down in the background.
const engineCloseTimeout = 5 * time.Second

// Options configures a Supervisor. URL is the only required field.
type Options struct {
	URL                   string
	Header                http.Header
	TransportPingInterval time.Duration
	Backoff               backoff.Strategy
	Heartbeat             *heartbeat.Config
	Dial                  engine.DialFunc
}

func (o Options) normalize() (Options, error) {
	if o.URL == "" {
		return o, fmt.Errorf("supervisor: URL is required")
	}
	if o.Backoff == nil {
		o.Backoff = backoff.NewLinear(backoff.DefaultLinearInterval)
	}
	if o.Dial == nil {
		o.Dial = engine.Dial
	}
	return o, nil
}

type connectReq struct{ reply chan struct{} }

type disconnectReq struct{ reply chan struct{} }

type disposeReq struct{ reply chan struct{} }

type sendReq struct {
	msg   engine.Message
	reply chan bool
}

type handshakeResult struct {
	gen int
	eng engine.Engine
	err error
}

type inboundEvent struct {
	gen int
	msg engine.Message
}

type streamEnd struct {
	gen int
	err error
}

type pendingSend struct {
	msg   engine.Message
	reply chan bool
	timer *time.Timer
}

// Supervisor drives one logical connection to a server, handling
// reconnection, heartbeats, and send buffering. Construct with New;
// the zero value is not usable.
type Supervisor struct {
	opts Options

	connectCh          chan *connectReq
	disconnectCh       chan *disconnectReq
	disposeCh          chan *disposeReq
	sendCh             chan *sendReq
	handshakeCh        chan handshakeResult
	inboundCh          chan inboundEvent
	streamEndCh        chan streamEnd
	reconnectFireCh    chan int
	heartbeatTickCh    chan int
	heartbeatTimeoutCh chan int
	sendTimeoutCh      chan int

	doneCh    chan struct{}
	closeOnce sync.Once

	stateAtomic atomic.Int32

	stateStream   *broadcast.Stream[State]
	inboundStream *broadcast.Stream[engine.Message]

	// loop-owned fields: touched only inside run().
	state              State
	eng                engine.Engine
	expectedDisconnect bool
	reconnecting       bool
	attempt            int
	gen                int

	reconnectTimer        *time.Timer
	heartbeatTickTimer    *time.Timer
	heartbeatTimeoutTimer *time.Timer
	hasHeartbeat          bool
	heartbeatCfg          heartbeat.Config

	connectWaiter chan struct{}

	pendingSends map[int]*pendingSend
	sendSeq      int
}

// New validates opts and starts a Supervisor in its event loop
// goroutine. The returned Supervisor begins in Disconnected; call
// Connect to start the first handshake attempt.
func New(opts Options) (*Supervisor, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	s := &Supervisor{
		opts:               opts,
		connectCh:          make(chan *connectReq),
		disconnectCh:       make(chan *disconnectReq),
		disposeCh:          make(chan *disposeReq),
		sendCh:             make(chan *sendReq),
		handshakeCh:        make(chan handshakeResult),
		inboundCh:          make(chan inboundEvent),
		streamEndCh:        make(chan streamEnd),
		reconnectFireCh:    make(chan int),
		heartbeatTickCh:    make(chan int),
		heartbeatTimeoutCh: make(chan int),
		sendTimeoutCh:      make(chan int),
		doneCh:             make(chan struct{}),
		stateStream:        broadcast.New[State](),
		inboundStream:      broadcast.New[engine.Message](),
		pendingSends:       make(map[int]*pendingSend),
	}
	if opts.Heartbeat != nil {
		s.hasHeartbeat = true
		s.heartbeatCfg = heartbeat.New(*opts.Heartbeat)
	}

	go s.run()
	return s, nil
}

// State synchronously reports the current Connection State. It is
// safe to call at any time, including after Dispose.
func (s *Supervisor) State() State {
	return State(s.stateAtomic.Load())
}

// OnStateChange subscribes to state transitions. Late subscribers do
// not receive transitions that already happened.
func (s *Supervisor) OnStateChange() (<-chan State, func()) {
	return s.stateStream.Subscribe()
}

// OnReceive subscribes to inbound messages, already filtered through
// the heartbeat monitor.
func (s *Supervisor) OnReceive() (<-chan engine.Message, func()) {
	return s.inboundStream.Subscribe()
}

// Connect is idempotent: if already Connecting or Connected it
// returns immediately. Otherwise it blocks until the resulting
// handshake attempt resolves, successfully or not.
func (s *Supervisor) Connect() {
	reply := make(chan struct{})
	select {
	case s.connectCh <- &connectReq{reply: reply}:
	case <-s.doneCh:
		return
	}
	select {
	case <-reply:
	case <-s.doneCh:
	}
}

// Disconnect forces a terminal Disconnected state: it suppresses any
// scheduled reconnect and tears down a live Engine in the background.
// It returns once the state transition has been applied, not once the
// Engine has finished closing.
func (s *Supervisor) Disconnect() {
	reply := make(chan struct{})
	select {
	case s.disconnectCh <- &disconnectReq{reply: reply}:
	case <-s.doneCh:
		return
	}
	select {
	case <-reply:
	case <-s.doneCh:
	}
}

// Send transmits msg. If Connected, it sends immediately; otherwise it
// waits up to 5 seconds for a Connected transition before giving up.
// It returns false if the Supervisor has been disposed.
func (s *Supervisor) Send(msg engine.Message) bool {
	reply := make(chan bool, 1)
	select {
	case s.sendCh <- &sendReq{msg: msg, reply: reply}:
	case <-s.doneCh:
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-s.doneCh:
		return false
	}
}

// Dispose disconnects (if needed), closes both broadcast streams, and
// permanently stops the event loop. Dispose is idempotent and safe to
// call multiple times or concurrently with any other method.
func (s *Supervisor) Dispose() {
	reply := make(chan struct{})
	select {
	case s.disposeCh <- &disposeReq{reply: reply}:
	case <-s.doneCh:
		return
	}
	select {
	case <-reply:
	case <-s.doneCh:
	}
}

// run is the Supervisor's single event-loop goroutine. Every field
// below the "loop-owned" comment is read and written only here.
func (s *Supervisor) run() {
	for {
		select {
		case req := <-s.connectCh:
			s.handleConnect(req)

		case req := <-s.disconnectCh:
			s.handleDisconnect(req)

		case req := <-s.disposeCh:
			s.handleDispose(req)
			return

		case req := <-s.sendCh:
			s.handleSend(req)

		case r := <-s.handshakeCh:
			s.handleHandshakeResult(r)

		case ev := <-s.inboundCh:
			s.handleInbound(ev)

		case end := <-s.streamEndCh:
			s.handleStreamEnd(end)

		case gen := <-s.reconnectFireCh:
			s.handleReconnectFired(gen)

		case gen := <-s.heartbeatTickCh:
			s.handleHeartbeatTick(gen)

		case gen := <-s.heartbeatTimeoutCh:
			s.handleHeartbeatTimeout(gen)

		case id := <-s.sendTimeoutCh:
			s.handleSendTimeout(id)
		}
	}
}

func (s *Supervisor) setState(st State) {
	s.state = st
	s.stateAtomic.Store(int32(st))
	s.stateStream.Publish(st)
}

func (s *Supervisor) handleConnect(req *connectReq) {
	if s.state != Disconnected {
		close(req.reply)
		return
	}

	// A reconnect may already be scheduled (or in flight) from a prior
	// failure; supersede it so its generation's eventual
	// handleReconnectFired/handleHandshakeResult is discarded rather
	// than racing a second dial against this one.
	s.stopReconnectTimer()
	s.reconnecting = false
	s.gen++

	s.expectedDisconnect = false
	s.setState(Connecting)
	s.connectWaiter = req.reply

	gen := s.gen
	go s.dial(gen)
}

func (s *Supervisor) dial(gen int) {
	eng, err := s.opts.Dial(context.Background(), engine.DialOptions{
		URL:                   s.opts.URL,
		Header:                s.opts.Header,
		TransportPingInterval: s.opts.TransportPingInterval,
	})
	select {
	case s.handshakeCh <- handshakeResult{gen: gen, eng: eng, err: err}:
	case <-s.doneCh:
		if eng != nil {
			closeEngineBestEffort(eng)
		}
	}
}

func (s *Supervisor) resolveConnectWaiter() {
	if s.connectWaiter != nil {
		close(s.connectWaiter)
		s.connectWaiter = nil
	}
}

func (s *Supervisor) handleHandshakeResult(r handshakeResult) {
	if r.gen != s.gen {
		if r.eng != nil {
			go closeEngineBestEffort(r.eng)
		}
		return
	}

	// The reconnect (if any) that produced this attempt has now
	// resolved one way or the other; disconnectHandler re-arms this
	// guard below if the attempt failed.
	s.reconnecting = false

	if r.err != nil {
		wslog.Logf("supervisor: handshake failed: %v", r.err)
		s.resolveConnectWaiter()
		s.disconnectHandler()
		return
	}

	if s.expectedDisconnect {
		go closeEngineBestEffort(r.eng)
		s.resolveConnectWaiter()
		return
	}

	s.eng = r.eng
	s.setState(Connected)
	s.attempt = 0
	s.opts.Backoff.Reset()
	s.armHeartbeatTick()
	s.resolveAllPendingSends()
	s.resolveConnectWaiter()

	go s.readEngine(s.gen, r.eng)
}

// readEngine is the sole reader of eng's Stream/Err channels and the
// only goroutine, besides run, that ever touches them.
func (s *Supervisor) readEngine(gen int, eng engine.Engine) {
	stream := eng.Stream()
	errc := eng.Err()

	for msg := range stream {
		select {
		case s.inboundCh <- inboundEvent{gen: gen, msg: msg}:
		case <-s.doneCh:
			return
		}
	}

	err := <-errc
	select {
	case s.streamEndCh <- streamEnd{gen: gen, err: err}:
	case <-s.doneCh:
	}
}

func (s *Supervisor) handleInbound(ev inboundEvent) {
	if ev.gen != s.gen {
		return
	}

	forward := true
	if s.hasHeartbeat {
		isResponse := s.heartbeatCfg.IsResponse(ev.msg)
		if isResponse {
			s.stopHeartbeatTimeoutTimer()
		}
		forward = s.heartbeatCfg.Forward(isResponse)
	}
	if forward {
		s.inboundStream.Publish(ev.msg)
	}
}

func (s *Supervisor) handleStreamEnd(end streamEnd) {
	if end.gen != s.gen {
		return
	}
	if end.err != nil {
		wslog.Logf("supervisor: connection lost: %v", end.err)
	} else {
		wslog.Logf("supervisor: connection closed")
	}
	s.disconnectHandler()
}

// disconnectHandler is the single internal entry point for every
// unexpected loss of connection: handshake failure, stream
// completion, stream error, or heartbeat timeout.
func (s *Supervisor) disconnectHandler() {
	s.stopHeartbeatTimers()
	s.eng = nil
	s.gen++

	if s.state != Disconnected {
		s.setState(Disconnected)
	}

	if !s.expectedDisconnect && !s.reconnecting {
		s.reconnecting = true
		s.attempt++
		delay := s.opts.Backoff.Next(s.attempt)
		s.armReconnectTimer(delay)
	}
}

func (s *Supervisor) armReconnectTimer(delay time.Duration) {
	s.stopReconnectTimer()
	gen := s.gen
	s.reconnectTimer = time.AfterFunc(delay, func() {
		select {
		case s.reconnectFireCh <- gen:
		case <-s.doneCh:
		}
	})
}

func (s *Supervisor) handleReconnectFired(gen int) {
	if gen != s.gen {
		return
	}
	s.reconnectTimer = nil

	if s.expectedDisconnect {
		s.reconnecting = false
		return
	}

	s.setState(Connecting)
	go s.dial(gen)
}

func (s *Supervisor) handleDisconnect(req *disconnectReq) {
	s.stopReconnectTimer()
	s.stopHeartbeatTimers()
	s.expectedDisconnect = true
	s.reconnecting = false
	s.gen++

	if s.state != Disconnected {
		s.setState(Disconnected)
	}

	if s.eng != nil {
		eng := s.eng
		s.eng = nil
		go closeEngineBestEffort(eng)
	}

	s.resolveConnectWaiter()
	close(req.reply)
}

func (s *Supervisor) handleDispose(req *disposeReq) {
	s.stopReconnectTimer()
	s.stopHeartbeatTimers()
	s.expectedDisconnect = true
	s.reconnecting = false
	s.gen++

	if s.state != Disconnected {
		s.setState(Disconnected)
	}

	if s.eng != nil {
		eng := s.eng
		s.eng = nil
		go closeEngineBestEffort(eng)
	}

	s.resolveConnectWaiter()
	s.failAllPendingSends()

	s.stateStream.Close()
	s.inboundStream.Close()

	close(req.reply)
	s.closeOnce.Do(func() { close(s.doneCh) })
}

func (s *Supervisor) handleSend(req *sendReq) {
	if s.state == Connected && s.eng != nil {
		err := s.eng.Send(req.msg)
		if err != nil {
			wslog.Logf("supervisor: send failed: %v", err)
		}
		req.reply <- (err == nil)
		return
	}

	id := s.sendSeq
	s.sendSeq++
	p := &pendingSend{msg: req.msg, reply: req.reply}
	p.timer = time.AfterFunc(sendTimeout, func() {
		select {
		case s.sendTimeoutCh <- id:
		case <-s.doneCh:
		}
	})
	s.pendingSends[id] = p
}

func (s *Supervisor) handleSendTimeout(id int) {
	p, ok := s.pendingSends[id]
	if !ok {
		return
	}
	delete(s.pendingSends, id)
	p.reply <- false
}

func (s *Supervisor) resolveAllPendingSends() {
	for id, p := range s.pendingSends {
		delete(s.pendingSends, id)
		p.timer.Stop()
		err := s.eng.Send(p.msg)
		if err != nil {
			wslog.Logf("supervisor: buffered send failed: %v", err)
		}
		p.reply <- (err == nil)
	}
}

func (s *Supervisor) failAllPendingSends() {
	for id, p := range s.pendingSends {
		delete(s.pendingSends, id)
		p.timer.Stop()
		p.reply <- false
	}
}

func (s *Supervisor) armHeartbeatTick() {
	if !s.hasHeartbeat {
		return
	}
	s.stopHeartbeatTickTimer()
	gen := s.gen
	s.heartbeatTickTimer = time.AfterFunc(s.heartbeatCfg.Interval, func() {
		select {
		case s.heartbeatTickCh <- gen:
		case <-s.doneCh:
		}
	})
}

func (s *Supervisor) handleHeartbeatTick(gen int) {
	if gen != s.gen || s.state != Connected || s.eng == nil {
		return
	}

	if err := s.eng.Send(s.heartbeatCfg.Request); err != nil {
		// The engine's own stream-error path drives the disconnect;
		// a tick failure here must not trigger a second one.
		wslog.Logf("supervisor: heartbeat send failed: %v", err)
	} else {
		s.armHeartbeatTimeout()
	}
	s.armHeartbeatTick()
}

func (s *Supervisor) armHeartbeatTimeout() {
	if s.heartbeatTimeoutTimer != nil {
		// A response to an earlier tick hasn't arrived yet; leave its
		// deadline alone. Resetting it here would mean a Timeout >=
		// Interval configuration never fires, since every new tick
		// would keep pushing the deadline back.
		return
	}
	gen := s.gen
	s.heartbeatTimeoutTimer = time.AfterFunc(s.heartbeatCfg.Timeout, func() {
		select {
		case s.heartbeatTimeoutCh <- gen:
		case <-s.doneCh:
		}
	})
}

func (s *Supervisor) handleHeartbeatTimeout(gen int) {
	if gen != s.gen || s.state != Connected {
		return
	}
	wslog.Logf("supervisor: heartbeat timeout")
	s.disconnectHandler()
}

func (s *Supervisor) stopReconnectTimer() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

func (s *Supervisor) stopHeartbeatTickTimer() {
	if s.heartbeatTickTimer != nil {
		s.heartbeatTickTimer.Stop()
		s.heartbeatTickTimer = nil
	}
}

func (s *Supervisor) stopHeartbeatTimeoutTimer() {
	if s.heartbeatTimeoutTimer != nil {
		s.heartbeatTimeoutTimer.Stop()
		s.heartbeatTimeoutTimer = nil
	}
}

func (s *Supervisor) stopHeartbeatTimers() {
	s.stopHeartbeatTickTimer()
	s.stopHeartbeatTimeoutTimer()
}

func closeEngineBestEffort(eng engine.Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), engineCloseTimeout)
	defer cancel()
	if err := eng.Close(ctx); err != nil {
		wslog.Logf("supervisor: engine close: %v", err)
	}
}
