// Package testserver is a small in-process WebSocket fixture used by
// integration tests: it echoes every frame back
// to the sender and, if configured, answers a fixed heartbeat request
// with a fixed response — standing in for "a server the library talks
// to" the way the teacher's internal/hub websocket handler stands in
// for the real webhook-fanout server, but stripped down to exactly
// the behavior these tests need to drive.
package testserver

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"golang.org/x/net/websocket"
)

// Server is a running test WebSocket endpoint. Close stops it.
type Server struct {
	addr    string
	httpSrv *httptest.Server

	mu           sync.Mutex
	heartbeatReq string
	heartbeatRes string
	silent       bool
}

// New starts a Server immediately. URL() returns its ws:// address.
func New() *Server {
	s := &Server{}
	s.httpSrv = httptest.NewServer(websocket.Handler(s.handle))
	s.addr = s.httpSrv.Listener.Addr().String()
	return s
}

// URL returns the ws:// address of the server.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.httpSrv.URL, "http")
}

// Stop closes the listener, releasing the address so Restart can bind
// it again. WebSocket connections already accepted are not closed by
// Stop.
func (s *Server) Stop() {
	s.httpSrv.Close()
}

// Restart rebinds a fresh listener on the same address Stop released,
// simulating the server coming back up. Panics if the address cannot
// be rebound, since it is test-only scaffolding.
func (s *Server) Restart() {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		panic("testserver: restart: " + err.Error())
	}
	srv := &httptest.Server{
		Listener: l,
		Config:   &http.Server{Handler: websocket.Handler(s.handle)}, //nolint:gosec // test fixture, no real deadlines needed
	}
	srv.Start()
	s.httpSrv = srv
}

// RespondToHeartbeat configures the server to answer any frame equal
// to req with res, instead of echoing it. Call with empty req to
// disable.
func (s *Server) RespondToHeartbeat(req, res string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeatReq = req
	s.heartbeatRes = res
}

// Silence makes the server accept connections without ever replying,
// for exercising heartbeat- and send-timeout behavior.
func (s *Server) Silence(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent = v
}

// Close stops accepting connections and releases the listener. It is
// safe to call Close then New again bound to a fresh address, but a
// Server itself is not restartable.
func (s *Server) Close() {
	s.httpSrv.Close()
}

func (s *Server) handle(ws *websocket.Conn) {
	for {
		var data []byte
		if err := websocket.Message.Receive(ws, &data); err != nil {
			return
		}

		s.mu.Lock()
		req, res, silent := s.heartbeatReq, s.heartbeatRes, s.silent
		s.mu.Unlock()

		if silent {
			continue
		}

		reply := data
		if req != "" && string(data) == req {
			reply = []byte(res)
		}
		if err := websocket.Message.Send(ws, reply); err != nil {
			return
		}
	}
}
