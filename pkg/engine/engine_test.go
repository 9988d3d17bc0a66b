package engine

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"
)

// echoServer starts an httptest server that echoes every frame it
// receives back to the client, optionally sending a greeting first.
func echoServer(t *testing.T, greeting string) *httptest.Server {
	t.Helper()
	handler := websocket.Handler(func(ws *websocket.Conn) {
		if greeting != "" {
			if err := websocket.Message.Send(ws, greeting); err != nil {
				return
			}
		}
		for {
			var data []byte
			if err := websocket.Message.Receive(ws, &data); err != nil {
				return
			}
			if err := websocket.Message.Send(ws, data); err != nil {
				return
			}
		}
	})
	return httptest.NewServer(handler)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialAndEcho(t *testing.T) {
	srv := echoServer(t, "hello")
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	e, err := Dial(ctx, DialOptions{URL: wsURL(srv)})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() { _ = e.Close(context.Background()) }()

	select {
	case msg := <-e.Stream():
		if msg.String() != "hello" {
			t.Errorf("greeting = %q, want %q", msg.String(), "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for greeting")
	}

	if err := e.Send(TextMessage("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-e.Stream():
		if msg.String() != "ping" {
			t.Errorf("echo = %q, want %q", msg.String(), "ping")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for echo")
	}
}

func TestCloseUnblocksStream(t *testing.T) {
	srv := echoServer(t, "")
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	e, err := Dial(ctx, DialOptions{URL: wsURL(srv)})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case _, ok := <-e.Stream():
		if ok {
			t.Error("expected Stream to be closed, got a message")
		}
	case <-time.After(time.Second):
		t.Fatal("Stream did not close after Close")
	}

	select {
	case _, ok := <-e.Err():
		if ok {
			t.Error("expected no error after a local Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Err channel did not close after Close")
	}
}

func TestDialClosedPortNotHandshakeRejected(t *testing.T) {
	// Dialing a URL with no listener at all is a network failure, not a
	// server-side rejection, so it must not be classified as
	// ErrHandshakeRejected.
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := Dial(ctx, DialOptions{URL: "ws://127.0.0.1:1"})
	if err == nil {
		t.Fatal("expected an error dialing a closed port")
	}
	if isHandshakeRejected(err) {
		t.Errorf("got ErrHandshakeRejected, want a plain dial error: %v", err)
	}
}

func isHandshakeRejected(err error) bool {
	return strings.Contains(err.Error(), ErrHandshakeRejected.Error())
}

func TestMessageConstructors(t *testing.T) {
	if m := TextMessage("hi"); !m.Text || m.String() != "hi" {
		t.Errorf("TextMessage = %+v", m)
	}
	if m := BinaryMessage([]byte{1, 2, 3}); m.Text {
		t.Errorf("BinaryMessage set Text = true")
	}
}
