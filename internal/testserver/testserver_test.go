package testserver

import (
	"testing"
	"time"

	"golang.org/x/net/websocket"
)

func TestEchoesFrames(t *testing.T) {
	srv := New()
	defer srv.Close()

	ws, err := websocket.Dial(srv.URL(), "", "http://localhost/")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ws.Close()

	if err := websocket.Message.Send(ws, []byte("hi")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var got []byte
	ws.SetReadDeadline(time.Now().Add(time.Second))
	if err := websocket.Message.Receive(ws, &got); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(got) != "hi" {
		t.Errorf("got %q, want %q", got, "hi")
	}
}

func TestRespondsToHeartbeat(t *testing.T) {
	srv := New()
	defer srv.Close()
	srv.RespondToHeartbeat("ping", "pong")

	ws, err := websocket.Dial(srv.URL(), "", "http://localhost/")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ws.Close()

	if err := websocket.Message.Send(ws, []byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var got []byte
	ws.SetReadDeadline(time.Now().Add(time.Second))
	if err := websocket.Message.Receive(ws, &got); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if string(got) != "pong" {
		t.Errorf("got %q, want %q", got, "pong")
	}
}
