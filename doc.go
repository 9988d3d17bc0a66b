// Package okws is a connection supervisor for a single WebSocket
// client connection: automatic reconnection with configurable
// backoff, optional application-level heartbeats, short-window send
// buffering while disconnected, and broadcast subscriptions for state
// changes and inbound messages.
//
// The client handles:
//   - Automatic reconnection with linear or exponential backoff
//   - An application-level heartbeat independent of any transport ping
//   - Buffering a Send call for up to 5 seconds while reconnecting
//   - Structured, process-wide logging via Init
//   - Graceful, idempotent shutdown via Dispose
//
// Basic usage:
//
//	c, err := okws.New("wss://example.com/ws")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Dispose()
//
//	msgs, unsubscribe := c.OnReceive()
//	defer unsubscribe()
//	go func() {
//	    for m := range msgs {
//	        fmt.Println("received:", m.String())
//	    }
//	}()
//
//	c.Connect()
//	c.Send("hello")
//
// To silence logging or redirect it elsewhere, call okws.Init.
package okws
