// Command okws-demo connects to a WebSocket server with automatic
// reconnection, logs state transitions, prints every inbound message,
// and sends each line read from stdin.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	okws "github.com/lwj1994/okws-client"
	"github.com/lwj1994/okws-client/pkg/backoff"
)

func run() error {
	var (
		url          = flag.String("url", "ws://localhost:8080/ws", "server address")
		pingInterval = flag.Duration("heartbeat-interval", 0, "application heartbeat interval (0 disables it)")
		verbose      = flag.Bool("verbose", false, "enable the library's internal logging")
	)
	flag.Parse()

	var opts []okws.Option
	if *pingInterval > 0 {
		opts = append(opts, okws.WithHeartbeat(heartbeatConfig(*pingInterval)))
	}
	opts = append(opts, okws.WithBackoff(backoff.NewExponential(backoff.ExponentialConfig{})))

	okws.Init(*verbose, nil)

	c, err := okws.New(*url, opts...)
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	defer c.Dispose()

	states, unsubState := c.OnStateChange()
	defer unsubState()
	go func() {
		for st := range states {
			log.Printf("state: %s", st)
		}
	}()

	msgs, unsubMsgs := c.OnReceive()
	defer unsubMsgs()
	go func() {
		for m := range msgs {
			fmt.Printf("< %s\n", m.String())
		}
	}()

	c.Connect()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-interrupt:
			log.Println("shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if !c.Send(line) {
				log.Printf("send failed or timed out: %q", line)
			}
		}
	}
}

func heartbeatConfig(interval time.Duration) (cfg okws.HeartbeatConfig) {
	cfg.Interval = interval
	cfg.Timeout = interval / 2
	cfg.Request = okws.Message{Data: []byte("ping"), Text: true}
	return cfg
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
