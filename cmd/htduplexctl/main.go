// Command htduplexctl is a demo client for the duplex transport: it
// connects to a server using a YAML config file, sends each line read
// from stdin as a text message, and prints every message the server
// sends back.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirosfoundation/go-htduplex/internal/clientconfig"
	"github.com/sirosfoundation/go-htduplex/pkg/message"
	"github.com/sirosfoundation/go-htduplex/pkg/socket"
	"github.com/sirosfoundation/go-htduplex/pkg/transport"
)

func main() {
	configPath := flag.String("config", "htduplex.yaml", "path to client config file")
	flag.Parse()

	cfg, err := clientconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		log.Fatalf("parsing endpoint: %v", err)
	}

	id, err := socket.ParseIdentifier(cfg.ID)
	if err != nil {
		log.Fatalf("parsing connection id: %v", err)
	}

	ctxCfg := socket.DefaultConfig()
	ctxCfg.Transport = transport.Config{
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
	}
	ctx := socket.NewContext(ctxCfg)
	conn := ctx.NewConnection(id, endpoint)

	closed := make(chan struct{})
	err = conn.Start(
		func(messages []message.Message) {
			for _, m := range messages {
				if text, ok := m.(*message.TextMessage); ok {
					fmt.Printf("< %s\n", text.Text)
					continue
				}
				encoded, _ := m.EncodeAsString()
				fmt.Printf("< [%c] %s\n", m.Type(), encoded)
			}
		},
		func(c *socket.Connection) {
			fmt.Fprintf(os.Stderr, "connected to %s\n", c.Address())
		},
		func(err error) {
			fmt.Fprintf(os.Stderr, "connection failed: %v\n", err)
			close(closed)
		},
	)
	if err != nil {
		log.Fatalf("starting connection: %v", err)
	}
	defer conn.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

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
		case line, ok := <-lines:
			if !ok {
				return
			}
			conn.Send([]message.Message{message.NewTextMessage(line)})
		case <-sig:
			return
		case <-closed:
			return
		}
	}
}
