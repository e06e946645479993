// Package main provides a stress testing tool for the chat WebSocket server.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"parley/internal/protocol"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	FramesSent           int64
	FramesReceived       int64
	ErrorFrames          int64
	Errors               int64
}

var metrics Metrics

func main() {
	host := flag.String("host", "localhost:18080", "Chat server host")
	clients := flag.Int("clients", 50, "Number of concurrent clients")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	interval := flag.Duration("interval", 5*time.Second, "Delay between messages per client")
	flag.Parse()

	log.Printf("Starting chat stress test")
	log.Printf("Target: %s", *host)
	log.Printf("Clients: %d", *clients)
	log.Printf("Duration: %v", *duration)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	// Start clients with staggered connects
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(*host, i, *interval, stopChan, &wg)
		time.Sleep(50 * time.Millisecond)
	}

	select {
	case <-time.After(*duration):
		log.Println("Test duration reached")
	case <-interrupt:
		log.Println("Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	printMetrics()
}

func runClient(host string, id int, interval time.Duration, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	name := fmt.Sprintf("loadtest%d", id)
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws", RawQuery: "name=" + url.QueryEscape(name)}

	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	// Read loop: count server frames, flag ERROR replies
	go func() {
		for {
			msgType, frame, err := c.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&metrics.FramesReceived, 1)
			if msgType != websocket.BinaryMessage {
				continue
			}
			if f, err := protocol.DecodeServerFrame(frame); err == nil && f.Op == protocol.OpError {
				atomic.AddInt64(&metrics.ErrorFrames, 1)
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			_ = c.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			frame, err := encodeSend(protocol.GeneralChat,
				fmt.Sprintf("stress test message from client %d", id))
			if err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				return
			}
			if err := c.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				return
			}
			atomic.AddInt64(&metrics.FramesSent, 1)
		}
	}
}

// encodeSend builds a SEND_MESSAGE request frame.
func encodeSend(dest, text string) ([]byte, error) {
	b := protocol.NewBuilder()
	b.PutU8(byte(protocol.OpSendMessage))
	if err := b.PutStr8(dest); err != nil {
		return nil, err
	}
	if err := b.PutStr8(protocol.TruncateText(text)); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func printMetrics() {
	log.Println("Test results")
	log.Println("============")
	log.Printf("Connections attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Frames sent: %d", atomic.LoadInt64(&metrics.FramesSent))
	log.Printf("Frames received: %d", atomic.LoadInt64(&metrics.FramesReceived))
	log.Printf("ERROR frames: %d", atomic.LoadInt64(&metrics.ErrorFrames))
	log.Printf("Total errors: %d", atomic.LoadInt64(&metrics.Errors))
}
