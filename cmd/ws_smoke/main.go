package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

// ws_smoke connects to /ws with a token and prints every notification it receives.
func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "server address")
	token := flag.String("token", os.Getenv("TOKEN"), "JWT issued by /api/v1/auth or cmd/seed")
	wait := flag.Duration("wait", 0, "exit after this long, 0 waits for ctrl-c")
	flag.Parse()

	if *token == "" {
		log.Fatal("token not set")
	}

	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	url := fmt.Sprintf("ws://%s/ws?token=%s", *addr, *token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				log.Printf("read: %v", err)
				return
			}
			var msg struct {
				Type    string          `json:"type"`
				Payload json.RawMessage `json:"payload"`
			}
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.Printf("bad message: %s", raw)
				continue
			}
			log.Printf("%s %s", msg.Type, msg.Payload)
		}
	}()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		log.Fatalf("ping: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	var timeout <-chan time.Time
	if *wait > 0 {
		timeout = time.After(*wait)
	}

	select {
	case <-done:
	case <-quit:
	case <-timeout:
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	log.Println("smoke test finished")
}
