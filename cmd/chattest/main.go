// Package main provides a load testing tool for the faculty chat websocket.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"bsuchat/internal/bootstrap"
	"bsuchat/internal/config"
	"bsuchat/internal/protocol"
	"bsuchat/internal/security"

	"github.com/gorilla/websocket"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	MessagesSent         int64
	MessagesReceived     int64
	ServerErrors         int64
	Errors               int64
}

var metrics Metrics

func main() {
	host := flag.String("host", "localhost:8080", "API server host")
	users := flag.String("users", "", "Comma separated ids of existing users (see: admin list)")
	faculty := flag.String("faculty", "Fizika fakültəsi", "Faculty room to join; the users must belong to it")
	clients := flag.Int("clients", 20, "Number of concurrent clients")
	interval := flag.Duration("interval", 5*time.Second, "Delay between messages per client")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	flag.Parse()

	ids := splitIDs(*users)
	if len(ids) == 0 {
		fmt.Println("Usage: go run ./cmd/chattest -users u_abc,u_def [-faculty NAME] [-clients N]")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	tokens := security.NewTokenService(cfg.JWTSecret, bootstrap.TokenTTL)

	log.Printf("Starting chat load test against %s", *host)
	log.Printf("Clients: %d, users: %d, room: %s, duration: %v", *clients, len(ids), *faculty, *duration)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i := 0; i < *clients; i++ {
		userID := ids[i%len(ids)]
		token, err := tokens.CreateForUser(userID, false)
		if err != nil {
			log.Fatalf("Failed to mint token for %s: %v", userID, err)
		}
		wg.Add(1)
		go runClient(clientConfig{
			host:     *host,
			userID:   userID,
			token:    token,
			faculty:  *faculty,
			interval: *interval,
			id:       i,
		}, stopChan, &wg)
		time.Sleep(50 * time.Millisecond) // stagger connections to stay under the ticket rate limit
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

type clientConfig struct {
	host     string
	userID   string
	token    string
	faculty  string
	interval time.Duration
	id       int
}

func splitIDs(raw string) []string {
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// getTicket exchanges the bearer token for a single-use websocket ticket.
func getTicket(host, token string) (string, error) {
	ticketURL := fmt.Sprintf("http://%s/api/ws/ticket", host)
	req, err := http.NewRequest(http.MethodPost, ticketURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ticket issuance failed with status %d", resp.StatusCode)
	}

	var result struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Ticket, nil
}

// wsURL prefers a ticket and falls back to the token query parameter when the
// server has no ticket store.
func wsURL(cc clientConfig) url.URL {
	query := url.Values{}
	if ticket, err := getTicket(cc.host, cc.token); err == nil {
		query.Set("ticket", ticket)
	} else {
		query.Set("token", cc.token)
	}
	return url.URL{Scheme: "ws", Host: cc.host, Path: "/ws", RawQuery: query.Encode()}
}

func send(c *websocket.Conn, ev protocol.Inbound) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.WriteJSON(protocol.Envelope{Type: ev.Type(), Payload: payload})
}

func runClient(cc clientConfig, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	u := wsURL(cc)
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

	go func() {
		for {
			var ev protocol.Envelope
			if err := c.ReadJSON(&ev); err != nil {
				return
			}
			switch ev.Type {
			case protocol.TypeNewFacultyMessage:
				atomic.AddInt64(&metrics.MessagesReceived, 1)
			case protocol.TypeError:
				atomic.AddInt64(&metrics.ServerErrors, 1)
			}
		}
	}()

	if err := send(c, protocol.JoinFaculty{UserID: cc.userID, Faculty: cc.faculty}); err != nil {
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	ticker := time.NewTicker(cc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			err := send(c, protocol.SendFacultyMessage{
				UserID:  cc.userID,
				Faculty: cc.faculty,
				Message: fmt.Sprintf("Load test message from client %d", cc.id),
			})
			if err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				return
			}
			atomic.AddInt64(&metrics.MessagesSent, 1)
		}
	}
}

func printMetrics() {
	log.Println("Test Results")
	log.Println("============")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Messages Sent: %d", atomic.LoadInt64(&metrics.MessagesSent))
	log.Printf("Messages Received: %d", atomic.LoadInt64(&metrics.MessagesReceived))
	log.Printf("Server Error Frames: %d", atomic.LoadInt64(&metrics.ServerErrors))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
