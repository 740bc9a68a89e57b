// Command notifywatch logs in and prints live notifications for that account.
// It is a debugging aid for the /api/ws stream.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookswap/internal/models"

	"github.com/gorilla/websocket"
)

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	email := flag.String("email", "admin@bookswap.local", "Account email")
	password := flag.String("password", "BookSwap!demo2024", "Account password")
	flag.Parse()

	token, err := login(*host, *email, *password)
	if err != nil {
		log.Fatalf("❌ Login failed: %v", err)
	}
	log.Printf("✅ Logged in as %s", *email)

	u := url.URL{Scheme: "ws", Host: *host, Path: "/api/ws"}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Fatalf("❌ Dial failed: %v", err)
	}
	defer func() { _ = conn.Close() }()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Printf("connection closed: %v", err)
				return
			}
			fmt.Println(describe(data))
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		<-done
	}
}

func describe(data []byte) string {
	var snapshot struct {
		Type    string `json:"type"`
		Payload struct {
			Count int64 `json:"count"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &snapshot); err == nil && snapshot.Type == "unread_count" {
		return fmt.Sprintf("📬 %d unread", snapshot.Payload.Count)
	}

	var event models.NotificationEvent
	if err := json.Unmarshal(data, &event); err != nil || event.Notification == nil {
		return string(data)
	}
	n := event.Notification
	return fmt.Sprintf("🔔 [%s] %s: %s", n.Type, n.Title, n.Message)
}

func login(host, email, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(fmt.Sprintf("http://%s/api/auth/login", host), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var session struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", err
	}
	return session.Token, nil
}
