package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/starford/feedwise/internal/reminder"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return conn
}

func TestShowBroadcastsReminder(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, h)

	n := reminder.Notification{
		Title: "Cat food reminder",
		Body:  "Time to feed Luna!",
		Tag:   "feed-1-0",
		Data:  reminder.Metadata{ProfileID: 1, MealTime: "08:00"},
	}
	if !h.RequestPermission(context.Background()) {
		t.Fatal("hub should grant permission")
	}
	if err := h.Show(context.Background(), n); err != nil {
		t.Fatalf("Show: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var got struct {
		Type string                `json:"type"`
		Data reminder.Notification `json:"data"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != "reminder" || got.Data.Tag != "feed-1-0" || got.Data.Data.MealTime != "08:00" {
		t.Errorf("unexpected message: %s", raw)
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, h)
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBroadcastWithoutClients(t *testing.T) {
	h := NewHub(nil)
	if err := h.Broadcast("schedule.updated", []string{}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
}

func TestClose(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, h)
	h.Close()
	if h.ClientCount() != 0 {
		t.Fatalf("expected no clients after Close")
	}
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected read error after hub close")
	}
}
