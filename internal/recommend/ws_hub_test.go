package recommend

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Broadcasts and keepalive pings target the same connection from
// different goroutines; gorilla/websocket panics on concurrent writes,
// so this passes only while both paths stay serialized by the hub lock.
func TestPriceHubPingDuringBroadcast(t *testing.T) {
	hub := NewPriceHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	// Drain frames client-side so server writes never block.
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Wait for registration, then grab the server-side conn the ping
	// path writes to.
	var conn *websocket.Conn
	deadline := time.Now().Add(2 * time.Second)
	for conn == nil {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with hub")
		}
		hub.mu.RLock()
		for c := range hub.clients {
			conn = c
		}
		hub.mu.RUnlock()
		time.Sleep(5 * time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			hub.BroadcastPriceUpdate(PriceUpdate{
				Type:        "price_observed",
				CommodityID: 1,
				MandiID:     int64(i),
				Price:       strconv.Itoa(1500 + i),
				AsOfDate:    "2026-08-29",
			})
		}
	}()
	for i := 0; i < 200; i++ {
		if !hub.ping(conn) {
			t.Fatalf("ping failed on iteration %d", i)
		}
	}
	<-done
}

func TestPriceHubPingAfterUnregister(t *testing.T) {
	hub := NewPriceHub()
	conn := &websocket.Conn{}

	// Never registered: ping must report the client gone without
	// touching the connection.
	if hub.ping(conn) {
		t.Error("ping returned true for an unregistered connection")
	}
}
