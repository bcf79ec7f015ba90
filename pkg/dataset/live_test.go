package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func feedServer(t *testing.T, messages []string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for _, m := range messages {
			if err := c.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		// Hold the connection open so the reader does not reconnect
		// mid-test.
		c.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestFeedDeliversDataset(t *testing.T) {
	url := feedServer(t, []string{
		`{"type":"dataset","name":"live-1","nodes":[{"name":"a","lat":1,"lng":2,"weight":3,"special":true}]}`,
	})

	f := NewFeed(url)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	select {
	case d := <-f.Datasets():
		if d.Name != "live-1" || len(d.Records) != 1 {
			t.Fatalf("got %+v", d)
		}
		r := d.Records[0]
		if r.Name != "a" || r.Lat != 1 || r.Lng != 2 || !r.Special {
			t.Errorf("record = %+v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no dataset delivered")
	}
}

func TestFeedSkipsNonDatasetAndMalformed(t *testing.T) {
	url := feedServer(t, []string{
		`{"type":"heartbeat"}`,
		`{not json`,
		`{"type":"dataset","name":"good","nodes":[]}`,
	})

	f := NewFeed(url)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	select {
	case d := <-f.Datasets():
		if d.Name != "good" {
			t.Fatalf("delivered %q, want good", d.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no dataset delivered")
	}
}

func TestFeedNewestWins(t *testing.T) {
	f := NewFeed("ws://unused")
	f.deliver(&Dataset{Name: "old"})
	f.deliver(&Dataset{Name: "mid"})
	f.deliver(&Dataset{Name: "new"})

	select {
	case d := <-f.Datasets():
		if d.Name != "new" {
			t.Fatalf("got %q, want new", d.Name)
		}
	default:
		t.Fatal("channel empty")
	}
}
