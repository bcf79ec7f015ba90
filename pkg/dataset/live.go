package dataset

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Feed subscribes to a websocket endpoint that pushes whole datasets, one
// message per change. Consumers replace their node set with each delivery;
// only the newest dataset matters, so a slow consumer skips intermediate
// ones.
type Feed struct {
	url string
	out chan *Dataset
}

func NewFeed(url string) *Feed {
	return &Feed{url: url, out: make(chan *Dataset, 1)}
}

// Datasets returns the delivery channel.
func (f *Feed) Datasets() <-chan *Dataset { return f.out }

type feedMessage struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Nodes []struct {
		Name    string  `json:"name"`
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
		Weight  float64 `json:"weight"`
		Special bool    `json:"special"`
	} `json:"nodes"`
}

// Run connects and reads until ctx is cancelled, reconnecting with
// exponential backoff capped at a minute.
func (f *Feed) Run(ctx context.Context) {
	backoff := 1 * time.Second
	for ctx.Err() == nil {
		log.Printf("[feed] connecting to %s", f.url)
		c, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
		if err != nil {
			log.Printf("[feed] dial error: %v, retrying in %v", err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > 60*time.Second {
				backoff = 60 * time.Second
			}
			continue
		}
		backoff = 1 * time.Second

		// Close the socket when ctx ends so ReadMessage unblocks.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				c.Close()
			case <-done:
			}
		}()

		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("[feed] read error: %v, reconnecting", err)
				}
				break
			}
			var msg feedMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				log.Printf("[feed] discarding malformed message: %v", err)
				continue
			}
			if msg.Type != "dataset" {
				continue
			}
			f.deliver(f.fromMessage(&msg))
		}
		close(done)
		c.Close()
	}
}

func (f *Feed) fromMessage(msg *feedMessage) *Dataset {
	d := &Dataset{Name: msg.Name, Records: make([]Record, 0, len(msg.Nodes))}
	for _, n := range msg.Nodes {
		d.Records = append(d.Records, Record{
			Name: n.Name, Lat: n.Lat, Lng: n.Lng,
			Weight: n.Weight, Special: n.Special,
		})
	}
	return d
}

// deliver replaces any undelivered dataset: the newest always wins.
func (f *Feed) deliver(d *Dataset) {
	for {
		select {
		case f.out <- d:
			return
		default:
			select {
			case <-f.out:
			default:
			}
		}
	}
}
