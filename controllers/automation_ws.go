package controller

import (
	"log"
	"sync"

	"leadnest/automation"

	"github.com/gofiber/websocket/v2"
)

// runFeed fans automation run summaries out to connected dashboard clients.
var runFeed = struct {
	sync.Mutex
	subscribers map[chan automation.RunSummary]struct{}
}{subscribers: make(map[chan automation.RunSummary]struct{})}

// PublishRunSummary pushes a finished run to all websocket subscribers.
// Slow subscribers are skipped rather than blocked on.
func PublishRunSummary(summary automation.RunSummary) {
	runFeed.Lock()
	defer runFeed.Unlock()
	for ch := range runFeed.subscribers {
		select {
		case ch <- summary:
		default:
		}
	}
}

func subscribeRunFeed() chan automation.RunSummary {
	ch := make(chan automation.RunSummary, 8)
	runFeed.Lock()
	runFeed.subscribers[ch] = struct{}{}
	runFeed.Unlock()
	return ch
}

func unsubscribeRunFeed(ch chan automation.RunSummary) {
	runFeed.Lock()
	delete(runFeed.subscribers, ch)
	runFeed.Unlock()
}

// HandleAutomationWS streams automation run summaries to the dashboard as
// they happen.
func HandleAutomationWS(c *websocket.Conn) {
	defer c.Close()

	ch := subscribeRunFeed()
	defer unsubscribeRunFeed(ch)

	// Reader goroutine detects client disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case summary := <-ch:
			if err := c.WriteJSON(summary); err != nil {
				log.Printf("Error writing run summary to websocket: %v", err)
				return
			}
		}
	}
}
