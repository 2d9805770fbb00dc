// Package metricsws streams accepted snapshots to websocket clients.
package metricsws

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"hostpulse/internal/domain"
	"hostpulse/internal/logger"
)

const EventSnapshot = "metrics.snapshot"

type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type Hub struct {
	ctx    context.Context
	cancel context.CancelFunc

	clients map[*Client]bool
	count   atomic.Int64

	register   chan *Client
	unregister chan *Client
	events     chan *Event

	log logger.Logger
}

func NewHub(parent context.Context, log logger.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)

	return &Hub{
		ctx:    ctx,
		cancel: cancel,

		clients: make(map[*Client]bool),

		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		events:     make(chan *Event, 256),

		log: log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.log.Info("ws: hub shutting down...")
			for client := range h.clients {
				h.drop(client)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.count.Add(1)
			c.log.Info("ws: client registered")

		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
				c.log.Info("ws: client unregistered")
			}

		case ev := <-h.events:
			h.handleEvent(ev)
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
}

// Clients reports the number of registered clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Publish never blocks; it is safe to register as a sampler sink.
func (h *Hub) Publish(snap domain.Snapshot) {
	h.Broadcast(&Event{Event: EventSnapshot, Data: snap})
}

func (h *Hub) Broadcast(ev *Event) {
	select {
	case h.events <- ev:
	case <-h.ctx.Done():
	default:
		h.log.Warn("ws: broadcast buffer full, dropping event", "event", ev.Event)
	}
}

func (h *Hub) handleEvent(ev *Event) {
	if len(h.clients) == 0 {
		return
	}

	message, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("ws: failed to marshal event", "error", err)
		return
	}

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			client.log.Warn("ws: client channel full, dropping client")
			h.drop(client)
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Add(-1)
}
