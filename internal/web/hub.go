// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package web serves the latest acquisition snapshot over HTTP and pushes
// every published snapshot to websocket clients.
package web

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/relabs-tech/inertial_viewer/internal/acquisition"
)

const (
	socketBufferSize  = 4096
	messageBufferSize = 16
)

// Hub keeps the latest snapshot and fans it out to websocket clients.
// Publish never blocks the acquisition loop: a client that falls behind
// misses snapshots.
type Hub struct {
	mu     sync.RWMutex
	latest acquisition.Snapshot
	have   bool

	forward chan []byte
	join    chan *client
	leave   chan *client
	done    chan struct{}
	clients map[*client]bool
}

// NewHub makes a hub; call Run to start delivering.
func NewHub() *Hub {
	return &Hub{
		forward: make(chan []byte, messageBufferSize),
		join:    make(chan *client),
		leave:   make(chan *client),
		done:    make(chan struct{}),
		clients: make(map[*client]bool),
	}
}

// Publish implements acquisition.Publisher.
func (h *Hub) Publish(s acquisition.Snapshot) {
	h.mu.Lock()
	stored := s
	if !s.HasHistory && h.have {
		stored.HasHistory = h.latest.HasHistory
		stored.History = h.latest.History
	}
	h.latest = stored
	h.have = true
	h.mu.Unlock()

	payload, err := json.Marshal(WSResponse{Type: "snapshot", Snapshot: &s})
	if err != nil {
		log.Printf("web: snapshot marshal error: %v", err)
		return
	}
	select {
	case h.forward <- payload:
	default:
		log.Printf("web: hub backlog full, dropping snapshot %d", s.Counters.Accepted)
	}
}

// Latest returns the most recent snapshot, or false before the first one.
// A snapshot published without history keeps the last history series seen.
func (h *Hub) Latest() (acquisition.Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.have
}

// Run delivers snapshots until ctx is done. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				c.close()
			}
			return
		case c := <-h.join:
			h.clients[c] = true
			log.Printf("web: client joined (%d connected)", len(h.clients))
			if s, ok := h.Latest(); ok {
				if payload, err := json.Marshal(WSResponse{Type: "snapshot", Snapshot: &s}); err == nil {
					c.trySend(payload)
				}
			}
		case c := <-h.leave:
			if h.clients[c] {
				delete(h.clients, c)
				c.close()
				log.Printf("web: client left (%d connected)", len(h.clients))
			}
		case msg := <-h.forward:
			for c := range h.clients {
				c.trySend(msg)
			}
		}
	}
}

func (h *Hub) register(c *client) bool {
	select {
	case h.join <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *client) {
	select {
	case h.leave <- c:
	case <-h.done:
	}
}
