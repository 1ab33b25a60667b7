// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package web

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/inertial_viewer/internal/acquisition"
	"github.com/relabs-tech/inertial_viewer/internal/orientation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  socketBufferSize,
	WriteBufferSize: socketBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is what browsers send.
type WSMessage struct {
	Action    string `json:"action"` // select
	Algorithm string `json:"algorithm,omitempty"`
}

// WSResponse is what the hub pushes.
type WSResponse struct {
	Type      string                `json:"type"` // snapshot, algorithm, error
	Snapshot  *acquisition.Snapshot `json:"snapshot,omitempty"`
	Algorithm string                `json:"algorithm,omitempty"`
	Message   string                `json:"message,omitempty"`
}

type client struct {
	socket *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(socket *websocket.Conn) *client {
	return &client{socket: socket, send: make(chan []byte, messageBufferSize)}
}

// trySend queues msg unless the client is closed or its queue is full.
func (c *client) trySend(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// write is the only goroutine writing to the socket.
func (c *client) write() {
	defer c.socket.Close()
	for msg := range c.send {
		if err := c.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) reply(resp WSResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		log.Printf("web: websocket reply marshal error: %v", err)
		return
	}
	c.trySend(payload)
}

// ServeWS upgrades the request and streams snapshots until either side
// closes. Clients may send {"action":"select","algorithm":"2"}.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	c := newClient(socket)
	if !s.hub.register(c) {
		socket.Close()
		return
	}
	defer s.hub.unregister(c)
	go c.write()

	for {
		var msg WSMessage
		if err := socket.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Action {
		case "select":
			algo, err := orientation.ParseAlgorithm(msg.Algorithm)
			if err != nil {
				c.reply(WSResponse{Type: "error", Message: err.Error()})
				continue
			}
			s.selector.Set(algo)
			log.Printf("web: selected algorithm %s", algo)
			c.reply(WSResponse{Type: "algorithm", Algorithm: algo.String()})
		default:
			c.reply(WSResponse{Type: "error", Message: "unknown action " + msg.Action})
		}
	}
}
