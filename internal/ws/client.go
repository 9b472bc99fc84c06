package ws

import (
	"strings"

	"github.com/gofiber/websocket/v2"
)

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	topics map[EventType]bool
	send   chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, topics map[EventType]bool) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		topics: topics,
		send:   make(chan []byte, 256),
	}
}

// parseTopics reads a comma separated event list; empty means everything.
func parseTopics(raw string) map[EventType]bool {
	topics := make(map[EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics[EventType(t)] = true
		}
	}
	return topics
}

func (c *Client) wants(t EventType) bool {
	return len(c.topics) == 0 || c.topics[t]
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
