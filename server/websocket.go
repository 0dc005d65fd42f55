package server

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/xhad/fullstackgpt/pkg/research"
)

const (
	MsgTypeQuery    = "query"
	MsgTypeStatus   = "status"
	MsgTypeStream   = "stream"
	MsgTypeResponse = "response"
	MsgTypeError    = "error"
)

type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// handleResearch runs one research question per query message. Messages on a
// connection are handled in order so writes never interleave.
func (s *Server) handleResearch(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return nil
	}
	defer conn.Close()

	ctx := c.Request().Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Error reading message: %v", err)
			}
			return nil
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			sendMessage(conn, MsgTypeError, fmt.Sprintf("invalid message: %v", err))
			continue
		}
		if msg.Type != MsgTypeQuery || strings.TrimSpace(msg.Content) == "" {
			sendMessage(conn, MsgTypeError, "expected a query message with content")
			continue
		}

		_, err = s.assistant.Run(ctx, msg.Content, func(e research.Event) {
			sendMessage(conn, string(e.Type), e.Content)
		})
		if err != nil {
			sendMessage(conn, MsgTypeError, err.Error())
		}
	}
}

func sendMessage(conn *websocket.Conn, msgType, content string) {
	if err := conn.WriteJSON(Message{Type: msgType, Content: content}); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}
