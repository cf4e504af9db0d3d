package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Upendra2003/Aira-Backend/internal/protocol"
	"github.com/Upendra2003/Aira-Backend/internal/turn"
)

// handleChatWS runs a chat conversation over one websocket connection. Each
// inbound user_message goes through the turn pipeline; the reply comes back
// as a sequence of assistant_bubble frames closed by an assistant_turn_end.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "X-User-ID header is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			if !s.writeWS(conn, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				Code:      "invalid_client_message",
				Retryable: false,
				Detail:    err.Error(),
			}) {
				return
			}
			continue
		}

		msg, ok := parsed.(protocol.UserMessage)
		if !ok {
			continue
		}

		// Turns are handled inline: the pipeline already serializes per user,
		// and the read loop naturally applies backpressure to this client.
		reply, err := s.pipeline.HandleTurn(r.Context(), userID, msg.Text)
		if err != nil {
			if !s.writeWS(conn, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				Code:      "turn_failed",
				Retryable: turn.IsRetryable(err),
				Detail:    err.Error(),
			}) {
				return
			}
			continue
		}

		for i, bubble := range reply.Bubbles {
			if !s.writeWS(conn, protocol.AssistantBubble{
				Type:       protocol.TypeAssistantBubble,
				ResponseID: reply.ResponseID,
				Seq:        i,
				Text:       bubble,
			}) {
				return
			}
		}
		if !s.writeWS(conn, protocol.AssistantTurnEnd{
			Type:       protocol.TypeAssistantTurnEnd,
			ResponseID: reply.ResponseID,
			Bubbles:    len(reply.Bubbles),
			ElapsedMS:  reply.ElapsedMS,
		}) {
			return
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, msg any) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(msg) == nil
}
