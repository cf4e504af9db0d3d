package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeUserMessage      MessageType = "user_message"
	TypeAssistantBubble  MessageType = "assistant_bubble"
	TypeAssistantTurnEnd MessageType = "assistant_turn_end"
	TypeErrorEvent       MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// UserMessage is the single inbound variant: one chat message from the user.
type UserMessage struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
	TSMs int64       `json:"ts_ms"`
}

// AssistantBubble carries one rendered reply bubble; a multi-bubble reply
// produces a sequence of these followed by an assistant_turn_end.
type AssistantBubble struct {
	Type       MessageType `json:"type"`
	ResponseID string      `json:"response_id"`
	Seq        int         `json:"seq"`
	Text       string      `json:"text"`
}

type AssistantTurnEnd struct {
	Type       MessageType `json:"type"`
	ResponseID string      `json:"response_id"`
	Bubbles    int         `json:"bubbles"`
	ElapsedMS  int64       `json:"elapsed_ms"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeUserMessage:
		var msg UserMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Text == "" {
			return nil, errors.New("invalid user_message")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
