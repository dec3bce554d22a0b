// Package bus provides the asynchronous message queue connecting external
// channels (Telegram, the HTTP API) with the conversation layer. Inbound
// messages carry the target agent and the medium they arrived on; the
// responder answers with outbound messages routed back to the channel.
package bus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/persona-dev/personad/internal/schedule"
)

// TransportType identifies the external transport a message travels over.
type TransportType string

const (
	TransportTelegram TransportType = "telegram"
	TransportAPI      TransportType = "api"
)

// InboundMessage is a user message received from an external transport,
// addressed to one agent persona.
type InboundMessage struct {
	Transport TransportType    `json:"transport"`
	AgentID   string           `json:"agent_id"`
	UserID    string           `json:"user_id"`
	SessionID string           `json:"session_id"`
	Content   string           `json:"content"`
	Medium    schedule.Channel `json:"medium"`

	// ForceGenerate requests a normal reply even when the agent's schedule
	// says it is unreachable.
	ForceGenerate bool `json:"force_generate,omitempty"`

	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// OutboundMessage is a reply to be delivered over an external transport.
type OutboundMessage struct {
	Transport     TransportType  `json:"transport"`
	AgentID       string         `json:"agent_id"`
	UserID        string         `json:"user_id"`
	SessionID     string         `json:"session_id"`
	Content       string         `json:"content"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// NewInboundMessage creates an InboundMessage with the current timestamp.
func NewInboundMessage(transport TransportType, agentID, userID, sessionID, content string, medium schedule.Channel) *InboundMessage {
	return &InboundMessage{
		Transport: transport,
		AgentID:   agentID,
		UserID:    userID,
		SessionID: sessionID,
		Content:   content,
		Medium:    medium,
		Timestamp: time.Now(),
	}
}

// NewOutboundMessage creates an OutboundMessage answering an inbound one.
func NewOutboundMessage(in *InboundMessage, content string) *OutboundMessage {
	return &OutboundMessage{
		Transport:     in.Transport,
		AgentID:       in.AgentID,
		UserID:        in.UserID,
		SessionID:     in.SessionID,
		Content:       content,
		CorrelationID: uuid.New().String(),
		Timestamp:     time.Now(),
		Metadata:      in.Metadata,
	}
}

// ToJSON serializes the InboundMessage.
func (m *InboundMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON deserializes the InboundMessage.
func (m *InboundMessage) FromJSON(data []byte) error {
	return json.Unmarshal(data, m)
}

// ToJSON serializes the OutboundMessage.
func (m *OutboundMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON deserializes the OutboundMessage.
func (m *OutboundMessage) FromJSON(data []byte) error {
	return json.Unmarshal(data, m)
}
