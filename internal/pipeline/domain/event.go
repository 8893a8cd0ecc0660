package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	messagedomain "github.com/smallbiznis/chatdesk/internal/message/domain"
)

type EventType string

const (
	EventMessage  EventType = "message"
	EventStatus   EventType = "status"
	EventReaction EventType = "reaction"
)

// WebhookEvent is the payload the gateway posts for every inbound event.
type WebhookEvent struct {
	Type                  EventType              `json:"type"`
	ConversationReference string                 `json:"conversation_reference"`
	ContactName           string                 `json:"contact_name,omitempty"`
	ExternalMessageID     string                 `json:"external_message_id,omitempty"`
	Direction             string                 `json:"direction,omitempty"`
	SenderType            string                 `json:"sender_type,omitempty"`
	MessageType           string                 `json:"message_type,omitempty"`
	Content               string                 `json:"content,omitempty"`
	Media                 *Media                 `json:"media,omitempty"`
	Participant           *Participant           `json:"participant,omitempty"`
	ReplyTo               string                 `json:"reply_to,omitempty"`
	Payload               *messagedomain.Payload `json:"payload,omitempty"`
	Status                string                 `json:"status,omitempty"`
	Emoji                 string                 `json:"emoji,omitempty"`
	Reactor               string                 `json:"reactor,omitempty"`
	Timestamp             *time.Time             `json:"timestamp,omitempty"`
}

type Media struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

type Participant struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name,omitempty"`
}

const (
	ReasonConversationNotFound = "conversation_not_found"
	ReasonMessageNotFound      = "message_not_found"
)

// Outcome describes what happened to one webhook event. Routing failures are
// reported through Reason, never as errors.
type Outcome struct {
	Routed         bool           `json:"routed"`
	Reason         string         `json:"reason,omitempty"`
	ConversationID snowflake.ID   `json:"conversation_id,omitempty"`
	MessageID      snowflake.ID   `json:"message_id,omitempty"`
	Duplicate      bool           `json:"duplicate"`
	Audience       []snowflake.ID `json:"audience"`
}

type SendRequest struct {
	Type          string                 `json:"type"`
	Content       string                 `json:"content"`
	MediaURL      string                 `json:"media_url,omitempty"`
	MediaMimeType string                 `json:"media_mime_type,omitempty"`
	MediaFileName string                 `json:"media_file_name,omitempty"`
	ReplyTo       string                 `json:"reply_to,omitempty"`
	Payload       *messagedomain.Payload `json:"payload,omitempty"`
	SenderAgentID *snowflake.ID          `json:"-"`
	IsPrivateNote bool                   `json:"is_private_note"`
}

type SendOutcome struct {
	Message       *messagedomain.Message `json:"message"`
	FailureReason string                 `json:"failure_reason,omitempty"`
}
