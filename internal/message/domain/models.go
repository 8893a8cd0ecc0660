package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

type Type string

const (
	TypeText        Type = "text"
	TypeImage       Type = "image"
	TypeAudio       Type = "audio"
	TypeVideo       Type = "video"
	TypeDocument    Type = "document"
	TypeSticker     Type = "sticker"
	TypeLocation    Type = "location"
	TypeContact     Type = "contact"
	TypePoll        Type = "poll"
	TypeInteractive Type = "interactive"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

type SenderType string

const (
	SenderUser    SenderType = "user"
	SenderAgent   SenderType = "agent"
	SenderBot     SenderType = "bot"
	SenderContact SenderType = "contact"
	SenderSystem  SenderType = "system"
)

// Message is one entry of a conversation ledger. A non-null
// ExternalMessageID is unique within its conversation.
type Message struct {
	ID                    snowflake.ID   `gorm:"primaryKey" json:"id"`
	AccountID             snowflake.ID   `gorm:"not null;index" json:"account_id"`
	ConversationID        snowflake.ID   `gorm:"not null;uniqueIndex:ux_chat_messages_conversation_external,priority:1;index:idx_chat_messages_conversation_ts,priority:1" json:"conversation_id"`
	ExternalMessageID     *string        `gorm:"type:varchar(191);uniqueIndex:ux_chat_messages_conversation_external,priority:2" json:"external_message_id,omitempty"`
	Direction             Direction      `gorm:"type:varchar(10);not null" json:"direction"`
	Type                  Type           `gorm:"type:varchar(20);not null;default:'text'" json:"type"`
	Content               string         `gorm:"type:text" json:"content"`
	MediaURL              string         `gorm:"type:text" json:"media_url,omitempty"`
	MediaMimeType         string         `gorm:"type:varchar(100)" json:"media_mime_type,omitempty"`
	MediaFileName         string         `gorm:"type:varchar(255)" json:"media_file_name,omitempty"`
	ReplyToExternalID     *string        `gorm:"type:varchar(191)" json:"reply_to_external_id,omitempty"`
	ReplyToMessageID      *snowflake.ID  `json:"reply_to_message_id,omitempty"`
	Status                Status         `gorm:"type:varchar(20);not null" json:"status"`
	FailureReason         string         `gorm:"type:varchar(100)" json:"failure_reason,omitempty"`
	SenderType            SenderType     `gorm:"type:varchar(20);not null" json:"sender_type"`
	SenderAgentID         *snowflake.ID  `json:"sender_agent_id,omitempty"`
	SenderBotID           string         `gorm:"type:varchar(100)" json:"sender_bot_id,omitempty"`
	ParticipantIdentifier string         `gorm:"type:varchar(191)" json:"participant_identifier,omitempty"`
	ParticipantName       string         `gorm:"type:varchar(255)" json:"participant_name,omitempty"`
	StructuredPayload     datatypes.JSON `json:"-"`
	IsPrivateNote         bool           `gorm:"not null;default:false" json:"is_private_note"`
	Timestamp             time.Time      `gorm:"not null;index:idx_chat_messages_conversation_ts,priority:2" json:"timestamp"`
	CreatedAt             time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"not null" json:"updated_at"`

	Payload   *Payload   `gorm:"-" json:"payload,omitempty"`
	Reactions []Reaction `gorm:"-" json:"reactions,omitempty"`
}

func (Message) TableName() string { return "chat_messages" }

// HumanAuthored reports whether an outgoing message was typed by a person.
func (m Message) HumanAuthored() bool {
	return m.Direction == DirectionOutgoing && (m.SenderType == SenderUser || m.SenderType == SenderAgent)
}

// CountsAsUnread reports whether the message contributes to the
// conversation unread counter.
func (m Message) CountsAsUnread() bool {
	return m.Direction == DirectionIncoming && !m.IsPrivateNote && m.Status != StatusRead
}

// Reaction is the single emoji a reactor currently holds on a message.
type Reaction struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID         snowflake.ID `gorm:"not null;index" json:"account_id"`
	MessageID         snowflake.ID `gorm:"not null;uniqueIndex:ux_message_reactions_message_reactor,priority:1" json:"message_id"`
	ReactorIdentifier string       `gorm:"type:varchar(191);not null;uniqueIndex:ux_message_reactions_message_reactor,priority:2" json:"reactor_identifier"`
	Emoji             string       `gorm:"type:varchar(32);not null" json:"emoji"`
	CreatedAt         time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null" json:"updated_at"`
}

func (Reaction) TableName() string { return "message_reactions" }

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// CanTransition reports whether a delivery status may move from one value to
// another. Statuses only advance; failed is reachable from pending and sent.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if to == StatusFailed {
		return from == StatusPending || from == StatusSent
	}
	if from == StatusFailed {
		return false
	}
	fromRank, okFrom := statusRank[from]
	toRank, okTo := statusRank[to]
	return okFrom && okTo && toRank > fromRank
}

func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusPending, StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return Status(strings.ToLower(strings.TrimSpace(value))), nil
	default:
		return "", ErrInvalidStatus
	}
}

func ParseType(value string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(value)))
	switch t {
	case "":
		return TypeText, nil
	case TypeText, TypeImage, TypeAudio, TypeVideo, TypeDocument, TypeSticker,
		TypeLocation, TypeContact, TypePoll, TypeInteractive:
		return t, nil
	default:
		return "", ErrInvalidType
	}
}

func ParseSenderType(value string) (SenderType, error) {
	st := SenderType(strings.ToLower(strings.TrimSpace(value)))
	switch st {
	case SenderUser, SenderAgent, SenderBot, SenderContact, SenderSystem:
		return st, nil
	default:
		return "", ErrInvalidSender
	}
}

func ParseDirection(value string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(value)))
	switch d {
	case DirectionIncoming, DirectionOutgoing:
		return d, nil
	default:
		return "", ErrInvalidDirection
	}
}
