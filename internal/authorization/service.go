package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidRole   = errors.New("invalid_role")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

const (
	ObjectAccount      = "account"
	ObjectAgent        = "agent"
	ObjectInbox        = "inbox"
	ObjectTeam         = "team"
	ObjectConversation = "conversation"
	ObjectMessage      = "message"
	ObjectLabel        = "label"
	ObjectAuditLog     = "audit_log"
)

const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
	ActionManage = "manage"
)

type Service interface {
	// Authorize checks a role of the account against object/action. A denial
	// returns ErrForbidden and is audited.
	Authorize(ctx context.Context, accountID snowflake.ID, role, object, action string) error
}
