package migration

import (
	accountdomain "github.com/smallbiznis/chatdesk/internal/account/domain"
	auditdomain "github.com/smallbiznis/chatdesk/internal/audit/domain"
	conversationdomain "github.com/smallbiznis/chatdesk/internal/conversation/domain"
	inboxdomain "github.com/smallbiznis/chatdesk/internal/inbox/domain"
	messagedomain "github.com/smallbiznis/chatdesk/internal/message/domain"
	teamdomain "github.com/smallbiznis/chatdesk/internal/team/domain"
	tenantdomain "github.com/smallbiznis/chatdesk/internal/tenant/domain"
	"gorm.io/gorm"
)

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		&tenantdomain.Tenant{},
		&accountdomain.Account{},
		&accountdomain.Agent{},
		&accountdomain.AgentSession{},
		&accountdomain.CustomRole{},
		&accountdomain.Invitation{},
		&inboxdomain.Inbox{},
		&inboxdomain.InboxMember{},
		&teamdomain.Team{},
		&teamdomain.TeamMember{},
		&conversationdomain.Conversation{},
		&conversationdomain.Label{},
		&conversationdomain.ConversationLabel{},
		&messagedomain.Message{},
		&messagedomain.Reaction{},
		&auditdomain.Entry{},
	}
}

// AutoMigrate builds the schema from the models. Used for sqlite and mysql,
// and by tests.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
