package service

import "github.com/smallbiznis/chatdesk/internal/cascade/domain"

const (
	accountAgents        = "SELECT id FROM agents WHERE account_id = @account"
	accountInboxes       = "SELECT id FROM inboxes WHERE account_id = @account"
	accountTeams         = "SELECT id FROM teams WHERE account_id = @account"
	accountConversations = "SELECT id FROM conversations WHERE account_id = @account"
	accountMessages      = "SELECT id FROM chat_messages WHERE account_id = @account OR conversation_id IN (" + accountConversations + ")"
	accountLabels        = "SELECT id FROM labels WHERE account_id = @account"
)

// accountSteps is the leaf-first order of an account cascade. Rows are
// matched by their own account_id and by their parents so rows written with
// a stale denormalized account id are still reached.
func accountSteps() []domain.Step {
	return []domain.Step{
		{Name: "audit_log", Table: "audit_log", Where: "account_id = @account"},
		{Name: "agent_sessions", Table: "agent_sessions", Where: "account_id = @account OR agent_id IN (" + accountAgents + ")"},
		{Name: "inbox_members", Table: "inbox_members", Where: "account_id = @account OR agent_id IN (" + accountAgents + ") OR inbox_id IN (" + accountInboxes + ")"},
		{Name: "team_members", Table: "team_members", Where: "account_id = @account OR agent_id IN (" + accountAgents + ") OR team_id IN (" + accountTeams + ")"},
		{Name: "message_reactions", Table: "message_reactions", Where: "account_id = @account OR message_id IN (" + accountMessages + ")"},
		{Name: "conversation_labels", Table: "conversation_labels", Where: "account_id = @account OR conversation_id IN (" + accountConversations + ") OR label_id IN (" + accountLabels + ")"},
		{Name: "chat_messages", Table: "chat_messages", Where: "account_id = @account OR conversation_id IN (" + accountConversations + ")"},
		{Name: "conversations", Table: "conversations", Where: "account_id = @account"},
		{Name: "labels", Table: "labels", Where: "account_id = @account"},
		{Name: "inboxes", Table: "inboxes", Where: "account_id = @account"},
		{Name: "teams", Table: "teams", Where: "account_id = @account"},
		{Name: "custom_roles", Table: "custom_roles", Where: "account_id = @account"},
		{Name: "account_invitations", Table: "account_invitations", Where: "account_id = @account"},
		{Name: "agents", Table: "agents", Where: "account_id = @account"},
		{Name: "accounts", Table: "accounts", Where: "id = @account"},
	}
}
