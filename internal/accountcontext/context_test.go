package accountcontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
)

func TestAccountIDFromContext(t *testing.T) {
	ctx := WithAccountID(context.Background(), snowflake.ID(99))
	id, ok := AccountIDFromContext(ctx)
	if !ok || id != 99 {
		t.Fatalf("expected account 99, got %d (%v)", id, ok)
	}

	if _, ok := AccountIDFromContext(context.Background()); ok {
		t.Fatal("expected no account in empty context")
	}
}

func TestAgentIDFromContextIgnoresSystemActor(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{Role: "System"})
	if AgentIDFromContext(ctx) != nil {
		t.Fatal("expected nil agent for system actor")
	}

	ctx = WithActor(context.Background(), Actor{AgentID: 5, Role: " Owner "})
	agentID := AgentIDFromContext(ctx)
	if agentID == nil || *agentID != 5 {
		t.Fatalf("expected agent 5, got %v", agentID)
	}
	actor, _ := ActorFromContext(ctx)
	if actor.Role != "owner" {
		t.Fatalf("expected normalized role, got %q", actor.Role)
	}
}
