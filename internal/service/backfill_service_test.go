package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"chat-llm/internal/domain"
)

func TestBackfillServiceRun(t *testing.T) {
	store := newMemStore()
	convs, msgs := store.repos()
	ctx := context.Background()
	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	existing := domain.Conversation{
		ID:        "conv-existing",
		Title:     "Existing",
		SessionID: "legacy-a",
		CreatedAt: base,
		UpdatedAt: base,
	}
	if err := convs.Create(ctx, existing); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store.addOrphan("m1", "legacy-a", domain.RoleUser, "hi", base.Add(time.Minute))
	store.addOrphan("m2", "legacy-a", domain.RoleAssistant, "hello", base.Add(2*time.Minute))
	store.addOrphan("m3", "legacy-b", domain.RoleUser, "other", base.Add(3*time.Minute))
	store.addOrphan("m4", "", domain.RoleUser, "no session", base.Add(4*time.Minute))

	svc := NewBackfillService(zap.NewNop(), convs, msgs)
	res, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ConversationsReused != 1 || res.ConversationsCreated != 2 || res.MessagesAdopted != 4 {
		t.Fatalf("unexpected result %+v", res)
	}

	adopted, _ := msgs.ListByConversationID(ctx, existing.ID)
	if len(adopted) != 2 || adopted[0].ID != "m1" || adopted[1].ID != "m2" {
		t.Fatalf("expected m1,m2 under existing conversation, got %+v", adopted)
	}

	b, err := convs.GetBySessionID(ctx, "legacy-b")
	if err != nil {
		t.Fatalf("expected conversation for legacy-b: %v", err)
	}
	if b.Title != domain.MigratedConversationTitle {
		t.Fatalf("expected migrated title, got %q", b.Title)
	}

	list, _ := convs.List(ctx, 10)
	var migrated int
	for _, c := range list {
		if strings.HasPrefix(c.SessionID, "migrated_") {
			migrated++
			if len(c.SessionID) != len("migrated_")+8 {
				t.Fatalf("unexpected generated session id %q", c.SessionID)
			}
		}
	}
	if migrated != 1 {
		t.Fatalf("expected one conversation for the empty legacy session, got %d", migrated)
	}

	again, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again != (BackfillResult{}) {
		t.Fatalf("expected idempotent second run, got %+v", again)
	}
	if store.conversationCount() != 3 {
		t.Fatalf("expected 3 conversations, got %d", store.conversationCount())
	}
}

func TestBackfillServiceRun_NotConfigured(t *testing.T) {
	var svc *BackfillService
	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected error for nil service")
	}
}
