package contracts

import (
	"context"
	"errors"
	"testing"

	"agreeme/app/models"
)

func TestDeleteRequiresOwner(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seedSession(t, f, models.Session{ID: "s1", UserID: "owner", StorageKey: "user-data/owner/documents/a.pdf"})
	f.objects.objects["user-data/owner/documents/a.pdf"] = []byte("pdf")
	_ = f.store.AppendMessage(ctx, models.Message{SessionID: "s1", ID: "m1", Timestamp: fixedNow, Role: models.RoleUser, Content: "hi"})

	if err := f.mgr.Delete(ctx, "s1", "intruder"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := f.store.GetSession(ctx, "s1"); err != nil {
		t.Fatalf("session should survive a non-owner delete: %v", err)
	}
	if msgs, _ := f.store.ListMessages(ctx, "s1"); len(msgs) != 1 {
		t.Fatalf("messages should survive a non-owner delete")
	}
	if _, ok := f.objects.objects["user-data/owner/documents/a.pdf"]; !ok {
		t.Fatalf("document should survive a non-owner delete")
	}

	if err := f.mgr.Delete(ctx, "s1", "owner"); err != nil {
		t.Fatalf("owner delete error = %v", err)
	}
	if _, err := f.store.GetSession(ctx, "s1"); err == nil {
		t.Fatalf("session should be gone")
	}
	if msgs, _ := f.store.ListMessages(ctx, "s1"); len(msgs) != 0 {
		t.Fatalf("messages should be removed with the session")
	}
	if _, ok := f.objects.objects["user-data/owner/documents/a.pdf"]; ok {
		t.Fatalf("document should be removed with the session")
	}
}

func TestDeleteValidation(t *testing.T) {
	f := newFixture()
	if err := f.mgr.Delete(context.Background(), " ", "u1"); !errors.Is(err, ErrSessionIDRequired) {
		t.Fatalf("expected ErrSessionIDRequired, got %v", err)
	}
	if err := f.mgr.Delete(context.Background(), "missing", "u1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAssist(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.mgr.Assist(ctx, ""); !errors.Is(err, ErrPromptRequired) {
		t.Fatalf("expected ErrPromptRequired, got %v", err)
	}
	f.counsel.answer = "<p>Điều khoản bảo mật</p>"
	if out, err := f.mgr.Assist(ctx, "bảo mật"); err != nil || out != f.counsel.answer {
		t.Fatalf("Assist = %q, %v", out, err)
	}
	f.counsel.err = errors.New("down")
	if out, err := f.mgr.Assist(ctx, "bảo mật"); err != nil || out != assistApology {
		t.Fatalf("Assist fallback = %q, %v", out, err)
	}
}
