package contracts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"agreeme/app/models"
)

func seedSession(t *testing.T, f *fixture, s models.Session) {
	t.Helper()
	if err := f.store.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("CreateSession error = %v", err)
	}
}

func TestChatValidation(t *testing.T) {
	f := newFixture()
	if _, err := f.mgr.Chat(context.Background(), ChatInput{SessionID: "s1"}); !errors.Is(err, ErrChatInput) {
		t.Fatalf("expected ErrChatInput, got %v", err)
	}
}

func TestChatUnknownSessionKeepsQuestion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.mgr.Chat(ctx, ChatInput{SessionID: "missing", Message: "hi"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	msgs, _ := f.store.ListMessages(ctx, "missing")
	if len(msgs) != 1 || msgs[0].Role != models.RoleUser {
		t.Fatalf("question should be stored before the lookup: %+v", msgs)
	}
}

func TestChatOrdersTurns(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seedSession(t, f, models.Session{ID: "s1", UserID: "u1", Status: models.StatusAnalyzed, AnalysisJSON: map[string]any{"summary": "ok"}})

	for i := 0; i < 3; i++ {
		if _, err := f.mgr.Chat(ctx, ChatInput{SessionID: "s1", Message: fmt.Sprintf("q%d", i)}); err != nil {
			t.Fatalf("Chat error = %v", err)
		}
	}

	msgs, _ := f.store.ListMessages(ctx, "s1")
	if len(msgs) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Before(msgs[i-1].Timestamp) {
			t.Fatalf("timestamps out of order at %d", i)
		}
	}
	for i := 0; i < len(msgs); i += 2 {
		if msgs[i].Role != models.RoleUser || msgs[i+1].Role != models.RoleAssistant {
			t.Fatalf("user message must precede its reply: %+v", msgs[i:i+2])
		}
		if !msgs[i+1].Timestamp.After(msgs[i].Timestamp) {
			t.Fatalf("reply must sort after its question")
		}
	}
}

func TestChatHistoryWindow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seedSession(t, f, models.Session{ID: "s1", UserID: "u1"})

	base := fixedNow.Add(-time.Hour)
	for i := 0; i < 20; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		_ = f.store.AppendMessage(ctx, models.Message{
			SessionID: "s1", ID: fmt.Sprintf("m%d", i), Timestamp: base.Add(time.Duration(i) * time.Second),
			Role: role, Content: fmt.Sprintf("old-%02d", i),
		})
	}

	if _, err := f.mgr.Chat(ctx, ChatInput{SessionID: "s1", Message: "new question"}); err != nil {
		t.Fatalf("Chat error = %v", err)
	}
	prompt := f.counsel.question
	turns := strings.Count(prompt, "Người dùng: ") + strings.Count(prompt, "AI Assistant: ")
	if turns != HistoryWindow {
		t.Fatalf("expected %d turns in prompt, got %d:\n%s", HistoryWindow, turns, prompt)
	}
	if strings.Contains(prompt, "old-14") || !strings.Contains(prompt, "old-15") || !strings.Contains(prompt, "Người dùng: new question") {
		t.Fatalf("prompt should hold only the latest turns:\n%s", prompt)
	}
}

func TestChatFallbackAnswer(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seedSession(t, f, models.Session{ID: "s1", UserID: "u1"})
	f.counsel.err = errors.New("throttled")

	answer, err := f.mgr.Chat(ctx, ChatInput{SessionID: "s1", Message: "hi"})
	if err != nil {
		t.Fatalf("Chat error = %v", err)
	}
	if answer != chatApology {
		t.Fatalf("expected apology, got %q", answer)
	}
	msgs, _ := f.store.ListMessages(ctx, "s1")
	if len(msgs) != 2 || msgs[1].Content != chatApology {
		t.Fatalf("apology should be stored as the reply: %+v", msgs)
	}
}

func TestAnalysisContextPlaceholder(t *testing.T) {
	got, err := AnalysisContext(models.Session{})
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"summary\": \"Chưa có dữ liệu\",\n  \"risks\": []\n}"
	if got != want {
		t.Fatalf("AnalysisContext = %q, want %q", got, want)
	}
}

func TestChatPromptTemplate(t *testing.T) {
	prompt := ChatPrompt([]models.Message{
		{Role: models.RoleUser, Content: "Điều 5?"},
		{Role: models.RoleAssistant, Content: "Điều 5 nói về phạt."},
	}, "nó có hợp lệ không")
	if !strings.HasPrefix(prompt, "=== LỊCH SỬ HỘI THOẠI TRƯỚC ĐÓ (Để tham khảo ngữ cảnh) ===\nNgười dùng: Điều 5?\nAI Assistant: Điều 5 nói về phạt.\n") {
		t.Fatalf("unexpected transcript:\n%s", prompt)
	}
	if !strings.Contains(prompt, "CÂU HỎI MỚI CỦA NGƯỜI DÙNG:\n\"nó có hợp lệ không\"") || !strings.Contains(prompt, "\"điều đó\"") {
		t.Fatalf("missing question block:\n%s", prompt)
	}
}

func TestReplySortsAfterQuestionOnClockTie(t *testing.T) {
	f := newFixture()
	f.mgr.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	q, err := f.mgr.appendMessage(ctx, "s1", models.RoleUser, "q", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	a, err := f.mgr.appendMessage(ctx, "s1", models.RoleAssistant, "a", q.Timestamp)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Timestamp.After(q.Timestamp) {
		t.Fatalf("reply %v not after question %v", a.Timestamp, q.Timestamp)
	}
	if models.FormatTimestamp(a.Timestamp) <= models.FormatTimestamp(q.Timestamp) {
		t.Fatalf("stored sort keys not ordered")
	}
}
