package contracts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agreeme/app/models"
	"agreeme/store"
)

// HistoryWindow is the number of most recent messages rendered into a chat prompt.
const HistoryWindow = 6

const chatApology = "Xin lỗi, hiện tại tôi đang gặp sự cố kết nối với hệ thống AI. Vui lòng thử lại sau."

type ChatInput struct {
	SessionID string
	Message   string
}

// Chat answers a question about a session's contract. The question is stored before
// the session is looked up, and the reply after it is generated.
func (m *Manager) Chat(ctx context.Context, in ChatInput) (string, error) {
	if strings.TrimSpace(in.SessionID) == "" || strings.TrimSpace(in.Message) == "" {
		return "", ErrChatInput
	}

	question, err := m.appendMessage(ctx, in.SessionID, models.RoleUser, in.Message, time.Time{})
	if err != nil {
		return "", fmt.Errorf("save question: %w", err)
	}

	session, err := m.store.GetSession(ctx, in.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}

	analysisContext, err := AnalysisContext(session)
	if err != nil {
		return "", err
	}

	history, err := m.store.ListMessages(ctx, in.SessionID)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	prompt := ChatPrompt(RecentHistory(history, HistoryWindow), in.Message)

	answer, err := m.counsel.Answer(ctx, prompt, analysisContext)
	if err != nil {
		slog.WarnContext(ctx, "chat generation failed", "session_id", in.SessionID, "error", err)
		answer = chatApology
	}

	if _, err := m.appendMessage(ctx, in.SessionID, models.RoleAssistant, answer, question.Timestamp); err != nil {
		return "", fmt.Errorf("save answer: %w", err)
	}
	return answer, nil
}

type placeholderAnalysis struct {
	Summary string `json:"summary"`
	Risks   []any  `json:"risks"`
}

// AnalysisContext renders the stored analysis as indented JSON. Sessions without one
// get a summary and risk list placeholder.
func AnalysisContext(s models.Session) (string, error) {
	var v any = s.AnalysisJSON
	if len(s.AnalysisJSON) == 0 {
		p := placeholderAnalysis{Summary: s.Summary, Risks: s.Risks}
		if p.Summary == "" {
			p.Summary = "Chưa có dữ liệu"
		}
		if p.Risks == nil {
			p.Risks = []any{}
		}
		v = p
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode analysis context: %w", err)
	}
	return string(out), nil
}

// RecentHistory returns at most n of the latest messages, oldest first.
func RecentHistory(msgs []models.Message, n int) []models.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

func roleLabel(r models.Role) string {
	if r == models.RoleUser {
		return "Người dùng"
	}
	return "AI Assistant"
}

// ChatPrompt wraps the transcript and the new question in the instruction template
// that tells the model to resolve pronouns against the transcript.
func ChatPrompt(history []models.Message, message string) string {
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		lines = append(lines, roleLabel(msg.Role)+": "+msg.Content)
	}
	var b strings.Builder
	b.WriteString("=== LỊCH SỬ HỘI THOẠI TRƯỚC ĐÓ (Để tham khảo ngữ cảnh) ===\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n==========================================================\n\n")
	b.WriteString("CÂU HỎI MỚI CỦA NGƯỜI DÙNG:\n")
	b.WriteString("\"" + message + "\"\n\n")
	b.WriteString("(Hãy trả lời câu hỏi mới dựa trên phân tích hợp đồng và lịch sử hội thoại trên. ")
	b.WriteString("Nếu câu hỏi dùng từ thay thế như \"nó\", \"điều đó\", hãy hiểu dựa theo lịch sử.)")
	return b.String()
}
