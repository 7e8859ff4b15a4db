package contracts

import (
	"context"
	"log/slog"
	"strings"
)

const assistApology = "<p>Xin lỗi, hệ thống đang bận. Vui lòng thử lại sau.</p>"

// Assist drafts a clause for the editor. Generation failures return an apology paragraph.
func (m *Manager) Assist(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrPromptRequired
	}
	out, err := m.counsel.Draft(ctx, prompt)
	if err != nil {
		slog.WarnContext(ctx, "writer assist failed", "error", err)
		return assistApology, nil
	}
	return out, nil
}
