package contracts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"agreeme/store"
)

// Delete removes a session owned by userID, then its messages and stored document.
// A session that is missing or owned by someone else is reported as ErrSessionNotFound
// and left intact. Cleanup after the session delete is best-effort.
func (m *Manager) Delete(ctx context.Context, sessionID, userID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrSessionIDRequired
	}
	if userID == "" {
		return ErrUnauthenticated
	}
	var storageKey string
	if session, err := m.store.GetSession(ctx, sessionID); err == nil && session.UserID == userID {
		storageKey = session.StorageKey
	}
	err := m.store.DeleteSession(ctx, sessionID, userID)
	if errors.Is(err, store.ErrNotOwner) || errors.Is(err, store.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := m.store.DeleteMessages(ctx, sessionID); err != nil {
		slog.WarnContext(ctx, "message cleanup failed", "session_id", sessionID, "error", err)
	}
	if storageKey != "" {
		if err := m.objects.Delete(ctx, storageKey); err != nil {
			slog.WarnContext(ctx, "document cleanup failed", "session_id", sessionID, "key", storageKey, "error", err)
		}
	}
	return nil
}
