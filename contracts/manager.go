// Package contracts coordinates contract sessions: upload and analysis, chat,
// template generation, deletion and the dashboard view.
package contracts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agreeme/app/config"
	"agreeme/app/models"
	"agreeme/inference"
	"agreeme/storage"
	"agreeme/store"
)

// Counsel answers contract questions and drafts clauses.
type Counsel interface {
	Answer(ctx context.Context, question, contractContext string) (string, error)
	Draft(ctx context.Context, request string) (string, error)
}

// LegalSearcher returns supplementary legal context for a query, "" when none.
type LegalSearcher interface {
	LegalContext(ctx context.Context, query string) string
}

type Options struct {
	ReviewFunction     string
	GenerateFunction   string
	MaxUploadBytes     int64
	FreeWeeklyAnalyses int
}

type Manager struct {
	store   store.Store
	objects storage.ObjectStore
	invoker inference.Invoker
	counsel Counsel
	search  LegalSearcher
	opts    Options

	now   func() time.Time
	newID func() string
}

// NewManager builds a Manager. search may be nil.
func NewManager(st store.Store, objects storage.ObjectStore, invoker inference.Invoker, counsel Counsel, search LegalSearcher, opts Options) *Manager {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = config.MaxUploadBytes
	}
	return &Manager{
		store:   st,
		objects: objects,
		invoker: invoker,
		counsel: counsel,
		search:  search,
		opts:    opts,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (m *Manager) legalContext(ctx context.Context, query string) string {
	if m.search == nil {
		return ""
	}
	return m.search.LegalContext(ctx, query)
}

// appendMessage stores a chat turn. at is bumped past after so turns never share a sort key.
func (m *Manager) appendMessage(ctx context.Context, sessionID string, role models.Role, content string, after time.Time) (models.Message, error) {
	at := m.now().UTC()
	if !at.After(after) {
		at = after.Add(time.Microsecond)
	}
	msg := models.Message{
		SessionID: sessionID,
		ID:        m.newID(),
		Timestamp: at,
		Role:      role,
		Content:   content,
	}
	return msg, m.store.AppendMessage(ctx, msg)
}
