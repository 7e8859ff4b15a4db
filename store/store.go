// Package store persists users, sessions and chat messages.
package store

import (
	"context"
	"errors"
	"time"

	"agreeme/app/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrNotOwner      = errors.New("record not owned by user")
	ErrAlreadyExists = errors.New("record already exists")
	ErrQuotaExceeded = errors.New("weekly analysis quota exceeded")
	ErrConflict      = errors.New("concurrent update, retry")
)

// Store is the record store used by the services. Implementations return records in
// their canonical form; legacy field names are resolved inside the implementation.
type Store interface {
	UserStore
	SessionStore
	MessageStore
}

type UserStore interface {
	// CreateUser fails with ErrAlreadyExists when the id is taken.
	CreateUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, userID string) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate, at time.Time) (models.User, error)
	SaveDrafts(ctx context.Context, userID string, drafts []models.Draft) error
	GetDrafts(ctx context.Context, userID string) ([]models.Draft, error)
	SetPlan(ctx context.Context, userID string, plan models.Plan) error
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
	// ConsumeAnalysis counts one analysis in the current week. Free users past limit get ErrQuotaExceeded.
	ConsumeAnalysis(ctx context.Context, userID string, limit int, now time.Time) (models.Usage, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, session models.Session) error
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
	SaveAnalysis(ctx context.Context, sessionID string, analysis models.Analysis, at time.Time) error
	ListSessionsByOwner(ctx context.Context, userID string) ([]models.Session, error)
	// DeleteSession removes the session only when userID owns it. Otherwise ErrNotOwner.
	DeleteSession(ctx context.Context, sessionID, userID string) error
}

type MessageStore interface {
	AppendMessage(ctx context.Context, msg models.Message) error
	// ListMessages returns the transcript oldest first.
	ListMessages(ctx context.Context, sessionID string) ([]models.Message, error)
	DeleteMessages(ctx context.Context, sessionID string) error
}

// ApplyUsage rolls the weekly window and counts one analysis on u.
func ApplyUsage(u *models.User, limit int, now time.Time) (models.Usage, error) {
	weekStart := models.WeekStartUTC(now)
	if u.UsagePeriodStart.Before(weekStart) {
		u.AnalysesUsed = 0
		u.UsagePeriodStart = weekStart
	}
	usage := models.Usage{Plan: u.Plan, Used: u.AnalysesUsed, PeriodStart: u.UsagePeriodStart}
	if u.Plan == models.PlanPro {
		return usage, nil
	}
	if limit > 0 && u.AnalysesUsed+1 > limit {
		return usage, ErrQuotaExceeded
	}
	u.AnalysesUsed++
	usage.Used = u.AnalysesUsed
	return usage, nil
}
