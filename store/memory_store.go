package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"agreeme/app/models"
)

// MemoryStore keeps records in process memory. Used by tests and local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]models.User
	sessions map[string]models.Session
	messages map[string][]models.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]models.User),
		sessions: make(map[string]models.Session),
		messages: make(map[string][]models.Message),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return ErrAlreadyExists
	}
	s.users[user.ID] = user
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, userID string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if email != "" && strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (s *MemoryStore) UpdateProfile(_ context.Context, userID string, update models.ProfileUpdate, at time.Time) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		u = models.User{ID: userID, Plan: models.PlanFree, CreatedAt: at}
	}
	update.Apply(&u)
	u.UpdatedAt = at
	s.users[userID] = u
	return u, nil
}

func (s *MemoryStore) SaveDrafts(_ context.Context, userID string, drafts []models.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		u = models.User{ID: userID, Plan: models.PlanFree}
	}
	u.Drafts = append([]models.Draft(nil), drafts...)
	s.users[userID] = u
	return nil
}

func (s *MemoryStore) GetDrafts(_ context.Context, userID string) ([]models.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Draft{}, s.users[userID].Drafts...), nil
}

func (s *MemoryStore) SetPlan(_ context.Context, userID string, plan models.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Plan = plan
	s.users[userID] = u
	return nil
}

func (s *MemoryStore) SetStripeCustomerID(_ context.Context, userID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.StripeCustomerID = customerID
	s.users[userID] = u
	return nil
}

func (s *MemoryStore) ConsumeAnalysis(_ context.Context, userID string, limit int, now time.Time) (models.Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		u = models.User{ID: userID, Plan: models.PlanFree, CreatedAt: now}
	}
	usage, err := ApplyUsage(&u, limit, now)
	if err != nil {
		return usage, err
	}
	s.users[userID] = u
	return usage, nil
}

func (s *MemoryStore) CreateSession(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return ErrAlreadyExists
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return models.Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *MemoryStore) SaveAnalysis(_ context.Context, sessionID string, analysis models.Analysis, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.ApplyAnalysis(analysis, at)
	s.sessions[sessionID] = sess
	return nil
}

func (s *MemoryStore) ListSessionsByOwner(_ context.Context, userID string) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Session, 0)
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, sessionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return ErrNotOwner
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.messages[msg.SessionID], msg)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })
	s.messages[msg.SessionID] = list
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, sessionID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message{}, s.messages[sessionID]...), nil
}

func (s *MemoryStore) DeleteMessages(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, sessionID)
	return nil
}
