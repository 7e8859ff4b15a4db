// Package accounts manages user accounts: password registration and login, profiles,
// avatars, first-login provisioning and the weekly analysis allowance.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"agreeme/app/models"
	"agreeme/storage"
	"agreeme/store"
)

const bcryptCost = 10

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("wrong email or password")
	ErrMissingCredentials = errors.New("email and password are required")
	ErrUserNotFound       = errors.New("user not found")
	ErrNoImage            = errors.New("no image uploaded")
	ErrLocalAuthDisabled  = errors.New("password accounts are not enabled")
)

// TokenIssuer signs session tokens for password accounts.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type Service struct {
	users       store.UserStore
	objects     storage.ObjectStore
	tokens      TokenIssuer
	weeklyLimit int

	now   func() time.Time
	newID func() string
}

// NewService builds a Service. tokens may be nil when only Cognito sign-in is used.
func NewService(users store.UserStore, objects storage.ObjectStore, tokens TokenIssuer, weeklyLimit int) *Service {
	return &Service{
		users:       users,
		objects:     objects,
		tokens:      tokens,
		weeklyLimit: weeklyLimit,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a password account and returns a token for it.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if s.tokens == nil {
		return nil, ErrLocalAuthDisabled
	}
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, ErrMissingCredentials
	}
	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	user := models.User{
		ID:               s.newID(),
		Email:            email,
		PasswordHash:     string(hash),
		Plan:             models.PlanFree,
		FullName:         strings.TrimSpace(req.Name),
		UsagePeriodStart: models.WeekStartUTC(now),
		CreatedAt:        now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.authResponse(user)
}

// Login checks a password and returns a fresh token.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if s.tokens == nil {
		return nil, ErrLocalAuthDisabled
	}
	user, err := s.users.FindUserByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.authResponse(user)
}

func (s *Service) authResponse(u models.User) (*models.AuthResponse, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{ID: u.ID, Email: u.Email, Token: token}, nil
}

// Profile returns the user with a freshly minted avatar link. A stored avatar key that
// cannot be signed is blanked.
func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	user.Avatar = s.avatarURL(ctx, user.Avatar)
	return &user, nil
}

func (s *Service) avatarURL(ctx context.Context, avatar string) string {
	if avatar == "" || strings.HasPrefix(avatar, "http") || strings.HasPrefix(avatar, "data:") {
		return avatar
	}
	url, err := s.objects.PresignGet(ctx, avatar)
	if err != nil {
		slog.WarnContext(ctx, "avatar presign failed", "error", err)
		return ""
	}
	return url
}

// UpdateProfile applies the whitelisted profile fields.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error) {
	if update.Empty() {
		return s.Profile(ctx, userID)
	}
	user, err := s.users.UpdateProfile(ctx, userID, update, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	user.Avatar = s.avatarURL(ctx, user.Avatar)
	return &user, nil
}

// UploadAvatar stores an image, records its key on the profile and returns a link to it.
func (s *Service) UploadAvatar(ctx context.Context, userID, fileName, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNoImage
	}
	key, err := storage.BuildKey(storage.FolderUserAvatar, userID, fileName, s.now().UTC())
	if err != nil {
		return "", err
	}
	if err := s.objects.Put(ctx, key, data, contentType); err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}
	if _, err := s.users.UpdateProfile(ctx, userID, models.ProfileUpdate{Avatar: &key}, s.now().UTC()); err != nil {
		return "", fmt.Errorf("save avatar: %w", err)
	}
	return s.objects.PresignGet(ctx, key)
}

// EnsureUser creates a free account for an identity seen for the first time.
func (s *Service) EnsureUser(ctx context.Context, userID, email, name string) error {
	if userID == "" {
		return nil
	}
	now := s.now().UTC()
	err := s.users.CreateUser(ctx, models.User{
		ID:               userID,
		Email:            normalizeEmail(email),
		Plan:             models.PlanFree,
		FullName:         strings.TrimSpace(name),
		UsagePeriodStart: models.WeekStartUTC(now),
		CreatedAt:        now,
	})
	if err == nil || errors.Is(err, store.ErrAlreadyExists) {
		return nil
	}
	return err
}

// Usage reports the plan and this week's analysis count. Pro users have no limit.
func (s *Service) Usage(ctx context.Context, userID string) (*models.UsageResponse, error) {
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		user = models.User{ID: userID, Plan: models.PlanFree}
	} else if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.Plan == "" {
		user.Plan = models.PlanFree
	}
	if user.UsagePeriodStart.Before(models.WeekStartUTC(s.now())) {
		user.AnalysesUsed = 0
	}

	resp := &models.UsageResponse{Plan: user.Plan, AnalysesUsed: user.AnalysesUsed}
	if user.Plan == models.PlanFree && s.weeklyLimit > 0 {
		limit := s.weeklyLimit
		remaining := max(limit-user.AnalysesUsed, 0)
		resp.WeeklyLimit = &limit
		resp.Remaining = &remaining
	}
	return resp, nil
}
