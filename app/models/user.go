// Package models defines user, session and message records shared by the stores and handlers.
package models

import "time"

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// User is one account. Local accounts carry a password hash; Cognito accounts do not.
type User struct {
	ID               string    `json:"id" dynamodbav:"user_id"`
	Email            string    `json:"email,omitempty" dynamodbav:"email,omitempty"`
	PasswordHash     string    `json:"-" dynamodbav:"password_hash,omitempty"`
	Plan             Plan      `json:"plan" dynamodbav:"plan"`
	FullName         string    `json:"fullName,omitempty" dynamodbav:"fullName,omitempty"`
	Phone            string    `json:"phone,omitempty" dynamodbav:"phone,omitempty"`
	Birthdate        string    `json:"birthdate,omitempty" dynamodbav:"birthdate,omitempty"`
	Gender           string    `json:"gender,omitempty" dynamodbav:"gender,omitempty"`
	Avatar           string    `json:"avatar,omitempty" dynamodbav:"avatar,omitempty"`
	Drafts           []Draft   `json:"drafts,omitempty" dynamodbav:"drafts,omitempty"`
	StripeCustomerID string    `json:"-" dynamodbav:"stripe_customer_id,omitempty"`
	AnalysesUsed     int       `json:"-" dynamodbav:"analyses_used"`
	UsagePeriodStart time.Time `json:"-" dynamodbav:"usage_period_start"`
	CreatedAt        time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt        time.Time `json:"updated_at,omitempty" dynamodbav:"updated_at,omitempty"`
}

// Draft is an editable document kept inside the user record.
type Draft struct {
	ID        string `json:"id" dynamodbav:"id"`
	Name      string `json:"name" dynamodbav:"name"`
	Content   string `json:"content" dynamodbav:"content"`
	LastSaved string `json:"lastSaved" dynamodbav:"lastSaved"`
}

// ProfileUpdate lists the profile fields a user may change. Nil fields are left alone.
type ProfileUpdate struct {
	FullName  *string `json:"fullName"`
	Phone     *string `json:"phone"`
	Birthdate *string `json:"birthdate"`
	Gender    *string `json:"gender"`
	Avatar    *string `json:"avatar"`
}

// Empty reports whether the update carries no field.
func (p ProfileUpdate) Empty() bool {
	return p.FullName == nil && p.Phone == nil && p.Birthdate == nil && p.Gender == nil && p.Avatar == nil
}

// Apply copies the set fields onto u.
func (p ProfileUpdate) Apply(u *User) {
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Birthdate != nil {
		u.Birthdate = *p.Birthdate
	}
	if p.Gender != nil {
		u.Gender = *p.Gender
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
}

// Usage is the weekly analysis counter of a user.
type Usage struct {
	Plan        Plan
	Used        int
	PeriodStart time.Time
}

// WeekStartUTC returns Monday 00:00 UTC of the week containing t.
func WeekStartUTC(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	start := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
}
