package models

import (
	"fmt"
	"strings"
	"time"
)

type SessionStatus string

const (
	StatusUploaded SessionStatus = "UPLOADED"
	StatusAnalyzed SessionStatus = "ANALYZED"
)

// Origin tells an uploaded document apart from one produced by template generation.
// A generated session stays UPLOADED for good; an upload left UPLOADED means its analysis failed.
type Origin string

const (
	OriginUpload    Origin = "upload"
	OriginGenerated Origin = "generated"
)

type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskUnknown RiskLevel = "UNKNOWN"
)

// Session is one uploaded or generated document plus its analysis.
type Session struct {
	ID           string         `json:"session_id"`
	UserID       string         `json:"user_id"`
	FileName     string         `json:"file_name"`
	StorageKey   string         `json:"s3_key"`
	FileType     string         `json:"file_type,omitempty"`
	Origin       Origin         `json:"origin,omitempty"`
	Status       SessionStatus  `json:"status"`
	Summary      string         `json:"summary,omitempty"`
	Risks        []any          `json:"risks,omitempty"`
	OverallScore RiskLevel      `json:"overall_score,omitempty"`
	AnalysisJSON map[string]any `json:"analysis_json,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	LastUpdated  time.Time      `json:"last_updated,omitempty"`
}

// ApplyAnalysis marks the session analyzed and copies the normalized fields.
func (s *Session) ApplyAnalysis(a Analysis, at time.Time) {
	s.Status = StatusAnalyzed
	s.Summary = a.Summary
	s.Risks = a.RiskItems
	s.OverallScore = a.OverallRisk
	s.AnalysisJSON = a.Raw
	s.LastUpdated = at
}

// Analysis is the normalized risk assessment returned by the review function.
type Analysis struct {
	Summary     string
	RiskItems   []any
	OverallRisk RiskLevel
	Raw         map[string]any
}

// NormalizeAnalysis resolves the primary and legacy field names of a review payload.
func NormalizeAnalysis(raw map[string]any) Analysis {
	if raw == nil {
		raw = map[string]any{}
	}
	a := Analysis{
		Summary:     "No summary",
		RiskItems:   []any{},
		OverallRisk: RiskUnknown,
		Raw:         raw,
	}
	if s := firstString(raw, "summary", "risk_summary"); s != "" {
		a.Summary = s
	}
	for _, key := range []string{"risk_items", "risks"} {
		if items, ok := raw[key].([]any); ok && len(items) > 0 {
			a.RiskItems = items
			break
		}
	}
	if lvl := firstString(raw, "overall_risk_level", "overall_score"); lvl != "" {
		a.OverallRisk = RiskLevel(strings.ToUpper(lvl))
	}
	return a
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case nil:
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}
