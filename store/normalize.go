package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"agreeme/app/models"
)

// Field name chains seen in session records written by earlier clients.
var (
	sessionIDKeys   = []string{"session_id", "id"}
	ownerKeys       = []string{"user_id", "userId"}
	fileNameKeys    = []string{"file_name", "fileName", "name"}
	storageKeyKeys  = []string{"s3_key", "s3Key", "fileKey", "originalS3Key", "original_s3_key"}
	fileTypeKeys    = []string{"file_type", "fileType", "extension", "originalExtension"}
	analysisKeys    = []string{"analysis_json", "analysis"}
	createdAtKeys   = []string{"created_at", "createdAt"}
	lastUpdatedKeys = []string{"last_updated", "lastUpdated", "updated_at"}
)

// SessionFromItem converts a raw session record into the canonical Session.
func SessionFromItem(item map[string]any) models.Session {
	s := models.Session{
		ID:           pickString(item, sessionIDKeys...),
		UserID:       pickString(item, ownerKeys...),
		FileName:     pickString(item, fileNameKeys...),
		StorageKey:   pickString(item, storageKeyKeys...),
		FileType:     strings.ToLower(pickString(item, fileTypeKeys...)),
		Origin:       models.Origin(pickString(item, "origin")),
		Status:       models.SessionStatus(pickString(item, "status")),
		Summary:      pickString(item, "summary"),
		OverallScore: models.RiskLevel(pickString(item, "overall_score")),
		AnalysisJSON: pickObject(item, analysisKeys...),
		CreatedAt:    pickTime(item, createdAtKeys...),
		LastUpdated:  pickTime(item, lastUpdatedKeys...),
	}
	if risks, ok := item["risks"].([]any); ok {
		s.Risks = risks
	}
	if s.Status == "" {
		s.Status = models.StatusUploaded
	}
	if s.Origin == "" {
		s.Origin = models.OriginUpload
	}
	return s
}

// SessionToItem is the inverse of SessionFromItem using the primary field names.
func SessionToItem(s models.Session) map[string]any {
	item := map[string]any{
		"session_id": s.ID,
		"user_id":    s.UserID,
		"file_name":  s.FileName,
		"s3_key":     s.StorageKey,
		"status":     string(s.Status),
		"origin":     string(s.Origin),
		"created_at": s.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if s.FileType != "" {
		item["file_type"] = s.FileType
	}
	if s.Summary != "" {
		item["summary"] = s.Summary
	}
	if s.Risks != nil {
		item["risks"] = s.Risks
	}
	if s.OverallScore != "" {
		item["overall_score"] = string(s.OverallScore)
	}
	if s.AnalysisJSON != nil {
		item["analysis_json"] = s.AnalysisJSON
	}
	if !s.LastUpdated.IsZero() {
		item["last_updated"] = s.LastUpdated.UTC().Format(time.RFC3339Nano)
	}
	return item
}

func pickString(item map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := item[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case nil:
		case float64, int, int64, bool:
			return fmt.Sprint(v)
		}
	}
	return ""
}

func pickObject(item map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		switch v := item[key].(type) {
		case map[string]any:
			return v
		case string:
			var decoded map[string]any
			if err := json.Unmarshal([]byte(v), &decoded); err == nil {
				return decoded
			}
		}
	}
	return nil
}

func pickTime(item map[string]any, keys ...string) time.Time {
	for _, key := range keys {
		switch v := item[key].(type) {
		case string:
			if t, err := models.ParseTimestamp(v); err == nil {
				return t
			}
		case float64:
			return time.UnixMilli(int64(v)).UTC()
		}
	}
	return time.Time{}
}
