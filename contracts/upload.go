package contracts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agreeme/app/models"
	"agreeme/inference"
	"agreeme/storage"
	"agreeme/store"
)

type UploadInput struct {
	UserID      string
	FileName    string
	ContentType string
	Data        []byte
}

type reviewPayload struct {
	Language        string `json:"language"`
	FileBytesBase64 string `json:"file_bytes_base64"`
	FileFormat      string `json:"file_format"`
	FileName        string `json:"file_name"`
	ContextRAG      string `json:"context_rag"`
	SessionID       string `json:"session_id"`
	S3Key           string `json:"s3_key"`
	UserID          string `json:"user_id"`
}

// Upload stores a contract, creates its session and runs the review function on it.
// Steps after validation are not rolled back on failure: the stored object and an
// UPLOADED session remain.
func (m *Manager) Upload(ctx context.Context, in UploadInput) (*models.UploadResponse, error) {
	if in.FileName == "" && in.Data == nil {
		return nil, ErrNoFile
	}
	if in.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if int64(len(in.Data)) > m.opts.MaxUploadBytes {
		return nil, ErrFileTooLarge
	}
	if m.opts.FreeWeeklyAnalyses > 0 {
		if _, err := m.store.ConsumeAnalysis(ctx, in.UserID, m.opts.FreeWeeklyAnalyses, m.now()); err != nil {
			if errors.Is(err, store.ErrQuotaExceeded) {
				return nil, ErrQuotaExceeded
			}
			return nil, fmt.Errorf("count analysis: %w", err)
		}
	}

	now := m.now().UTC()
	key, err := storage.BuildKey(storage.FolderUserDocument, in.UserID, in.FileName, now)
	if err != nil {
		return nil, err
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := m.objects.Put(ctx, key, in.Data, contentType); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	format := FileFormat(in.FileName)
	session := models.Session{
		ID:          m.newID(),
		UserID:      in.UserID,
		FileName:    DisplayName(in.FileName),
		StorageKey:  key,
		FileType:    format,
		Origin:      models.OriginUpload,
		Status:      models.StatusUploaded,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	log := slog.With("session_id", session.ID, "user_id", in.UserID)

	query := in.FileName
	if query == "" {
		query = "hop_dong"
	}
	ragContext := m.legalContext(ctx, query)
	log.InfoContext(ctx, "legal context resolved", "length", len(ragContext))

	payload := reviewPayload{
		Language:        "vi",
		FileBytesBase64: base64.StdEncoding.EncodeToString(in.Data),
		FileFormat:      format,
		FileName:        SanitizeDocumentName(in.FileName),
		ContextRAG:      ragContext,
		SessionID:       session.ID,
		S3Key:           key,
		UserID:          in.UserID,
	}
	log.InfoContext(ctx, "invoking review function", "file", in.FileName)
	resp, err := m.invoke(ctx, m.opts.ReviewFunction, payload)
	if err != nil {
		log.ErrorContext(ctx, "analysis failed", "error", err)
		return nil, err
	}

	raw, ok := resp.Body["analysis"].(map[string]any)
	if !ok {
		log.ErrorContext(ctx, "review function returned no analysis")
		return nil, ErrNoAnalysis
	}
	analysis := models.NormalizeAnalysis(raw)
	analyzedAt := m.now().UTC()
	if err := m.store.SaveAnalysis(ctx, session.ID, analysis, analyzedAt); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	if _, err := m.appendMessage(ctx, session.ID, models.RoleAssistant, welcomeMessage(in.FileName, analysis.OverallRisk), time.Time{}); err != nil {
		return nil, fmt.Errorf("save welcome message: %w", err)
	}

	fileURL, err := m.objects.PresignGet(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("presign document: %w", err)
	}
	return &models.UploadResponse{
		Message:   "Analysis complete",
		SessionID: session.ID,
		Status:    models.StatusAnalyzed,
		Result:    raw,
		FileURL:   fileURL,
		FileType:  format,
	}, nil
}

// invoke calls a function synchronously. A missing result, a raised function error
// or a non-200 status becomes an *InferenceError; transport errors are returned wrapped.
func (m *Manager) invoke(ctx context.Context, function string, payload any) (*inference.FunctionResponse, error) {
	if function == "" {
		return nil, ErrInferenceNotConfig
	}
	resp, err := m.invoker.Invoke(ctx, function, payload)
	var fnErr *inference.FunctionError
	switch {
	case errors.Is(err, inference.ErrEmptyResponse):
		return nil, &InferenceError{Function: function}
	case errors.As(err, &fnErr):
		return nil, &InferenceError{Function: function, Details: fnErr.Payload}
	case err != nil:
		return nil, fmt.Errorf("invoke %s: %w", function, err)
	case resp == nil:
		return nil, &InferenceError{Function: function}
	case !resp.OK():
		return nil, &InferenceError{Function: function, StatusCode: resp.StatusCode, Details: resp.Body}
	}
	return resp, nil
}
