package contracts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"agreeme/app/models"
	"agreeme/storage"
)

type GenerateInput struct {
	UserID       string
	TemplateID   string
	ContractInfo map[string]any
}

type generatePayload struct {
	TemplateID   string         `json:"template_id"`
	ContractInfo map[string]any `json:"contract_info"`
	Language     string         `json:"language"`
	UserID       string         `json:"user_id"`
}

// Generate fills a template through the generate function and stores the result as a
// Word-importable .doc. The new session stays UPLOADED with origin generated.
func (m *Manager) Generate(ctx context.Context, in GenerateInput) (*models.GeneratedContract, error) {
	if strings.TrimSpace(in.TemplateID) == "" || in.ContractInfo == nil {
		return nil, ErrGenerateInput
	}
	if in.UserID == "" {
		return nil, ErrUnauthenticated
	}
	slog.InfoContext(ctx, "generating contract", "user_id", in.UserID, "template_id", in.TemplateID)

	resp, err := m.invoke(ctx, m.opts.GenerateFunction, generatePayload{
		TemplateID:   in.TemplateID,
		ContractInfo: in.ContractInfo,
		Language:     "vi",
		UserID:       in.UserID,
	})
	if err != nil {
		return nil, err
	}
	html, _ := resp.Body["contract_html"].(string)
	if strings.TrimSpace(html) == "" {
		return nil, ErrEmptyContract
	}
	title, _ := resp.Body["template_title"].(string)
	if title == "" {
		title = defaultTemplateName
	}

	now := m.now().UTC()
	prefix, err := storage.Prefix(storage.FolderGeneratedMonthly, in.UserID, now)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s%s_%d.doc", prefix, SafeTitle(title), now.UnixMilli())
	if err := m.objects.Put(ctx, key, WordDocument(html), "application/msword"); err != nil {
		return nil, fmt.Errorf("store generated contract: %w", err)
	}

	session := models.Session{
		ID:          m.newID(),
		UserID:      in.UserID,
		FileName:    title,
		StorageKey:  key,
		FileType:    "doc",
		Origin:      models.OriginGenerated,
		Status:      models.StatusUploaded,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	downloadURL, err := m.objects.PresignGet(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("presign generated contract: %w", err)
	}
	return &models.GeneratedContract{
		SessionID:     session.ID,
		TemplateTitle: title,
		FinalDocPath:  key,
		DownloadURL:   downloadURL,
		ContentHTML:   html,
		Message:       "Hợp đồng đã được tạo thành công.",
	}, nil
}
