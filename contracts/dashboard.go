package contracts

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"agreeme/app/models"
)

const unnamedContract = "Hợp đồng không tên"

// Dashboard loads the user's sessions and drafts concurrently and re-mints a download
// link per session. A link that cannot be minted is left empty.
func (m *Manager) Dashboard(ctx context.Context, userID string) (*models.Dashboard, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	var (
		sessions []models.Session
		drafts   []models.Draft
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, err = m.store.ListSessionsByOwner(gctx, userID)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		drafts, err = m.store.GetDrafts(gctx, userID)
		if err != nil {
			return fmt.Errorf("load drafts: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inspections := make([]models.Inspection, len(sessions))
	var urls errgroup.Group
	for i, s := range sessions {
		i, s := i, s
		inspections[i] = inspectionFromSession(s)
		if s.StorageKey == "" {
			continue
		}
		urls.Go(func() error {
			url, err := m.objects.PresignGet(ctx, s.StorageKey)
			if err != nil {
				slog.WarnContext(ctx, "presign failed for inspection", "session_id", s.ID, "error", err)
				return nil
			}
			inspections[i].FileURL = url
			return nil
		})
	}
	_ = urls.Wait()

	if drafts == nil {
		drafts = []models.Draft{}
	}
	return &models.Dashboard{Inspections: inspections, Drafts: drafts}, nil
}

func inspectionFromSession(s models.Session) models.Inspection {
	name := s.FileName
	if name == "" {
		name = unnamedContract
	}
	analysis := s.AnalysisJSON
	if len(analysis) == 0 {
		summary := s.Summary
		if summary == "" {
			summary = "Đang xử lý..."
		}
		risks := s.Risks
		if risks == nil {
			risks = []any{}
		}
		analysis = map[string]any{
			"summary":            summary,
			"overall_risk_level": string(s.OverallScore),
			"risk_items":         risks,
		}
	}
	fileType := s.FileType
	if fileType == "" {
		fileType = extension(s.FileName)
	}
	return models.Inspection{
		ID:           s.ID,
		Name:         name,
		Content:      s.Summary,
		S3Key:        s.StorageKey,
		Score:        RiskScore(s.OverallScore),
		Status:       s.Status,
		Origin:       s.Origin,
		CreatedAt:    s.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		AnalysisData: analysis,
		FileType:     fileType,
	}
}

// SaveDrafts overwrites the user's draft list.
func (m *Manager) SaveDrafts(ctx context.Context, userID string, drafts []models.Draft) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if drafts == nil {
		drafts = []models.Draft{}
	}
	return m.store.SaveDrafts(ctx, userID, drafts)
}
