package contracts

import (
	"context"
	"errors"
	"testing"
	"time"

	"agreeme/app/models"
	"agreeme/store"
)

func TestDashboardToleratesPresignFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for i, key := range []string{"k0", "k1", "k2", "k3"} {
		seedSession(t, f, models.Session{
			ID: key, UserID: "u1", StorageKey: key, FileName: "doc",
			CreatedAt: fixedNow.Add(time.Duration(i) * time.Minute),
		})
	}
	seedSession(t, f, models.Session{ID: "other", UserID: "u2", StorageKey: "k9"})
	f.objects.failFor["k2"] = true
	_ = f.store.SaveDrafts(ctx, "u1", []models.Draft{{ID: "d1", Name: "Nháp"}})

	dash, err := f.mgr.Dashboard(ctx, "u1")
	if err != nil {
		t.Fatalf("Dashboard error = %v", err)
	}
	if len(dash.Inspections) != 4 {
		t.Fatalf("expected 4 inspections, got %d", len(dash.Inspections))
	}
	for _, in := range dash.Inspections {
		if in.ID == "k2" && in.FileURL != "" {
			t.Fatalf("failing presign should leave the url empty")
		}
		if in.ID != "k2" && in.FileURL == "" {
			t.Fatalf("inspection %s missing url", in.ID)
		}
	}
	if len(dash.Drafts) != 1 || dash.Drafts[0].ID != "d1" {
		t.Fatalf("unexpected drafts %+v", dash.Drafts)
	}
}

func TestDashboardDerivedFields(t *testing.T) {
	f := newFixture()
	seedSession(t, f, models.Session{ID: "a", UserID: "u1", OverallScore: models.RiskMedium, FileType: "docx", Status: models.StatusAnalyzed})
	seedSession(t, f, models.Session{ID: "b", UserID: "u1"})

	dash, err := f.mgr.Dashboard(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	byID := map[string]models.Inspection{}
	for _, in := range dash.Inspections {
		byID[in.ID] = in
	}
	if byID["a"].Score != 60 || byID["a"].FileType != "docx" {
		t.Fatalf("unexpected inspection a: %+v", byID["a"])
	}
	b := byID["b"]
	if b.Score != -1 || b.Name != "Hợp đồng không tên" || b.AnalysisData["summary"] != "Đang xử lý..." {
		t.Fatalf("unexpected inspection b: %+v", b)
	}
	if dash.Drafts == nil {
		t.Fatalf("drafts should be an empty list, not nil")
	}
}

type brokenSessions struct {
	*store.MemoryStore
}

func (brokenSessions) ListSessionsByOwner(context.Context, string) ([]models.Session, error) {
	return nil, errors.New("table unreachable")
}

func TestDashboardStoreFailure(t *testing.T) {
	f := newFixture()
	f.mgr.store = brokenSessions{f.store}
	if _, err := f.mgr.Dashboard(context.Background(), "u1"); err == nil {
		t.Fatalf("expected an error when sessions cannot be listed")
	}
}
