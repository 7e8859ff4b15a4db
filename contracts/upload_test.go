package contracts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"agreeme/app/models"
	"agreeme/inference"
)

func TestUploadValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.mgr.Upload(ctx, UploadInput{UserID: "u1"}); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}
	if _, err := f.mgr.Upload(ctx, UploadInput{FileName: "a.pdf", Data: []byte("x")}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	big := make([]byte, f.mgr.opts.MaxUploadBytes+1)
	if _, err := f.mgr.Upload(ctx, UploadInput{UserID: "u1", FileName: "a.pdf", Data: big}); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if len(f.objects.objects) != 0 {
		t.Fatalf("validation failures must not store objects")
	}
}

func TestUploadAnalyzes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.invoker.resp = okResponse(map[string]any{
		"analysis": map[string]any{
			"summary":            "Hợp đồng thuê nhà",
			"risk_items":         []any{map[string]any{"clause": "Điều 3"}},
			"overall_risk_level": "HIGH",
		},
	})

	res, err := f.mgr.Upload(ctx, UploadInput{UserID: "u1", FileName: "Thuê Nhà.DOCX", ContentType: "application/msword", Data: []byte("doc")})
	if err != nil {
		t.Fatalf("Upload error = %v", err)
	}
	if res.Status != models.StatusAnalyzed || res.FileType != "docx" || res.FileURL == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.search.query != "Thuê Nhà.DOCX" {
		t.Fatalf("search query = %q", f.search.query)
	}

	payload := f.invoker.payload.(reviewPayload)
	if f.invoker.function != "review-fn" || payload.Language != "vi" || payload.FileName != "Thu Nh" || payload.SessionID != res.SessionID {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if !strings.HasPrefix(payload.S3Key, "user-data/u1/documents/") {
		t.Fatalf("unexpected key %q", payload.S3Key)
	}

	sess, err := f.store.GetSession(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("GetSession error = %v", err)
	}
	if sess.Status != models.StatusAnalyzed || sess.OverallScore != models.RiskHigh || sess.FileName != "Thuê Nhà" || sess.Origin != models.OriginUpload {
		t.Fatalf("unexpected session: %+v", sess)
	}

	msgs, _ := f.store.ListMessages(ctx, res.SessionID)
	if len(msgs) != 1 || msgs[0].Role != models.RoleAssistant || !strings.Contains(msgs[0].Content, "🔴 CAO") {
		t.Fatalf("unexpected welcome message: %+v", msgs)
	}
}

func TestUploadInferenceFailureLeavesSessionUploaded(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.invoker.resp = &inference.FunctionResponse{StatusCode: 500, Body: map[string]any{"message": "timeout"}}

	_, err := f.mgr.Upload(ctx, UploadInput{UserID: "u1", FileName: "a.pdf", Data: []byte("x")})
	var infErr *InferenceError
	if !errors.As(err, &infErr) || infErr.StatusCode != 500 {
		t.Fatalf("expected InferenceError, got %v", err)
	}

	sessions, _ := f.store.ListSessionsByOwner(ctx, "u1")
	if len(sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions))
	}
	s := sessions[0]
	if s.Status != models.StatusUploaded || s.Summary != "" || s.AnalysisJSON != nil || s.Risks != nil {
		t.Fatalf("session should stay UPLOADED without analysis: %+v", s)
	}
	if len(f.objects.objects) != 1 {
		t.Fatalf("stored object should remain after failure")
	}
}

func TestUploadMissingResponse(t *testing.T) {
	f := newFixture()
	f.invoker.err = inference.ErrEmptyResponse

	_, err := f.mgr.Upload(context.Background(), UploadInput{UserID: "u1", FileName: "a.pdf", Data: []byte("x")})
	var infErr *InferenceError
	if !errors.As(err, &infErr) {
		t.Fatalf("expected InferenceError, got %v", err)
	}
}

func TestUploadLegacyAnalysisNames(t *testing.T) {
	ctx := context.Background()
	risks := []any{map[string]any{"clause": "Điều 7"}}

	primary := newFixture()
	primary.invoker.resp = okResponse(map[string]any{"analysis": map[string]any{"summary": "S", "risk_items": risks}})
	pres, err := primary.mgr.Upload(ctx, UploadInput{UserID: "u1", FileName: "a.pdf", Data: []byte("x")})
	if err != nil {
		t.Fatal(err)
	}

	legacy := newFixture()
	legacy.invoker.resp = okResponse(map[string]any{"analysis": map[string]any{"risk_summary": "S", "risks": risks}})
	lres, err := legacy.mgr.Upload(ctx, UploadInput{UserID: "u1", FileName: "a.pdf", Data: []byte("x")})
	if err != nil {
		t.Fatal(err)
	}

	ps, _ := primary.store.GetSession(ctx, pres.SessionID)
	ls, _ := legacy.store.GetSession(ctx, lres.SessionID)
	if ps.Summary != ls.Summary || len(ps.Risks) != len(ls.Risks) || ps.OverallScore != ls.OverallScore {
		t.Fatalf("legacy names resolved differently: %+v vs %+v", ps, ls)
	}
}

func TestUploadQuota(t *testing.T) {
	f := newFixture()
	f.mgr.opts.FreeWeeklyAnalyses = 1
	f.invoker.resp = okResponse(map[string]any{"analysis": map[string]any{}})
	ctx := context.Background()

	if _, err := f.mgr.Upload(ctx, UploadInput{UserID: "u1", FileName: "a.pdf", Data: []byte("x")}); err != nil {
		t.Fatalf("first upload error = %v", err)
	}
	if _, err := f.mgr.Upload(ctx, UploadInput{UserID: "u1", FileName: "b.pdf", Data: []byte("x")}); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if len(f.objects.objects) != 1 {
		t.Fatalf("quota rejection must happen before storing")
	}
}

func TestUploadRejectsReplyWithoutAnalysis(t *testing.T) {
	for name, body := range map[string]map[string]any{
		"plain message":   {"message": "done"},
		"analysis string": {"analysis": "not an object"},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			f.invoker.resp = okResponse(body)

			res, err := f.mgr.Upload(ctx, UploadInput{UserID: "u1", FileName: "a.pdf", Data: []byte("pdf")})
			if !errors.Is(err, ErrNoAnalysis) || res != nil {
				t.Fatalf("Upload = %+v, %v; want ErrNoAnalysis", res, err)
			}
			sessions, _ := f.store.ListSessionsByOwner(ctx, "u1")
			if len(sessions) != 1 || sessions[0].Status != models.StatusUploaded {
				t.Fatalf("session should stay uploaded: %+v", sessions)
			}
			if msgs, _ := f.store.ListMessages(ctx, sessions[0].ID); len(msgs) != 0 {
				t.Fatalf("no welcome message expected, got %d", len(msgs))
			}
		})
	}
}
