package app

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"agreeme/accounts"
	"agreeme/auth"
	"agreeme/contracts"
	"agreeme/corpus"
	"agreeme/inference"
	"agreeme/store"

	"github.com/gin-gonic/gin"
)

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memObjects) Put(_ context.Context, key string, body []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = body
	return nil
}

func (m *memObjects) PresignGet(_ context.Context, key string) (string, error) {
	return "https://files.test/" + key, nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// scriptedInvoker answers per function name.
type scriptedInvoker struct {
	responses map[string]*inference.FunctionResponse
}

func (s *scriptedInvoker) Invoke(_ context.Context, function string, _ any) (*inference.FunctionResponse, error) {
	return s.responses[function], nil
}

func (s *scriptedInvoker) InvokeAsync(context.Context, string, any) error { return nil }

type cannedCounsel struct{}

func (cannedCounsel) Answer(_ context.Context, question, _ string) (string, error) {
	return "Trả lời: " + question, nil
}

func (cannedCounsel) Draft(context.Context, string) (string, error) {
	return "<p>Điều khoản</p>", nil
}

type testServer struct {
	router *gin.Engine
	svc    *Services
	store  *store.MemoryStore
	tokens *auth.LocalTokens
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("AUTH_DISABLED", "")

	st := store.NewMemoryStore()
	objects := &memObjects{objects: map[string][]byte{}}
	invoker := &scriptedInvoker{responses: map[string]*inference.FunctionResponse{
		"review": {StatusCode: 200, Body: map[string]any{"analysis": map[string]any{
			"summary":            "Hợp đồng thuê nhà",
			"overall_risk_level": "MEDIUM",
			"risks":              []any{},
		}}},
		"generate": {StatusCode: 500, Body: map[string]any{"message": "boom"}},
	}}
	tokens, err := auth.NewLocalTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewLocalTokens error = %v", err)
	}

	svc := &Services{
		Contracts: contracts.NewManager(st, objects, invoker, cannedCounsel{}, nil, contracts.Options{
			ReviewFunction:     "review",
			GenerateFunction:   "generate",
			MaxUploadBytes:     1024,
			FreeWeeklyAnalyses: 3,
		}),
		Accounts:  accounts.NewService(st, objects, tokens, 3),
		Corpus:    corpus.NewService(objects, nil, invoker, ""),
		Verifiers: []auth.TokenVerifier{tokens},
	}
	router := NewRouter(svc, RouterOptions{
		PathPrefixes:   []string{"/api", "/dev/api"},
		MaxUploadBytes: 1024,
	})
	return &testServer{router: router, svc: svc, store: st, tokens: tokens}
}

func (s *testServer) do(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path string, body any) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, path, field, fileName string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, fileName)
	if err != nil {
		t.Fatalf("CreateFormFile error = %v", err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	w := s.do(t, jsonRequest(http.MethodPost, "/api/auth/register", map[string]string{
		"email": email, "password": "secret123", "name": "Lan",
	}), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d body=%s", w.Code, w.Body.String())
	}
	return decode(t, w)["token"].(string)
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	w = s.do(t, httptest.NewRequest(http.MethodGet, "/", nil), "")
	if decode(t, w)["message"] != "AI Contract Backend is running!" {
		t.Fatalf("unexpected root body %s", w.Body.String())
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/contracts/dashboard", "/dev/api/auth/usage"} {
		w := s.do(t, httptest.NewRequest(http.MethodGet, path, nil), "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s status = %d, want 401", path, w.Code)
		}
	}
	for _, path := range []string{"/api/news", "/dev/api/news"} {
		w := s.do(t, httptest.NewRequest(http.MethodGet, path, nil), "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200 without a token", path, w.Code)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "lan@example.vn")
	w := s.do(t, jsonRequest(http.MethodPost, "/dev/api/auth/register", map[string]string{
		"email": "LAN@example.vn", "password": "x",
	}), "")
	if w.Code != http.StatusBadRequest || decode(t, w)["message"] != "Email đã tồn tại" {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestContractLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "lan@example.vn")

	w := s.do(t, multipartRequest(t, "/api/contracts/upload", "file", "Hop dong thue.pdf", []byte("%PDF-1.4")), token)
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d body=%s", w.Code, w.Body.String())
	}
	upload := decode(t, w)
	sessionID, _ := upload["session_id"].(string)
	if sessionID == "" || upload["status"] != "ANALYZED" || upload["file_type"] != "pdf" {
		t.Fatalf("unexpected upload body %s", w.Body.String())
	}

	w = s.do(t, jsonRequest(http.MethodPost, "/dev/api/contracts/chat", map[string]string{
		"sessionId": sessionID, "message": "Tiền cọc bao nhiêu?",
	}), token)
	if w.Code != http.StatusOK || !strings.Contains(decode(t, w)["answer"].(string), "Tiền cọc") {
		t.Fatalf("chat = %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/contracts/dashboard", nil), token)
	dash := decode(t, w)
	inspections, _ := dash["inspections"].([]any)
	if w.Code != http.StatusOK || dash["success"] != true || len(inspections) != 1 {
		t.Fatalf("dashboard = %d %s", w.Code, w.Body.String())
	}
	if inspections[0].(map[string]any)["score"] != float64(60) {
		t.Fatalf("unexpected score in %v", inspections[0])
	}

	w = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/contracts/"+sessionID, nil), token)
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/contracts/"+sessionID, nil), token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d, want 404", w.Code)
	}
}

func TestDeleteByOtherUserIsNotFound(t *testing.T) {
	s := newTestServer(t)
	owner := s.register(t, "owner@example.vn")
	other := s.register(t, "other@example.vn")

	w := s.do(t, multipartRequest(t, "/api/contracts/upload", "file", "a.docx", []byte("doc")), owner)
	sessionID := decode(t, w)["session_id"].(string)

	w = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/contracts/"+sessionID, nil), other)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if _, err := s.store.GetSession(context.Background(), sessionID); err != nil {
		t.Fatalf("session should survive: %v", err)
	}
}

func TestUploadErrors(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "lan@example.vn")

	w := s.do(t, jsonRequest(http.MethodPost, "/api/contracts/upload", map[string]string{}), token)
	if w.Code != http.StatusBadRequest || decode(t, w)["error"] != "No file uploaded" {
		t.Fatalf("no file = %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, multipartRequest(t, "/api/contracts/upload", "file", "big.pdf", bytes.Repeat([]byte("x"), 2048)), token)
	if w.Code != http.StatusBadRequest || decode(t, w)["error"] != "File too large" {
		t.Fatalf("too large = %d %s", w.Code, w.Body.String())
	}
}

func TestUploadQuota(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "lan@example.vn")
	for i := 0; i < 3; i++ {
		w := s.do(t, multipartRequest(t, "/api/contracts/upload", "file", "a.pdf", []byte("x")), token)
		if w.Code != http.StatusOK {
			t.Fatalf("upload %d = %d", i, w.Code)
		}
	}
	w := s.do(t, multipartRequest(t, "/api/contracts/upload", "file", "a.pdf", []byte("x")), token)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/auth/usage", nil), token)
	usage := decode(t, w)
	if usage["analysesUsed"] != float64(3) || usage["remaining"] != float64(0) {
		t.Fatalf("unexpected usage %s", w.Body.String())
	}
}

func TestChatValidation(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "lan@example.vn")

	w := s.do(t, jsonRequest(http.MethodPost, "/api/contracts/chat", map[string]string{"sessionId": "x"}), token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	w = s.do(t, jsonRequest(http.MethodPost, "/api/contracts/chat", map[string]string{"sessionId": "missing", "message": "hi"}), token)
	if w.Code != http.StatusNotFound || decode(t, w)["error"] != "Session not found" {
		t.Fatalf("unknown session = %d %s", w.Code, w.Body.String())
	}
}

func TestGenerateFailureDetails(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "lan@example.vn")

	w := s.do(t, jsonRequest(http.MethodPost, "/api/contracts/generate", map[string]any{"template_id": "t1"}), token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing info = %d, want 400", w.Code)
	}
	w = s.do(t, jsonRequest(http.MethodPost, "/api/contracts/generate", map[string]any{
		"template_id": "t1", "contract_info": map[string]any{"ben_a": "Công ty A"},
	}), token)
	if w.Code != http.StatusInternalServerError || decode(t, w)["error"] != "Lỗi sinh hợp đồng từ AI" {
		t.Fatalf("generate = %d %s", w.Code, w.Body.String())
	}
}

func TestAssistAndDrafts(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "lan@example.vn")

	w := s.do(t, jsonRequest(http.MethodPost, "/api/contracts/assist", map[string]string{"prompt": "bảo mật"}), token)
	if w.Code != http.StatusOK || decode(t, w)["answer"] != "<p>Điều khoản</p>" {
		t.Fatalf("assist = %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, jsonRequest(http.MethodPost, "/api/contracts/assist", map[string]string{}), token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty prompt = %d, want 400", w.Code)
	}

	w = s.do(t, jsonRequest(http.MethodPost, "/api/contracts/drafts", map[string]any{
		"templates": []map[string]string{{"id": "d1", "name": "Nháp", "content": "<p>x</p>", "lastSaved": "now"}},
	}), token)
	if w.Code != http.StatusOK {
		t.Fatalf("drafts = %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, httptest.NewRequest(http.MethodGet, "/api/contracts/dashboard", nil), token)
	if drafts, _ := decode(t, w)["drafts"].([]any); len(drafts) != 1 {
		t.Fatalf("expected saved draft in %s", w.Body.String())
	}
}

func TestAdminUploadNeedsGroup(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "lan@example.vn")
	w := s.do(t, multipartRequest(t, "/api/admin/upload-law", "file", "luat.pdf", []byte("x")), token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestAuthDisabledProvisionsLocalUser(t *testing.T) {
	s := newTestServer(t)
	t.Setenv("AUTH_DISABLED", "true")
	t.Setenv("ENV", "local")
	s.router = NewRouter(s.svc, RouterOptions{PathPrefixes: []string{"/api"}, MaxUploadBytes: 1024})

	w := s.do(t, multipartRequest(t, "/api/admin/upload-law", "file", "luat.pdf", []byte("x")), "")
	if w.Code != http.StatusOK || !strings.HasPrefix(decode(t, w)["s3_key"].(string), "legal-corpus/original-docs/") {
		t.Fatalf("admin upload = %d %s", w.Code, w.Body.String())
	}
	if _, err := s.store.GetUser(context.Background(), "local-dev"); err != nil {
		t.Fatalf("local user not provisioned: %v", err)
	}
}
