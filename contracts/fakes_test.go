package contracts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"agreeme/inference"
	"agreeme/store"
)

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failFor map[string]bool
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}, types: map[string]string{}, failFor: map[string]bool{}}
}

func (f *fakeObjects) Put(_ context.Context, key string, body []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = body
	f.types[key] = contentType
	return nil
}

func (f *fakeObjects) PresignGet(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[key] {
		return "", errors.New("presign unavailable")
	}
	return "https://files.example/" + key + "?sig=1", nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type fakeInvoker struct {
	resp     *inference.FunctionResponse
	err      error
	function string
	payload  any
}

func (f *fakeInvoker) Invoke(_ context.Context, function string, payload any) (*inference.FunctionResponse, error) {
	f.function, f.payload = function, payload
	return f.resp, f.err
}

func (f *fakeInvoker) InvokeAsync(context.Context, string, any) error { return nil }

type fakeCounsel struct {
	answer   string
	err      error
	question string
	context  string
}

func (f *fakeCounsel) Answer(_ context.Context, question, contractContext string) (string, error) {
	f.question, f.context = question, contractContext
	return f.answer, f.err
}

func (f *fakeCounsel) Draft(_ context.Context, request string) (string, error) {
	f.question = request
	return f.answer, f.err
}

type fakeSearch struct{ query string }

func (f *fakeSearch) LegalContext(_ context.Context, query string) string {
	f.query = query
	return "Dưới đây là các văn bản pháp luật liên quan:\n"
}

type fixture struct {
	mgr     *Manager
	store   *store.MemoryStore
	objects *fakeObjects
	invoker *fakeInvoker
	counsel *fakeCounsel
	search  *fakeSearch
}

var fixedNow = time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		store:   store.NewMemoryStore(),
		objects: newFakeObjects(),
		invoker: &fakeInvoker{},
		counsel: &fakeCounsel{answer: "Điều khoản này có rủi ro."},
		search:  &fakeSearch{},
	}
	f.mgr = NewManager(f.store, f.objects, f.invoker, f.counsel, f.search, Options{
		ReviewFunction:   "review-fn",
		GenerateFunction: "generate-fn",
	})
	tick := 0
	f.mgr.now = func() time.Time {
		tick++
		return fixedNow.Add(time.Duration(tick) * time.Millisecond)
	}
	n := 0
	f.mgr.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return f
}

func okResponse(body map[string]any) *inference.FunctionResponse {
	return &inference.FunctionResponse{StatusCode: 200, Body: body}
}
