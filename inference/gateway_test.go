package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

func TestDecodeResponseDoubleEncodedBody(t *testing.T) {
	payload := []byte(`{"statusCode":200,"body":"{\"analysis\":{\"summary\":\"ok\"}}"}`)
	resp, err := DecodeResponse(payload)
	if err != nil {
		t.Fatalf("DecodeResponse error = %v", err)
	}
	if !resp.OK() {
		t.Fatalf("expected OK, got %d", resp.StatusCode)
	}
	analysis, ok := resp.Body["analysis"].(map[string]any)
	if !ok || analysis["summary"] != "ok" {
		t.Fatalf("unexpected body: %+v", resp.Body)
	}
}

func TestDecodeResponseObjectBodyIsFinal(t *testing.T) {
	resp, err := DecodeResponse([]byte(`{"statusCode":200,"body":{"contract_html":"<p>x</p>"}}`))
	if err != nil {
		t.Fatalf("DecodeResponse error = %v", err)
	}
	if resp.Body["contract_html"] != "<p>x</p>" {
		t.Fatalf("unexpected body: %+v", resp.Body)
	}
}

func TestDecodeResponseBareObject(t *testing.T) {
	resp, err := DecodeResponse([]byte(`{"analysis":{"summary":"ok"}}`))
	if err != nil {
		t.Fatalf("DecodeResponse error = %v", err)
	}
	if resp.StatusCode != 200 || resp.Body["analysis"] == nil {
		t.Fatalf("bare payload should be the body: %+v", resp)
	}
}

func TestDecodeResponseErrorStatus(t *testing.T) {
	resp, err := DecodeResponse([]byte(`{"statusCode":500,"body":"boom"}`))
	if err != nil {
		t.Fatalf("DecodeResponse error = %v", err)
	}
	if resp.OK() || resp.Body["message"] != "boom" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestDecodeResponseEmpty(t *testing.T) {
	if _, err := DecodeResponse(nil); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	if _, err := DecodeResponse([]byte("null")); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse for null, got %v", err)
	}
}

type fakeLambda struct {
	in  *lambda.InvokeInput
	out *lambda.InvokeOutput
	err error
}

func (f *fakeLambda) Invoke(_ context.Context, in *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	f.in = in
	if f.out == nil {
		f.out = &lambda.InvokeOutput{StatusCode: 202}
	}
	return f.out, f.err
}

func TestLambdaInvokerSync(t *testing.T) {
	fake := &fakeLambda{out: &lambda.InvokeOutput{Payload: []byte(`{"statusCode":200,"body":"{\"ok\":true}"}`)}}
	inv := NewLambdaInvoker(fake)

	resp, err := inv.Invoke(context.Background(), "review", map[string]string{"language": "vi"})
	if err != nil {
		t.Fatalf("Invoke error = %v", err)
	}
	if resp.Body["ok"] != true {
		t.Fatalf("unexpected body: %+v", resp.Body)
	}
	if fake.in.InvocationType != types.InvocationTypeRequestResponse {
		t.Fatalf("expected RequestResponse, got %s", fake.in.InvocationType)
	}
	var sent map[string]string
	_ = json.Unmarshal(fake.in.Payload, &sent)
	if sent["language"] != "vi" {
		t.Fatalf("payload not forwarded: %s", fake.in.Payload)
	}
}

func TestLambdaInvokerFunctionError(t *testing.T) {
	fake := &fakeLambda{out: &lambda.InvokeOutput{FunctionError: aws.String("Unhandled"), Payload: []byte(`{"errorMessage":"x"}`)}}
	_, err := NewLambdaInvoker(fake).Invoke(context.Background(), "review", nil)
	var fnErr *FunctionError
	if !errors.As(err, &fnErr) || fnErr.Kind != "Unhandled" {
		t.Fatalf("expected FunctionError, got %v", err)
	}
}

func TestLambdaInvokerAsync(t *testing.T) {
	fake := &fakeLambda{}
	if err := NewLambdaInvoker(fake).InvokeAsync(context.Background(), "ingest", map[string]string{"action": "ingest_legal_doc"}); err != nil {
		t.Fatalf("InvokeAsync error = %v", err)
	}
	if fake.in.InvocationType != types.InvocationTypeEvent {
		t.Fatalf("expected Event invocation, got %s", fake.in.InvocationType)
	}
}

type fakeBedrock struct {
	req anthropicRequest
	out []byte
}

func (f *fakeBedrock) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	_ = json.Unmarshal(in.Body, &f.req)
	return &bedrockruntime.InvokeModelOutput{Body: f.out}, nil
}

func TestBedrockGenerator(t *testing.T) {
	fake := &fakeBedrock{out: []byte(`{"content":[{"type":"text","text":"Trả lời"}]}`)}
	gen := NewBedrockGenerator(fake, "model", ChatOptions)

	got, err := gen.GenerateText(context.Background(), "sys", "question")
	if err != nil {
		t.Fatalf("GenerateText error = %v", err)
	}
	if got != "Trả lời" {
		t.Fatalf("GenerateText = %q", got)
	}
	if fake.req.AnthropicVersion != anthropicVersion || fake.req.MaxTokens != 4000 || fake.req.Temperature != 0.1 {
		t.Fatalf("unexpected request: %+v", fake.req)
	}
}

func TestOpenAICompatGenerator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" || r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"bad auth"}}`))
			return
		}
		var req oaiChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" xin chào "}}]}`))
	}))
	t.Cleanup(server.Close)

	gen := NewOpenAICompatGenerator(server.URL+"/v1/", "key", "m", DraftingOptions)
	got, err := gen.GenerateText(context.Background(), "sys", "hi")
	if err != nil || got != "xin chào" {
		t.Fatalf("GenerateText = %q, %v", got, err)
	}

	bad := NewOpenAICompatGenerator(server.URL+"/v1", "wrong", "m", DraftingOptions)
	if _, err := bad.GenerateText(context.Background(), "", "hi"); err == nil || !strings.Contains(err.Error(), "bad auth") {
		t.Fatalf("expected api error, got %v", err)
	}
}

type recordingGenerator struct {
	system, user string
}

func (r *recordingGenerator) GenerateText(_ context.Context, system, user string) (string, error) {
	r.system, r.user = system, user
	return "ok", nil
}

func TestCounselPrompts(t *testing.T) {
	chat := &recordingGenerator{}
	c := NewCounsel(chat, nil)
	if _, err := c.Answer(context.Background(), "Điều 5 là gì?", `{"summary":"x"}`); err != nil {
		t.Fatalf("Answer error = %v", err)
	}
	if !strings.Contains(chat.user, `{"summary":"x"}`) || !strings.Contains(chat.user, "Điều 5 là gì?") {
		t.Fatalf("answer prompt missing context or question: %s", chat.user)
	}
	if _, err := c.Draft(context.Background(), "điều khoản bảo mật"); err != nil {
		t.Fatalf("Draft error = %v", err)
	}
	if chat.system != draftingSystemPrompt || !strings.HasSuffix(chat.user, "điều khoản bảo mật") {
		t.Fatalf("draft prompt not routed to drafting generator: %q", chat.user)
	}
}
