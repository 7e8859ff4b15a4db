// Package inference calls the hosted AI functions and text models.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrEmptyResponse = errors.New("inference: empty response payload")

// Invoker runs a remote function by name.
type Invoker interface {
	// Invoke waits for the function result.
	Invoke(ctx context.Context, function string, payload any) (*FunctionResponse, error)
	// InvokeAsync queues the call and returns once it is accepted.
	InvokeAsync(ctx context.Context, function string, payload any) error
}

// FunctionResponse is a decoded function result in API Gateway proxy shape.
type FunctionResponse struct {
	StatusCode int
	Body       map[string]any
	Raw        []byte
}

// OK reports a 200 status.
func (r *FunctionResponse) OK() bool {
	return r != nil && r.StatusCode == 200
}

// FunctionError is returned when the function itself raised.
type FunctionError struct {
	Function string
	Kind     string
	Payload  string
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("function %s failed (%s): %s", e.Function, e.Kind, e.Payload)
}

// DecodeResponse decodes a function payload once. When the body field is itself a
// JSON string it is decoded a second time; any other body is final. A payload
// without statusCode counts as 200 and, without body, is the body itself.
func DecodeResponse(payload []byte) (*FunctionResponse, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyResponse
	}
	var outer map[string]any
	if err := json.Unmarshal(payload, &outer); err != nil {
		return nil, fmt.Errorf("decode function payload: %w", err)
	}
	if outer == nil {
		return nil, ErrEmptyResponse
	}

	resp := &FunctionResponse{StatusCode: 200, Raw: payload}
	if code, ok := outer["statusCode"].(float64); ok {
		resp.StatusCode = int(code)
	}

	switch body := outer["body"].(type) {
	case string:
		var inner map[string]any
		if err := json.Unmarshal([]byte(body), &inner); err != nil {
			resp.Body = map[string]any{"message": body}
		} else {
			resp.Body = inner
		}
	case map[string]any:
		resp.Body = body
	case nil:
		if _, wrapped := outer["statusCode"]; wrapped {
			resp.Body = map[string]any{}
		} else {
			resp.Body = outer
		}
	default:
		resp.Body = map[string]any{"body": body}
	}
	return resp, nil
}
