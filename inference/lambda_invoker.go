package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// LambdaAPI is the subset of the Lambda client used by LambdaInvoker.
type LambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaInvoker implements Invoker with AWS Lambda.
type LambdaInvoker struct {
	client LambdaAPI
}

func NewLambdaInvoker(client LambdaAPI) *LambdaInvoker {
	return &LambdaInvoker{client: client}
}

func (l *LambdaInvoker) Invoke(ctx context.Context, function string, payload any) (*FunctionResponse, error) {
	if function == "" {
		return nil, errors.New("inference: function name not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	out, err := l.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(function),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", function, err)
	}
	if out.FunctionError != nil {
		return nil, &FunctionError{Function: function, Kind: aws.ToString(out.FunctionError), Payload: string(out.Payload)}
	}
	return DecodeResponse(out.Payload)
}

func (l *LambdaInvoker) InvokeAsync(ctx context.Context, function string, payload any) error {
	if function == "" {
		return errors.New("inference: function name not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = l.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(function),
		InvocationType: types.InvocationTypeEvent,
		Payload:        body,
	})
	if err != nil {
		return fmt.Errorf("invoke async %s: %w", function, err)
	}
	slog.InfoContext(ctx, "lambda invoked async", "function", function)
	return nil
}
