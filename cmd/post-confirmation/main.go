// Command post-confirmation is the Cognito post-confirmation trigger. It creates the
// account record for a newly confirmed user.
package main

import (
	"context"
	"log/slog"
	"os"

	"agreeme/accounts"
	"agreeme/app"
	"agreeme/app/config"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

const confirmSignUp = "PostConfirmation_ConfirmSignUp"

var users *accounts.Service

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	app.InitLogger(cfg.Logs)

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		slog.Error("failed to load aws config", "error", err)
		os.Exit(1)
	}
	records, _, err := app.NewRecordStore(ctx, cfg, awsCfg)
	if err != nil {
		slog.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	users = accounts.NewService(records, nil, nil, cfg.Limits.FreeWeeklyAnalyses)
}

// Handler never fails the sign-up: provisioning errors are logged and the event returned.
func Handler(ctx context.Context, event events.CognitoEventUserPoolsPostConfirmation) (events.CognitoEventUserPoolsPostConfirmation, error) {
	if event.TriggerSource != confirmSignUp {
		return event, nil
	}
	attrs := event.Request.UserAttributes
	if err := users.EnsureUser(ctx, attrs["sub"], attrs["email"], attrs["name"]); err != nil {
		slog.ErrorContext(ctx, "user sync failed", "sub", attrs["sub"], "error", err)
		return event, nil
	}
	slog.InfoContext(ctx, "user synced", "email", attrs["email"])
	return event, nil
}

func main() {
	lambda.Start(Handler)
}
