package main

import (
	"context"
	"log/slog"
	"os"

	"agreeme/app"
	"agreeme/app/config"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
)

var ginLambda *ginadapter.GinLambda

// init runs once per Lambda container (cold start)
func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	app.InitLogger(cfg.Logs)

	// Connections live for the container, so cleanup is never called.
	svc, _, err := app.Build(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	router := app.NewRouter(svc, app.RouterOptions{
		PathPrefixes:   cfg.Server.PathPrefixes,
		MaxUploadBytes: cfg.Limits.MaxUploadBytes,
		AdminGroup:     cfg.Auth.AdminGroup,
	})
	ginLambda = ginadapter.New(router)
}

// Handler is the Lambda entrypoint for API Gateway REST/HTTP API (proxy integration)
func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(Handler)
}
