package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"agreeme/app"
	"agreeme/app/config"
	"agreeme/corpus"
	"agreeme/inference"
	"agreeme/queue"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	app.InitLogger(cfg.Logs)

	if cfg.Queue.IngestQueueURL == "" || cfg.Inference.IngestFunction == "" {
		slog.Error("INGEST_QUEUE_URL and LAMBDA_INGEST_ARN are required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		slog.Error("failed to load aws config", "error", err)
		os.Exit(1)
	}

	ingest := corpus.NewService(nil, nil, inference.NewLambdaInvoker(lambda.NewFromConfig(awsCfg)), cfg.Inference.IngestFunction)
	consumer := queue.NewConsumer(sqs.NewFromConfig(awsCfg), cfg.Queue.IngestQueueURL, ingest.HandleIngest)
	if err := consumer.Run(ctx); err != nil {
		slog.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("worker shut down")
}
