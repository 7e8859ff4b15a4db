package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"agreeme/accounts"
	"agreeme/app/config"
	"agreeme/auth"
	"agreeme/billing"
	"agreeme/contracts"
	"agreeme/corpus"
	"agreeme/inference"
	"agreeme/news"
	"agreeme/queue"
	"agreeme/ratelimit"
	"agreeme/search"
	"agreeme/storage"
	"agreeme/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
)

// Services holds everything the router dispatches to. Optional features are nil
// when not configured.
type Services struct {
	Contracts *contracts.Manager
	Accounts  *accounts.Service
	Corpus    *corpus.Service
	News      *news.Feed
	Billing   *billing.Service

	Verifiers     []auth.TokenVerifier
	ChatLimiter   *ratelimit.FixedWindowLimiter
	UploadLimiter *ratelimit.FixedWindowLimiter
}

// Build connects every backend named by cfg. The returned func releases them.
func Build(ctx context.Context, cfg *config.Config) (*Services, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Services, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return fail(fmt.Errorf("load aws config: %w", err))
	}

	objects, err := NewObjectStore(ctx, cfg.Storage, awsCfg)
	if err != nil {
		return fail(err)
	}

	records, db, err := NewRecordStore(ctx, cfg, awsCfg)
	if err != nil {
		return fail(err)
	}
	if db != nil {
		closers = append(closers, func() { _ = db.Close() })
	}

	chat, drafting := newGenerators(cfg.Inference, awsCfg)
	invoker := inference.NewLambdaInvoker(lambda.NewFromConfig(awsCfg))
	manager := contracts.NewManager(
		records,
		objects,
		invoker,
		inference.NewCounsel(chat, drafting),
		search.NewClient(cfg.Search.URL, cfg.Search.TopK, cfg.Search.Timeout),
		contracts.Options{
			ReviewFunction:     cfg.Inference.ReviewFunction,
			GenerateFunction:   cfg.Inference.GenerateFunction,
			MaxUploadBytes:     cfg.Limits.MaxUploadBytes,
			FreeWeeklyAnalyses: cfg.Limits.FreeWeeklyAnalyses,
		},
	)

	svc := &Services{Contracts: manager}

	var tokens accounts.TokenIssuer
	if cfg.Auth.JWTSecret != "" {
		local, err := auth.NewLocalTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if err != nil {
			return fail(err)
		}
		tokens = local
		svc.Verifiers = append(svc.Verifiers, local)
	}
	if cfg.Auth.CognitoUserPoolID != "" {
		cognito, err := auth.NewCognitoVerifier(cfg.Auth.CognitoRegion, cfg.Auth.CognitoUserPoolID, cfg.Auth.CognitoClientID)
		if err != nil {
			return fail(fmt.Errorf("cognito verifier: %w", err))
		}
		svc.Verifiers = append(svc.Verifiers, cognito)
	}
	if len(svc.Verifiers) == 0 && !auth.AuthDisabled() {
		return fail(fmt.Errorf("no token verifier configured: set COGNITO_USER_POOL_ID or JWT_SECRET"))
	}
	svc.Accounts = accounts.NewService(records, objects, tokens, cfg.Limits.FreeWeeklyAnalyses)

	var rdb redis.UniversalClient
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		closers = append(closers, func() { _ = client.Close() })
		rdb = client
		if svc.ChatLimiter, err = ratelimit.NewFixedWindowLimiter(rdb, "agreeme:rl:chat", cfg.Redis.ChatPerMinute, time.Minute); err != nil {
			return fail(err)
		}
		if svc.UploadLimiter, err = ratelimit.NewFixedWindowLimiter(rdb, "agreeme:rl:upload", cfg.Redis.UploadPerMinute, time.Minute); err != nil {
			return fail(err)
		}
	} else {
		slog.Warn("REDIS_ADDR not set: rate limiting and news cache disabled")
	}
	svc.News = news.NewFeed(news.NewScraper(nil, news.DefaultSources, news.DefaultPinned), rdb, cfg.Redis.NewsCacheTTL)

	var jobs corpus.JobPublisher
	if cfg.Queue.IngestQueueURL != "" {
		jobs = queue.NewPublisher(sqs.NewFromConfig(awsCfg), cfg.Queue.IngestQueueURL)
	}
	svc.Corpus = corpus.NewService(objects, jobs, invoker, cfg.Inference.IngestFunction)

	if cfg.Stripe.SecretKey != "" {
		svc.Billing = billing.NewService(records, billing.NewStripeClient(cfg.Stripe.SecretKey), billing.Options{
			PriceIDProMonthly: cfg.Stripe.PriceIDProMonthly,
			FrontendURL:       cfg.Stripe.FrontendURL,
			WebhookSecret:     cfg.Stripe.WebhookSecret,
		})
	}

	return svc, cleanup, nil
}

// NewObjectStore returns the S3 or MinIO backend selected by cfg.
func NewObjectStore(ctx context.Context, cfg config.StorageConfig, awsCfg aws.Config) (storage.ObjectStore, error) {
	switch cfg.Backend {
	case "minio":
		return storage.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.Bucket, cfg.MinioUseSSL, cfg.URLExpiry)
	case "s3", "":
		return storage.NewS3Store(awsCfg, cfg.Bucket, cfg.URLExpiry)
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Backend)
	}
}

// NewRecordStore returns the record backend selected by cfg. The *sql.DB is non-nil
// for Postgres and must be closed by the caller.
func NewRecordStore(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (store.Store, *sql.DB, error) {
	switch cfg.Records.Backend {
	case "postgres":
		db, err := store.OpenPostgres(ctx, cfg.DB.Username, cfg.DB.Password, cfg.DB.URL, cfg.DB.Port, cfg.DB.Database)
		if err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		slog.Info("connected to postgres", "host", cfg.DB.URL)
		return pg, db, nil
	case "memory":
		slog.Warn("using in-memory record store; data is lost on restart")
		return store.NewMemoryStore(), nil, nil
	case "dynamodb", "":
		return store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), store.DynamoTables{
			Users:              cfg.Records.UsersTable,
			Sessions:           cfg.Records.SessionsTable,
			Messages:           cfg.Records.MessagesTable,
			SessionsOwnerIndex: cfg.Records.SessionsOwnerIndex,
			UsersEmailIndex:    cfg.Records.UsersEmailIndex,
		}), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown RECORD_BACKEND %q", cfg.Records.Backend)
	}
}

func newGenerators(cfg config.InferenceConfig, awsCfg aws.Config) (chat, drafting inference.TextGenerator) {
	if cfg.ChatProvider == "openai" {
		return inference.NewOpenAICompatGenerator(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.OpenAIModel, inference.ChatOptions),
			inference.NewOpenAICompatGenerator(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.OpenAIModel, inference.DraftingOptions)
	}
	client := bedrockruntime.NewFromConfig(awsCfg)
	return inference.NewBedrockGenerator(client, cfg.BedrockModelID, inference.ChatOptions),
		inference.NewBedrockGenerator(client, cfg.BedrockModelID, inference.DraftingOptions)
}
