package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Logs      LogConfig
	Server    ServerConfig
	AWSRegion string
	Storage   StorageConfig
	Records   RecordConfig
	DB        PostgresConfig
	Inference InferenceConfig
	Search    SearchConfig
	Auth      AuthConfig
	Queue     QueueConfig
	Redis     RedisConfig
	Stripe    StripeConfig
	Limits    LimitConfig
}

type LogConfig struct {
	Style string
	Level string
}

type ServerConfig struct {
	Port         string
	PathPrefixes []string
}

type StorageConfig struct {
	Backend        string // "s3" or "minio"
	Bucket         string
	URLExpiry      time.Duration
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
}

type RecordConfig struct {
	Backend            string // "dynamodb", "postgres" or "memory"
	UsersTable         string
	SessionsTable      string
	MessagesTable      string
	SessionsOwnerIndex string
	UsersEmailIndex    string
}

type PostgresConfig struct {
	Username string
	Password string
	URL      string
	Port     string
	Database string
}

type InferenceConfig struct {
	ReviewFunction   string
	GenerateFunction string
	IngestFunction   string
	ChatProvider     string // "bedrock" or "openai"
	BedrockModelID   string
	OpenAIBaseURL    string
	OpenAIKey        string
	OpenAIModel      string
}

type SearchConfig struct {
	URL     string
	TopK    int
	Timeout time.Duration
}

type AuthConfig struct {
	CognitoRegion     string
	CognitoUserPoolID string
	CognitoClientID   string
	JWTSecret         string
	TokenTTL          time.Duration
	AdminGroup        string
}

type QueueConfig struct {
	IngestQueueURL string
}

type RedisConfig struct {
	Addr            string
	Password        string
	ChatPerMinute   int
	UploadPerMinute int
	NewsCacheTTL    time.Duration
}

type StripeConfig struct {
	SecretKey         string
	WebhookSecret     string
	PriceIDProMonthly string
	FrontendURL       string
}

type LimitConfig struct {
	MaxUploadBytes int64
	// FreeWeeklyAnalyses caps uploads per week for free users. 0 disables the gate.
	FreeWeeklyAnalyses int
}

// MaxUploadBytes is the largest document accepted for analysis (4.5 MiB).
const MaxUploadBytes = 4*1024*1024 + 512*1024

func LoadConfig() (*Config, error) {
	searchTimeout, err := envDuration("RAG_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	urlExpiry, err := envDuration("PRESIGN_EXPIRY", time.Hour)
	if err != nil {
		return nil, err
	}
	tokenTTL, err := envDuration("JWT_TTL", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}
	newsTTL, err := envDuration("NEWS_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	topK, err := envInt("RAG_TOP_K", 5)
	if err != nil {
		return nil, err
	}
	chatPerMinute, err := envInt("RATE_LIMIT_CHAT_PER_MINUTE", 20)
	if err != nil {
		return nil, err
	}
	uploadPerMinute, err := envInt("RATE_LIMIT_UPLOAD_PER_MINUTE", 5)
	if err != nil {
		return nil, err
	}
	freeWeekly, err := envInt("FREE_WEEKLY_ANALYSES", 0)
	if err != nil {
		return nil, err
	}
	minioSSL, err := envBool("MINIO_USE_SSL", false)
	if err != nil {
		return nil, err
	}

	region := envOr("AWS_REGION", "ap-southeast-1")
	generateFn := os.Getenv("LAMBDA_GENERATE_ARN")
	if generateFn == "" {
		generateFn = os.Getenv("LAMBDA_TEMPLATE_ARN")
	}

	cfg := &Config{
		Logs: LogConfig{
			Style: os.Getenv("LOG_STYLE"),
			Level: os.Getenv("LOG_LEVEL"),
		},
		Server: ServerConfig{
			Port:         envOr("PORT", "8080"),
			PathPrefixes: splitList(envOr("API_PREFIXES", "/api,/dev/api,/prod/api")),
		},
		AWSRegion: region,
		Storage: StorageConfig{
			Backend:        strings.ToLower(envOr("STORAGE_BACKEND", "s3")),
			Bucket:         os.Getenv("S3_BUCKET_RAW"),
			URLExpiry:      urlExpiry,
			MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
			MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinioUseSSL:    minioSSL,
		},
		Records: RecordConfig{
			Backend:            strings.ToLower(envOr("RECORD_BACKEND", "dynamodb")),
			UsersTable:         envOr("DYNAMO_TABLE_USERS", "Users"),
			SessionsTable:      envOr("DYNAMO_TABLE_SESSIONS", "ChatSessions"),
			MessagesTable:      envOr("DYNAMO_TABLE_MESSAGES", "Messages"),
			SessionsOwnerIndex: envOr("DYNAMO_SESSIONS_OWNER_INDEX", "user_id-index"),
			UsersEmailIndex:    envOr("DYNAMO_USERS_EMAIL_INDEX", "email-index"),
		},
		DB: PostgresConfig{
			Username: os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PWD"),
			URL:      os.Getenv("POSTGRES_URL"),
			Port:     envOr("POSTGRES_PORT", "5432"),
			Database: envOr("POSTGRES_DB", "agreeme"),
		},
		Inference: InferenceConfig{
			ReviewFunction:   os.Getenv("LAMBDA_REVIEW_ARN"),
			GenerateFunction: generateFn,
			IngestFunction:   envOr("LAMBDA_INGEST_ARN", os.Getenv("LAMBDA_TEMPLATE_ARN")),
			ChatProvider:     strings.ToLower(envOr("CHAT_PROVIDER", "bedrock")),
			BedrockModelID:   envOr("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
			OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
			OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:      os.Getenv("OPENAI_MODEL"),
		},
		Search: SearchConfig{
			URL:     os.Getenv("RAG_API_URL"),
			TopK:    topK,
			Timeout: searchTimeout,
		},
		Auth: AuthConfig{
			CognitoRegion:     envOr("COGNITO_REGION", region),
			CognitoUserPoolID: os.Getenv("COGNITO_USER_POOL_ID"),
			CognitoClientID:   os.Getenv("COGNITO_CLIENT_ID"),
			JWTSecret:         os.Getenv("JWT_SECRET"),
			TokenTTL:          tokenTTL,
			AdminGroup:        envOr("ADMIN_GROUP", "admin"),
		},
		Queue: QueueConfig{
			IngestQueueURL: os.Getenv("INGEST_QUEUE_URL"),
		},
		Redis: RedisConfig{
			Addr:            os.Getenv("REDIS_ADDR"),
			Password:        os.Getenv("REDIS_PASSWORD"),
			ChatPerMinute:   chatPerMinute,
			UploadPerMinute: uploadPerMinute,
			NewsCacheTTL:    newsTTL,
		},
		Stripe: StripeConfig{
			SecretKey:         os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret:     os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PriceIDProMonthly: os.Getenv("STRIPE_PRICE_ID_PRO_MONTHLY"),
			FrontendURL:       os.Getenv("FRONTEND_URL"),
		},
		Limits: LimitConfig{
			MaxUploadBytes:     MaxUploadBytes,
			FreeWeeklyAnalyses: freeWeekly,
		},
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("converting %s to int: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
