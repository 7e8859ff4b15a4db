package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agreeme/app/models"

	"github.com/lib/pq"
)

// PostgresStore implements Store on Postgres through lib/pq.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects and pings the database.
func OpenPostgres(ctx context.Context, username, password, host, port, database string) (*sql.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=prefer", username, password, host, port, database)
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := d.PingContext(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return d, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id            TEXT PRIMARY KEY,
		email              TEXT UNIQUE,
		password_hash      TEXT,
		plan               TEXT NOT NULL DEFAULT 'free',
		full_name          TEXT NOT NULL DEFAULT '',
		phone              TEXT NOT NULL DEFAULT '',
		birthdate          TEXT NOT NULL DEFAULT '',
		gender             TEXT NOT NULL DEFAULT '',
		avatar             TEXT NOT NULL DEFAULT '',
		drafts             JSONB NOT NULL DEFAULT '[]',
		stripe_customer_id TEXT,
		analyses_used      INT NOT NULL DEFAULT 0,
		usage_period_start TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		session_id    TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		file_name     TEXT NOT NULL,
		s3_key        TEXT NOT NULL,
		file_type     TEXT NOT NULL DEFAULT '',
		origin        TEXT NOT NULL DEFAULT 'upload',
		status        TEXT NOT NULL,
		summary       TEXT NOT NULL DEFAULT '',
		risks         JSONB,
		overall_score TEXT NOT NULL DEFAULT '',
		analysis_json JSONB,
		created_at    TIMESTAMPTZ NOT NULL,
		last_updated  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_user_id_idx ON sessions (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS messages (
		session_id TEXT NOT NULL,
		ts         TIMESTAMPTZ NOT NULL,
		message_id TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		PRIMARY KEY (session_id, ts, message_id)
	)`,
}

// EnsureSchema creates the tables when they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// --- users ---

const userColumns = `user_id, COALESCE(email, ''), COALESCE(password_hash, ''), plan, full_name, phone,
	birthdate, gender, avatar, drafts, COALESCE(stripe_customer_id, ''), analyses_used,
	usage_period_start, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		u       models.User
		drafts  []byte
		updated sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Plan, &u.FullName, &u.Phone,
		&u.Birthdate, &u.Gender, &u.Avatar, &drafts, &u.StripeCustomerID, &u.AnalysesUsed,
		&u.UsagePeriodStart, &u.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	if len(drafts) > 0 {
		if err := json.Unmarshal(drafts, &u.Drafts); err != nil {
			return models.User{}, fmt.Errorf("decode drafts: %w", err)
		}
	}
	if updated.Valid {
		u.UpdatedAt = updated.Time
	}
	return u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u models.User) error {
	if u.Plan == "" {
		u.Plan = models.PlanFree
	}
	if u.UsagePeriodStart.IsZero() {
		u.UsagePeriodStart = models.WeekStartUTC(u.CreatedAt)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, email, password_hash, plan, full_name, created_at, usage_period_start)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`, u.ID, nullIfEmpty(u.Email), nullIfEmpty(u.PasswordHash), u.Plan, u.FullName, u.CreatedAt, u.UsagePeriodStart)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, userID string) (models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1;`, userID))
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1);`, email))
}

// UpdateProfile upserts: an unknown user id gets a free account holding the update.
func (s *PostgresStore) UpdateProfile(ctx context.Context, userID string, p models.ProfileUpdate, at time.Time) (models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		INSERT INTO users (user_id, full_name, phone, birthdate, gender, avatar, created_at, updated_at)
		VALUES ($1, COALESCE($2::text, ''), COALESCE($3::text, ''), COALESCE($4::text, ''),
			COALESCE($5::text, ''), COALESCE($6::text, ''), $7, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			full_name  = COALESCE($2::text, users.full_name),
			phone      = COALESCE($3::text, users.phone),
			birthdate  = COALESCE($4::text, users.birthdate),
			gender     = COALESCE($5::text, users.gender),
			avatar     = COALESCE($6::text, users.avatar),
			updated_at = $7
		RETURNING `+userColumns+`;
	`, userID, p.FullName, p.Phone, p.Birthdate, p.Gender, p.Avatar, at))
}

func (s *PostgresStore) SaveDrafts(ctx context.Context, userID string, drafts []models.Draft) error {
	if drafts == nil {
		drafts = []models.Draft{}
	}
	raw, err := json.Marshal(drafts)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, drafts) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET drafts = EXCLUDED.drafts;
	`, userID, raw)
	return err
}

func (s *PostgresStore) GetDrafts(ctx context.Context, userID string) ([]models.Draft, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT drafts FROM users WHERE user_id = $1;`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []models.Draft{}, nil
	}
	if err != nil {
		return nil, err
	}
	drafts := []models.Draft{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &drafts); err != nil {
			return nil, fmt.Errorf("decode drafts: %w", err)
		}
	}
	return drafts, nil
}

func (s *PostgresStore) SetPlan(ctx context.Context, userID string, plan models.Plan) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET plan = $1 WHERE user_id = $2;`, plan, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET stripe_customer_id = $1 WHERE user_id = $2;`, customerID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ConsumeAnalysis runs in a serializable transaction with the row locked.
func (s *PostgresStore) ConsumeAnalysis(ctx context.Context, userID string, limit int, now time.Time) (models.Usage, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return models.Usage{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (user_id, plan, analyses_used, usage_period_start, created_at)
		VALUES ($1, $2, 0, $3, $4)
		ON CONFLICT (user_id) DO NOTHING;
	`, userID, models.PlanFree, models.WeekStartUTC(now), now); err != nil {
		return models.Usage{}, err
	}

	var u models.User
	err = tx.QueryRowContext(ctx, `
		SELECT plan, analyses_used, usage_period_start
		FROM users
		WHERE user_id = $1
		FOR UPDATE;
	`, userID).Scan(&u.Plan, &u.AnalysesUsed, &u.UsagePeriodStart)
	if err != nil {
		return models.Usage{}, err
	}

	usage, err := ApplyUsage(&u, limit, now)
	if err != nil {
		return usage, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET analyses_used = $1, usage_period_start = $2
		WHERE user_id = $3;
	`, u.AnalysesUsed, u.UsagePeriodStart, userID); err != nil {
		return models.Usage{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Usage{}, err
	}
	return usage, nil
}

// --- sessions ---

func marshalNullableJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess models.Session) error {
	risks, err := marshalNullableJSON(sess.Risks)
	if err != nil {
		return err
	}
	analysis, err := marshalNullableJSON(sess.AnalysisJSON)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, file_name, s3_key, file_type, origin, status,
			summary, risks, overall_score, analysis_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
	`, sess.ID, sess.UserID, sess.FileName, sess.StorageKey, sess.FileType, sess.Origin, sess.Status,
		sess.Summary, risks, sess.OverallScore, analysis, sess.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

const sessionColumns = `session_id, user_id, file_name, s3_key, file_type, origin, status, summary,
	risks, overall_score, analysis_json, created_at, last_updated`

func scanSession(row rowScanner) (models.Session, error) {
	var (
		sess     models.Session
		risks    []byte
		analysis []byte
		updated  sql.NullTime
	)
	err := row.Scan(&sess.ID, &sess.UserID, &sess.FileName, &sess.StorageKey, &sess.FileType, &sess.Origin,
		&sess.Status, &sess.Summary, &risks, &sess.OverallScore, &analysis, &sess.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrNotFound
	}
	if err != nil {
		return models.Session{}, err
	}
	if len(risks) > 0 {
		if err := json.Unmarshal(risks, &sess.Risks); err != nil {
			return models.Session{}, fmt.Errorf("decode risks: %w", err)
		}
	}
	if len(analysis) > 0 {
		if err := json.Unmarshal(analysis, &sess.AnalysisJSON); err != nil {
			return models.Session{}, fmt.Errorf("decode analysis: %w", err)
		}
	}
	if updated.Valid {
		sess.LastUpdated = updated.Time
	}
	return sess, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = $1;`, sessionID))
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, sessionID string, a models.Analysis, at time.Time) error {
	risks, err := json.Marshal(a.RiskItems)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(a.Raw)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = $1, summary = $2, risks = $3, overall_score = $4, last_updated = $5, analysis_json = $6
		WHERE session_id = $7;
	`, models.StatusAnalyzed, a.Summary, risks, a.OverallRisk, at, raw, sessionID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PostgresStore) ListSessionsByOwner(ctx context.Context, userID string) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at DESC;
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = $1 AND user_id = $2;`, sessionID, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotOwner
	}
	return nil
}

// --- messages ---

func (s *PostgresStore) AppendMessage(ctx context.Context, msg models.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (session_id, ts, message_id, role, content)
		VALUES ($1, $2, $3, $4, $5);
	`, msg.SessionID, msg.Timestamp, msg.ID, msg.Role, msg.Content)
	return err
}

func (s *PostgresStore) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, message_id, ts, role, content
		FROM messages
		WHERE session_id = $1
		ORDER BY ts ASC, message_id ASC;
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.SessionID, &m.ID, &m.Timestamp, &m.Role, &m.Content); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteMessages(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = $1;`, sessionID)
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
