package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"agreeme/app/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoTables names the tables and indexes DynamoStore uses.
type DynamoTables struct {
	Users              string
	Sessions           string
	Messages           string
	SessionsOwnerIndex string
	UsersEmailIndex    string
}

// DynamoStore implements Store on three DynamoDB tables:
// Users (pk user_id), ChatSessions (pk session_id, GSI on user_id), Messages (pk session_id, sk timestamp).
type DynamoStore struct {
	db     DynamoAPI
	tables DynamoTables
}

func NewDynamoStore(db DynamoAPI, tables DynamoTables) *DynamoStore {
	return &DynamoStore{db: db, tables: tables}
}

const maxUsageAttempts = 3

type messageItem struct {
	SessionID string `dynamodbav:"session_id"`
	Timestamp string `dynamodbav:"timestamp"`
	MessageID string `dynamodbav:"message_id"`
	Role      string `dynamodbav:"role"`
	Content   string `dynamodbav:"content"`
}

func userKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"user_id": &types.AttributeValueMemberS{Value: userID}}
}

func sessionKey(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"session_id": &types.AttributeValueMemberS{Value: sessionID}}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// --- users ---

func (s *DynamoStore) CreateUser(ctx context.Context, user models.User) error {
	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tables.Users),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	})
	if isConditionFailed(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (s *DynamoStore) GetUser(ctx context.Context, userID string) (models.User, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Users),
		Key:            userKey(userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	if len(out.Item) == 0 {
		return models.User{}, ErrNotFound
	}
	var u models.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return models.User{}, fmt.Errorf("unmarshal user: %w", err)
	}
	if u.Plan == "" {
		u.Plan = models.PlanFree
	}
	return u, nil
}

func (s *DynamoStore) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	if email == "" {
		return models.User{}, ErrNotFound
	}
	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Users),
		IndexName:              aws.String(s.tables.UsersEmailIndex),
		KeyConditionExpression: aws.String("email = :email"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: email},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return models.User{}, fmt.Errorf("query user by email: %w", err)
	}
	if len(out.Items) == 0 {
		return models.User{}, ErrNotFound
	}
	var hit struct {
		ID string `dynamodbav:"user_id"`
	}
	if err := attributevalue.UnmarshalMap(out.Items[0], &hit); err != nil {
		return models.User{}, fmt.Errorf("unmarshal email index item: %w", err)
	}
	// the index may project keys only
	return s.GetUser(ctx, hit.ID)
}

func (s *DynamoStore) UpdateProfile(ctx context.Context, userID string, p models.ProfileUpdate, at time.Time) (models.User, error) {
	update := expression.Set(expression.Name("updated_at"), expression.Value(at.UTC()))
	fields := []struct {
		name  string
		value *string
	}{
		{"fullName", p.FullName},
		{"phone", p.Phone},
		{"birthdate", p.Birthdate},
		{"gender", p.Gender},
		{"avatar", p.Avatar},
	}
	for _, f := range fields {
		if f.value != nil {
			update = update.Set(expression.Name(f.name), expression.Value(*f.value))
		}
	}
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return models.User{}, fmt.Errorf("build profile update: %w", err)
	}
	out, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Users),
		Key:                       userKey(userID),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return models.User{}, fmt.Errorf("update profile: %w", err)
	}
	var u models.User
	if err := attributevalue.UnmarshalMap(out.Attributes, &u); err != nil {
		return models.User{}, fmt.Errorf("unmarshal user: %w", err)
	}
	return u, nil
}

func (s *DynamoStore) SaveDrafts(ctx context.Context, userID string, drafts []models.Draft) error {
	if drafts == nil {
		drafts = []models.Draft{}
	}
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name("drafts"), expression.Value(drafts))).
		Build()
	if err != nil {
		return fmt.Errorf("build drafts update: %w", err)
	}
	_, err = s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Users),
		Key:                       userKey(userID),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("save drafts: %w", err)
	}
	return nil
}

func (s *DynamoStore) GetDrafts(ctx context.Context, userID string) ([]models.Draft, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(s.tables.Users),
		Key:                  userKey(userID),
		ProjectionExpression: aws.String("drafts"),
	})
	if err != nil {
		return nil, fmt.Errorf("get drafts: %w", err)
	}
	var holder struct {
		Drafts []models.Draft `dynamodbav:"drafts"`
	}
	if len(out.Item) > 0 {
		if err := attributevalue.UnmarshalMap(out.Item, &holder); err != nil {
			return nil, fmt.Errorf("unmarshal drafts: %w", err)
		}
	}
	if holder.Drafts == nil {
		holder.Drafts = []models.Draft{}
	}
	return holder.Drafts, nil
}

func (s *DynamoStore) setUserAttr(ctx context.Context, userID, name string, value any) error {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name(name), expression.Value(value))).
		WithCondition(expression.AttributeExists(expression.Name("user_id"))).
		Build()
	if err != nil {
		return fmt.Errorf("build %s update: %w", name, err)
	}
	_, err = s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Users),
		Key:                       userKey(userID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailed(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", name, err)
	}
	return nil
}

func (s *DynamoStore) SetPlan(ctx context.Context, userID string, plan models.Plan) error {
	return s.setUserAttr(ctx, userID, "plan", plan)
}

func (s *DynamoStore) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	return s.setUserAttr(ctx, userID, "stripe_customer_id", customerID)
}

// ConsumeAnalysis uses optimistic concurrency on the previous counter values.
func (s *DynamoStore) ConsumeAnalysis(ctx context.Context, userID string, limit int, now time.Time) (models.Usage, error) {
	for attempt := 0; attempt < maxUsageAttempts; attempt++ {
		u, err := s.GetUser(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			seed := models.User{ID: userID, Plan: models.PlanFree, CreatedAt: now.UTC(), UsagePeriodStart: models.WeekStartUTC(now)}
			if err := s.CreateUser(ctx, seed); err != nil && !errors.Is(err, ErrAlreadyExists) {
				return models.Usage{}, err
			}
			u, err = s.GetUser(ctx, userID)
		}
		if err != nil {
			return models.Usage{}, err
		}

		prevUsed, prevStart := u.AnalysesUsed, u.UsagePeriodStart
		usage, err := ApplyUsage(&u, limit, now)
		if err != nil {
			return usage, err
		}
		if u.AnalysesUsed == prevUsed && u.UsagePeriodStart.Equal(prevStart) {
			return usage, nil
		}

		usedName := expression.Name("analyses_used")
		startName := expression.Name("usage_period_start")
		cond := expression.Or(expression.AttributeNotExists(usedName), usedName.Equal(expression.Value(prevUsed))).
			And(expression.Or(expression.AttributeNotExists(startName), startName.Equal(expression.Value(prevStart))))
		update := expression.Set(usedName, expression.Value(u.AnalysesUsed)).
			Set(startName, expression.Value(u.UsagePeriodStart))
		expr, err := expression.NewBuilder().WithCondition(cond).WithUpdate(update).Build()
		if err != nil {
			return models.Usage{}, fmt.Errorf("build usage update: %w", err)
		}
		_, err = s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(s.tables.Users),
			Key:                       userKey(userID),
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		if isConditionFailed(err) {
			continue
		}
		if err != nil {
			return models.Usage{}, fmt.Errorf("update usage: %w", err)
		}
		return usage, nil
	}
	return models.Usage{}, ErrConflict
}

// --- sessions ---

func (s *DynamoStore) CreateSession(ctx context.Context, session models.Session) error {
	item, err := attributevalue.MarshalMap(SessionToItem(session))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tables.Sessions),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(session_id)"),
	})
	if isConditionFailed(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *DynamoStore) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Sessions),
		Key:       sessionKey(sessionID),
	})
	if err != nil {
		return models.Session{}, fmt.Errorf("get session: %w", err)
	}
	if len(out.Item) == 0 {
		return models.Session{}, ErrNotFound
	}
	var raw map[string]any
	if err := attributevalue.UnmarshalMap(out.Item, &raw); err != nil {
		return models.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return SessionFromItem(raw), nil
}

func (s *DynamoStore) SaveAnalysis(ctx context.Context, sessionID string, a models.Analysis, at time.Time) error {
	update := expression.Set(expression.Name("status"), expression.Value(string(models.StatusAnalyzed))).
		Set(expression.Name("summary"), expression.Value(a.Summary)).
		Set(expression.Name("risks"), expression.Value(a.RiskItems)).
		Set(expression.Name("overall_score"), expression.Value(string(a.OverallRisk))).
		Set(expression.Name("last_updated"), expression.Value(at.UTC().Format(time.RFC3339Nano))).
		Set(expression.Name("analysis_json"), expression.Value(a.Raw))
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("session_id"))).
		Build()
	if err != nil {
		return fmt.Errorf("build analysis update: %w", err)
	}
	_, err = s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Sessions),
		Key:                       sessionKey(sessionID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailed(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

// ListSessionsByOwner queries the owner index page by page, newest first.
func (s *DynamoStore) ListSessionsByOwner(ctx context.Context, userID string) ([]models.Session, error) {
	p := dynamodb.NewQueryPaginator(s.db, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Sessions),
		IndexName:              aws.String(s.tables.SessionsOwnerIndex),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	out := make([]models.Session, 0)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query sessions by owner: %w", err)
		}
		var raws []map[string]any
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &raws); err != nil {
			return nil, fmt.Errorf("unmarshal sessions: %w", err)
		}
		for _, raw := range raws {
			out = append(out, SessionFromItem(raw))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *DynamoStore) DeleteSession(ctx context.Context, sessionID, userID string) error {
	_, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tables.Sessions),
		Key:                 sessionKey(sessionID),
		ConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if isConditionFailed(err) {
		return ErrNotOwner
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// --- messages ---

func (s *DynamoStore) AppendMessage(ctx context.Context, msg models.Message) error {
	item, err := attributevalue.MarshalMap(messageItem{
		SessionID: msg.SessionID,
		Timestamp: models.FormatTimestamp(msg.Timestamp),
		MessageID: msg.ID,
		Role:      string(msg.Role),
		Content:   msg.Content,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Messages),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put message: %w", err)
	}
	return nil
}

func (s *DynamoStore) queryMessages(ctx context.Context, sessionID string, projection *string) ([]messageItem, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Messages),
		KeyConditionExpression: aws.String("session_id = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: sessionID},
		},
		ScanIndexForward: aws.Bool(true),
	}
	if projection != nil {
		in.ProjectionExpression = projection
		in.ExpressionAttributeNames = map[string]string{"#ts": "timestamp"}
	}
	p := dynamodb.NewQueryPaginator(s.db, in)
	var items []messageItem
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query messages: %w", err)
		}
		var batch []messageItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal messages: %w", err)
		}
		items = append(items, batch...)
	}
	return items, nil
}

func (s *DynamoStore) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	items, err := s.queryMessages(ctx, sessionID, nil)
	if err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(items))
	for _, it := range items {
		ts, _ := models.ParseTimestamp(it.Timestamp)
		out = append(out, models.Message{
			SessionID: it.SessionID,
			ID:        it.MessageID,
			Timestamp: ts,
			Role:      models.Role(it.Role),
			Content:   it.Content,
		})
	}
	return out, nil
}

// DeleteMessages removes the transcript in batches of 25 keys.
func (s *DynamoStore) DeleteMessages(ctx context.Context, sessionID string) error {
	items, err := s.queryMessages(ctx, sessionID, aws.String("session_id, #ts"))
	if err != nil {
		return err
	}
	const batchSize = 25
	for start := 0; start < len(items); start += batchSize {
		end := min(start+batchSize, len(items))
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, it := range items[start:end] {
			reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
				"session_id": &types.AttributeValueMemberS{Value: it.SessionID},
				"timestamp":  &types.AttributeValueMemberS{Value: it.Timestamp},
			}}})
		}
		pending := map[string][]types.WriteRequest{s.tables.Messages: reqs}
		for attempt := 0; attempt < 3 && len(pending) > 0; attempt++ {
			out, err := s.db.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("delete messages: %w", err)
			}
			pending = out.UnprocessedItems
		}
		if len(pending) > 0 {
			return fmt.Errorf("delete messages: %d unprocessed", len(pending[s.tables.Messages]))
		}
	}
	return nil
}
