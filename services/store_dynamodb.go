package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"yuno/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

const (
	conversationsTable = "Conversations"
	messagesTable      = "Messages"
)

// dynamoAPI is the subset of *dynamodb.Client the store calls.
type dynamoAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type DynamoStore struct {
	db dynamoAPI
}

// NewDynamoDBClient builds a client for region. A non-empty endpoint points it
// at DynamoDB Local with dummy credentials.
func NewDynamoDBClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: endpoint}, nil
		})
		opts = append(opts,
			config.WithEndpointResolverWithOptions(resolver),
			config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
				Value: aws.Credentials{AccessKeyID: "dummy", SecretAccessKey: "dummy", SessionToken: "dummy"},
			}),
		)
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

func NewDynamoStore(ctx context.Context, db dynamoAPI) *DynamoStore {
	s := &DynamoStore{db: db}
	s.ensureTables(ctx)
	return s
}

func (s *DynamoStore) ensureTables(ctx context.Context) {
	tables := []*dynamodb.CreateTableInput{
		{
			TableName: aws.String(conversationsTable),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("ID"), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("ID"), KeyType: types.KeyTypeHash},
			},
			BillingMode: types.BillingModePayPerRequest,
		},
		{
			TableName: aws.String(messagesTable),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("ConversationID"), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String("CreatedAt"), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("ConversationID"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("CreatedAt"), KeyType: types.KeyTypeRange},
			},
			BillingMode: types.BillingModePayPerRequest,
		},
	}

	for _, table := range tables {
		if _, err := s.db.CreateTable(ctx, table); err != nil {
			var inUse *types.ResourceInUseException
			if !errors.As(err, &inUse) {
				slog.Warn("create table failed, assuming it exists", "table", *table.TableName, "error", err)
			}
		}
	}
}

func (s *DynamoStore) CreateConversation(ctx context.Context, userID string, mode models.Mode, title string) (models.Conversation, error) {
	ts := now()
	conversation := models.Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Mode:      mode,
		Title:     title,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	_, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(conversationsTable),
		Item: map[string]types.AttributeValue{
			"ID":        &types.AttributeValueMemberS{Value: conversation.ID},
			"UserID":    &types.AttributeValueMemberS{Value: conversation.UserID},
			"Mode":      &types.AttributeValueMemberS{Value: string(conversation.Mode)},
			"Title":     &types.AttributeValueMemberS{Value: conversation.Title},
			"CreatedAt": &types.AttributeValueMemberS{Value: formatTimestamp(conversation.CreatedAt)},
			"UpdatedAt": &types.AttributeValueMemberS{Value: formatTimestamp(conversation.UpdatedAt)},
		},
	})
	if err != nil {
		return models.Conversation{}, fmt.Errorf("put conversation: %w", err)
	}
	return conversation, nil
}

func (s *DynamoStore) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(conversationsTable),
		Key: map[string]types.AttributeValue{
			"ID": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return models.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	if len(out.Item) == 0 {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conversationFromItem(out.Item), nil
}

func (s *DynamoStore) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	input := &dynamodb.ScanInput{
		TableName:        aws.String(conversationsTable),
		FilterExpression: aws.String("UserID = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	}

	conversations := make([]models.Conversation, 0)
	for {
		out, err := s.db.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan conversations: %w", err)
		}
		for _, item := range out.Items {
			conversations = append(conversations, conversationFromItem(item))
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	sortByUpdatedDesc(conversations)
	return conversations, nil
}

func (s *DynamoStore) TouchConversation(ctx context.Context, id string) error {
	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(conversationsTable),
		Key: map[string]types.AttributeValue{
			"ID": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:    aws.String("SET UpdatedAt = :ts"),
		ConditionExpression: aws.String("attribute_exists(ID)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ts": &types.AttributeValueMemberS{Value: formatTimestamp(now())},
		},
	})
	return mapConditionFailure(err, "touch conversation")
}

func (s *DynamoStore) DeleteConversation(ctx context.Context, id string) error {
	messages, err := s.queryMessages(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(conversationsTable),
		Key: map[string]types.AttributeValue{
			"ID": &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression: aws.String("attribute_exists(ID)"),
	})
	if err := mapConditionFailure(err, "delete conversation"); err != nil {
		return err
	}

	for _, m := range messages {
		_, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(messagesTable),
			Key: map[string]types.AttributeValue{
				"ConversationID": &types.AttributeValueMemberS{Value: id},
				"CreatedAt":      &types.AttributeValueMemberS{Value: formatTimestamp(m.CreatedAt)},
			},
		})
		if err != nil {
			return fmt.Errorf("delete message %s: %w", m.ID, err)
		}
	}
	return nil
}

func (s *DynamoStore) SaveMessage(ctx context.Context, conversationID string, role models.Role, content string) (models.StoredMessage, error) {
	message := models.StoredMessage{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now(),
	}

	_, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(messagesTable),
		Item: map[string]types.AttributeValue{
			"ID":             &types.AttributeValueMemberS{Value: message.ID},
			"ConversationID": &types.AttributeValueMemberS{Value: message.ConversationID},
			"Role":           &types.AttributeValueMemberS{Value: string(message.Role)},
			"Content":        &types.AttributeValueMemberS{Value: message.Content},
			"CreatedAt":      &types.AttributeValueMemberS{Value: formatTimestamp(message.CreatedAt)},
		},
	})
	if err != nil {
		return models.StoredMessage{}, fmt.Errorf("put message: %w", err)
	}
	return message, nil
}

func (s *DynamoStore) ListMessages(ctx context.Context, conversationID string) ([]models.StoredMessage, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.queryMessages(ctx, conversationID)
}

func (s *DynamoStore) queryMessages(ctx context.Context, conversationID string) ([]models.StoredMessage, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(messagesTable),
		KeyConditionExpression: aws.String("ConversationID = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: conversationID},
		},
		ScanIndexForward: aws.Bool(true),
	}

	messages := make([]models.StoredMessage, 0)
	for {
		out, err := s.db.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query messages: %w", err)
		}
		for _, item := range out.Items {
			messages = append(messages, models.StoredMessage{
				ID:             stringAttr(item, "ID"),
				ConversationID: stringAttr(item, "ConversationID"),
				Role:           models.Role(stringAttr(item, "Role")),
				Content:        stringAttr(item, "Content"),
				CreatedAt:      timeAttr(item, "CreatedAt"),
			})
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	sortByCreatedAsc(messages)
	return messages, nil
}

func conversationFromItem(item map[string]types.AttributeValue) models.Conversation {
	return models.Conversation{
		ID:        stringAttr(item, "ID"),
		UserID:    stringAttr(item, "UserID"),
		Mode:      models.Mode(stringAttr(item, "Mode")),
		Title:     stringAttr(item, "Title"),
		CreatedAt: timeAttr(item, "CreatedAt"),
		UpdatedAt: timeAttr(item, "UpdatedAt"),
	}
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func timeAttr(item map[string]types.AttributeValue, name string) time.Time {
	ts, _ := time.Parse(time.RFC3339Nano, stringAttr(item, name))
	return ts
}

// formatTimestamp keeps sort keys lexically ordered, so nanoseconds are always printed.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func mapConditionFailure(err error, op string) error {
	if err == nil {
		return nil
	}
	var failed *types.ConditionalCheckFailedException
	if errors.As(err, &failed) {
		return ErrConversationNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
