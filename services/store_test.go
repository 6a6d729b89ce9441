package services

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"yuno/config"
	"yuno/models"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useFakeClock makes now() advance one second per call for the duration of the test.
func useFakeClock(t *testing.T) {
	t.Helper()
	var mu sync.Mutex
	current := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	prev := now
	now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
	t.Cleanup(func() { now = prev })
}

func runStoreContract(t *testing.T, store ConversationStore) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		created, err := store.CreateConversation(ctx, "user-1", models.ModeStudy, "Algebra")
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)

		got, err := store.GetConversation(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "user-1", got.UserID)
		assert.Equal(t, models.ModeStudy, got.Mode)
		assert.Equal(t, "Algebra", got.Title)
		assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("unknown conversation", func(t *testing.T) {
		_, err := store.GetConversation(ctx, "8a3f2f5e-0000-4000-8000-000000000000")
		assert.ErrorIs(t, err, ErrConversationNotFound)
		assert.ErrorIs(t, store.TouchConversation(ctx, "8a3f2f5e-0000-4000-8000-000000000000"), ErrConversationNotFound)
		assert.ErrorIs(t, store.DeleteConversation(ctx, "8a3f2f5e-0000-4000-8000-000000000000"), ErrConversationNotFound)
		_, err = store.ListMessages(ctx, "8a3f2f5e-0000-4000-8000-000000000000")
		assert.ErrorIs(t, err, ErrConversationNotFound)
	})

	t.Run("list ordered by updated_at desc", func(t *testing.T) {
		first, err := store.CreateConversation(ctx, "user-2", models.ModeCasual, "first")
		require.NoError(t, err)
		second, err := store.CreateConversation(ctx, "user-2", models.ModeSupport, "second")
		require.NoError(t, err)
		_, err = store.CreateConversation(ctx, "someone-else", models.ModeCasual, "other")
		require.NoError(t, err)

		list, err := store.ListConversations(ctx, "user-2")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)
		assert.Equal(t, first.ID, list[1].ID)

		require.NoError(t, store.TouchConversation(ctx, first.ID))

		list, err = store.ListConversations(ctx, "user-2")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, first.ID, list[0].ID)
	})

	t.Run("list for unknown user is empty", func(t *testing.T) {
		list, err := store.ListConversations(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})

	t.Run("messages in insertion order", func(t *testing.T) {
		conversation, err := store.CreateConversation(ctx, "user-3", models.ModeEmotional, "feelings")
		require.NoError(t, err)

		_, err = store.SaveMessage(ctx, conversation.ID, models.RoleUser, "I feel tired")
		require.NoError(t, err)
		_, err = store.SaveMessage(ctx, conversation.ID, models.RoleAssistant, "That sounds hard 💙")
		require.NoError(t, err)

		messages, err := store.ListMessages(ctx, conversation.ID)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, models.RoleUser, messages[0].Role)
		assert.Equal(t, "I feel tired", messages[0].Content)
		assert.Equal(t, models.RoleAssistant, messages[1].Role)
		assert.Equal(t, "That sounds hard 💙", messages[1].Content)
	})

	t.Run("delete removes conversation and messages", func(t *testing.T) {
		conversation, err := store.CreateConversation(ctx, "user-4", models.ModeProductivity, "plan")
		require.NoError(t, err)
		_, err = store.SaveMessage(ctx, conversation.ID, models.RoleUser, "help me plan")
		require.NoError(t, err)

		require.NoError(t, store.DeleteConversation(ctx, conversation.ID))

		_, err = store.GetConversation(ctx, conversation.ID)
		assert.ErrorIs(t, err, ErrConversationNotFound)
		list, err := store.ListConversations(ctx, "user-4")
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestMemoryStore(t *testing.T) {
	useFakeClock(t)
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_SaveMessageUnknownConversation(t *testing.T) {
	_, err := NewMemoryStore().SaveMessage(context.Background(), "missing", models.RoleUser, "hi")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestDynamoStore(t *testing.T) {
	useFakeClock(t)
	fake := newFakeDynamo()

	store := NewDynamoStore(context.Background(), fake)

	assert.ElementsMatch(t, []string{conversationsTable, messagesTable}, fake.createdTables)
	runStoreContract(t, store)
}

func TestPostgresStore(t *testing.T) {
	uri := os.Getenv("YUNO_TEST_POSTGRES_URI")
	if uri == "" {
		t.Skip("YUNO_TEST_POSTGRES_URI not set")
	}
	useFakeClock(t)

	store, err := NewPostgresStore(context.Background(), uri)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runStoreContract(t, store)
}

func TestWithSSLMode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@localhost/db", "postgres://u:p@localhost/db?sslmode=disable"},
		{"postgres://u:p@localhost/db?connect_timeout=5", "postgres://u:p@localhost/db?connect_timeout=5&sslmode=disable"},
		{"postgres://u:p@localhost/db?sslmode=require", "postgres://u:p@localhost/db?sslmode=require"},
		{"host=localhost dbname=yuno", "host=localhost dbname=yuno sslmode=disable"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, withSSLMode(tt.in))
	}
}

// fakeDynamo understands exactly the expressions DynamoStore issues.
type fakeDynamo struct {
	mu            sync.Mutex
	createdTables []string
	conversations map[string]map[string]types.AttributeValue
	messages      map[string][]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		conversations: make(map[string]map[string]types.AttributeValue),
		messages:      make(map[string][]map[string]types.AttributeValue),
	}
}

func attrS(item map[string]types.AttributeValue, name string) string {
	return stringAttr(item, name)
}

func (f *fakeDynamo) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdTables = append(f.createdTables, *in.TableName)
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch *in.TableName {
	case conversationsTable:
		f.conversations[attrS(in.Item, "ID")] = in.Item
	case messagesTable:
		cid := attrS(in.Item, "ConversationID")
		f.messages[cid] = append(f.messages[cid], in.Item)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.conversations[attrS(in.Key, "ID")]}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.conversations[attrS(in.Key, "ID")]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	updated := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		updated[k] = v
	}
	updated["UpdatedAt"] = in.ExpressionAttributeValues[":ts"]
	f.conversations[attrS(in.Key, "ID")] = updated
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch *in.TableName {
	case conversationsTable:
		id := attrS(in.Key, "ID")
		if _, ok := f.conversations[id]; !ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
		delete(f.conversations, id)
	case messagesTable:
		cid := attrS(in.Key, "ConversationID")
		kept := f.messages[cid][:0]
		for _, m := range f.messages[cid] {
			if attrS(m, "CreatedAt") != attrS(in.Key, "CreatedAt") {
				kept = append(kept, m)
			}
		}
		f.messages[cid] = kept
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cid := attrS(in.ExpressionAttributeValues, ":cid")
	items := append([]map[string]types.AttributeValue(nil), f.messages[cid]...)
	return &dynamodb.QueryOutput{Items: items}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid := attrS(in.ExpressionAttributeValues, ":uid")
	var items []map[string]types.AttributeValue
	for _, item := range f.conversations {
		if attrS(item, "UserID") == uid {
			items = append(items, item)
		}
	}
	return &dynamodb.ScanOutput{Items: items}, nil
}

func TestOpenStore(t *testing.T) {
	store, closeFn, err := OpenStore(context.Background(), config.Config{StoreBackend: config.StoreMemory})
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &MemoryStore{}, store)

	_, _, err = OpenStore(context.Background(), config.Config{StoreBackend: config.StorePostgres})
	assert.Error(t, err)

	_, _, err = OpenStore(context.Background(), config.Config{StoreBackend: "cassandra"})
	assert.Error(t, err)
}
