package live

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"brightfold/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal("failed to connect database")
	}
	db.AutoMigrate(&models.Conversation{}, &models.Message{})
	return db
}

func createTestMessage(db *gorm.DB, convID int, sender string, ts time.Time) *models.Message {
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Sender:         sender,
		Content:        "hello",
		Kind:           models.MessageText,
		Timestamp:      ts,
	}
	db.Create(msg)
	return msg
}

func TestGormStore_QueryFiltersAndOrders(t *testing.T) {
	db := setupTestDB(t)
	store := NewGormStore(db)

	now := time.Now()
	createTestMessage(db, 1, "a@example.com", now.Add(2*time.Second))
	createTestMessage(db, 1, "a@example.com", now)
	createTestMessage(db, 2, "b@example.com", now.Add(time.Second))

	docs, err := store.Query(Spec{
		Collection: "messages",
		Filters:    map[string]any{"conversation_id": 1},
		OrderBy:    "timestamp",
	})

	assert.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestGormStore_SubscribeDeliversInitialAndOnTouch(t *testing.T) {
	db := setupTestDB(t)
	store := NewGormStore(db)

	createTestMessage(db, 1, "a@example.com", time.Now())

	var batches [][]Document
	unsub, err := store.Subscribe(Spec{
		Collection: "messages",
		Filters:    map[string]any{"conversation_id": 1},
		OrderBy:    "timestamp",
	}, func(docs []Document) {
		batches = append(batches, docs)
	}, func(err error) {
		t.Fatalf("unexpected store error: %v", err)
	})
	assert.NoError(t, err)
	defer unsub()

	assert.Len(t, batches, 1)
	assert.Len(t, batches[0], 1)

	createTestMessage(db, 1, "a@example.com", time.Now())
	store.Touch("messages")

	assert.Len(t, batches, 2)
	assert.Len(t, batches[1], 2)
}

func TestGormStore_UnsubscribeStopsDeliveries(t *testing.T) {
	db := setupTestDB(t)
	store := NewGormStore(db)

	deliveries := 0
	unsub, err := store.Subscribe(Spec{Collection: "messages"},
		func(docs []Document) { deliveries++ },
		func(err error) {})
	assert.NoError(t, err)
	assert.Equal(t, 1, deliveries)

	unsub()
	store.Touch("messages")
	assert.Equal(t, 1, deliveries)
}

func TestSortByField_Timestamps(t *testing.T) {
	now := time.Now()
	docs := []Document{
		{"id": 3, "timestamp": now.Add(2 * time.Second)},
		{"id": 1, "timestamp": now},
		{"id": 2, "timestamp": now.Add(time.Second)},
	}

	SortByField(docs, "timestamp")

	assert.Equal(t, 1, docs[0]["id"])
	assert.Equal(t, 2, docs[1]["id"])
	assert.Equal(t, 3, docs[2]["id"])
}
