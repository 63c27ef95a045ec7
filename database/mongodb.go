package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// opTimeout 是單次資料庫往返的逾時上限
const opTimeout = 5 * time.Second

const (
	roomsCollection          = "rooms"
	messagesCollection       = "messages"
	moderationLogsCollection = "moderation_logs"
	usersCollection          = "users"
)

// Store 包住一個已連線的資料庫，repository 都從這裡取集合
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect 建立並驗證 MongoDB 連線
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, err
	}
	log.Println("Connected to MongoDB successfully!")
	return &Store{client: client, db: client.Database(dbName)}, nil
}

// Disconnect 關閉 MongoDB 連線
func (s *Store) Disconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		log.Printf("Error disconnecting from MongoDB: %v", err)
	} else {
		log.Println("Disconnected from MongoDB.")
	}
}

// EnsureIndexes 建立服務需要的索引
// 訊息內容的全文索引是搜尋主路徑；缺了它搜尋會退回 regex 備援
func (s *Store) EnsureIndexes(ctx context.Context) error {
	idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.db.Collection(messagesCollection).Indexes().CreateMany(idxCtx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "content", Value: "text"}}},
	})
	if err != nil {
		return err
	}

	_, err = s.db.Collection(roomsCollection).Indexes().CreateMany(idxCtx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "participants.userId", Value: 1}}},
		{Keys: bson.D{{Key: "roomType", Value: 1}, {Key: "lastActivity", Value: -1}}},
	})
	if err != nil {
		return err
	}

	_, err = s.db.Collection(moderationLogsCollection).Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return err
	}

	_, err = s.db.Collection(usersCollection).Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// Collection 取得指定名稱的集合
func (s *Store) Collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// Users 取得使用者集合，給身分邊界用
func (s *Store) Users() *mongo.Collection {
	return s.db.Collection(usersCollection)
}
