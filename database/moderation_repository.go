package database

import (
	"context"
	"log"

	"go-rooms/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ModerationLogRepository 是 services.ModerationLogRepository 的 MongoDB 實作
// 紀錄只追加，寫入後不再更新
type ModerationLogRepository struct {
	collection *mongo.Collection
}

// NewModerationLogRepository 建立管理紀錄 repository
func NewModerationLogRepository(store *Store) *ModerationLogRepository {
	return &ModerationLogRepository{collection: store.Collection(moderationLogsCollection)}
}

// Insert 追加一筆管理紀錄
func (r *ModerationLogRepository) Insert(ctx context.Context, entry *models.ModerationLog) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(opCtx, entry)
	if err != nil {
		log.Printf("Error inserting moderation log: %v", err)
		return err
	}
	entry.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

// List 讀取聊天室的管理紀錄，新到舊
func (r *ModerationLogRepository) List(ctx context.Context, roomID primitive.ObjectID, limit, skip int) ([]models.ModerationLog, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	findOpts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(opCtx, bson.M{"roomId": roomID}, findOpts)
	if err != nil {
		log.Printf("Error listing moderation logs for room %s: %v", roomID.Hex(), err)
		return nil, err
	}
	defer cursor.Close(opCtx)

	entries := []models.ModerationLog{}
	if err := cursor.All(opCtx, &entries); err != nil {
		log.Printf("Error decoding moderation logs for room %s: %v", roomID.Hex(), err)
		return nil, err
	}
	return entries, nil
}

// Stats 以聚合管線統計各操作種類的次數
func (r *ModerationLogRepository) Stats(ctx context.Context, roomID primitive.ObjectID) (*models.ModerationStats, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"roomId": roomID}}},
		{{Key: "$group", Value: bson.M{"_id": "$action", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.collection.Aggregate(opCtx, pipeline)
	if err != nil {
		log.Printf("Error aggregating moderation stats for room %s: %v", roomID.Hex(), err)
		return nil, err
	}
	defer cursor.Close(opCtx)

	var rows []struct {
		Action models.ModerationAction `bson:"_id"`
		Count  int64                   `bson:"count"`
	}
	if err := cursor.All(opCtx, &rows); err != nil {
		log.Printf("Error decoding moderation stats for room %s: %v", roomID.Hex(), err)
		return nil, err
	}

	stats := &models.ModerationStats{ByAction: make(map[models.ModerationAction]int64, len(rows))}
	for _, row := range rows {
		stats.ByAction[row.Action] = row.Count
		stats.Total += row.Count
	}
	return stats, nil
}
