package database

import (
	"context"
	"log"
	"time"

	"go-rooms/backend/models"
	"go-rooms/backend/services"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RoomRepository 是 services.RoomRepository 的 MongoDB 實作
// Room 文件是唯一的熱點共享資源，禁言／封鎖狀態一律現查、不跨請求快取
type RoomRepository struct {
	collection *mongo.Collection
}

// NewRoomRepository 建立聊天室 repository
func NewRoomRepository(store *Store) *RoomRepository {
	return &RoomRepository{collection: store.Collection(roomsCollection)}
}

// FindByID 讀取單一聊天室，不存在時回傳 (nil, nil)
func (r *RoomRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Room, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var room models.Room
	err := r.collection.FindOne(opCtx, bson.M{"_id": id}).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		log.Printf("Error finding room %s: %v", id.Hex(), err)
		return nil, err
	}
	return &room, nil
}

// Insert 新增聊天室
func (r *RoomRepository) Insert(ctx context.Context, room *models.Room) (primitive.ObjectID, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(opCtx, room)
	if err != nil {
		log.Printf("Error inserting room: %v", err)
		return primitive.NilObjectID, err
	}
	return result.InsertedID.(primitive.ObjectID), nil
}

// Replace 以整份文件寫回聊天室狀態
// 樂觀策略：同一參與者欄位的併發寫入後寫者勝，管理操作頻率低、可接受
func (r *RoomRepository) Replace(ctx context.Context, room *models.Room) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.collection.ReplaceOne(opCtx, bson.M{"_id": room.ID}, room)
	if err != nil {
		log.Printf("Error replacing room %s: %v", room.ID.Hex(), err)
	}
	return err
}

// List 列出公開且未封存的聊天室，按最近活動排序
func (r *RoomRepository) List(ctx context.Context, opts services.ListRoomsOptions) ([]models.Room, int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{"settings.isPublic": true, "isArchived": false}
	if opts.RoomType != "" {
		filter["roomType"] = opts.RoomType
	}

	total, err := r.collection.CountDocuments(opCtx, filter)
	if err != nil {
		log.Printf("Error counting rooms: %v", err)
		return nil, 0, err
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "lastActivity", Value: -1}}).
		SetSkip(int64((opts.Page - 1) * opts.Limit)).
		SetLimit(int64(opts.Limit))
	cursor, err := r.collection.Find(opCtx, filter, findOpts)
	if err != nil {
		log.Printf("Error listing rooms: %v", err)
		return nil, 0, err
	}
	defer cursor.Close(opCtx)

	rooms := []models.Room{}
	if err := cursor.All(opCtx, &rooms); err != nil {
		log.Printf("Error decoding rooms: %v", err)
		return nil, 0, err
	}
	return rooms, total, nil
}

// ListByParticipant 列出使用者參與的所有未封存聊天室
func (r *RoomRepository) ListByParticipant(ctx context.Context, userID primitive.ObjectID) ([]models.Room, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{"participants.userId": userID, "isArchived": false}
	cursor, err := r.collection.Find(opCtx, filter, options.Find().SetSort(bson.D{{Key: "lastActivity", Value: -1}}))
	if err != nil {
		log.Printf("Error listing rooms for user %s: %v", userID.Hex(), err)
		return nil, err
	}
	defer cursor.Close(opCtx)

	rooms := []models.Room{}
	if err := cursor.All(opCtx, &rooms); err != nil {
		log.Printf("Error decoding rooms for user %s: %v", userID.Hex(), err)
		return nil, err
	}
	return rooms, nil
}

// IncrementActivity 在訊息寫入後遞增計數並刷新活動時間
// 單一文件的原子更新，不需要跨文件交易
func (r *RoomRepository) IncrementActivity(ctx context.Context, roomID primitive.ObjectID, at time.Time) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(opCtx, bson.M{"_id": roomID}, bson.M{
		"$inc": bson.M{"messageCount": 1},
		"$set": bson.M{"lastActivity": at},
	})
	return err
}

// ClearMute 冪等清除單一參與者的禁言欄位
// 多個送訊請求同時判定禁言到期時會重複呼叫，結果相同
func (r *RoomRepository) ClearMute(ctx context.Context, roomID, userID primitive.ObjectID) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(opCtx,
		bson.M{"_id": roomID, "participants.userId": userID},
		bson.M{
			"$set":   bson.M{"participants.$.isMuted": false},
			"$unset": bson.M{"participants.$.mutedUntil": "", "participants.$.mutedBy": "", "participants.$.muteReason": ""},
		})
	return err
}

// SetLastRead 推進參與者的已讀游標
func (r *RoomRepository) SetLastRead(ctx context.Context, roomID, userID primitive.ObjectID, at time.Time) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(opCtx,
		bson.M{"_id": roomID, "participants.userId": userID},
		bson.M{"$set": bson.M{"participants.$.lastReadAt": at}})
	return err
}
