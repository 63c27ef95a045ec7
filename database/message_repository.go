package database

import (
	"context"
	"errors"
	"log"
	"regexp"
	"time"

	"go-rooms/backend/apperr"
	"go-rooms/backend/models"
	"go-rooms/backend/services"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB 在查詢缺少必要索引時回報的 command error code (IndexNotFound)
const mongoIndexNotFound = 27

// MessageRepository 是 services.MessageRepository 的 MongoDB 實作
// 訊息日誌以追加為主，軟刪除的文件永不實體移除
type MessageRepository struct {
	collection *mongo.Collection
}

// NewMessageRepository 建立訊息 repository
func NewMessageRepository(store *Store) *MessageRepository {
	return &MessageRepository{collection: store.Collection(messagesCollection)}
}

// Insert 寫入一則新訊息
func (r *MessageRepository) Insert(ctx context.Context, msg *models.Message) (primitive.ObjectID, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(opCtx, msg)
	if err != nil {
		log.Printf("Error inserting message: %v", err)
		return primitive.NilObjectID, err
	}
	return result.InsertedID.(primitive.ObjectID), nil
}

// FindByID 讀取單一訊息，不存在時回傳 (nil, nil)
func (r *MessageRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var msg models.Message
	err := r.collection.FindOne(opCtx, bson.M{"_id": id}).Decode(&msg)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		log.Printf("Error finding message %s: %v", id.Hex(), err)
		return nil, err
	}
	return &msg, nil
}

// List 讀取聊天室訊息，按 createdAt 新到舊回傳
// before/after 是排他的時間界線；軟刪除的訊息預設排除
func (r *MessageRepository) List(ctx context.Context, roomID primitive.ObjectID, opts services.ListMessagesOptions) ([]models.Message, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{"roomId": roomID}
	if !opts.IncludeDeleted {
		filter["isDeleted"] = bson.M{"$ne": true}
	}
	timeBound := bson.M{}
	if opts.Before != nil {
		timeBound["$lt"] = *opts.Before
	}
	if opts.After != nil {
		timeBound["$gt"] = *opts.After
	}
	if len(timeBound) > 0 {
		filter["createdAt"] = timeBound
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(opts.Limit))
	cursor, err := r.collection.Find(opCtx, filter, findOpts)
	if err != nil {
		log.Printf("Error listing messages for room %s: %v", roomID.Hex(), err)
		return nil, err
	}
	defer cursor.Close(opCtx)

	messages := []models.Message{}
	if err := cursor.All(opCtx, &messages); err != nil {
		log.Printf("Error decoding messages for room %s: %v", roomID.Hex(), err)
		return nil, err
	}
	return messages, nil
}

// MarkDeleted 設定軟刪除欄位
func (r *MessageRepository) MarkDeleted(ctx context.Context, id, by primitive.ObjectID, reason string, at time.Time) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(opCtx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"isDeleted":      true,
			"deletedAt":      at,
			"deletedBy":      by,
			"deletionReason": reason,
		},
	})
	if err != nil {
		log.Printf("Error marking message %s deleted: %v", id.Hex(), err)
	}
	return err
}

// ApplyEdit 覆寫內容並把編輯前的舊內容推進 editHistory
func (r *MessageRepository) ApplyEdit(ctx context.Context, id primitive.ObjectID, content string, prev models.EditRecord, at time.Time) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(opCtx, bson.M{"_id": id}, bson.M{
		"$set":  bson.M{"content": content, "isEdited": true, "editedAt": at},
		"$push": bson.M{"editHistory": prev},
	})
	if err != nil {
		log.Printf("Error applying edit to message %s: %v", id.Hex(), err)
	}
	return err
}

// SetReaction 設定使用者的反應：先移除舊的再加入新的
// 兩步不在同一原子操作內，同一使用者併發反應後寫者勝
func (r *MessageRepository) SetReaction(ctx context.Context, id, userID primitive.ObjectID, emoji string) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(opCtx, bson.M{"_id": id}, bson.M{
		"$pull": bson.M{"reactions": bson.M{"user": userID}},
	})
	if err != nil {
		log.Printf("Error clearing previous reaction on message %s: %v", id.Hex(), err)
		return err
	}
	_, err = r.collection.UpdateOne(opCtx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"reactions": models.Reaction{UserID: userID, Emoji: emoji}},
	})
	if err != nil {
		log.Printf("Error setting reaction on message %s: %v", id.Hex(), err)
	}
	return err
}

// Search 走 $text 全文索引，按關聯度再按時間排序
// 後端缺少全文索引時回傳 apperr.ErrSearchUnavailable，讓呼叫端做型別化備援
func (r *MessageRepository) Search(ctx context.Context, roomID primitive.ObjectID, term string, limit, skip int) ([]models.Message, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{
		"roomId":    roomID,
		"isDeleted": bson.M{"$ne": true},
		"$text":     bson.M{"$search": term},
	}
	findOpts := options.Find().
		SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetSort(bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}, {Key: "createdAt", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(opCtx, filter, findOpts)
	if err != nil {
		if isIndexNotFound(err) {
			return nil, apperr.ErrSearchUnavailable
		}
		log.Printf("Error searching messages in room %s: %v", roomID.Hex(), err)
		return nil, err
	}
	defer cursor.Close(opCtx)

	messages := []models.Message{}
	if err := cursor.All(opCtx, &messages); err != nil {
		log.Printf("Error decoding search results for room %s: %v", roomID.Hex(), err)
		return nil, err
	}
	return messages, nil
}

// SearchRegex 是不分大小寫子字串比對的備援，只按時間新到舊排序
func (r *MessageRepository) SearchRegex(ctx context.Context, roomID primitive.ObjectID, term string, limit, skip int) ([]models.Message, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{
		"roomId":    roomID,
		"isDeleted": bson.M{"$ne": true},
		"content":   bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"},
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(opCtx, filter, findOpts)
	if err != nil {
		log.Printf("Error regex-searching messages in room %s: %v", roomID.Hex(), err)
		return nil, err
	}
	defer cursor.Close(opCtx)

	messages := []models.Message{}
	if err := cursor.All(opCtx, &messages); err != nil {
		log.Printf("Error decoding regex search results for room %s: %v", roomID.Hex(), err)
		return nil, err
	}
	return messages, nil
}

// isIndexNotFound 辨識 MongoDB 的 IndexNotFound command error
// 用錯誤碼判斷，不比對錯誤訊息字串
func isIndexNotFound(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == mongoIndexNotFound
	}
	return false
}

// CountSince 計算 since 之後、非指定發送者、未刪除的訊息數
func (r *MessageRepository) CountSince(ctx context.Context, roomID, excludeSender primitive.ObjectID, since time.Time) (int64, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(opCtx, bson.M{
		"roomId":    roomID,
		"senderId":  bson.M{"$ne": excludeSender},
		"isDeleted": bson.M{"$ne": true},
		"createdAt": bson.M{"$gt": since},
	})
	if err != nil {
		log.Printf("Error counting unread messages in room %s: %v", roomID.Hex(), err)
		return 0, err
	}
	return count, nil
}

// AppendReadReceipts 為 until 以前尚未被該使用者讀過的訊息補上已讀紀錄
// 盡力而為：權威未讀數走 lastReadAt 游標，這裡失敗不影響正確性
func (r *MessageRepository) AppendReadReceipts(ctx context.Context, roomID, userID primitive.ObjectID, until, at time.Time) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.collection.UpdateMany(opCtx,
		bson.M{
			"roomId":      roomID,
			"senderId":    bson.M{"$ne": userID},
			"createdAt":   bson.M{"$lte": until},
			"readBy.user": bson.M{"$ne": userID},
		},
		bson.M{"$push": bson.M{"readBy": models.ReadReceipt{UserID: userID, ReadAt: at}}})
	return err
}
