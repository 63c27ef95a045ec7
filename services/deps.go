package services

import (
	"context"
	"time"

	"go-rooms/backend/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor 是外部身分邊界交給每個操作的已驗證呼叫者
type Actor struct {
	ID          primitive.ObjectID
	DisplayName string
	Role        string // 平台層角色，"admin" 可封存任意聊天室
}

// ListRoomsOptions 是公開聊天室列表的查詢條件
type ListRoomsOptions struct {
	Page     int
	Limit    int
	RoomType models.RoomType
}

// ListMessagesOptions 是訊息分頁的查詢條件
// Before/After 是以 createdAt 為鍵的游標，兩者擇一
type ListMessagesOptions struct {
	Limit          int
	Before         *time.Time
	After          *time.Time
	IncludeDeleted bool
}

// RoomRepository 是 Room 聚合的持久層介面
// 找不到文件時回傳 (nil, nil)，由服務層轉成領域錯誤
type RoomRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Room, error)
	Insert(ctx context.Context, room *models.Room) (primitive.ObjectID, error)
	// Replace 以整份文件寫回，採樂觀策略：同一參與者欄位的併發寫入後寫者勝
	Replace(ctx context.Context, room *models.Room) error
	List(ctx context.Context, opts ListRoomsOptions) ([]models.Room, int64, error)
	ListByParticipant(ctx context.Context, userID primitive.ObjectID) ([]models.Room, error)
	// IncrementActivity 以單一原子更新遞增 messageCount 並刷新 lastActivity
	IncrementActivity(ctx context.Context, roomID primitive.ObjectID, at time.Time) error
	// ClearMute 冪等清除單一參與者的禁言欄位，供懶清除併發競走時使用
	ClearMute(ctx context.Context, roomID, userID primitive.ObjectID) error
	SetLastRead(ctx context.Context, roomID, userID primitive.ObjectID, at time.Time) error
}

// MessageRepository 是訊息日誌的持久層介面
type MessageRepository interface {
	Insert(ctx context.Context, msg *models.Message) (primitive.ObjectID, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	List(ctx context.Context, roomID primitive.ObjectID, opts ListMessagesOptions) ([]models.Message, error)
	MarkDeleted(ctx context.Context, id, by primitive.ObjectID, reason string, at time.Time) error
	ApplyEdit(ctx context.Context, id primitive.ObjectID, content string, prev models.EditRecord, at time.Time) error
	// SetReaction 覆蓋同一使用者先前的反應（每人每訊息最多一筆）
	SetReaction(ctx context.Context, id, userID primitive.ObjectID, emoji string) error
	// Search 走全文索引並按關聯度排序；索引不存在時回傳 apperr.ErrSearchUnavailable
	Search(ctx context.Context, roomID primitive.ObjectID, term string, limit, skip int) ([]models.Message, error)
	// SearchRegex 是不分大小寫的子字串比對備援，只按時間新到舊排序
	SearchRegex(ctx context.Context, roomID primitive.ObjectID, term string, limit, skip int) ([]models.Message, error)
	CountSince(ctx context.Context, roomID, excludeSender primitive.ObjectID, since time.Time) (int64, error)
	// AppendReadReceipts 盡力補上逐訊息已讀紀錄，失敗不影響未讀數正確性
	AppendReadReceipts(ctx context.Context, roomID, userID primitive.ObjectID, until, at time.Time) error
}

// ModerationLogRepository 是只追加的管理紀錄持久層介面
type ModerationLogRepository interface {
	Insert(ctx context.Context, entry *models.ModerationLog) error
	List(ctx context.Context, roomID primitive.ObjectID, limit, skip int) ([]models.ModerationLog, error)
	Stats(ctx context.Context, roomID primitive.ObjectID) (*models.ModerationStats, error)
}
