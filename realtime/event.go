package realtime

import (
	"context"
	"time"
)

// EventType 定義即時事件的種類
type EventType string

const (
	EventMessageNew     EventType = "message.new"
	EventMessageEdited  EventType = "message.edited"
	EventMessageDeleted EventType = "message.deleted"
	EventReactionSet    EventType = "reaction.set"
	EventMuted          EventType = "moderation.muted"
	EventUnmuted        EventType = "moderation.unmuted"
	EventKicked         EventType = "moderation.kicked"
	EventBanned         EventType = "moderation.banned"
	EventUnbanned       EventType = "moderation.unbanned"
	EventRoleChanged    EventType = "moderation.role"
	EventRoomUpdated    EventType = "room.updated"
	EventRoomArchived   EventType = "room.archived"
	EventMemberJoined   EventType = "member.joined"
	EventMemberLeft     EventType = "member.left"
)

// Event 是廣播給聊天室訂閱者的事件
// 只做最多一次的即時傳遞，權威狀態一律回資料庫重查
type Event struct {
	Type      EventType   `json:"type"`
	RoomID    string      `json:"roomId"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

//go:generate mockgen -source=event.go -destination=../mocks/notifier_mock.go -package=mocks

// Notifier 是服務層對即時通道的唯一出口
// Publish 不可阻塞觸發它的變更，失敗只記 log、不回滾
type Notifier interface {
	Publish(ctx context.Context, event Event)
}
