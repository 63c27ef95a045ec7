package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ModerationAction 定義管理操作的種類
type ModerationAction string

const (
	ActionMute            ModerationAction = "mute"
	ActionUnmute          ModerationAction = "unmute"
	ActionKick            ModerationAction = "kick"
	ActionBan             ModerationAction = "ban"
	ActionUnban           ModerationAction = "unban"
	ActionAssignModerator ModerationAction = "assign_moderator"
	ActionRemoveModerator ModerationAction = "remove_moderator"
)

// ModerationLog 是一筆只追加的管理操作紀錄，寫入後不再更新
type ModerationLog struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	RoomID     primitive.ObjectID `bson:"roomId" json:"roomId"`
	Action     ModerationAction   `bson:"action" json:"action"`
	ActorID    primitive.ObjectID `bson:"actorId" json:"actorId"`
	TargetID   primitive.ObjectID `bson:"targetId" json:"targetId"`
	Reason     string             `bson:"reason,omitempty" json:"reason,omitempty"`
	MutedUntil *time.Time         `bson:"mutedUntil,omitempty" json:"mutedUntil,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}

// ModerationStats 是 moderation-stats 端點的彙總結果（依操作種類計數）
type ModerationStats struct {
	Total    int64                      `json:"total"`
	ByAction map[ModerationAction]int64 `json:"byAction"`
}
