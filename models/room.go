package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role 定義參與者在聊天室內的角色
type Role string

const (
	RoleOwner       Role = "owner"
	RoleModerator   Role = "moderator"
	RoleParticipant Role = "participant"
)

// RoomType 定義聊天室的分類
type RoomType string

const (
	RoomTypeCommunity    RoomType = "community"
	RoomTypeSupportGroup RoomType = "support-group"
	RoomTypeDirect       RoomType = "direct"
)

// Participant 代表一筆有效的聊天室成員資料
// 禁言與已讀游標都掛在這裡，每個 userId 在同一聊天室中唯一
type Participant struct {
	UserID      primitive.ObjectID  `bson:"userId" json:"userId"`
	DisplayName string              `bson:"displayName" json:"displayName"`
	Role        Role                `bson:"role" json:"role"`
	JoinedAt    time.Time           `bson:"joinedAt" json:"joinedAt"`
	LastReadAt  *time.Time          `bson:"lastReadAt,omitempty" json:"lastReadAt,omitempty"`
	IsMuted     bool                `bson:"isMuted" json:"isMuted"`
	MutedUntil  *time.Time          `bson:"mutedUntil,omitempty" json:"mutedUntil,omitempty"`
	MutedBy     *primitive.ObjectID `bson:"mutedBy,omitempty" json:"mutedBy,omitempty"`
	MuteReason  string              `bson:"muteReason,omitempty" json:"muteReason,omitempty"`
}

// BannedUser 代表一筆聊天室層級的封鎖紀錄
type BannedUser struct {
	UserID   primitive.ObjectID `bson:"userId" json:"userId"`
	BannedAt time.Time          `bson:"bannedAt" json:"bannedAt"`
	BannedBy primitive.ObjectID `bson:"bannedBy" json:"bannedBy"`
	Reason   string             `bson:"reason,omitempty" json:"reason,omitempty"`
}

// RoomSettings 是聊天室的設定包，照原樣儲存與讀取
type RoomSettings struct {
	MaxParticipants int  `bson:"maxParticipants" json:"maxParticipants"`
	IsJoinable      bool `bson:"isJoinable" json:"isJoinable"`
	IsPublic        bool `bson:"isPublic" json:"isPublic"`
}

// Room 代表一個聊天室的完整聚合：成員、角色、禁言與封鎖狀態
type Room struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name         string             `bson:"name" json:"name"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	RoomType     RoomType           `bson:"roomType" json:"roomType"`
	CreatorID    primitive.ObjectID `bson:"creatorId" json:"creatorId"`
	Participants []Participant      `bson:"participants" json:"participants"`
	BannedUsers  []BannedUser       `bson:"bannedUsers" json:"bannedUsers"`
	Settings     RoomSettings       `bson:"settings" json:"settings"`
	MessageCount int64              `bson:"messageCount" json:"messageCount"`
	LastActivity time.Time          `bson:"lastActivity" json:"lastActivity"`
	IsArchived   bool               `bson:"isArchived" json:"isArchived"`
	ArchivedAt   *time.Time         `bson:"archivedAt,omitempty" json:"archivedAt,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Participant 回傳指定使用者的成員資料，不存在時回傳 nil
func (r *Room) Participant(userID primitive.ObjectID) *Participant {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return &r.Participants[i]
		}
	}
	return nil
}

// IsParticipant 回報使用者是否為聊天室成員
func (r *Room) IsParticipant(userID primitive.ObjectID) bool {
	return r.Participant(userID) != nil
}

// IsBanned 回報使用者是否在封鎖名單內
func (r *Room) IsBanned(userID primitive.ObjectID) bool {
	for i := range r.BannedUsers {
		if r.BannedUsers[i].UserID == userID {
			return true
		}
	}
	return false
}

// IsOwner 回報使用者是否為聊天室擁有者
func (r *Room) IsOwner(userID primitive.ObjectID) bool {
	p := r.Participant(userID)
	return p != nil && p.Role == RoleOwner
}

// IsModerator 回報使用者是否為管理員（不含擁有者）
func (r *Room) IsModerator(userID primitive.ObjectID) bool {
	p := r.Participant(userID)
	return p != nil && p.Role == RoleModerator
}

// CanModerate 回報使用者是否能執行管理操作（擁有者或管理員）
func (r *Room) CanModerate(userID primitive.ObjectID) bool {
	p := r.Participant(userID)
	return p != nil && (p.Role == RoleOwner || p.Role == RoleModerator)
}

// AddParticipant 新增成員；已存在時不動作
// 呼叫前必須先確認使用者不在封鎖名單內
func (r *Room) AddParticipant(userID primitive.ObjectID, displayName string, role Role, joinedAt time.Time) {
	if r.IsParticipant(userID) {
		return
	}
	r.Participants = append(r.Participants, Participant{
		UserID:      userID,
		DisplayName: displayName,
		Role:        role,
		JoinedAt:    joinedAt,
	})
}

// RemoveParticipant 移除成員，回報是否有移除
func (r *Room) RemoveParticipant(userID primitive.ObjectID) bool {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			return true
		}
	}
	return false
}

// SetRole 變更成員角色，成員不存在時回報 false
func (r *Room) SetRole(userID primitive.ObjectID, role Role) bool {
	p := r.Participant(userID)
	if p == nil {
		return false
	}
	p.Role = role
	return true
}

// SetMute 設定成員的禁言狀態；until 為 nil 表示無限期
func (r *Room) SetMute(userID primitive.ObjectID, by primitive.ObjectID, until *time.Time, reason string) bool {
	p := r.Participant(userID)
	if p == nil {
		return false
	}
	p.IsMuted = true
	p.MutedUntil = until
	p.MutedBy = &by
	p.MuteReason = reason
	return true
}

// ClearMute 清除成員的禁言狀態，可重複呼叫
func (r *Room) ClearMute(userID primitive.ObjectID) {
	p := r.Participant(userID)
	if p == nil {
		return
	}
	p.IsMuted = false
	p.MutedUntil = nil
	p.MutedBy = nil
	p.MuteReason = ""
}

// SetBan 把使用者從成員移入封鎖名單
// 維持同一使用者不同時存在於 participants 與 bannedUsers 的不變量
func (r *Room) SetBan(userID primitive.ObjectID, by primitive.ObjectID, reason string, at time.Time) {
	r.RemoveParticipant(userID)
	if r.IsBanned(userID) {
		return
	}
	r.BannedUsers = append(r.BannedUsers, BannedUser{
		UserID:   userID,
		BannedAt: at,
		BannedBy: by,
		Reason:   reason,
	})
}

// ClearBan 從封鎖名單移除使用者，回報是否有移除
// 解除封鎖不會自動恢復成員資格，需另行 join
func (r *Room) ClearBan(userID primitive.ObjectID) bool {
	for i := range r.BannedUsers {
		if r.BannedUsers[i].UserID == userID {
			r.BannedUsers = append(r.BannedUsers[:i], r.BannedUsers[i+1:]...)
			return true
		}
	}
	return false
}

// ResolveMuteState 計算成員在 now 這一刻的禁言狀態
// 純函式：到期時回報 expired=true，由呼叫端決定是否持久化清除
// 多個請求同時判定到期也安全，因為清除是冪等寫入
func ResolveMuteState(p *Participant, now time.Time) (muted bool, until *time.Time, expired bool) {
	if p == nil || !p.IsMuted {
		return false, nil, false
	}
	if p.MutedUntil == nil {
		return true, nil, false
	}
	if p.MutedUntil.After(now) {
		return true, p.MutedUntil, false
	}
	return false, nil, true
}
