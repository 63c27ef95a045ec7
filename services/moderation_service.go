package services

import (
	"context"
	"log"
	"time"

	"go-rooms/backend/apperr"
	"go-rooms/backend/models"
	"go-rooms/backend/realtime"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Permission 是授權檢查的結果，所有需要管理權限的操作都先問這裡
type Permission struct {
	CanModerate bool `json:"canModerate"`
	IsOwner     bool `json:"isOwner"`
	IsModerator bool `json:"isModerator"`
}

// MuteStatus 是禁言狀態的唯讀投影
type MuteStatus struct {
	IsMuted    bool       `json:"isMuted"`
	MutedUntil *time.Time `json:"mutedUntil,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// BanStatus 是封鎖狀態的唯讀投影
type BanStatus struct {
	IsBanned bool       `json:"isBanned"`
	BannedAt *time.Time `json:"bannedAt,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// ModerationService 對 Room 套用禁言、踢出、封鎖與管理員指派
// 每個操作都先驗證呼叫者權限，失敗立刻回傳型別化錯誤，不做重試
type ModerationService struct {
	rooms    RoomRepository
	logs     ModerationLogRepository
	notifier realtime.Notifier
	now      func() time.Time
}

// NewModerationService 建立管理引擎，依賴全部由建構子注入
func NewModerationService(rooms RoomRepository, logs ModerationLogRepository, notifier realtime.Notifier) *ModerationService {
	return &ModerationService{rooms: rooms, logs: logs, notifier: notifier, now: time.Now}
}

// loadRoom 載入聊天室，不存在時回傳 ROOM_NOT_FOUND
func (s *ModerationService) loadRoom(ctx context.Context, roomID primitive.ObjectID) (*models.Room, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if room == nil {
		return nil, apperr.ErrRoomNotFound
	}
	return room, nil
}

// VerifyModeratorPermissions 是授權規則的唯一出處
// 其他元件在允許特權操作前都必須呼叫這裡，而不是自己比對角色
func (s *ModerationService) VerifyModeratorPermissions(ctx context.Context, roomID, userID primitive.ObjectID) (Permission, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return Permission{}, err
	}
	return permissionOf(room, userID), nil
}

func permissionOf(room *models.Room, userID primitive.ObjectID) Permission {
	return Permission{
		CanModerate: room.CanModerate(userID),
		IsOwner:     room.IsOwner(userID),
		IsModerator: room.IsModerator(userID),
	}
}

// requireModerator 檢查 actor 是否能管理這個聊天室
func requireModerator(room *models.Room, actorID primitive.ObjectID) error {
	if !permissionOf(room, actorID).CanModerate {
		return apperr.ErrNotAuthorized
	}
	return nil
}

// record 寫入管理紀錄並廣播事件；兩者都在變更提交之後才發生
func (s *ModerationService) record(ctx context.Context, entry *models.ModerationLog, eventType realtime.EventType, payload interface{}) {
	if err := s.logs.Insert(ctx, entry); err != nil {
		log.Printf("moderation: error inserting log for room %s: %v", entry.RoomID.Hex(), err)
	}
	s.notifier.Publish(ctx, realtime.Event{
		Type:      eventType,
		RoomID:    entry.RoomID.Hex(),
		Payload:   payload,
		Timestamp: entry.CreatedAt,
	})
}

type moderationPayload struct {
	ActorID    string     `json:"actorId"`
	TargetID   string     `json:"targetId"`
	Reason     string     `json:"reason,omitempty"`
	MutedUntil *time.Time `json:"mutedUntil,omitempty"`
	Role       string     `json:"role,omitempty"`
}

// Mute 禁言一名成員；durationMinutes <= 0 表示無限期
func (s *ModerationService) Mute(ctx context.Context, roomID, actorID, targetID primitive.ObjectID, durationMinutes int, reason string) (*MuteStatus, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := requireModerator(room, actorID); err != nil {
		return nil, err
	}
	if !room.IsParticipant(targetID) {
		return nil, apperr.ErrNotParticipant.WithMessage("Target user is not a participant of this room")
	}
	if room.IsOwner(targetID) {
		return nil, apperr.ErrNotAuthorized.WithMessage("The room owner cannot be muted")
	}

	now := s.now()
	var until *time.Time
	if durationMinutes > 0 {
		t := now.Add(time.Duration(durationMinutes) * time.Minute)
		until = &t
	}
	room.SetMute(targetID, actorID, until, reason)
	room.UpdatedAt = now
	if err := s.rooms.Replace(ctx, room); err != nil {
		return nil, apperr.Internal(err)
	}

	s.record(ctx, &models.ModerationLog{
		RoomID:     roomID,
		Action:     models.ActionMute,
		ActorID:    actorID,
		TargetID:   targetID,
		Reason:     reason,
		MutedUntil: until,
		CreatedAt:  now,
	}, realtime.EventMuted, moderationPayload{ActorID: actorID.Hex(), TargetID: targetID.Hex(), Reason: reason, MutedUntil: until})

	return &MuteStatus{IsMuted: true, MutedUntil: until, Reason: reason}, nil
}

// Unmute 無條件清除禁言欄位，重複呼叫是冪等的
func (s *ModerationService) Unmute(ctx context.Context, roomID, actorID, targetID primitive.ObjectID) error {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if err := requireModerator(room, actorID); err != nil {
		return err
	}

	now := s.now()
	room.ClearMute(targetID)
	room.UpdatedAt = now
	if err := s.rooms.Replace(ctx, room); err != nil {
		return apperr.Internal(err)
	}

	s.record(ctx, &models.ModerationLog{
		RoomID:    roomID,
		Action:    models.ActionUnmute,
		ActorID:   actorID,
		TargetID:  targetID,
		CreatedAt: now,
	}, realtime.EventUnmuted, moderationPayload{ActorID: actorID.Hex(), TargetID: targetID.Hex()})
	return nil
}

// Kick 把成員移出聊天室但不封鎖；房間可加入時對方可以再 join
func (s *ModerationService) Kick(ctx context.Context, roomID, actorID, targetID primitive.ObjectID, reason string) error {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if err := requireModerator(room, actorID); err != nil {
		return err
	}
	if room.IsOwner(targetID) {
		return apperr.ErrNotAuthorized.WithMessage("The room owner cannot be kicked")
	}
	if !room.RemoveParticipant(targetID) {
		return apperr.ErrNotParticipant.WithMessage("Target user is not a participant of this room")
	}

	now := s.now()
	room.UpdatedAt = now
	if err := s.rooms.Replace(ctx, room); err != nil {
		return apperr.Internal(err)
	}

	s.record(ctx, &models.ModerationLog{
		RoomID:    roomID,
		Action:    models.ActionKick,
		ActorID:   actorID,
		TargetID:  targetID,
		Reason:    reason,
		CreatedAt: now,
	}, realtime.EventKicked, moderationPayload{ActorID: actorID.Hex(), TargetID: targetID.Hex(), Reason: reason})
	return nil
}

// Ban 把成員移入封鎖名單；被封鎖者在解除前無法重新加入
func (s *ModerationService) Ban(ctx context.Context, roomID, actorID, targetID primitive.ObjectID, reason string) error {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if err := requireModerator(room, actorID); err != nil {
		return err
	}
	if room.IsOwner(targetID) {
		return apperr.ErrNotAuthorized.WithMessage("The room owner cannot be banned")
	}
	if room.IsBanned(targetID) {
		return apperr.ErrAlreadyBanned
	}

	now := s.now()
	room.SetBan(targetID, actorID, reason, now)
	room.UpdatedAt = now
	if err := s.rooms.Replace(ctx, room); err != nil {
		return apperr.Internal(err)
	}

	s.record(ctx, &models.ModerationLog{
		RoomID:    roomID,
		Action:    models.ActionBan,
		ActorID:   actorID,
		TargetID:  targetID,
		Reason:    reason,
		CreatedAt: now,
	}, realtime.EventBanned, moderationPayload{ActorID: actorID.Hex(), TargetID: targetID.Hex(), Reason: reason})
	return nil
}

// Unban 解除封鎖；不會自動恢復成員資格，對方需要另行 join
func (s *ModerationService) Unban(ctx context.Context, roomID, actorID, targetID primitive.ObjectID) error {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if err := requireModerator(room, actorID); err != nil {
		return err
	}
	if !room.ClearBan(targetID) {
		return apperr.ErrValidation.WithMessage("User is not banned from this room")
	}

	now := s.now()
	room.UpdatedAt = now
	if err := s.rooms.Replace(ctx, room); err != nil {
		return apperr.Internal(err)
	}

	s.record(ctx, &models.ModerationLog{
		RoomID:    roomID,
		Action:    models.ActionUnban,
		ActorID:   actorID,
		TargetID:  targetID,
		CreatedAt: now,
	}, realtime.EventUnbanned, moderationPayload{ActorID: actorID.Hex(), TargetID: targetID.Hex()})
	return nil
}

// AssignModerator 把成員升為管理員，僅限擁有者操作
func (s *ModerationService) AssignModerator(ctx context.Context, roomID, actorID, targetID primitive.ObjectID) error {
	return s.setRole(ctx, roomID, actorID, targetID, models.RoleModerator, models.ActionAssignModerator)
}

// RemoveModerator 把管理員降回一般成員，僅限擁有者操作
func (s *ModerationService) RemoveModerator(ctx context.Context, roomID, actorID, targetID primitive.ObjectID) error {
	return s.setRole(ctx, roomID, actorID, targetID, models.RoleParticipant, models.ActionRemoveModerator)
}

func (s *ModerationService) setRole(ctx context.Context, roomID, actorID, targetID primitive.ObjectID, role models.Role, action models.ModerationAction) error {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsOwner(actorID) {
		return apperr.ErrNotAuthorized.WithMessage("Only the room owner can manage moderators")
	}
	if room.IsOwner(targetID) {
		// 擁有者不能由這條路徑降級
		return apperr.ErrNotAuthorized.WithMessage("The room owner role cannot be changed")
	}
	if !room.SetRole(targetID, role) {
		return apperr.ErrNotParticipant.WithMessage("Target user is not a participant of this room")
	}

	now := s.now()
	room.UpdatedAt = now
	if err := s.rooms.Replace(ctx, room); err != nil {
		return apperr.Internal(err)
	}

	s.record(ctx, &models.ModerationLog{
		RoomID:    roomID,
		Action:    action,
		ActorID:   actorID,
		TargetID:  targetID,
		CreatedAt: now,
	}, realtime.EventRoleChanged, moderationPayload{ActorID: actorID.Hex(), TargetID: targetID.Hex(), Role: string(role)})
	return nil
}

// CheckMuteStatus 回傳成員此刻的禁言狀態（含懶到期判定，不落盤）
func (s *ModerationService) CheckMuteStatus(ctx context.Context, roomID, userID primitive.ObjectID) (*MuteStatus, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	p := room.Participant(userID)
	if p == nil {
		return nil, apperr.ErrNotParticipant
	}
	muted, until, _ := models.ResolveMuteState(p, s.now())
	status := &MuteStatus{IsMuted: muted, MutedUntil: until}
	if muted {
		status.Reason = p.MuteReason
	}
	return status, nil
}

// CheckBanStatus 回傳使用者的封鎖狀態
func (s *ModerationService) CheckBanStatus(ctx context.Context, roomID, userID primitive.ObjectID) (*BanStatus, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for i := range room.BannedUsers {
		if room.BannedUsers[i].UserID == userID {
			b := room.BannedUsers[i]
			return &BanStatus{IsBanned: true, BannedAt: &b.BannedAt, Reason: b.Reason}, nil
		}
	}
	return &BanStatus{}, nil
}

// Logs 列出聊天室的管理紀錄，僅限管理員或擁有者
func (s *ModerationService) Logs(ctx context.Context, roomID, actorID primitive.ObjectID, limit, skip int) ([]models.ModerationLog, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := requireModerator(room, actorID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	entries, err := s.logs.List(ctx, roomID, limit, skip)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return entries, nil
}

// Stats 回傳聊天室的管理操作統計，僅限管理員或擁有者
func (s *ModerationService) Stats(ctx context.Context, roomID, actorID primitive.ObjectID) (*models.ModerationStats, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := requireModerator(room, actorID); err != nil {
		return nil, err
	}
	stats, err := s.logs.Stats(ctx, roomID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return stats, nil
}
