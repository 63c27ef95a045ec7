package services

import (
	"context"
	"strings"
	"time"

	"go-rooms/backend/apperr"
	"go-rooms/backend/models"
	"go-rooms/backend/realtime"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CreateRoomInput 是建立聊天室的請求內容
type CreateRoomInput struct {
	Name        string
	Description string
	RoomType    models.RoomType
	Settings    *models.RoomSettings
}

// UpdateRoomInput 是擁有者可更新的欄位；nil 表示不變更
type UpdateRoomInput struct {
	Name        *string
	Description *string
	Settings    *models.RoomSettings
}

// RoomPage 是公開聊天室列表的一頁
type RoomPage struct {
	Rooms []models.Room `json:"rooms"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// RoomService 負責聊天室的生命週期：建立、列表、加入、退出、更新、封存
type RoomService struct {
	rooms    RoomRepository
	notifier realtime.Notifier
	now      func() time.Time
}

// NewRoomService 建立聊天室生命週期服務
func NewRoomService(rooms RoomRepository, notifier realtime.Notifier) *RoomService {
	return &RoomService{rooms: rooms, notifier: notifier, now: time.Now}
}

func (s *RoomService) loadRoom(ctx context.Context, roomID primitive.ObjectID) (*models.Room, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if room == nil {
		return nil, apperr.ErrRoomNotFound
	}
	return room, nil
}

// Create 建立聊天室，呼叫者成為擁有者（擁有者同時具備管理權限）
func (s *RoomService) Create(ctx context.Context, actor Actor, input CreateRoomInput) (*models.Room, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperr.ErrValidation.WithMessage("Room name must not be empty")
	}
	roomType := input.RoomType
	if roomType == "" {
		roomType = models.RoomTypeCommunity
	}
	settings := models.RoomSettings{MaxParticipants: 100, IsJoinable: true, IsPublic: true}
	if input.Settings != nil {
		settings = *input.Settings
	}

	now := s.now()
	room := &models.Room{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		RoomType:    roomType,
		CreatorID:   actor.ID,
		Participants: []models.Participant{{
			UserID:      actor.ID,
			DisplayName: actor.DisplayName,
			Role:        models.RoleOwner,
			JoinedAt:    now,
		}},
		BannedUsers:  []models.BannedUser{},
		Settings:     settings,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := s.rooms.Insert(ctx, room)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	room.ID = id
	return room, nil
}

// Get 讀取單一聊天室；私密聊天室只有成員看得到，對外一律回 404
func (s *RoomService) Get(ctx context.Context, roomID, userID primitive.ObjectID) (*models.Room, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.Settings.IsPublic && !room.IsParticipant(userID) {
		return nil, apperr.ErrRoomNotFound
	}
	return room, nil
}

// List 列出公開且未封存的聊天室
func (s *RoomService) List(ctx context.Context, opts ListRoomsOptions) (*RoomPage, error) {
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}
	rooms, total, err := s.rooms.List(ctx, opts)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &RoomPage{Rooms: rooms, Total: total, Page: opts.Page, Limit: opts.Limit}, nil
}

// Mine 列出使用者參與的所有聊天室
func (s *RoomService) Mine(ctx context.Context, userID primitive.ObjectID) ([]models.Room, error) {
	rooms, err := s.rooms.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return rooms, nil
}

// Join 把使用者加入聊天室
// 被封鎖、聊天室額滿或不開放加入時拒絕；已是成員時是 no-op
func (s *RoomService) Join(ctx context.Context, roomID primitive.ObjectID, actor Actor) (*models.Room, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.IsArchived {
		return nil, apperr.ErrRoomNotFound
	}
	if room.IsBanned(actor.ID) {
		return nil, apperr.ErrUserBanned
	}
	if room.IsParticipant(actor.ID) {
		return room, nil
	}
	if !room.Settings.IsJoinable {
		return nil, apperr.ErrRoomNotJoinable
	}
	if room.Settings.MaxParticipants > 0 && len(room.Participants) >= room.Settings.MaxParticipants {
		return nil, apperr.ErrRoomFull
	}

	now := s.now()
	room.AddParticipant(actor.ID, actor.DisplayName, models.RoleParticipant, now)
	room.UpdatedAt = now
	if err := s.rooms.Replace(ctx, room); err != nil {
		return nil, apperr.Internal(err)
	}

	s.notifier.Publish(ctx, realtime.Event{
		Type:      realtime.EventMemberJoined,
		RoomID:    roomID.Hex(),
		Payload:   map[string]string{"userId": actor.ID.Hex(), "displayName": actor.DisplayName},
		Timestamp: now,
	})
	return room, nil
}

// Leave 讓成員退出聊天室
// 擁有者在尚有其他成員時不得退出，必須先轉移管理或封存聊天室；
// 擁有者是最後一名成員時，退出會直接封存聊天室
func (s *RoomService) Leave(ctx context.Context, roomID primitive.ObjectID, actor Actor) error {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsParticipant(actor.ID) {
		return apperr.ErrNotParticipant
	}

	now := s.now()
	if room.IsOwner(actor.ID) {
		if len(room.Participants) > 1 {
			return apperr.ErrValidation.WithMessage("The owner cannot leave while the room has other participants")
		}
		room.RemoveParticipant(actor.ID)
		room.IsArchived = true
		room.ArchivedAt = &now
	} else {
		room.RemoveParticipant(actor.ID)
	}
	room.UpdatedAt = now
	if err := s.rooms.Replace(ctx, room); err != nil {
		return apperr.Internal(err)
	}

	s.notifier.Publish(ctx, realtime.Event{
		Type:      realtime.EventMemberLeft,
		RoomID:    roomID.Hex(),
		Payload:   map[string]string{"userId": actor.ID.Hex(), "displayName": actor.DisplayName},
		Timestamp: now,
	})
	return nil
}

// Update 更新聊天室欄位，僅限擁有者
func (s *RoomService) Update(ctx context.Context, roomID primitive.ObjectID, actorID primitive.ObjectID, input UpdateRoomInput) (*models.Room, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsOwner(actorID) {
		return nil, apperr.ErrNotAuthorized.WithMessage("Only the room owner can update the room")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperr.ErrValidation.WithMessage("Room name must not be empty")
		}
		room.Name = name
	}
	if input.Description != nil {
		room.Description = strings.TrimSpace(*input.Description)
	}
	if input.Settings != nil {
		room.Settings = *input.Settings
	}

	now := s.now()
	room.UpdatedAt = now
	if err := s.rooms.Replace(ctx, room); err != nil {
		return nil, apperr.Internal(err)
	}

	s.notifier.Publish(ctx, realtime.Event{
		Type:      realtime.EventRoomUpdated,
		RoomID:    roomID.Hex(),
		Payload:   room,
		Timestamp: now,
	})
	return room, nil
}

// Archive 軟封存聊天室，訊息歷史保留供稽核與匯出
// 擁有者或平台管理員可執行，不做硬刪除
func (s *RoomService) Archive(ctx context.Context, roomID primitive.ObjectID, actor Actor) error {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsOwner(actor.ID) && actor.Role != "admin" {
		return apperr.ErrNotAuthorized.WithMessage("Only the room owner or an administrator can archive the room")
	}
	if room.IsArchived {
		return nil
	}

	now := s.now()
	room.IsArchived = true
	room.ArchivedAt = &now
	room.UpdatedAt = now
	if err := s.rooms.Replace(ctx, room); err != nil {
		return apperr.Internal(err)
	}

	s.notifier.Publish(ctx, realtime.Event{
		Type:      realtime.EventRoomArchived,
		RoomID:    roomID.Hex(),
		Payload:   map[string]string{"archivedBy": actor.ID.Hex()},
		Timestamp: now,
	})
	return nil
}
