package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"go-rooms/backend/apperr"
	"go-rooms/backend/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 測試用的記憶體版 repository，行為對齊 MongoDB 實作：
// 讀取回傳副本、找不到回傳 (nil, nil)、清禁言是冪等寫入

type fakeRoomRepo struct {
	rooms map[primitive.ObjectID]*models.Room
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[primitive.ObjectID]*models.Room)}
}

func cloneRoom(r *models.Room) *models.Room {
	clone := *r
	clone.Participants = append([]models.Participant{}, r.Participants...)
	clone.BannedUsers = append([]models.BannedUser{}, r.BannedUsers...)
	return &clone
}

func (f *fakeRoomRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Room, error) {
	room, ok := f.rooms[id]
	if !ok {
		return nil, nil
	}
	return cloneRoom(room), nil
}

func (f *fakeRoomRepo) Insert(_ context.Context, room *models.Room) (primitive.ObjectID, error) {
	id := primitive.NewObjectID()
	stored := cloneRoom(room)
	stored.ID = id
	f.rooms[id] = stored
	return id, nil
}

func (f *fakeRoomRepo) Replace(_ context.Context, room *models.Room) error {
	f.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (f *fakeRoomRepo) List(_ context.Context, opts ListRoomsOptions) ([]models.Room, int64, error) {
	var out []models.Room
	for _, room := range f.rooms {
		if !room.Settings.IsPublic || room.IsArchived {
			continue
		}
		if opts.RoomType != "" && room.RoomType != opts.RoomType {
			continue
		}
		out = append(out, *cloneRoom(room))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, int64(len(out)), nil
}

func (f *fakeRoomRepo) ListByParticipant(_ context.Context, userID primitive.ObjectID) ([]models.Room, error) {
	var out []models.Room
	for _, room := range f.rooms {
		if !room.IsArchived && room.IsParticipant(userID) {
			out = append(out, *cloneRoom(room))
		}
	}
	return out, nil
}

func (f *fakeRoomRepo) IncrementActivity(_ context.Context, roomID primitive.ObjectID, at time.Time) error {
	if room, ok := f.rooms[roomID]; ok {
		room.MessageCount++
		room.LastActivity = at
	}
	return nil
}

func (f *fakeRoomRepo) ClearMute(_ context.Context, roomID, userID primitive.ObjectID) error {
	if room, ok := f.rooms[roomID]; ok {
		room.ClearMute(userID)
	}
	return nil
}

func (f *fakeRoomRepo) SetLastRead(_ context.Context, roomID, userID primitive.ObjectID, at time.Time) error {
	if room, ok := f.rooms[roomID]; ok {
		if p := room.Participant(userID); p != nil {
			p.LastReadAt = &at
		}
	}
	return nil
}

type fakeMessageRepo struct {
	messages []*models.Message
	// 模擬部署環境缺少全文索引的情況
	textIndexMissing bool
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func cloneMessage(m *models.Message) *models.Message {
	clone := *m
	clone.Mentions = append([]primitive.ObjectID{}, m.Mentions...)
	clone.ReadBy = append([]models.ReadReceipt{}, m.ReadBy...)
	clone.Reactions = append([]models.Reaction{}, m.Reactions...)
	clone.EditHistory = append([]models.EditRecord{}, m.EditHistory...)
	return &clone
}

func (f *fakeMessageRepo) Insert(_ context.Context, msg *models.Message) (primitive.ObjectID, error) {
	id := primitive.NewObjectID()
	stored := cloneMessage(msg)
	stored.ID = id
	f.messages = append(f.messages, stored)
	return id, nil
}

func (f *fakeMessageRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	for _, m := range f.messages {
		if m.ID == id {
			return cloneMessage(m), nil
		}
	}
	return nil, nil
}

func (f *fakeMessageRepo) List(_ context.Context, roomID primitive.ObjectID, opts ListMessagesOptions) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.messages {
		if m.RoomID != roomID {
			continue
		}
		if m.IsDeleted && !opts.IncludeDeleted {
			continue
		}
		if opts.Before != nil && !m.CreatedAt.Before(*opts.Before) {
			continue
		}
		if opts.After != nil && !m.CreatedAt.After(*opts.After) {
			continue
		}
		out = append(out, *cloneMessage(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeMessageRepo) MarkDeleted(_ context.Context, id, by primitive.ObjectID, reason string, at time.Time) error {
	for _, m := range f.messages {
		if m.ID == id {
			m.IsDeleted = true
			m.DeletedAt = &at
			m.DeletedBy = &by
			m.DeletionReason = reason
		}
	}
	return nil
}

func (f *fakeMessageRepo) ApplyEdit(_ context.Context, id primitive.ObjectID, content string, prev models.EditRecord, at time.Time) error {
	for _, m := range f.messages {
		if m.ID == id {
			m.EditHistory = append(m.EditHistory, prev)
			m.Content = content
			m.IsEdited = true
			m.EditedAt = &at
		}
	}
	return nil
}

func (f *fakeMessageRepo) SetReaction(_ context.Context, id, userID primitive.ObjectID, emoji string) error {
	for _, m := range f.messages {
		if m.ID != id {
			continue
		}
		kept := m.Reactions[:0]
		for _, reaction := range m.Reactions {
			if reaction.UserID != userID {
				kept = append(kept, reaction)
			}
		}
		m.Reactions = append(kept, models.Reaction{UserID: userID, Emoji: emoji})
	}
	return nil
}

func (f *fakeMessageRepo) searchFilter(roomID primitive.ObjectID, term string) []models.Message {
	var out []models.Message
	lowered := strings.ToLower(term)
	for _, m := range f.messages {
		if m.RoomID != roomID || m.IsDeleted {
			continue
		}
		if strings.Contains(strings.ToLower(m.Content), lowered) {
			out = append(out, *cloneMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeMessageRepo) Search(_ context.Context, roomID primitive.ObjectID, term string, limit, skip int) ([]models.Message, error) {
	if f.textIndexMissing {
		return nil, apperr.ErrSearchUnavailable
	}
	out := f.searchFilter(roomID, term)
	return pageOf(out, limit, skip), nil
}

func (f *fakeMessageRepo) SearchRegex(_ context.Context, roomID primitive.ObjectID, term string, limit, skip int) ([]models.Message, error) {
	out := f.searchFilter(roomID, term)
	return pageOf(out, limit, skip), nil
}

func pageOf(messages []models.Message, limit, skip int) []models.Message {
	if skip >= len(messages) {
		return []models.Message{}
	}
	messages = messages[skip:]
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages
}

func (f *fakeMessageRepo) CountSince(_ context.Context, roomID, excludeSender primitive.ObjectID, since time.Time) (int64, error) {
	var count int64
	for _, m := range f.messages {
		if m.RoomID == roomID && !m.IsDeleted && m.SenderID != excludeSender && m.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeMessageRepo) AppendReadReceipts(_ context.Context, roomID, userID primitive.ObjectID, until, at time.Time) error {
	for _, m := range f.messages {
		if m.RoomID != roomID || m.SenderID == userID || m.CreatedAt.After(until) {
			continue
		}
		already := false
		for _, receipt := range m.ReadBy {
			if receipt.UserID == userID {
				already = true
				break
			}
		}
		if !already {
			m.ReadBy = append(m.ReadBy, models.ReadReceipt{UserID: userID, ReadAt: at})
		}
	}
	return nil
}

type fakeModerationRepo struct {
	entries []models.ModerationLog
}

func newFakeModerationRepo() *fakeModerationRepo {
	return &fakeModerationRepo{}
}

func (f *fakeModerationRepo) Insert(_ context.Context, entry *models.ModerationLog) error {
	stored := *entry
	stored.ID = primitive.NewObjectID()
	f.entries = append(f.entries, stored)
	return nil
}

func (f *fakeModerationRepo) List(_ context.Context, roomID primitive.ObjectID, limit, skip int) ([]models.ModerationLog, error) {
	var out []models.ModerationLog
	for _, entry := range f.entries {
		if entry.RoomID == roomID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if skip >= len(out) {
		return []models.ModerationLog{}, nil
	}
	out = out[skip:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeModerationRepo) Stats(_ context.Context, roomID primitive.ObjectID) (*models.ModerationStats, error) {
	stats := &models.ModerationStats{ByAction: make(map[models.ModerationAction]int64)}
	for _, entry := range f.entries {
		if entry.RoomID == roomID {
			stats.ByAction[entry.Action]++
			stats.Total++
		}
	}
	return stats, nil
}
