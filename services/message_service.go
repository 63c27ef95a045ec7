package services

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"
	"time"

	"go-rooms/backend/apperr"
	"go-rooms/backend/models"
	"go-rooms/backend/realtime"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultPageSize 是訊息分頁未指定 limit 時的預設筆數
const DefaultPageSize = 50

// mentionPattern 擷取內容中的 @name 標記
var mentionPattern = regexp.MustCompile(`@([\p{L}\p{N}_.\-]+)`)

// SendMessageInput 是送出訊息的可選參數
type SendMessageInput struct {
	Content string
	Type    models.MessageType
	ReplyTo *primitive.ObjectID
}

// Pagination 是游標分頁資訊；游標是 ISO 時間戳，對呼叫端不透明
type Pagination struct {
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
	PrevCursor string `json:"prevCursor,omitempty"`
}

// MessagePage 是一頁按時間舊到新排列的訊息
type MessagePage struct {
	Messages   []models.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// MessageService 驗證並持久化新訊息，並中介所有讀取路徑
// 寫入前的檢查順序固定：內容、聊天室、成員資格、封鎖、禁言
type MessageService struct {
	rooms    RoomRepository
	messages MessageRepository
	notifier realtime.Notifier
	now      func() time.Time
}

// NewMessageService 建立訊息服務，依賴全部由建構子注入
func NewMessageService(rooms RoomRepository, messages MessageRepository, notifier realtime.Notifier) *MessageService {
	return &MessageService{rooms: rooms, messages: messages, notifier: notifier, now: time.Now}
}

func (s *MessageService) loadRoom(ctx context.Context, roomID primitive.ObjectID) (*models.Room, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if room == nil {
		return nil, apperr.ErrRoomNotFound
	}
	return room, nil
}

// parseMentions 把 @name 標記解析成目前成員的 ID
// 名稱比對不分大小寫；不是成員的標記直接丟棄
func parseMentions(content string, room *models.Room) []primitive.ObjectID {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	byName := make(map[string]primitive.ObjectID, len(room.Participants))
	for i := range room.Participants {
		byName[strings.ToLower(room.Participants[i].DisplayName)] = room.Participants[i].UserID
	}

	var mentions []primitive.ObjectID
	seen := make(map[primitive.ObjectID]bool)
	for _, m := range matches {
		if id, ok := byName[strings.ToLower(m[1])]; ok && !seen[id] {
			seen[id] = true
			mentions = append(mentions, id)
		}
	}
	return mentions
}

// SendMessage 驗證並持久化一則新訊息
// 驗證全部通過才寫入，不會留下半完成的訊息
func (s *MessageService) SendMessage(ctx context.Context, roomID primitive.ObjectID, sender Actor, input SendMessageInput) (*models.Message, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, apperr.ErrEmptyMessage
	}
	if len([]rune(content)) > models.MaxContentLength {
		return nil, apperr.ErrMessageTooLong
	}

	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.IsArchived {
		return nil, apperr.ErrValidation.WithMessage("Chat room has been archived")
	}
	if room.IsBanned(sender.ID) {
		return nil, apperr.ErrUserBanned
	}
	participant := room.Participant(sender.ID)
	if participant == nil {
		return nil, apperr.ErrNotParticipant
	}

	now := s.now()
	muted, until, expired := models.ResolveMuteState(participant, now)
	if muted {
		if until != nil {
			return nil, apperr.ErrUserMuted.WithMessage("You are muted in this room until %s", until.UTC().Format(time.RFC3339))
		}
		return nil, apperr.ErrUserMuted.WithMessage("You are muted in this room indefinitely")
	}
	if expired {
		// 禁言已過期：順手清掉欄位。多個請求競走也安全，清除是冪等的
		if err := s.rooms.ClearMute(ctx, roomID, sender.ID); err != nil {
			log.Printf("message: error clearing expired mute for user %s in room %s: %v", sender.ID.Hex(), roomID.Hex(), err)
		}
	}

	msgType := input.Type
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	if msgType == models.MessageTypeAnnouncement && !room.CanModerate(sender.ID) {
		return nil, apperr.ErrNotAuthorized.WithMessage("Only moderators can post announcements")
	}

	if input.ReplyTo != nil {
		target, err := s.messages.FindByID(ctx, *input.ReplyTo)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if target == nil || target.RoomID != roomID {
			return nil, apperr.ErrValidation.WithMessage("Reply target does not exist in this room")
		}
	}

	msg := &models.Message{
		RoomID:     roomID,
		SenderID:   sender.ID,
		SenderName: sender.DisplayName,
		Type:       msgType,
		Content:    content,
		Mentions:   parseMentions(content, room),
		ReplyTo:    input.ReplyTo,
		CreatedAt:  now,
	}
	id, err := s.messages.Insert(ctx, msg)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	msg.ID = id

	// 計數器是去正規化的輔助欄位，掉一次增量可以容忍、訊息不行
	if err := s.rooms.IncrementActivity(ctx, roomID, now); err != nil {
		log.Printf("message: error bumping activity for room %s: %v", roomID.Hex(), err)
	}

	s.notifier.Publish(ctx, realtime.Event{
		Type:      realtime.EventMessageNew,
		RoomID:    roomID.Hex(),
		Payload:   msg,
		Timestamp: now,
	})
	return msg, nil
}

// GetMessages 以游標分頁讀取聊天室歷史，僅限成員
// 內部永遠新到舊查 limit+1 判斷 hasMore，回傳前反轉成舊到新
func (s *MessageService) GetMessages(ctx context.Context, roomID, userID primitive.ObjectID, opts ListMessagesOptions) (*MessagePage, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsParticipant(userID) {
		return nil, apperr.ErrNotParticipant
	}

	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = DefaultPageSize
	}
	fetch := opts
	fetch.Limit = opts.Limit + 1
	messages, err := s.messages.List(ctx, roomID, fetch)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	hasMore := len(messages) > opts.Limit
	if hasMore {
		messages = messages[:opts.Limit]
	}

	// 反轉成時間舊到新
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	page := &MessagePage{Messages: messages, Pagination: Pagination{HasMore: hasMore}}
	if len(messages) > 0 {
		page.Pagination.NextCursor = messages[0].CreatedAt.UTC().Format(time.RFC3339Nano)
		page.Pagination.PrevCursor = messages[len(messages)-1].CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return page, nil
}

// DeleteMessage 軟刪除一則訊息；紀錄永不實體移除
// 發送者本人或該聊天室的管理員／擁有者可刪
func (s *MessageService) DeleteMessage(ctx context.Context, messageID, actorID primitive.ObjectID, reason string) error {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return apperr.Internal(err)
	}
	if msg == nil {
		return apperr.ErrMessageNotFound
	}
	room, err := s.loadRoom(ctx, msg.RoomID)
	if err != nil {
		return err
	}
	if msg.SenderID != actorID && !room.CanModerate(actorID) {
		return apperr.ErrNotAuthorized
	}
	if msg.IsDeleted {
		return apperr.ErrValidation.WithMessage("Message has already been deleted")
	}

	now := s.now()
	if err := s.messages.MarkDeleted(ctx, messageID, actorID, reason, now); err != nil {
		return apperr.Internal(err)
	}

	s.notifier.Publish(ctx, realtime.Event{
		Type:      realtime.EventMessageDeleted,
		RoomID:    msg.RoomID.Hex(),
		Payload:   map[string]string{"messageId": messageID.Hex(), "deletedBy": actorID.Hex()},
		Timestamp: now,
	})
	return nil
}

// EditMessage 覆寫訊息內容，僅限發送者本人
// 覆寫前先把舊內容推進 editHistory
func (s *MessageService) EditMessage(ctx context.Context, messageID, actorID primitive.ObjectID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.ErrEmptyMessage
	}
	if len([]rune(content)) > models.MaxContentLength {
		return nil, apperr.ErrMessageTooLong
	}

	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if msg == nil {
		return nil, apperr.ErrMessageNotFound
	}
	if msg.SenderID != actorID {
		return nil, apperr.ErrNotAuthorized.WithMessage("Only the sender can edit a message")
	}
	if msg.IsDeleted {
		return nil, apperr.ErrValidation.WithMessage("Deleted messages cannot be edited")
	}

	now := s.now()
	prev := models.EditRecord{Content: msg.Content, EditedAt: now}
	if err := s.messages.ApplyEdit(ctx, messageID, content, prev, now); err != nil {
		return nil, apperr.Internal(err)
	}

	msg.Content = content
	msg.IsEdited = true
	msg.EditedAt = &now
	msg.EditHistory = append(msg.EditHistory, prev)

	s.notifier.Publish(ctx, realtime.Event{
		Type:      realtime.EventMessageEdited,
		RoomID:    msg.RoomID.Hex(),
		Payload:   msg,
		Timestamp: now,
	})
	return msg, nil
}

// ReactToMessage 設定使用者對訊息的反應
// 每人每訊息最多一筆，再次反應會覆蓋前一筆
func (s *MessageService) ReactToMessage(ctx context.Context, messageID, actorID primitive.ObjectID, emoji string) error {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return apperr.ErrValidation.WithMessage("Reaction emoji must not be empty")
	}

	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return apperr.Internal(err)
	}
	if msg == nil {
		return apperr.ErrMessageNotFound
	}
	if msg.IsDeleted {
		return apperr.ErrValidation.WithMessage("Deleted messages cannot be reacted to")
	}
	room, err := s.loadRoom(ctx, msg.RoomID)
	if err != nil {
		return err
	}
	if !room.IsParticipant(actorID) {
		return apperr.ErrNotParticipant
	}

	if err := s.messages.SetReaction(ctx, messageID, actorID, emoji); err != nil {
		return apperr.Internal(err)
	}

	s.notifier.Publish(ctx, realtime.Event{
		Type:      realtime.EventReactionSet,
		RoomID:    msg.RoomID.Hex(),
		Payload:   map[string]string{"messageId": messageID.Hex(), "user": actorID.Hex(), "emoji": emoji},
		Timestamp: s.now(),
	})
	return nil
}

// SearchMessages 搜尋聊天室歷史，僅限成員
// 主路徑走全文索引按關聯度排序；索引不存在時退回 regex 比對
// 一次呼叫只會用其中一種語義，不混用
func (s *MessageService) SearchMessages(ctx context.Context, roomID, userID primitive.ObjectID, term string, limit, skip int) ([]models.Message, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, apperr.ErrValidation.WithMessage("Search term must not be empty")
	}
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsParticipant(userID) {
		return nil, apperr.ErrNotParticipant
	}
	if limit <= 0 || limit > 100 {
		limit = DefaultPageSize
	}

	results, err := s.messages.Search(ctx, roomID, term, limit, skip)
	if err != nil {
		if errors.Is(err, apperr.ErrSearchUnavailable) {
			results, err = s.messages.SearchRegex(ctx, roomID, term, limit, skip)
			if err != nil {
				return nil, apperr.Internal(err)
			}
			return results, nil
		}
		return nil, apperr.Internal(err)
	}
	return results, nil
}

// GetUnreadCount 回傳成員的未讀數
// 未讀 = lastReadAt（或從未讀過時的 joinedAt）之後、非本人、未刪除的訊息數
func (s *MessageService) GetUnreadCount(ctx context.Context, roomID, userID primitive.ObjectID) (int64, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return 0, err
	}
	p := room.Participant(userID)
	if p == nil {
		return 0, apperr.ErrNotParticipant
	}
	return s.unreadFor(ctx, roomID, p)
}

func (s *MessageService) unreadFor(ctx context.Context, roomID primitive.ObjectID, p *models.Participant) (int64, error) {
	since := p.JoinedAt
	if p.LastReadAt != nil {
		since = *p.LastReadAt
	}
	count, err := s.messages.CountSince(ctx, roomID, p.UserID, since)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return count, nil
}

// GetAllUnreadCounts 回傳使用者所有聊天室的未讀數，鍵為聊天室 ID
func (s *MessageService) GetAllUnreadCounts(ctx context.Context, userID primitive.ObjectID) (map[string]int64, error) {
	rooms, err := s.rooms.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	counts := make(map[string]int64, len(rooms))
	for i := range rooms {
		p := rooms[i].Participant(userID)
		if p == nil {
			continue
		}
		n, err := s.unreadFor(ctx, rooms[i].ID, p)
		if err != nil {
			return nil, err
		}
		counts[rooms[i].ID.Hex()] = n
	}
	return counts, nil
}

// MarkAsRead 把成員的已讀游標推進到 readUntil（零值表示現在）
// 逐訊息的 readBy 紀錄是盡力而為，失敗不影響未讀數的正確性
func (s *MessageService) MarkAsRead(ctx context.Context, roomID, userID primitive.ObjectID, readUntil time.Time) error {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsParticipant(userID) {
		return apperr.ErrNotParticipant
	}

	now := s.now()
	if readUntil.IsZero() {
		readUntil = now
	}
	if err := s.rooms.SetLastRead(ctx, roomID, userID, readUntil); err != nil {
		return apperr.Internal(err)
	}
	if err := s.messages.AppendReadReceipts(ctx, roomID, userID, readUntil, now); err != nil {
		log.Printf("message: error appending read receipts for user %s in room %s: %v", userID.Hex(), roomID.Hex(), err)
	}
	return nil
}
