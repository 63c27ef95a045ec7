package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go-rooms/backend/apperr"
	"go-rooms/backend/models"
	"go-rooms/backend/services"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SendMessageRequest 定義送出訊息的請求體
type SendMessageRequest struct {
	Content string             `json:"content"`
	Type    models.MessageType `json:"type"`
	ReplyTo string             `json:"replyTo"`
}

// EditMessageRequest 定義編輯訊息的請求體
type EditMessageRequest struct {
	Content string `json:"content"`
}

// ReactRequest 定義設定反應的請求體
type ReactRequest struct {
	Emoji string `json:"emoji"`
}

// DeleteMessageRequest 定義刪除訊息的請求體
type DeleteMessageRequest struct {
	Reason string `json:"reason"`
}

// MarkReadRequest 定義推進已讀游標的請求體；readUntil 缺省表示現在
type MarkReadRequest struct {
	ReadUntil *time.Time `json:"readUntil"`
}

// MessageHandler 處理訊息讀寫相關的路由
type MessageHandler struct {
	messages *services.MessageService
}

// NewMessageHandler 建立訊息路由處理器
func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// Send 處理送出訊息的請求
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID, ok := pathObjectID(mux.Vars(r), "id")
	if !ok {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid room ID format"))
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid request body"))
		return
	}

	input := services.SendMessageInput{Content: req.Content, Type: req.Type}
	if req.ReplyTo != "" {
		replyTo, err := primitive.ObjectIDFromHex(req.ReplyTo)
		if err != nil {
			writeError(w, apperr.ErrValidation.WithMessage("Invalid replyTo message ID format"))
			return
		}
		input.ReplyTo = &replyTo
	}

	msg, err := h.messages.SendMessage(r.Context(), roomID, actor, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// List 處理訊息分頁讀取的請求
// before/after 是 getMessages 回傳的 ISO 時間戳游標
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID, ok := pathObjectID(mux.Vars(r), "id")
	if !ok {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid room ID format"))
		return
	}

	query := r.URL.Query()
	opts := services.ListMessagesOptions{IncludeDeleted: query.Get("includeDeleted") == "true"}
	opts.Limit, _ = strconv.Atoi(query.Get("limit"))
	if v := query.Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeError(w, apperr.ErrValidation.WithMessage("Invalid before cursor"))
			return
		}
		opts.Before = &t
	}
	if v := query.Get("after"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeError(w, apperr.ErrValidation.WithMessage("Invalid after cursor"))
			return
		}
		opts.After = &t
	}

	page, err := h.messages.GetMessages(r.Context(), roomID, actor.ID, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Delete 處理軟刪除訊息的請求
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	messageID, ok := pathObjectID(mux.Vars(r), "mid")
	if !ok {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid message ID format"))
		return
	}

	var req DeleteMessageRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // 請求體可為空，reason 選填
	}

	if err := h.messages.DeleteMessage(r.Context(), messageID, actor.ID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Edit 處理編輯訊息的請求，僅限發送者
func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	messageID, ok := pathObjectID(mux.Vars(r), "mid")
	if !ok {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid message ID format"))
		return
	}

	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid request body"))
		return
	}

	msg, err := h.messages.EditMessage(r.Context(), messageID, actor.ID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// React 處理設定訊息反應的請求（每人每訊息一筆，覆蓋前一筆）
func (h *MessageHandler) React(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	messageID, ok := pathObjectID(mux.Vars(r), "mid")
	if !ok {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid message ID format"))
		return
	}

	var req ReactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid request body"))
		return
	}

	if err := h.messages.ReactToMessage(r.Context(), messageID, actor.ID, req.Emoji); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Search 處理訊息搜尋的請求
func (h *MessageHandler) Search(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID, ok := pathObjectID(mux.Vars(r), "id")
	if !ok {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid room ID format"))
		return
	}

	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	skip, _ := strconv.Atoi(query.Get("skip"))

	results, err := h.messages.SearchMessages(r.Context(), roomID, actor.ID, query.Get("q"), limit, skip)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// MarkRead 處理推進已讀游標的請求
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID, ok := pathObjectID(mux.Vars(r), "id")
	if !ok {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid room ID format"))
		return
	}

	var req MarkReadRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // 請求體可為空，readUntil 預設為現在
	}
	var readUntil time.Time
	if req.ReadUntil != nil {
		readUntil = *req.ReadUntil
	}

	if err := h.messages.MarkAsRead(r.Context(), roomID, actor.ID, readUntil); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Unread 處理單一聊天室未讀數的請求
func (h *MessageHandler) Unread(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID, ok := pathObjectID(mux.Vars(r), "id")
	if !ok {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid room ID format"))
		return
	}

	count, err := h.messages.GetUnreadCount(r.Context(), roomID, actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unread": count})
}

// AllUnread 回傳使用者所有聊天室的未讀數
func (h *MessageHandler) AllUnread(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	counts, err := h.messages.GetAllUnreadCounts(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"unread": counts})
}
