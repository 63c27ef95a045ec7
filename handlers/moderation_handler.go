package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go-rooms/backend/apperr"
	"go-rooms/backend/services"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ModerationRequest 定義禁言／踢出／封鎖的請求體
type ModerationRequest struct {
	DurationMinutes int    `json:"durationMinutes"` // 僅 mute 使用；<=0 表示無限期
	Reason          string `json:"reason"`
}

// ModerationHandler 處理管理操作相關的路由
type ModerationHandler struct {
	moderation *services.ModerationService
}

// NewModerationHandler 建立管理操作路由處理器
func NewModerationHandler(moderation *services.ModerationService) *ModerationHandler {
	return &ModerationHandler{moderation: moderation}
}

// ids 解析路徑中的聊天室與目標使用者 ID
func moderationIDs(r *http.Request) (roomID, targetID primitive.ObjectID, ok bool) {
	vars := mux.Vars(r)
	roomID, ok = pathObjectID(vars, "id")
	if !ok {
		return
	}
	targetID, ok = pathObjectID(vars, "userId")
	return
}

func decodeModerationBody(r *http.Request) ModerationRequest {
	var req ModerationRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // 請求體可為空，欄位皆選填
	}
	return req
}

// Mute 處理禁言成員的請求
func (h *ModerationHandler) Mute(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID, targetID, ok := moderationIDs(r)
	if !ok {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid ID format"))
		return
	}

	req := decodeModerationBody(r)
	status, err := h.moderation.Mute(r.Context(), roomID, actor.ID, targetID, req.DurationMinutes, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Unmute 處理解除禁言的請求（冪等）
func (h *ModerationHandler) Unmute(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID, targetID, ok := moderationIDs(r)
	if !ok {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid ID format"))
		return
	}

	if err := h.moderation.Unmute(r.Context(), roomID, actor.ID, targetID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Kick 處理踢出成員的請求；不封鎖，房間開放時對方可再加入
func (h *ModerationHandler) Kick(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID, targetID, ok := moderationIDs(r)
	if !ok {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid ID format"))
		return
	}

	req := decodeModerationBody(r)
	if err := h.moderation.Kick(r.Context(), roomID, actor.ID, targetID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Ban 處理封鎖成員的請求
func (h *ModerationHandler) Ban(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID, targetID, ok := moderationIDs(r)
	if !ok {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid ID format"))
		return
	}

	req := decodeModerationBody(r)
	if err := h.moderation.Ban(r.Context(), roomID, actor.ID, targetID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Unban 處理解除封鎖的請求；對方需另行 join 才會恢復成員資格
func (h *ModerationHandler) Unban(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID, targetID, ok := moderationIDs(r)
	if !ok {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid ID format"))
		return
	}

	if err := h.moderation.Unban(r.Context(), roomID, actor.ID, targetID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// AssignModerator 處理指派管理員的請求，僅限擁有者
func (h *ModerationHandler) AssignModerator(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID, targetID, ok := moderationIDs(r)
	if !ok {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid ID format"))
		return
	}

	if err := h.moderation.AssignModerator(r.Context(), roomID, actor.ID, targetID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// RemoveModerator 處理移除管理員的請求，僅限擁有者
func (h *ModerationHandler) RemoveModerator(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID, targetID, ok := moderationIDs(r)
	if !ok {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid ID format"))
		return
	}

	if err := h.moderation.RemoveModerator(r.Context(), roomID, actor.ID, targetID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// MuteStatus 回傳呼叫者自己的禁言狀態，供客戶端重連後重查權威狀態
func (h *ModerationHandler) MuteStatus(w http.ResponseWriter, r *http.Request) {
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

	status, err := h.moderation.CheckMuteStatus(r.Context(), roomID, actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// BanStatus 回傳呼叫者自己的封鎖狀態
func (h *ModerationHandler) BanStatus(w http.ResponseWriter, r *http.Request) {
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

	status, err := h.moderation.CheckBanStatus(r.Context(), roomID, actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Logs 回傳聊天室的管理紀錄，僅限管理員或擁有者
func (h *ModerationHandler) Logs(w http.ResponseWriter, r *http.Request) {
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

	entries, err := h.moderation.Logs(r.Context(), roomID, actor.ID, limit, skip)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": entries})
}

// Stats 回傳聊天室的管理操作統計，僅限管理員或擁有者
func (h *ModerationHandler) Stats(w http.ResponseWriter, r *http.Request) {
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

	stats, err := h.moderation.Stats(r.Context(), roomID, actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
