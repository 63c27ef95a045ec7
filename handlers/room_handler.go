package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"go-rooms/backend/apperr"
	"go-rooms/backend/models"
	"go-rooms/backend/realtime"
	"go-rooms/backend/services"
	"go-rooms/backend/utils"

	"github.com/gorilla/mux"
)

// CreateRoomRequest 定義創建聊天室的請求體
type CreateRoomRequest struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	RoomType    models.RoomType      `json:"roomType"`
	Settings    *models.RoomSettings `json:"settings"`
}

// UpdateRoomRequest 定義更新聊天室的請求體，缺省欄位不變更
type UpdateRoomRequest struct {
	Name        *string              `json:"name"`
	Description *string              `json:"description"`
	Settings    *models.RoomSettings `json:"settings"`
}

// RoomHandler 處理聊天室生命週期與事件訂閱的路由
type RoomHandler struct {
	rooms *services.RoomService
	hub   *realtime.Hub
}

// NewRoomHandler 建立聊天室路由處理器
func NewRoomHandler(rooms *services.RoomService, hub *realtime.Hub) *RoomHandler {
	return &RoomHandler{rooms: rooms, hub: hub}
}

func actorFrom(r *http.Request) (services.Actor, error) {
	identity, err := utils.IdentityFromContext(r.Context())
	if err != nil {
		return services.Actor{}, err
	}
	return services.Actor{ID: identity.UserID, DisplayName: identity.DisplayName, Role: identity.Role}, nil
}

// Create 處理創建聊天室的請求
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid request body"))
		return
	}

	room, err := h.rooms.Create(r.Context(), actor, services.CreateRoomInput{
		Name:        req.Name,
		Description: req.Description,
		RoomType:    req.RoomType,
		Settings:    req.Settings,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// List 處理公開聊天室列表的請求
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.rooms.List(r.Context(), services.ListRoomsOptions{
		Page:     page,
		Limit:    limit,
		RoomType: models.RoomType(r.URL.Query().Get("roomType")),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Mine 處理獲取使用者所有聊天室的請求
func (h *RoomHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	rooms, err := h.rooms.Mine(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// Get 處理讀取單一聊天室的請求
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	room, err := h.rooms.Get(r.Context(), roomID, actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Update 處理更新聊天室的請求，僅限擁有者
func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.ErrValidation.WithMessage("Invalid request body"))
		return
	}

	room, err := h.rooms.Update(r.Context(), roomID, actor.ID, services.UpdateRoomInput{
		Name:        req.Name,
		Description: req.Description,
		Settings:    req.Settings,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Archive 處理封存聊天室的請求（軟刪除，歷史保留）
func (h *RoomHandler) Archive(w http.ResponseWriter, r *http.Request) {
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

	if err := h.rooms.Archive(r.Context(), roomID, actor); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Join 處理加入聊天室的請求
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
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

	room, err := h.rooms.Join(r.Context(), roomID, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Leave 處理退出聊天室的請求
func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
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

	if err := h.rooms.Leave(r.Context(), roomID, actor); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Subscribe 把連線升級為聊天室事件訂閱，僅限成員
func (h *RoomHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
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

	// 訂閱前重新確認成員資格，不信任任何快取狀態
	room, err := h.rooms.Get(r.Context(), roomID, actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !room.IsParticipant(actor.ID) {
		writeError(w, apperr.ErrNotParticipant)
		return
	}

	if err := h.hub.Subscribe(w, r, actor.ID.Hex(), roomID.Hex()); err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
	}
}
