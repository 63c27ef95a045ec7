package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"go-rooms/backend/apperr"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// errorBody 是所有錯誤回應的固定形狀：穩定機器碼加人類可讀訊息
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON 統一輸出 JSON 回應
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// writeError 把領域錯誤對應到狀態碼與 {code, message} 本文
// 非領域錯誤一律輸出 INTERNAL_ERROR，不洩漏底層細節
func writeError(w http.ResponseWriter, err error) {
	appErr := apperr.From(err)
	writeJSON(w, appErr.Status, errorBody{Code: appErr.Code, Message: appErr.Message})
}

// pathObjectID 解析路徑參數中的 ObjectID
func pathObjectID(vars map[string]string, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(vars[name])
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}
