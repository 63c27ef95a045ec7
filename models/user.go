package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RegisterRequest 結構體用於處理註冊請求
type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

// LoginRequest 結構體用於處理登入請求
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User 是身分邊界的最小使用者資料
// 本服務只負責換發帶有 (userId, displayName, role) 的 token
type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Email       string             `bson:"email" json:"email"`
	DisplayName string             `bson:"displayName" json:"displayName"`
	Role        string             `bson:"role" json:"role"`
	Password    string             `bson:"password" json:"-"` // 儲存哈希後的密碼，JSON 輸出時忽略
}
