package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageType 定義消息類型
type MessageType string

const (
	MessageTypeText         MessageType = "text"         // 一般訊息
	MessageTypeSystem       MessageType = "system"       // 系統訊息
	MessageTypeAnnouncement MessageType = "announcement" // 公告訊息
)

// MaxContentLength 是訊息內容（trim 後）的長度上限
const MaxContentLength = 2000

// ReadReceipt 是單則訊息上的已讀紀錄
// 權威未讀數以 participant.lastReadAt 游標計算，這裡只是輔助紀錄
type ReadReceipt struct {
	UserID primitive.ObjectID `bson:"user" json:"user"`
	ReadAt time.Time          `bson:"readAt" json:"readAt"`
}

// EditRecord 保存一次編輯前的舊內容
type EditRecord struct {
	Content  string    `bson:"content" json:"content"`
	EditedAt time.Time `bson:"editedAt" json:"editedAt"`
}

// Reaction 是單一使用者對訊息的反應，每人最多一筆（後寫覆蓋前寫）
type Reaction struct {
	UserID primitive.ObjectID `bson:"user" json:"user"`
	Emoji  string             `bson:"emoji" json:"emoji"`
}

// Message 代表一則聊天室訊息
// RoomID 與 CreatedAt 建立後不可變，CreatedAt 是分頁與時序的唯一排序鍵
type Message struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	RoomID         primitive.ObjectID   `bson:"roomId" json:"roomId"`
	SenderID       primitive.ObjectID   `bson:"senderId" json:"senderId"`
	SenderName     string               `bson:"senderName" json:"senderName"`
	Type           MessageType          `bson:"type" json:"type"`
	Content        string               `bson:"content" json:"content"`
	Mentions       []primitive.ObjectID `bson:"mentions,omitempty" json:"mentions,omitempty"`
	ReplyTo        *primitive.ObjectID  `bson:"replyTo,omitempty" json:"replyTo,omitempty"`
	ReadBy         []ReadReceipt        `bson:"readBy,omitempty" json:"readBy,omitempty"`
	Reactions      []Reaction           `bson:"reactions,omitempty" json:"reactions,omitempty"`
	IsEdited       bool                 `bson:"isEdited" json:"isEdited"`
	EditedAt       *time.Time           `bson:"editedAt,omitempty" json:"editedAt,omitempty"`
	EditHistory    []EditRecord         `bson:"editHistory,omitempty" json:"editHistory,omitempty"`
	IsDeleted      bool                 `bson:"isDeleted" json:"isDeleted"`
	DeletedAt      *time.Time           `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	DeletedBy      *primitive.ObjectID  `bson:"deletedBy,omitempty" json:"deletedBy,omitempty"`
	DeletionReason string               `bson:"deletionReason,omitempty" json:"deletionReason,omitempty"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
}
