package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error 是帶有穩定機器碼與 HTTP 狀態的領域錯誤
// 呼叫端必須依 Code 分支，不可比對 Message 文字
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Status    int    `json:"-"`
	Retryable bool   `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is 讓 errors.Is 以 Code 比對，方便用預宣告的錯誤值做型別分支
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage 回傳同 Code 但替換訊息的副本（例如補上禁言到期時間）
func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	clone := *e
	clone.Message = fmt.Sprintf(format, args...)
	return &clone
}

// 錯誤分類表：所有領域錯誤都從這裡宣告，路由層統一轉成狀態碼
var (
	ErrRoomNotFound      = &Error{Code: "ROOM_NOT_FOUND", Message: "Chat room not found", Status: http.StatusNotFound}
	ErrMessageNotFound   = &Error{Code: "MESSAGE_NOT_FOUND", Message: "Message not found", Status: http.StatusNotFound}
	ErrNotParticipant    = &Error{Code: "NOT_PARTICIPANT", Message: "You are not a participant of this room", Status: http.StatusForbidden}
	ErrNotAuthorized     = &Error{Code: "NOT_AUTHORIZED", Message: "You are not allowed to perform this action", Status: http.StatusForbidden}
	ErrUserMuted         = &Error{Code: "USER_MUTED", Message: "You are muted in this room", Status: http.StatusForbidden}
	ErrUserBanned        = &Error{Code: "USER_BANNED", Message: "You are banned from this room", Status: http.StatusForbidden}
	ErrAlreadyBanned     = &Error{Code: "ALREADY_BANNED", Message: "User is already banned from this room", Status: http.StatusConflict}
	ErrValidation        = &Error{Code: "VALIDATION_ERROR", Message: "Invalid request", Status: http.StatusBadRequest}
	ErrEmptyMessage      = &Error{Code: "EMPTY_MESSAGE", Message: "Message content must not be empty", Status: http.StatusBadRequest}
	ErrMessageTooLong    = &Error{Code: "MESSAGE_TOO_LONG", Message: "Message content exceeds the maximum length", Status: http.StatusBadRequest}
	ErrRoomFull          = &Error{Code: "ROOM_FULL", Message: "Chat room has reached its participant limit", Status: http.StatusForbidden}
	ErrRoomNotJoinable   = &Error{Code: "ROOM_NOT_JOINABLE", Message: "Chat room does not accept new participants", Status: http.StatusForbidden}
	ErrRateLimited       = &Error{Code: "RATE_LIMITED", Message: "Too many requests", Status: http.StatusTooManyRequests}
	ErrSearchUnavailable = &Error{Code: "SEARCH_UNAVAILABLE", Message: "Full-text search is not available", Status: http.StatusServiceUnavailable}
	ErrInternal          = &Error{Code: "INTERNAL_ERROR", Message: "Internal server error", Status: http.StatusInternalServerError, Retryable: true}
)

// Internal 把基礎設施錯誤包成可重試的 INTERNAL_ERROR
// 逾時不是 NOT_FOUND，不可對應到任何領域碼
func Internal(err error) *Error {
	clone := *ErrInternal
	if err != nil {
		clone.Message = "Internal server error"
	}
	return &clone
}

// From 取出錯誤鏈中的 *Error；不是領域錯誤時回傳 ErrInternal
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal
}
