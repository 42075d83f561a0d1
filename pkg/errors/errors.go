// Package errors 提供對戰伺服器的應用程式錯誤
//
// 所有會回傳給客戶端的錯誤都是 *AppError，
// Message 欄位就是 error 回應中 params.error 的文字。
package errors

import (
	"errors"
	"fmt"
)

// 定義錯誤碼
const (
	// ErrCodeMalformedMessage 訊息不是合法 JSON 或缺少必要欄位
	ErrCodeMalformedMessage = "MALFORMED_MESSAGE"
	// ErrCodeNotInitialized 尚未送出 init
	ErrCodeNotInitialized = "NOT_INITIALIZED"
	// ErrCodeAlreadyInitialized 重複送出 init
	ErrCodeAlreadyInitialized = "ALREADY_INITIALIZED"
	// ErrCodeRoomNotFound 房間不存在
	ErrCodeRoomNotFound = "ROOM_NOT_FOUND"
	// ErrCodeRoomFull 房間已滿
	ErrCodeRoomFull = "ROOM_FULL"
	// ErrCodeAlreadyInRoom 連線已在房間內
	ErrCodeAlreadyInRoom = "ALREADY_IN_ROOM"
	// ErrCodeNotInRoom 連線不在任何房間
	ErrCodeNotInRoom = "NOT_IN_ROOM"
	// ErrCodeRoomNotReady 房間人數不足，無法開始
	ErrCodeRoomNotReady = "ROOM_NOT_READY"
	// ErrCodeGameInProgress 倒數或對局已在進行
	ErrCodeGameInProgress = "GAME_IN_PROGRESS"
	// ErrCodeUnauthorized 身分驗證失敗
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeRateLimited 訊息頻率超限
	ErrCodeRateLimited = "RATE_LIMITED"
	// ErrCodeInternal 內部錯誤
	ErrCodeInternal = "INTERNAL_ERROR"
)

// AppError 應用程式錯誤
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error 實現 error 介面
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 實現 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 以錯誤碼比較
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 創建新的應用程式錯誤
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包裝錯誤
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 預定義錯誤（比較用，訊息文字可能與實際回傳的不同）
var (
	ErrNotInitialized     = New(ErrCodeNotInitialized, "Connection is not initialized")
	ErrAlreadyInitialized = New(ErrCodeAlreadyInitialized, "Connection is already initialized")
	ErrAlreadyInRoom      = New(ErrCodeAlreadyInRoom, "Already in a room")
	ErrNotInRoom          = New(ErrCodeNotInRoom, "Not in a room")
	ErrRoomNotReady       = New(ErrCodeRoomNotReady, "Room needs two players to start")
	ErrGameInProgress     = New(ErrCodeGameInProgress, "Game already started")
	ErrRateLimited        = New(ErrCodeRateLimited, "Too many messages")
)

// RoomNotFound 房間不存在
func RoomNotFound(code string) *AppError {
	return New(ErrCodeRoomNotFound, fmt.Sprintf("Room with code: %s does not exist", code))
}

// RoomFull 房間已滿
func RoomFull(code string) *AppError {
	return New(ErrCodeRoomFull, fmt.Sprintf("Room with code: %s is full", code))
}

// Malformed 訊息格式錯誤
func Malformed(reason string, err error) *AppError {
	return Wrap(err, ErrCodeMalformedMessage, "Malformed message: "+reason)
}

// Unauthorized 身分驗證失敗
func Unauthorized(err error) *AppError {
	return Wrap(err, ErrCodeUnauthorized, "Invalid identity token")
}

// CodeOf 取出錯誤碼，非 AppError 回傳 ErrCodeInternal
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// MessageOf 取出回給客戶端的訊息文字
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}

// IsRoomNotFound 檢查是否為房間不存在
func IsRoomNotFound(err error) bool {
	return CodeOf(err) == ErrCodeRoomNotFound
}

// IsRoomFull 檢查是否為房間已滿
func IsRoomFull(err error) bool {
	return CodeOf(err) == ErrCodeRoomFull
}

// IsMalformed 檢查是否為訊息格式錯誤
func IsMalformed(err error) bool {
	return CodeOf(err) == ErrCodeMalformedMessage
}
