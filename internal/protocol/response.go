package protocol

import (
	"encoding/json"

	"github.com/koopa0/system-design/pong-arena/internal/game"
)

// 回應類型
const (
	TypeInitialized       = "initialized"
	TypeCreated           = "created"
	TypeJoined            = "joined"
	TypeOtherPlayerJoined = "otherPlayerJoined"
	TypeOtherPlayerLeft   = "otherPlayerLeft"
	TypeError             = "error"
	TypeGameStarting      = "gameStarting"
	TypeCountdown         = "countdown"
	TypeUpdate            = "update"
)

// Message 伺服器送出的訊息
type Message struct {
	Type   string `json:"type"`
	Params any    `json:"params,omitempty"`
}

// PlayerInfo 對手身分
type PlayerInfo struct {
	ID      string `json:"id"`
	IsGuest bool   `json:"isGuest"`
}

type createdParams struct {
	RoomID string `json:"roomId"`
}

type joinedParams struct {
	RoomID      string     `json:"roomId"`
	OtherPlayer PlayerInfo `json:"otherPlayer"`
}

type otherPlayerJoinedParams struct {
	Player PlayerInfo `json:"player"`
}

type errorParams struct {
	Error string `json:"error"`
}

type countdownParams struct {
	Count int `json:"count"`
}

// Encode 序列化訊息
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func Initialized() Message {
	return Message{Type: TypeInitialized}
}

func Created(roomID string) Message {
	return Message{Type: TypeCreated, Params: createdParams{RoomID: roomID}}
}

func Joined(roomID string, other PlayerInfo) Message {
	return Message{Type: TypeJoined, Params: joinedParams{RoomID: roomID, OtherPlayer: other}}
}

func OtherPlayerJoined(player PlayerInfo) Message {
	return Message{Type: TypeOtherPlayerJoined, Params: otherPlayerJoinedParams{Player: player}}
}

func OtherPlayerLeft() Message {
	return Message{Type: TypeOtherPlayerLeft}
}

func Error(text string) Message {
	return Message{Type: TypeError, Params: errorParams{Error: text}}
}

func GameStarting() Message {
	return Message{Type: TypeGameStarting}
}

func Countdown(count int) Message {
	return Message{Type: TypeCountdown, Params: countdownParams{Count: count}}
}

func Update(frame game.Frame) Message {
	return Message{Type: TypeUpdate, Params: frame}
}
