// Package protocol 定義客戶端與伺服器之間的 JSON 訊息
//
// 所有訊息都是扁平的 {type, params?} 物件，params 形狀由 type 決定。
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/koopa0/system-design/pong-arena/internal/game"
	apperrors "github.com/koopa0/system-design/pong-arena/pkg/errors"
)

// 請求類型
const (
	TypeInit           = "init"
	TypeCreate         = "create"
	TypeJoin           = "join"
	TypeSearch         = "search"
	TypeLeave          = "leave"
	TypeStartGame      = "startGame"
	TypeKeyPress       = "keyPress"
	TypeInitOnlineGame = "initOnlineGame"
)

// Request 解碼後的請求
type Request interface {
	RequestType() string
}

// Init 綁定連線身分；Token 非空時由驗證器決定身分
type Init struct {
	ID      string
	IsGuest bool
	Token   string
}

type Create struct{}

type Join struct {
	Code string
}

type Search struct{}

type Leave struct{}

type StartGame struct{}

type KeyPress struct {
	Key game.Key
}

type InitOnlineGame struct {
	Geometry game.Geometry
}

// Unknown 格式正確但類型未知，呼叫端應忽略
type Unknown struct {
	Type string
}

func (Init) RequestType() string           { return TypeInit }
func (Create) RequestType() string         { return TypeCreate }
func (Join) RequestType() string           { return TypeJoin }
func (Search) RequestType() string         { return TypeSearch }
func (Leave) RequestType() string          { return TypeLeave }
func (StartGame) RequestType() string      { return TypeStartGame }
func (KeyPress) RequestType() string       { return TypeKeyPress }
func (InitOnlineGame) RequestType() string { return TypeInitOnlineGame }
func (u Unknown) RequestType() string      { return u.Type }

type envelope struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params"`
}

type initParams struct {
	ID      string `json:"id"`
	IsGuest bool   `json:"isGuest"`
	Token   string `json:"token"`
}

type joinParams struct {
	Code string `json:"code"`
}

type keyPressParams struct {
	KeyPressed *string `json:"keyPressed"`
}

// Decode 解碼一則客戶端訊息
//
// 不是合法 JSON 或缺少 type 時回傳 MALFORMED_MESSAGE；
// 未知的 type 回傳 Unknown 而不是錯誤。
func Decode(data []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperrors.Malformed("invalid JSON", err)
	}

	switch env.Type {
	case "":
		return nil, apperrors.Malformed("missing type", nil)

	case TypeInit:
		var p initParams
		if err := decodeParams(env.Params, &p); err != nil {
			return nil, err
		}
		if p.ID == "" && p.Token == "" {
			return nil, apperrors.Malformed("init requires id or token", nil)
		}
		return Init{ID: p.ID, IsGuest: p.IsGuest, Token: p.Token}, nil

	case TypeCreate:
		return Create{}, nil

	case TypeJoin:
		var p joinParams
		if err := decodeParams(env.Params, &p); err != nil {
			return nil, err
		}
		if p.Code == "" {
			return nil, apperrors.Malformed("join requires code", nil)
		}
		return Join{Code: p.Code}, nil

	case TypeSearch:
		return Search{}, nil

	case TypeLeave:
		return Leave{}, nil

	case TypeStartGame:
		return StartGame{}, nil

	case TypeKeyPress:
		var p keyPressParams
		if err := decodeParams(env.Params, &p); err != nil {
			return nil, err
		}
		if p.KeyPressed == nil {
			return nil, apperrors.Malformed("keyPress requires keyPressed", nil)
		}
		key := game.Key(*p.KeyPressed)
		if !key.Valid() {
			return nil, apperrors.Malformed(fmt.Sprintf("unknown key %q", *p.KeyPressed), nil)
		}
		return KeyPress{Key: key}, nil

	case TypeInitOnlineGame:
		var g game.Geometry
		if err := decodeParams(env.Params, &g); err != nil {
			return nil, err
		}
		if err := g.Validate(); err != nil {
			return nil, apperrors.Malformed("invalid geometry", err)
		}
		return InitOnlineGame{Geometry: g}, nil

	default:
		return Unknown{Type: env.Type}, nil
	}
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return apperrors.Malformed("missing params", nil)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperrors.Malformed("invalid params", err)
	}
	return nil
}
