package ws

import (
	"github.com/koopa0/system-design/pong-arena/internal/protocol"
	apperrors "github.com/koopa0/system-design/pong-arena/pkg/errors"
)

// handleMessage 解碼、限流並分派一則訊息；錯誤以 error 訊息回覆，連線保持開啟
func (c *Connection) handleMessage(data []byte) {
	if !c.limiter.Allow() {
		c.replyError(apperrors.ErrRateLimited)
		return
	}

	req, err := protocol.Decode(data)
	if err != nil {
		c.hub.logger.Debug("無效的訊息",
			"player_id", c.player.ID(),
			"error", err)
		c.replyError(err)
		return
	}

	if err := c.dispatch(req); err != nil {
		c.hub.logger.Debug("請求失敗",
			"type", req.RequestType(),
			"player_id", c.player.ID(),
			"room_code", c.player.RoomCode(),
			"code", apperrors.CodeOf(err))
		c.replyError(err)
	}
}

func (c *Connection) dispatch(req protocol.Request) error {
	m := c.hub.manager
	p := c.player

	if _, ok := req.(protocol.Unknown); ok {
		c.hub.logger.Debug("忽略未知的訊息類型", "type", req.RequestType())
		return nil
	}

	// leave 對不在房間的連線是 no-op，不需要先 init
	switch req.(type) {
	case protocol.Init, protocol.Leave:
	default:
		if !p.Initialized() {
			return apperrors.ErrNotInitialized
		}
	}

	switch r := req.(type) {
	case protocol.Init:
		if p.Initialized() {
			return apperrors.ErrAlreadyInitialized
		}
		identity, err := c.hub.verifier.Resolve(r.ID, r.IsGuest, r.Token)
		if err != nil {
			return err
		}
		return m.Init(p, identity.ID, identity.IsGuest)

	case protocol.Create:
		_, err := m.Create(p)
		return err

	case protocol.Join:
		return m.Join(p, r.Code)

	case protocol.Search:
		return m.Search(p)

	case protocol.Leave:
		m.Leave(p)
		return nil

	case protocol.StartGame:
		return m.StartGame(p)

	case protocol.KeyPress:
		return m.KeyPress(p, r.Key)

	case protocol.InitOnlineGame:
		return m.InitOnlineGame(p, r.Geometry)
	}
	return nil
}

func (c *Connection) replyError(err error) {
	data, encErr := protocol.Encode(protocol.Error(apperrors.MessageOf(err)))
	if encErr != nil {
		c.hub.logger.Error("序列化錯誤訊息失敗", "error", encErr)
		return
	}
	_ = c.Send(data)
}
