package game

import (
	"fmt"
)

// Rect 畫面上的矩形（客戶端 getBoundingClientRect 的結果）
type Rect struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// translate 平移矩形，寬高不變
func (r Rect) translate(dx, dy float64) Rect {
	r.Left += dx
	r.Right += dx
	r.Top += dy
	r.Bottom += dy
	return r
}

// Geometry 對局開始時由發起方客戶端提供的幾何快照，之後不再改變
type Geometry struct {
	Player1 Rect `json:"player1Rect"`
	Player2 Rect `json:"player2Rect"`
	Ball    Rect `json:"ballRect"`
	Board   Rect `json:"gameBoardRect"`
}

// Validate 檢查幾何是否可用於計算
//
// 棋盤尺寸必須為正，球拍必須比棋盤矮，否則 OffsetLimit 不為正。
func (g Geometry) Validate() error {
	if g.Board.Width <= 0 || g.Board.Height <= 0 {
		return fmt.Errorf("game board must have positive size, got %vx%v", g.Board.Width, g.Board.Height)
	}
	if g.Player1.Height <= 0 || g.Player2.Height <= 0 {
		return fmt.Errorf("paddles must have positive height")
	}
	if g.Player1.Height >= g.Board.Height || g.Player2.Height >= g.Board.Height {
		return fmt.Errorf("paddles must be shorter than the game board")
	}
	if g.Ball.Width <= 0 || g.Ball.Height <= 0 {
		return fmt.Errorf("ball must have positive size")
	}
	return nil
}

// OffsetLimit 球拍偏移上限（百分比）：50 − (球拍高 / 棋盤高 × 100) / 2
//
// 兩個球拍都使用 player1 的高度計算。
func OffsetLimit(g Geometry) float64 {
	return 50 - (g.Player1.Height/g.Board.Height*100)/2
}

// offsetToPx 將百分比偏移換算為像素
func offsetToPx(offset, boardSize float64) float64 {
	return offset / 100 * boardSize
}
