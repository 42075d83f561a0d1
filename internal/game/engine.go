// Package game 實作權威伺服器端的乒乓物理模擬。
//
// 系統設計問題：
//
//	兩個客戶端各自渲染畫面，如何保證雙方看到的是同一局遊戲？
//
// 設計方案：
//
//	✅ 伺服器權威：只有伺服器推進狀態，客戶端只回報按鍵
//	✅ 純函式：Tick(state, input, geometry) → state'，無時鐘、無全域變數
//	✅ 固定步進：速度大小固定，只翻轉方向，不隨時間縮放
//
// 每個 tick 的順序固定：
//
//	得分判定 → 球拍碰撞 → 邊界碰撞 → 球位移 → 球拍移動 → 更新矩形
//
// 碰撞判定使用上一個 tick 結束時算出的矩形，
// 所以偏移改變要到下一個 tick 才會影響碰撞結果。
package game

import (
	"math"
)

const (
	// MaxPhi 最大偏折角
	MaxPhi = 75.0
	// PaddleStep 每個 tick 球拍移動量（百分比）
	PaddleStep = 2.5
	// BallLimitY 球垂直偏移上限（百分比）
	BallLimitY = 48.7
	// InitialVelocity 球初始速度（兩軸相同）
	InitialVelocity = 2.0
)

// Vector 二維向量
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Points 比分
type Points struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
}

// Input 單一 tick 讀到的雙方按鍵
type Input struct {
	Player1 Key
	Player2 Key
}

// State 一局對戰的權威狀態
//
// Rects 是依偏移換算出的畫面矩形，供下一個 tick 的碰撞判定使用。
type State struct {
	Points        Points
	Player1Offset float64
	Player2Offset float64
	BallOffset    Vector
	BallVelocity  Vector
	BallPhi       float64

	Player1Rect Rect
	Player2Rect Rect
	BallRect    Rect
}

// Frame 廣播給客戶端的畫面資料
type Frame struct {
	Points        Points  `json:"points"`
	Player1Offset float64 `json:"player1Offset"`
	Player2Offset float64 `json:"player2Offset"`
	BallOffset    Vector  `json:"ballOffset"`
}

// NewState 以初始幾何建立置中的狀態
func NewState(g Geometry) State {
	return State{
		BallVelocity: Vector{X: InitialVelocity, Y: InitialVelocity},
		Player1Rect:  g.Player1,
		Player2Rect:  g.Player2,
		BallRect:     g.Ball,
	}
}

// Frame 取出要廣播的部分
func (s State) Frame() Frame {
	return Frame{
		Points:        s.Points,
		Player1Offset: s.Player1Offset,
		Player2Offset: s.Player2Offset,
		BallOffset:    s.BallOffset,
	}
}

// Tick 推進一個 tick
//
// 得分時只重置偏移與偏折角，球速沿用得分前的向量；
// 該 tick 不再做碰撞、位移與球拍移動，下一次廣播就是置中的畫面。
func Tick(s State, in Input, g Geometry) State {
	next := s

	if scored := checkScore(s, g); scored != 0 {
		if scored == 1 {
			next.Points.Player1++
		} else {
			next.Points.Player2++
		}
		next.reset()
		next.updateRects(g)
		return next
	}

	next.checkPaddleCollision()
	next.checkBoardCollision(g)
	next.moveBall()
	next.movePaddles(in, OffsetLimit(g))
	next.updateRects(g)

	return next
}

// checkScore 回傳得分方：1、2，或 0 表示無人得分
func checkScore(s State, g Geometry) int {
	switch {
	case s.BallRect.Left <= g.Board.Left:
		return 2
	case s.BallRect.Right >= g.Board.Right:
		return 1
	default:
		return 0
	}
}

func (s *State) checkPaddleCollision() {
	ball := s.BallRect
	p1, p2 := s.Player1Rect, s.Player2Rect

	switch {
	case ball.Left <= p1.Right &&
		ball.Top <= p1.Bottom &&
		ball.Bottom >= p1.Top &&
		ball.Left >= p1.Left &&
		ball.Left >= p1.Right-p1.Width/2:
		s.BallPhi = phi(p1, ball)
		s.BallVelocity.X = -s.BallVelocity.X

	case ball.Right >= p2.Left &&
		ball.Top <= p2.Bottom &&
		ball.Bottom >= p2.Top &&
		ball.Right <= p2.Right &&
		ball.Right <= p2.Left+p2.Width/2:
		s.BallPhi = phi(p2, ball)
		s.BallVelocity.X = -s.BallVelocity.X
	}
}

func (s *State) checkBoardCollision(g Geometry) {
	if s.BallRect.Top <= g.Board.Top || s.BallRect.Bottom >= g.Board.Bottom {
		s.BallVelocity.Y = -s.BallVelocity.Y
	}
}

// moveBall 水平不限制；垂直速度乘上 |sin(phi)|，擦邊球幾乎只走水平
func (s *State) moveBall() {
	s.BallOffset.X += s.BallVelocity.X
	s.BallOffset.Y = clamp(
		s.BallOffset.Y+s.BallVelocity.Y*math.Abs(math.Sin(s.BallPhi)),
		-BallLimitY,
		BallLimitY,
	)
}

func (s *State) movePaddles(in Input, limit float64) {
	s.Player1Offset = movePaddle(s.Player1Offset, in.Player1, limit)
	s.Player2Offset = movePaddle(s.Player2Offset, in.Player2, limit)
}

func movePaddle(offset float64, key Key, limit float64) float64 {
	if key.IsUp() && offset > -limit {
		offset = math.Max(offset-PaddleStep, -limit)
	}
	if key.IsDown() && offset < limit {
		offset = math.Min(offset+PaddleStep, limit)
	}
	return offset
}

// updateRects 以初始矩形加上目前偏移換算出新的畫面矩形
func (s *State) updateRects(g Geometry) {
	s.BallRect = g.Ball.translate(
		offsetToPx(s.BallOffset.X, g.Board.Width),
		offsetToPx(s.BallOffset.Y, g.Board.Height),
	)
	s.Player1Rect = g.Player1.translate(0, offsetToPx(s.Player1Offset, g.Board.Height))
	s.Player2Rect = g.Player2.translate(0, offsetToPx(s.Player2Offset, g.Board.Height))
}

func (s *State) reset() {
	s.Player1Offset = 0
	s.Player2Offset = 0
	s.BallOffset = Vector{}
	s.BallPhi = 0
}

// phi 依擊球點到球拍中心的距離計算偏折角
func phi(paddle, ball Rect) float64 {
	paddleCenter := paddle.Top + paddle.Height/2
	ballCenter := ball.Top + ball.Height/2
	return math.Abs(MaxPhi * (ballCenter - paddleCenter) / (paddle.Height/2 + ball.Height/2))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
