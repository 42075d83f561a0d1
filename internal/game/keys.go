package game

// Key 客戶端回報的移動按鍵
type Key string

const (
	KeyNone      Key = ""
	KeyW         Key = "w"
	KeyS         Key = "s"
	KeyArrowUp   Key = "ArrowUp"
	KeyArrowDown Key = "ArrowDown"
)

// Valid 是否為可接受的按鍵（空字串代表放開）
func (k Key) Valid() bool {
	switch k {
	case KeyNone, KeyW, KeyS, KeyArrowUp, KeyArrowDown:
		return true
	}
	return false
}

// IsUp 向上
func (k Key) IsUp() bool {
	return k == KeyW || k == KeyArrowUp
}

// IsDown 向下
func (k Key) IsDown() bool {
	return k == KeyS || k == KeyArrowDown
}
