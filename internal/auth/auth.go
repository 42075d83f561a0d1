// Package auth 驗證 init 訊息中的身分 token
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	apperrors "github.com/koopa0/system-design/pong-arena/pkg/errors"
)

// Claims 身分 token 的內容
type Claims struct {
	ID      string `json:"id"`
	IsGuest bool   `json:"isGuest"`
	jwt.RegisteredClaims
}

// Identity 連線身分
type Identity struct {
	ID      string
	IsGuest bool
}

// Verifier HS256 token 驗證器
//
// 沒有設定 secret 時直接採信客戶端送來的身分。
type Verifier struct {
	secret       []byte
	requireToken bool
}

func NewVerifier(secret string, requireToken bool) *Verifier {
	return &Verifier{secret: []byte(secret), requireToken: requireToken}
}

// Enabled 是否設定了 secret
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Resolve 決定 init 的最終身分
func (v *Verifier) Resolve(id string, isGuest bool, token string) (Identity, error) {
	if !v.Enabled() {
		if id == "" {
			return Identity{}, apperrors.Unauthorized(fmt.Errorf("token verification is disabled"))
		}
		return Identity{ID: id, IsGuest: isGuest}, nil
	}

	if token == "" {
		if v.requireToken {
			return Identity{}, apperrors.Unauthorized(fmt.Errorf("missing token"))
		}
		return Identity{ID: id, IsGuest: isGuest}, nil
	}

	claims, err := v.Parse(token)
	if err != nil {
		return Identity{}, apperrors.Unauthorized(err)
	}
	return Identity{ID: claims.ID, IsGuest: claims.IsGuest}, nil
}

// Parse 驗證簽章與有效期限
func (v *Verifier) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("token has no id claim")
	}
	return claims, nil
}

// Issue 簽發 token，供測試與管理工具使用
func (v *Verifier) Issue(id string, isGuest bool, ttl time.Duration) (string, error) {
	claims := Claims{
		ID:      id,
		IsGuest: isGuest,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
