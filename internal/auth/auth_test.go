package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/koopa0/system-design/pong-arena/internal/auth"
	apperrors "github.com/koopa0/system-design/pong-arena/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_Disabled(t *testing.T) {
	v := auth.NewVerifier("", false)
	assert.False(t, v.Enabled())

	id, err := v.Resolve("u1", true, "")
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{ID: "u1", IsGuest: true}, id)

	_, err = v.Resolve("", false, "some-token")
	assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.CodeOf(err))
}

func TestVerifier_Resolve(t *testing.T) {
	v := auth.NewVerifier("secret", false)
	strict := auth.NewVerifier("secret", true)
	other := auth.NewVerifier("other-secret", false)

	valid, err := v.Issue("alice", false, time.Hour)
	require.NoError(t, err)
	expired, err := v.Issue("alice", false, -time.Minute)
	require.NoError(t, err)
	forged, err := other.Issue("mallory", false, time.Hour)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{ID: "eve"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name     string
		verifier *auth.Verifier
		id       string
		isGuest  bool
		token    string
		want     auth.Identity
		wantErr  bool
	}{
		{name: "token overrides params", verifier: v, id: "bob", isGuest: true, token: valid, want: auth.Identity{ID: "alice"}},
		{name: "no token falls back to params", verifier: v, id: "bob", isGuest: true, want: auth.Identity{ID: "bob", IsGuest: true}},
		{name: "token required", verifier: strict, id: "bob", wantErr: true},
		{name: "required token present", verifier: strict, token: valid, want: auth.Identity{ID: "alice"}},
		{name: "expired", verifier: v, token: expired, wantErr: true},
		{name: "wrong secret", verifier: v, token: forged, wantErr: true},
		{name: "unsigned", verifier: v, token: noneToken, wantErr: true},
		{name: "garbage", verifier: v, token: "not-a-jwt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.verifier.Resolve(tt.id, tt.isGuest, tt.token)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
