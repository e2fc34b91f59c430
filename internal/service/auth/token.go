package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"marketplace/internal/config"
	"marketplace/internal/model"
	"marketplace/pkg/utils"
)

// Claims carried by access and refresh tokens.
type Claims struct {
	UserID   uint   `json:"uid"`
	Role     string `json:"role"`
	TenantID *uint  `json:"tid,omitempty"`
	Refresh  bool   `json:"refresh,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies JWTs.
type TokenManager struct {
	secret     []byte
	issuer     string
	ttl        time.Duration
	refreshTTL time.Duration
}

// NewTokenManager creates a token manager from config.
func NewTokenManager(cfg config.JWTConfig) *TokenManager {
	return &TokenManager{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		ttl:        cfg.Expire,
		refreshTTL: cfg.RefreshTTL,
	}
}

// TokenPair an access token with its refresh counterpart.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Issue signs a token pair for the user.
func (m *TokenManager) Issue(user *model.User) (*TokenPair, error) {
	access, err := m.sign(user, false, m.ttl)
	if err != nil {
		return nil, err
	}
	refresh, err := m.sign(user, true, m.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.ttl.Seconds()),
	}, nil
}

func (m *TokenManager) sign(user *model.User, refresh bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Role:     string(user.Role),
		TenantID: user.TenantID,
		Refresh:  refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse verifies a token and returns its claims.
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, utils.ErrUnauthorized
	}
	return claims, nil
}
