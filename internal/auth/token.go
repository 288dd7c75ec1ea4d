package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/productman/internal/model"
)

// TokenIssuer はトークンのiss claimに設定される発行者名。
const TokenIssuer = "productman"

var (
	// ErrTokenExpired はトークンの有効期限切れを示す。
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidToken は署名不正・形式不正・失効済みなど、期限切れ以外の検証失敗を示す。
	ErrInvalidToken = errors.New("invalid token")
)

// Claims はセッショントークンのペイロード。
// sub にユーザーID、jti にトークンIDを持つ。
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Identity はClaimsからリクエスト主体を構築する。
func (c *Claims) Identity() *model.Identity {
	identity := &model.Identity{
		UserID:  c.Subject,
		Role:    model.Role(c.Role),
		TokenID: c.ID,
	}
	if c.ExpiresAt != nil {
		identity.ExpiresAt = c.ExpiresAt.Time
	}
	return identity
}

// TokenService はHS256署名のセッショントークンを発行・検証する。
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption はTokenServiceの生成オプション。
type TokenOption func(*TokenService)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService はTokenServiceを生成する。
// 署名鍵が空、または有効期間が0以下の場合はエラーを返す。
func NewTokenService(secret string, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token TTL must be positive: %s", ttl)
	}
	s := &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL はトークンの有効期間を返す。
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue はユーザーに対して署名済みトークンを発行し、有効期限とともに返す。
func (s *TokenService) Issue(user *model.User) (string, time.Time, error) {
	if user == nil || user.ID == "" {
		return "", time.Time{}, fmt.Errorf("user ID is required to issue a token")
	}
	role := user.Role
	if !role.Valid() {
		role = model.RoleUser
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			Issuer:    TokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	// NumericDateは秒精度のため、返却する有効期限も揃える
	return token, claims.ExpiresAt.Time, nil
}

// Verify はトークンの署名・発行者・有効期限を検証し、Claimsを返す。
// 有効期限切れはErrTokenExpired、それ以外の失敗はErrInvalidTokenを返す。
func (s *TokenService) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" || claims.ID == "" || !model.Role(claims.Role).Valid() {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
