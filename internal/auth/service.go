// Package auth はパスワード認証、セッショントークンの発行・検証、認可判定を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/productman/internal/metrics"
	"github.com/hitoshi/productman/internal/model"
	"github.com/hitoshi/productman/internal/repository"
)

// Session はログイン・登録成功時に返される発行済みトークンとユーザー。
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	revoked  repository.RevokedTokenRepository
	hasher   *PasswordHasher
	tokens   *TokenService
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// ServiceOption はServiceの生成オプション。
type ServiceOption func(*Service)

// WithRevokedTokenRepository はトークン失効ストアを設定する。
// 未設定の場合、ログアウトはクライアント側のトークン破棄のみとなる。
func WithRevokedTokenRepository(repo repository.RevokedTokenRepository) ServiceOption {
	return func(s *Service) {
		s.revoked = repo
	}
}

// WithMetrics はメトリクス収集先を設定する。
func WithMetrics(m metrics.MetricsCollector) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	hasher *PasswordHasher,
	tokens *TokenService,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		metrics:  metrics.Nop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register はユーザーを登録し、トークンを発行する。
// ロールは常にuserで作成される。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if errs := ValidateRegistration(in); len(errs) > 0 {
		s.metrics.RecordAuthEvent("register", "invalid")
		return nil, model.NewValidationError(errs)
	}

	email := NormalizeEmail(in.Email)

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		s.metrics.RecordAuthEvent("register", "conflict")
		return nil, model.NewEmailTakenError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// FindByEmailとCreateの間に同じアドレスで登録された場合
		if errors.Is(err, repository.ErrEmailTaken) {
			s.metrics.RecordAuthEvent("register", "conflict")
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthEvent("register", "success")
	slog.Info("user registered", slog.String("user_id", user.ID))
	return session, nil
}

// Login はメールアドレスとパスワードを検証し、トークンを発行する。
// 失敗理由（メール未登録・パスワード不一致）は区別しない。
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		s.metrics.RecordAuthEvent("login", "failure")
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.hasher.CompareDummy(password)
		s.metrics.RecordAuthEvent("login", "failure")
		return nil, model.NewInvalidCredentialsError()
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		s.metrics.RecordAuthEvent("login", "failure")
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthEvent("login", "success")
	slog.Info("user logged in", slog.String("user_id", user.ID))
	return session, nil
}

// Profile は認証済みユーザーの情報を返す。
func (s *Service) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Logout はトークンを失効させる。
// 失効ストアが未設定の場合は何もしない。
func (s *Service) Logout(ctx context.Context, identity *model.Identity) error {
	if identity == nil {
		return model.NewUnauthorizedError()
	}
	if s.revoked != nil && identity.TokenID != "" {
		if err := s.revoked.Revoke(ctx, identity.TokenID, identity.ExpiresAt); err != nil {
			return fmt.Errorf("failed to revoke token: %w", err)
		}
	}

	s.metrics.RecordAuthEvent("logout", "success")
	slog.Info("user logged out", slog.String("user_id", identity.UserID))
	return nil
}

// ResolveToken はトークンを検証し、リクエスト主体を返す。
// 期限切れはErrTokenExpired、それ以外（失効済み・削除済みユーザーを含む）はErrInvalidTokenを返す。
func (s *Service) ResolveToken(ctx context.Context, token string) (*model.Identity, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			s.metrics.RecordAuthEvent("token", "expired")
		} else {
			s.metrics.RecordAuthEvent("token", "invalid")
		}
		return nil, err
	}

	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			// 失効状態を確認できない場合は受け付けない
			slog.Error("failed to check token revocation",
				slog.String("error", err.Error()),
			)
			s.metrics.RecordAuthEvent("token", "error")
			return nil, fmt.Errorf("%w: revocation check failed", ErrInvalidToken)
		}
		if revoked {
			s.metrics.RecordAuthEvent("token", "revoked")
			return nil, fmt.Errorf("%w: token revoked", ErrInvalidToken)
		}
	}

	identity := claims.Identity()
	user, err := s.userRepo.FindByID(ctx, identity.UserID)
	if err != nil {
		slog.Error("failed to load token subject",
			slog.String("user_id", identity.UserID),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordAuthEvent("token", "error")
		return nil, fmt.Errorf("%w: user lookup failed", ErrInvalidToken)
	}
	if user == nil {
		s.metrics.RecordAuthEvent("token", "unknown_user")
		return nil, fmt.Errorf("%w: user no longer exists", ErrInvalidToken)
	}

	return identity, nil
}

// PromoteToAdmin は指定メールアドレスのユーザーを管理者にする。
func (s *Service) PromoteToAdmin(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if err := s.userRepo.UpdateRole(ctx, email, model.RoleAdmin); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("failed to promote user: %w", err)
	}
	slog.Info("user promoted to admin", slog.String("email", email))
	return nil
}

func (s *Service) issue(user *model.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
