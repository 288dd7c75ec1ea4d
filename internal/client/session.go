package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
)

// State はクライアント側の認証状態。
type State int

const (
	// StateInitializing は保存済みトークンの確認前。
	StateInitializing State = iota
	// StateAuthenticated はユーザー情報を取得済み。
	StateAuthenticated
	// StateAnonymous は未ログイン。
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// 認証失敗時に表示する既定のメッセージ
const (
	MessageLoginFailed        = "Login failed"
	MessageRegistrationFailed = "Registration failed"
)

// AuthAPI はSessionが利用するAPI呼び出し。*Clientが実装する。
type AuthAPI interface {
	Register(ctx context.Context, name, email, password string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Profile(ctx context.Context, token string) (*User, error)
	Logout(ctx context.Context, token string) error
}

var _ AuthAPI = (*Client)(nil)

// AuthError はログイン・登録の失敗を表す。Messageはそのまま表示できる。
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }
func (e *AuthError) Unwrap() error { return e.Err }

// Snapshot はある時点のセッション状態。
type Snapshot struct {
	State           State
	Loading         bool
	User            *User
	IsAuthenticated bool
}

// Session はクライアント側の認証セッション。
// NewSessionで明示的に生成し、必要な箇所へ渡して使う。
type Session struct {
	api   AuthAPI
	store TokenStore

	mu    sync.RWMutex
	state State
	busy  bool
	user  *User
	token string
}

// NewSession はInitializing状態のSessionを生成する。
func NewSession(api AuthAPI, store TokenStore) *Session {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	return &Session{
		api:   api,
		store: store,
		state: StateInitializing,
	}
}

// Snapshot は現在の状態のコピーを返す。
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		State:           s.state,
		Loading:         s.state == StateInitializing || s.busy,
		IsAuthenticated: s.state == StateAuthenticated,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// Token はAPI呼び出しに渡す現在のトークンを返す。未認証の場合は空文字。
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateAuthenticated {
		return ""
	}
	return s.token
}

// Restore は保存済みトークンでプロフィールを取得し、状態を確定させる。
// トークンがない場合や取得に失敗した場合はAnonymousになり、トークンは破棄される。
func (s *Session) Restore(ctx context.Context) error {
	token, err := s.store.Load()
	if err != nil {
		s.invalidate()
		return err
	}
	if token == "" {
		s.invalidate()
		return nil
	}

	user, err := s.api.Profile(ctx, token)
	if err != nil {
		slog.Debug("session restore failed", slog.String("error", err.Error()))
		s.invalidate()
		return err
	}

	s.mu.Lock()
	s.state = StateAuthenticated
	s.user = user
	s.token = token
	s.mu.Unlock()
	return nil
}

// Login はログインし、成功した場合はトークンを保存してAuthenticatedになる。
// 失敗した場合はAnonymousになり、*AuthErrorを返す。
func (s *Session) Login(ctx context.Context, email, password string) error {
	s.setBusy(true)
	result, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.invalidate()
		return authError(err, MessageLoginFailed)
	}
	return s.establish(result)
}

// Register はユーザー登録し、成功した場合はトークンを保存してAuthenticatedになる。
// 失敗した場合はAnonymousになり、*AuthErrorを返す。
func (s *Session) Register(ctx context.Context, name, email, password string) error {
	s.setBusy(true)
	result, err := s.api.Register(ctx, name, email, password)
	if err != nil {
		s.invalidate()
		return authError(err, MessageRegistrationFailed)
	}
	return s.establish(result)
}

// Logout はサーバー側の失効を試みたうえで、トークンを破棄してAnonymousになる。
// サーバー呼び出しの失敗はログに残すのみで、ローカルの破棄は必ず行う。
func (s *Session) Logout(ctx context.Context) {
	token := s.Token()
	if token != "" {
		if err := s.api.Logout(ctx, token); err != nil {
			slog.Warn("server logout failed", slog.String("error", err.Error()))
		}
	}
	s.invalidate()
}

// HandleUnauthorized はAPI呼び出しのエラーが401の場合にセッションを無効化する。
// 無効化した場合はtrueを返す。
func (s *Session) HandleUnauthorized(err error) bool {
	if !IsStatus(err, http.StatusUnauthorized) {
		return false
	}
	s.invalidate()
	return true
}

func (s *Session) establish(result *AuthResult) error {
	if err := s.store.Save(result.Token); err != nil {
		s.invalidate()
		return &AuthError{Message: "Failed to store session", Err: err}
	}
	user := result.User

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAuthenticated
	s.busy = false
	s.user = &user
	s.token = result.Token
	return nil
}

// invalidate はトークンを破棄してAnonymousにする。
func (s *Session) invalidate() {
	if err := s.store.Clear(); err != nil {
		slog.Warn("failed to clear stored token", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAnonymous
	s.busy = false
	s.user = nil
	s.token = ""
}

func (s *Session) setBusy(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = busy
}

// authError はサーバーのメッセージがあればそれを、なければfallbackを持つAuthErrorを返す。
func authError(err error, fallback string) *AuthError {
	msg := fallback
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	return &AuthError{Message: msg, Err: err}
}
