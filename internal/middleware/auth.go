// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/productman/internal/auth"
	"github.com/hitoshi/productman/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	identityContextKey    = contextKey("identity")
	authFailureContextKey = contextKey("auth_failure")
)

// IdentityResolver はBearerトークンから認証済みIDを解決するインターフェース。
// auth.Serviceの部分集合として定義する。
type IdentityResolver interface {
	ResolveToken(ctx context.Context, token string) (*model.Identity, error)
}

// errMalformedHeader はAuthorizationヘッダーがBearer形式でないことを示す。
var errMalformedHeader = errors.New("malformed authorization header")

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 認証済みIDをリクエストコンテキストに注入するミドルウェアを返す。
// トークンがない、または無効な場合も匿名リクエストとして後続に渡す。
// 無効だった理由はRequireAuthが応答を決めるためにコンテキストへ保持する。
func NewAuthMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			token, ok := parseBearer(header)
			if !ok {
				ctx = context.WithValue(ctx, authFailureContextKey, errMalformedHeader)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			identity, err := resolver.ResolveToken(ctx, token)
			if err != nil {
				slog.Debug("bearer token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				ctx = context.WithValue(ctx, authFailureContextKey, err)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if info := requestInfoFromContext(ctx); info != nil {
				info.userID = identity.UserID
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(ctx, identity)))
		})
	}
}

// RequireAuth は認証済みIDのないリクエストを401で拒否する。
// NewAuthMiddlewareの後に配置する。
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		WriteErrorResponse(w, http.StatusUnauthorized, unauthorizedError(r.Context()))
	})
}

// unauthorizedError は認証失敗の理由に応じたエラーを返す。
func unauthorizedError(ctx context.Context) *model.APIError {
	reason, _ := ctx.Value(authFailureContextKey).(error)
	switch {
	case reason == nil:
		return model.NewUnauthorizedError()
	case errors.Is(reason, auth.ErrTokenExpired):
		return model.NewTokenExpiredError()
	default:
		return model.NewInvalidTokenError()
	}
}

// parseBearer は "Bearer <token>" 形式のヘッダーからトークンを取り出す。
// スキーム名の大文字小文字は区別しない。
func parseBearer(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// IdentityFromContext はリクエストコンテキストから認証済みIDを取得する。
// 認証ミドルウェアで有効なトークンが確認されたリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	if !ok || identity == nil || identity.UserID == "" {
		return nil, false
	}
	return identity, true
}

// ContextWithIdentity はコンテキストに認証済みIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
