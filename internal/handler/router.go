// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/productman/internal/metrics"
	"github.com/hitoshi/productman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	IdentityResolver  middleware.IdentityResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// 運用エンドポイント
	HealthCheck    HealthChecker
	MetricsHandler http.Handler

	// ユーザー
	UserService UserServiceInterface

	// 商品
	ProductService ProductServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → Metrics → SecurityHeaders → CORS → Auth → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	// CORS ミドルウェアはプリフライトに応答するため認証より前に置く
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	userHandler := NewUserHandler(deps.UserService)
	productHandler := NewProductHandler(deps.ProductService)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthCheck))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- API ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.IdentityResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/", Root)

		r.Route("/api/users", func(r chi.Router) {
			// ログイン・登録はIP単位の専用レート制限を追加
			r.With(deps.RateLimiter.AuthMiddleware()).Post("/register", userHandler.Register)
			r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", userHandler.Login)

			r.With(middleware.RequireAuth).Get("/profile", userHandler.Profile)
			r.With(middleware.RequireAuth).Post("/logout", userHandler.Logout)
		})

		r.Route("/api/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.With(middleware.RequireAuth).Post("/", productHandler.CreateProduct)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", productHandler.GetProduct)
				r.With(middleware.RequireAuth).Put("/", productHandler.UpdateProduct)
				r.With(middleware.RequireAuth).Delete("/", productHandler.DeleteProduct)
			})
		})
	})

	return r
}
