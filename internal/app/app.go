// Package app はサブコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/productman/internal/auth"
	"github.com/hitoshi/productman/internal/config"
	"github.com/hitoshi/productman/internal/database"
	"github.com/hitoshi/productman/internal/handler"
	"github.com/hitoshi/productman/internal/logger"
	"github.com/hitoshi/productman/internal/metrics"
	"github.com/hitoshi/productman/internal/middleware"
	"github.com/hitoshi/productman/internal/product"
	"github.com/hitoshi/productman/internal/repository"
	"github.com/hitoshi/productman/internal/security"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成する
	logger.SetupDefaultWithLevel(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandPromoteAdmin:
		return runPromoteAdmin(cfg, commandArg(args, 0))
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// マイグレーションを適用してから全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
		return err
	}
	slog.Info("database connection established")

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// 2. 失効トークンストア（任意）
	var revoked repository.RevokedTokenRepository
	if cfg.RedisURL != "" {
		redisRepo, err := repository.NewRedisRevokedTokenRepo(context.Background(), cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisRepo.Close()
		revoked = redisRepo
		slog.Info("token revocation store enabled")
	} else {
		slog.Warn("REDIS_URL is not set; logout will not revoke issued tokens")
	}

	// 3. ルーターの構築
	router, closeRouter, err := buildRouter(cfg, db, revoked)
	if err != nil {
		return err
	}
	defer closeRouter()

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildRouter はリポジトリ・サービス・ミドルウェアを組み立ててHTTPハンドラーを返す。
// revokedがnilの場合、ログアウトはトークンを失効させない。
// 返却されるクリーンアップ関数はレートリミッターのバックグラウンド処理を停止する。
func buildRouter(cfg *config.Config, db *sql.DB, revoked repository.RevokedTokenRepository) (http.Handler, func(), error) {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	productRepo := repository.NewPostgresProductRepo(db)

	// 3. 認証サービスの初期化
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token service: %w", err)
	}
	authOpts := []auth.ServiceOption{auth.WithMetrics(collector)}
	if revoked != nil {
		authOpts = append(authOpts, auth.WithRevokedTokenRepository(revoked))
	}
	authService := auth.NewService(userRepo, auth.NewPasswordHasher(cfg.BcryptCost), tokens, authOpts...)

	// 4. 商品サービスの初期化
	productService := product.NewService(
		productRepo,
		security.NewTextSanitizer(),
		security.NewImageURLValidator(),
		product.WithPageSize(cfg.ProductsPageSize),
		product.WithMetrics(collector),
	)

	// 5. ルーターの構築（レート制限はreq/min単位で設定する）
	limiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAuth),
		collector,
	)

	deps := &handler.RouterDeps{
		IdentityResolver:  authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		Logger:            slog.Default(),
		Metrics:           collector,

		HealthCheck: func(ctx context.Context) error {
			return database.Ping(ctx, db, 2*time.Second)
		},
		MetricsHandler: metrics.Handler(registry),

		UserService:    authService,
		ProductService: productService,
	}

	return handler.NewRouter(deps), limiter.Stop, nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runPromoteAdmin は指定メールアドレスのユーザーに管理者ロールを付与する。
func runPromoteAdmin(cfg *config.Config, email string) error {
	if email == "" {
		return errors.New("usage: productman promote-admin <email>")
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}
	svc := auth.NewService(repository.NewPostgresUserRepo(db), auth.NewPasswordHasher(cfg.BcryptCost), tokens)

	return svc.PromoteToAdmin(ctx, email)
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := cleanhttp.DefaultClient()
	client.Timeout = 5 * time.Second

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	u.RawQuery = ""
	return u.String()
}
