package repository

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const revokedTokenPrefix = "productman:revoked:"

// RedisRevokedTokenRepo はRedisを使用した失効トークンリポジトリ。
// キーのTTLをトークンの残り有効期間に合わせるため、期限切れのエントリは自動で消える。
type RedisRevokedTokenRepo struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisRevokedTokenRepo はredis://形式のURLからRedisRevokedTokenRepoを生成し、疎通を確認する。
func NewRedisRevokedTokenRepo(ctx context.Context, redisURL string) (*RedisRevokedTokenRepo, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisRevokedTokenRepoWithClient(client), nil
}

// NewRedisRevokedTokenRepoWithClient は既存のクライアントからRedisRevokedTokenRepoを生成する。
func NewRedisRevokedTokenRepoWithClient(client *redis.Client) *RedisRevokedTokenRepo {
	return &RedisRevokedTokenRepo{client: client, now: time.Now}
}

// Revoke はトークンIDを有効期限まで失効扱いにする。
// 既に期限切れのトークンは保存しない。
func (r *RedisRevokedTokenRepo) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedTokenPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked はトークンIDが失効済みかどうかを返す。
func (r *RedisRevokedTokenRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedTokenPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return n > 0, nil
}

// Ping はRedisへの疎通を確認する。
func (r *RedisRevokedTokenRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close はRedisクライアントを閉じる。
func (r *RedisRevokedTokenRepo) Close() error {
	return r.client.Close()
}

// compile-time interface check
var _ RevokedTokenRepository = (*RedisRevokedTokenRepo)(nil)
