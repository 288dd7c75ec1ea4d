// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/productman/internal/model"
)

// UserRepository はユーザーデータ（資格情報を含む）の永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（小文字正規化済み）でユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが重複する場合はErrEmailTakenを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateRole はユーザーのロールを更新する。
	// 対象ユーザーが存在しない場合はErrNotFoundを返す。
	UpdateRole(ctx context.Context, email string, role model.Role) error
}

// ProductRepository は商品データの永続化インターフェース。
type ProductRepository interface {
	// FindByID は指定IDの商品を作成者情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Product, error)

	// List は検索条件に一致する商品を created_at DESC, id DESC 順で取得し、
	// ページングを無視した総件数とともに返す。
	List(ctx context.Context, filter model.ProductFilter) ([]*model.Product, int, error)

	// Create は商品を作成する。
	Create(ctx context.Context, product *model.Product) error

	// Update は商品の可変フィールドを単一のUPDATE文で上書きする。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, product *model.Product) error

	// Delete は指定IDの商品を削除する。
	// 対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// RevokedTokenRepository は失効済みトークンIDの保存インターフェース。
type RevokedTokenRepository interface {
	// Revoke はトークンIDを有効期限まで失効扱いにする。
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error

	// IsRevoked はトークンIDが失効済みかどうかを返す。
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
