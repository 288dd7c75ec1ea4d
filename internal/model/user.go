// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleUser は一般ユーザー。登録時の既定値。
	RoleUser Role = "user"
	// RoleAdmin は全商品の更新・削除が可能な管理者。
	RoleAdmin Role = "admin"
)

// Valid はロールが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User はサービス利用ユーザーを表す。
// PasswordHash はレスポンスに含めてはならない。
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity は検証済みトークンから得られたリクエスト主体を表す。
type Identity struct {
	UserID    string
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}

// IsAdmin は管理者ロールかどうかを返す。
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}
