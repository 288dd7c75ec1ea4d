package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrEmailTaken はメールアドレスが既に登録済みであることを示す。
	ErrEmailTaken = errors.New("email already registered")
	// ErrNotFound は更新・削除対象の行が存在しないことを示す。
	ErrNotFound = errors.New("record not found")
)

// PostgreSQLのエラーコード
const (
	pqUniqueViolation = "23505"
	pqInvalidTextRepr = "22P02"
)

// isUniqueViolation はユニーク制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation
}

// isInvalidTextRepresentation はUUIDなどの型変換エラーかどうかを判定する。
func isInvalidTextRepresentation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqInvalidTextRepr
}
