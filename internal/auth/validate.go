package auth

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/productman/internal/model"
)

// 登録入力の制約
const (
	MaxNameLength     = 50
	MinPasswordLength = 6
)

// RegisterInput はユーザー登録の入力を表す。
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// NormalizeEmail はメールアドレスを前後空白除去・小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateRegistration は登録入力を検証し、全フィールドのエラーをまとめて返す。
func ValidateRegistration(in RegisterInput) []model.FieldError {
	var errs []model.FieldError

	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		errs = append(errs, model.FieldError{Field: "name", Message: "Name is required"})
	case utf8.RuneCountInString(name) > MaxNameLength:
		errs = append(errs, model.FieldError{Field: "name", Message: "Name cannot exceed 50 characters"})
	}

	email := NormalizeEmail(in.Email)
	switch {
	case email == "":
		errs = append(errs, model.FieldError{Field: "email", Message: "Email is required"})
	case !isValidEmail(email):
		errs = append(errs, model.FieldError{Field: "email", Message: "Please enter a valid email"})
	}

	switch {
	case in.Password == "":
		errs = append(errs, model.FieldError{Field: "password", Message: "Password is required"})
	case utf8.RuneCountInString(in.Password) < MinPasswordLength:
		errs = append(errs, model.FieldError{Field: "password", Message: "Password must be at least 6 characters"})
	case len(in.Password) > MaxPasswordBytes:
		errs = append(errs, model.FieldError{Field: "password", Message: "Password cannot exceed 72 bytes"})
	}

	return errs
}

// isValidEmail は表示名なしの単一アドレスかどうかを判定する。
func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}
