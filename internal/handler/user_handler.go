package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/productman/internal/auth"
	"github.com/hitoshi/productman/internal/middleware"
	"github.com/hitoshi/productman/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
// auth.Serviceが実装する。
type UserServiceInterface interface {
	// Register はユーザーを登録し、トークンを発行する。
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	// Login は認証情報を検証し、トークンを発行する。
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	// Profile は認証済みユーザーの情報を返す。
	Profile(ctx context.Context, userID string) (*model.User, error)
	// Logout はトークンを失効させる。
	Logout(ctx context.Context, identity *model.Identity) error
}

// UserHandler はユーザー認証のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register はユーザー登録を処理する。
// POST /api/users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.service.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusCreated, toSessionResponse(session))
}

// Login はログインを処理する。
// POST /api/users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, toSessionResponse(session))
}

// Profile は認証済みユーザーの情報を返す。
// GET /api/users/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.Profile(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, toUserResponse(user))
}

// Logout はトークンを失効させる。
// POST /api/users/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Logout(r.Context(), identity); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toSessionResponse(s *auth.Session) sessionResponse {
	return sessionResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		User:      toUserResponse(s.User),
	}
}
