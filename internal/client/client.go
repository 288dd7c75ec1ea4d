// Package client はproductman APIのGoクライアントとクライアント側の認証セッションを提供する。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// DefaultTimeout はHTTPクライアントの既定タイムアウト。
const DefaultTimeout = 10 * time.Second

// APIError はAPIが返したエラーレスポンスを表す。
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  []FieldError
}

// FieldError は入力フィールド単位の検証エラー。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// IsStatus はerrが指定ステータスのAPIErrorかどうかを返す。
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// User はAPIが返すユーザー情報。
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsAdmin は管理者ユーザーかどうかを返す。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == "admin"
}

// AuthResult はログイン・登録の結果。
type AuthResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// Creator は商品の作成者情報。
type Creator struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Product はAPIが返す商品。
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"imageUrl"`
	CreatedBy   Creator   `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OwnedBy は商品がユーザーの作成したものかどうかを返す。
func (p *Product) OwnedBy(u *User) bool {
	return p != nil && u != nil && p.CreatedBy.ID == u.ID
}

// ProductInput は商品の作成・更新入力。nilのフィールドは送信しない。
type ProductInput struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
	ImageURL    *string  `json:"imageUrl,omitempty"`
}

// Pagination は一覧取得のページング情報。
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// ProductList は商品一覧の結果。
type ProductList struct {
	Items      []Product
	Pagination Pagination
}

// ListQuery は商品一覧の検索条件。ゼロ値の項目は送信しない。
type ListQuery struct {
	Page     int
	Limit    int
	Search   string
	Category string
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	return v
}

// Client はproductman APIのHTTPクライアント。
// 認証トークンは呼び出しごとの引数として渡し、クライアント自身は保持しない。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option はClientの生成オプション。
type Option func(*Client)

// WithHTTPClient は使用するhttp.Clientを差し替える。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New はbaseURL（例: http://localhost:8080）に対するClientを生成する。
func New(baseURL string, opts ...Option) *Client {
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = DefaultTimeout
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register はユーザーを登録する。
func (c *Client) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/users/register", "", body, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login はログインしてトークンを取得する。
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/users/login", "", body, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile はトークンの持ち主のユーザー情報を取得する。
func (c *Client) Profile(ctx context.Context, token string) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/api/users/profile", token, nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout はサーバー側でトークンを失効させる。
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/users/logout", token, nil, nil, nil)
}

// ListProducts は商品一覧を取得する。tokenは空でもよい。
func (c *Client) ListProducts(ctx context.Context, token string, q ListQuery) (*ProductList, error) {
	path := "/api/products"
	if v := q.values(); len(v) > 0 {
		path += "?" + v.Encode()
	}
	var out ProductList
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out.Items, &out.Pagination); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []Product{}
	}
	return &out, nil
}

// GetProduct は商品詳細を取得する。
func (c *Client) GetProduct(ctx context.Context, token, id string) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), token, nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProduct は商品を作成する。
func (c *Client) CreateProduct(ctx context.Context, token string, in ProductInput) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodPost, "/api/products", token, in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProduct は商品を更新する。
func (c *Client) UpdateProduct(ctx context.Context, token, id string, in ProductInput) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodPut, "/api/products/"+url.PathEscape(id), token, in, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProduct は商品を削除する。
func (c *Client) DeleteProduct(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/products/"+url.PathEscape(id), token, nil, nil, nil)
}

// envelope は成功・失敗レスポンスの共通部分。
type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Pagination json.RawMessage `json:"pagination"`
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Errors     []FieldError    `json:"errors"`
}

// do はリクエストを送信し、dataとpaginationをそれぞれdst、pageにデコードする。
func (c *Client) do(ctx context.Context, method, path, token string, body, dst, page any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Status:  resp.StatusCode,
			Code:    env.Code,
			Message: env.Message,
			Fields:  env.Errors,
		}
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	if dst != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			return fmt.Errorf("failed to decode data: %w", err)
		}
	}
	if page != nil && len(env.Pagination) > 0 {
		if err := json.Unmarshal(env.Pagination, page); err != nil {
			return fmt.Errorf("failed to decode pagination: %w", err)
		}
	}
	return nil
}
