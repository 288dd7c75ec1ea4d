package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/productman/internal/middleware"
	"github.com/hitoshi/productman/internal/model"
	"github.com/hitoshi/productman/internal/product"
)

// ProductServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
// product.Serviceが実装する。
type ProductServiceInterface interface {
	List(ctx context.Context, params product.ListParams) (*product.ListResult, error)
	Get(ctx context.Context, id string) (*model.Product, error)
	Create(ctx context.Context, identity *model.Identity, in model.ProductInput) (*model.Product, error)
	Update(ctx context.Context, identity *model.Identity, id string, in model.ProductInput) (*model.Product, error)
	Delete(ctx context.Context, identity *model.Identity, id string) error
}

// ProductHandler は商品のHTTPハンドラー。
type ProductHandler struct {
	service ProductServiceInterface
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(service ProductServiceInterface) *ProductHandler {
	return &ProductHandler{service: service}
}

// productRequest は商品作成・更新リクエストのボディ。
// 省略されたフィールドはnilのまま残る。
type productRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Category    *string  `json:"category"`
	Stock       *float64 `json:"stock"`
	ImageURL    *string  `json:"imageUrl"`
}

func (req productRequest) toInput() model.ProductInput {
	return model.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	}
}

// ListProducts は商品一覧を返す。認証は不要。
// GET /api/products?page=&limit=&search=&category=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	result, err := h.service.List(r.Context(), product.ListParams{
		Page:     queryInt(q.Get("page")),
		Limit:    queryInt(q.Get("limit")),
		Search:   q.Get("search"),
		Category: q.Get("category"),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Success: true,
		Data:    toProductResponses(result.Items),
		Pagination: paginationResponse{
			Page:  result.Pagination.Page,
			Limit: result.Pagination.Limit,
			Total: result.Pagination.Total,
			Pages: result.Pagination.Pages,
		},
	})
}

// GetProduct は商品詳細を返す。
// GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, toProductResponse(p))
}

// CreateProduct は商品を作成する。
// POST /api/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Create(r.Context(), identity, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusCreated, toProductResponse(p))
}

// UpdateProduct は商品を更新する。作成者または管理者のみ。
// PUT /api/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Update(r.Context(), identity, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, toProductResponse(p))
}

// DeleteProduct は商品を削除する。作成者または管理者のみ。
// DELETE /api/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Delete(r.Context(), identity, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// queryInt はクエリパラメータを整数に変換する。不正な値は0として扱う。
func queryInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
