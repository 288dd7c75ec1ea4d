package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/productman/internal/model"
	"github.com/hitoshi/productman/internal/product"
)

// --- モック定義 ---

type mockProductService struct {
	listFn   func(ctx context.Context, params product.ListParams) (*product.ListResult, error)
	getFn    func(ctx context.Context, id string) (*model.Product, error)
	createFn func(ctx context.Context, identity *model.Identity, in model.ProductInput) (*model.Product, error)
	updateFn func(ctx context.Context, identity *model.Identity, id string, in model.ProductInput) (*model.Product, error)
	deleteFn func(ctx context.Context, identity *model.Identity, id string) error
}

func (m *mockProductService) List(ctx context.Context, params product.ListParams) (*product.ListResult, error) {
	return m.listFn(ctx, params)
}
func (m *mockProductService) Get(ctx context.Context, id string) (*model.Product, error) {
	return m.getFn(ctx, id)
}
func (m *mockProductService) Create(ctx context.Context, identity *model.Identity, in model.ProductInput) (*model.Product, error) {
	return m.createFn(ctx, identity, in)
}
func (m *mockProductService) Update(ctx context.Context, identity *model.Identity, id string, in model.ProductInput) (*model.Product, error) {
	return m.updateFn(ctx, identity, id, in)
}
func (m *mockProductService) Delete(ctx context.Context, identity *model.Identity, id string) error {
	return m.deleteFn(ctx, identity, id)
}

func testProduct() *model.Product {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.Product{
		ID:          "prod-1",
		Name:        "Widget",
		Description: "A small widget",
		Price:       9.99,
		Category:    model.CategoryElectronics,
		Stock:       5,
		ImageURL:    model.DefaultImageURL,
		CreatedBy:   "user-123",
		CreatedAt:   now,
		UpdatedAt:   now,
		Creator:     &model.Creator{ID: "user-123", Name: "Alice", Email: "a@x.com"},
	}
}

// --- GET /api/products ---

func TestProductHandler_ListProducts_ParsesQuery(t *testing.T) {
	var got product.ListParams
	svc := &mockProductService{
		listFn: func(ctx context.Context, params product.ListParams) (*product.ListResult, error) {
			got = params
			return &product.ListResult{
				Items:      []*model.Product{testProduct()},
				Pagination: model.Pagination{Page: 2, Limit: 4, Total: 5, Pages: 2},
			}, nil
		},
	}
	h := NewProductHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/products?page=2&limit=4&search=wid&category=electronics", nil)
	w := httptest.NewRecorder()
	h.ListProducts(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	want := product.ListParams{Page: 2, Limit: 4, Search: "wid", Category: "electronics"}
	if got != want {
		t.Errorf("params = %+v, want %+v", got, want)
	}

	env := decodeEnvelope(t, w)
	if env.Pagination == nil || env.Pagination.Pages != 2 || env.Pagination.Total != 5 {
		t.Errorf("pagination = %+v", env.Pagination)
	}
	var items []productResponse
	if err := json.Unmarshal(env.Data, &items); err != nil {
		t.Fatalf("failed to decode items: %v", err)
	}
	if len(items) != 1 || items[0].CreatedBy.Name != "Alice" {
		t.Errorf("items = %+v", items)
	}
}

func TestProductHandler_ListProducts_InvalidNumbersBecomeDefaults(t *testing.T) {
	var got product.ListParams
	svc := &mockProductService{
		listFn: func(ctx context.Context, params product.ListParams) (*product.ListResult, error) {
			got = params
			return &product.ListResult{}, nil
		},
	}
	h := NewProductHandler(svc)

	w := httptest.NewRecorder()
	h.ListProducts(w, httptest.NewRequest(http.MethodGet, "/api/products?page=abc&limit=", nil))

	if got.Page != 0 || got.Limit != 0 {
		t.Errorf("params = %+v, want zero page/limit", got)
	}

	// 空の一覧は null ではなく [] を返す
	env := decodeEnvelope(t, w)
	if string(env.Data) != "[]" {
		t.Errorf("data = %s, want []", env.Data)
	}
}

func TestProductHandler_ListProducts_UnknownCategory(t *testing.T) {
	svc := &mockProductService{
		listFn: func(ctx context.Context, params product.ListParams) (*product.ListResult, error) {
			return nil, model.NewValidationError([]model.FieldError{{Field: "category", Message: "bad"}})
		},
	}
	h := NewProductHandler(svc)

	w := httptest.NewRecorder()
	h.ListProducts(w, httptest.NewRequest(http.MethodGet, "/api/products?category=toys", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- GET /api/products/{id} ---

func TestProductHandler_GetProduct_NotFound(t *testing.T) {
	svc := &mockProductService{
		getFn: func(ctx context.Context, id string) (*model.Product, error) {
			if id != "missing" {
				t.Errorf("id = %q, want %q", id, "missing")
			}
			return nil, model.NewProductNotFoundError()
		},
	}
	h := NewProductHandler(svc)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/products/missing", nil), "id", "missing")
	w := httptest.NewRecorder()
	h.GetProduct(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if body := decodeError(t, w); body.Message != "Product not found" {
		t.Errorf("message = %q", body.Message)
	}
}

// --- POST /api/products ---

func TestProductHandler_CreateProduct(t *testing.T) {
	svc := &mockProductService{
		createFn: func(ctx context.Context, identity *model.Identity, in model.ProductInput) (*model.Product, error) {
			if identity.UserID != "user-123" {
				t.Errorf("identity = %+v", identity)
			}
			if in.Name == nil || *in.Name != "Widget" || in.Price == nil || *in.Price != 9.99 {
				t.Errorf("input = %+v", in)
			}
			if in.ImageURL != nil {
				t.Errorf("omitted imageUrl should be nil")
			}
			return testProduct(), nil
		},
	}
	h := NewProductHandler(svc)

	body := `{"name":"Widget","description":"A small widget","price":9.99,"category":"electronics","stock":5}`
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(body)), "user-123", model.RoleUser)
	w := httptest.NewRecorder()
	h.CreateProduct(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var p productResponse
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &p); err != nil {
		t.Fatalf("failed to decode product: %v", err)
	}
	if p.CreatedBy.ID != "user-123" {
		t.Errorf("createdBy = %+v", p.CreatedBy)
	}
}

func TestProductHandler_CreateProduct_ValidationErrors(t *testing.T) {
	svc := &mockProductService{
		createFn: func(ctx context.Context, identity *model.Identity, in model.ProductInput) (*model.Product, error) {
			return nil, model.NewValidationError([]model.FieldError{
				{Field: "name", Message: "Product name is required"},
				{Field: "price", Message: "Price is required"},
			})
		},
	}
	h := NewProductHandler(svc)

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(`{}`)), "user-123", model.RoleUser)
	w := httptest.NewRecorder()
	h.CreateProduct(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	body := decodeError(t, w)
	if len(body.Errors) != 2 {
		t.Errorf("errors = %+v, want 2 entries", body.Errors)
	}
}

func TestProductHandler_CreateProduct_NoIdentity(t *testing.T) {
	h := NewProductHandler(&mockProductService{})

	w := httptest.NewRecorder()
	h.CreateProduct(w, httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(`{}`)))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// --- PUT / DELETE /api/products/{id} ---

func TestProductHandler_UpdateProduct_Forbidden(t *testing.T) {
	svc := &mockProductService{
		updateFn: func(ctx context.Context, identity *model.Identity, id string, in model.ProductInput) (*model.Product, error) {
			return nil, model.NewForbiddenError("update")
		},
	}
	h := NewProductHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/products/prod-1", strings.NewReader(`{"name":"x"}`))
	req = withURLParam(withIdentity(req, "user-b", model.RoleUser), "id", "prod-1")
	w := httptest.NewRecorder()
	h.UpdateProduct(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if body := decodeError(t, w); body.Message != "Not authorized to update this product" {
		t.Errorf("message = %q", body.Message)
	}
}

func TestProductHandler_DeleteProduct(t *testing.T) {
	var gotID string
	svc := &mockProductService{
		deleteFn: func(ctx context.Context, identity *model.Identity, id string) error {
			gotID = id
			return nil
		},
	}
	h := NewProductHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/products/prod-1", nil)
	req = withURLParam(withIdentity(req, "user-123", model.RoleUser), "id", "prod-1")
	w := httptest.NewRecorder()
	h.DeleteProduct(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if gotID != "prod-1" {
		t.Errorf("id = %q, want %q", gotID, "prod-1")
	}
}

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewValidationError(nil), http.StatusBadRequest},
		{model.NewInvalidRequestError("x"), http.StatusBadRequest},
		{model.NewUnauthorizedError(), http.StatusUnauthorized},
		{model.NewInvalidTokenError(), http.StatusUnauthorized},
		{model.NewTokenExpiredError(), http.StatusUnauthorized},
		{model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{model.NewForbiddenError("delete"), http.StatusForbidden},
		{model.NewProductNotFoundError(), http.StatusNotFound},
		{model.NewUserNotFoundError(), http.StatusNotFound},
		{model.NewEmailTakenError(), http.StatusConflict},
		{model.NewInternalError(), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}
