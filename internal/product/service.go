// Package product は商品の一覧検索・参照・作成・更新・削除のドメインロジックを提供する。
package product

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/productman/internal/auth"
	"github.com/hitoshi/productman/internal/metrics"
	"github.com/hitoshi/productman/internal/model"
	"github.com/hitoshi/productman/internal/repository"
	"github.com/hitoshi/productman/internal/security"
)

// ページングの既定値
const (
	DefaultPageSize = 8
	MaxPageSize     = 100
	CategoryAll     = "all"
)

// ListParams は一覧取得の入力。0以下の値は既定値に置き換えられる。
type ListParams struct {
	Page     int
	Limit    int
	Search   string
	Category string
}

// ListResult は一覧取得の結果。
type ListResult struct {
	Items      []*model.Product
	Pagination model.Pagination
}

// Service は商品のサービス層。
type Service struct {
	repo      repository.ProductRepository
	sanitizer security.TextSanitizerService
	images    security.ImageURLValidatorService
	metrics   metrics.MetricsCollector
	pageSize  int
	now       func() time.Time
}

// Option はServiceの生成オプション。
type Option func(*Service)

// WithPageSize は一覧取得の既定件数を設定する。
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 && n <= MaxPageSize {
			s.pageSize = n
		}
	}
}

// WithMetrics はメトリクス収集先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.ProductRepository,
	sanitizer security.TextSanitizerService,
	images security.ImageURLValidatorService,
	opts ...Option,
) *Service {
	s := &Service{
		repo:      repo,
		sanitizer: sanitizer,
		images:    images,
		metrics:   metrics.Nop{},
		pageSize:  DefaultPageSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List は検索条件に一致する商品を新しい順にページ単位で返す。
// 認証状態に関係なく同じ結果を返す。
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = s.pageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	category := strings.ToLower(strings.TrimSpace(params.Category))
	if category == CategoryAll {
		category = ""
	}
	if category != "" && !model.Category(category).Valid() {
		return nil, model.NewValidationError([]model.FieldError{{
			Field:   "category",
			Message: fmt.Sprintf("Category must be one of: all, %s", categoryList()),
		}})
	}

	items, total, err := s.repo.List(ctx, model.ProductFilter{
		Search:   strings.TrimSpace(params.Search),
		Category: model.Category(category),
		Limit:    limit,
		Offset:   pageOffset(page, limit),
	})
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}

	s.metrics.RecordProductList(len(items))

	return &ListResult{
		Items: items,
		Pagination: model.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pageCount(total, limit),
		},
	}, nil
}

// pageOffset はページ番号から読み飛ばす件数を求める。
// 桁あふれするページ番号はどの総件数よりも大きいオフセットに丸める。
func pageOffset(page, limit int) int {
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

// Get は指定IDの商品を返す。
// IDがUUID形式でない場合も未検出として扱う。
func (s *Service) Get(ctx context.Context, id string) (*model.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewProductNotFoundError()
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProductNotFoundError()
	}
	return p, nil
}

// Create は認証済みユーザーを作成者として商品を作成する。
// 入力検証は永続化の前に行う。
func (s *Service) Create(ctx context.Context, identity *model.Identity, in model.ProductInput) (*model.Product, error) {
	if identity == nil {
		return nil, model.NewUnauthorizedError()
	}

	in = s.normalize(in)
	if errs := Validate(in, ModeCreate, s.images); len(errs) > 0 {
		s.metrics.RecordProductMutation("create", "invalid")
		return nil, model.NewValidationError(errs)
	}

	now := s.now()
	p := &model.Product{
		ID:          uuid.NewString(),
		Name:        *in.Name,
		Description: *in.Description,
		Price:       roundPrice(*in.Price),
		Category:    model.Category(*in.Category),
		ImageURL:    model.DefaultImageURL,
		CreatedBy:   identity.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Stock != nil {
		p.Stock = int(*in.Stock)
	}
	if in.ImageURL != nil && *in.ImageURL != "" {
		p.ImageURL = *in.ImageURL
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("商品の作成に失敗しました: %w", err)
	}

	s.metrics.RecordProductMutation("create", "success")
	slog.Info("product created",
		slog.String("product_id", p.ID),
		slog.String("user_id", identity.UserID),
	)

	// 作成者情報を含めて返す
	created, err := s.repo.FindByID(ctx, p.ID)
	if err != nil || created == nil {
		return p, nil
	}
	return created, nil
}

// Update は商品を更新する。作成者本人または管理者のみ実行できる。
// 指定されたフィールドのみ上書きし、同時更新は後勝ちとなる。
func (s *Service) Update(ctx context.Context, identity *model.Identity, id string, in model.ProductInput) (*model.Product, error) {
	if identity == nil {
		return nil, model.NewUnauthorizedError()
	}

	in = s.normalize(in)
	if errs := Validate(in, ModeUpdate, s.images); len(errs) > 0 {
		s.metrics.RecordProductMutation("update", "invalid")
		return nil, model.NewValidationError(errs)
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		s.recordMutationError("update", err)
		return nil, err
	}
	if !auth.CanMutate(identity, p) {
		s.metrics.RecordProductMutation("update", "forbidden")
		slog.Warn("product update forbidden",
			slog.String("product_id", p.ID),
			slog.String("user_id", identity.UserID),
		)
		return nil, model.NewForbiddenError("update")
	}

	apply(p, in)
	p.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RecordProductMutation("update", "not_found")
			return nil, model.NewProductNotFoundError()
		}
		return nil, fmt.Errorf("商品の更新に失敗しました: %w", err)
	}

	s.metrics.RecordProductMutation("update", "success")
	slog.Info("product updated",
		slog.String("product_id", p.ID),
		slog.String("user_id", identity.UserID),
	)
	return p, nil
}

// Delete は商品を削除する。作成者本人または管理者のみ実行できる。
func (s *Service) Delete(ctx context.Context, identity *model.Identity, id string) error {
	if identity == nil {
		return model.NewUnauthorizedError()
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		s.recordMutationError("delete", err)
		return err
	}
	if !auth.CanMutate(identity, p) {
		s.metrics.RecordProductMutation("delete", "forbidden")
		slog.Warn("product delete forbidden",
			slog.String("product_id", p.ID),
			slog.String("user_id", identity.UserID),
		)
		return model.NewForbiddenError("delete")
	}

	if err := s.repo.Delete(ctx, p.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RecordProductMutation("delete", "not_found")
			return model.NewProductNotFoundError()
		}
		return fmt.Errorf("商品の削除に失敗しました: %w", err)
	}

	s.metrics.RecordProductMutation("delete", "success")
	slog.Info("product deleted",
		slog.String("product_id", p.ID),
		slog.String("user_id", identity.UserID),
	)
	return nil
}

// normalize は文字列フィールドからHTMLと前後の空白を取り除く。
func (s *Service) normalize(in model.ProductInput) model.ProductInput {
	clean := func(v *string) *string {
		if v == nil {
			return nil
		}
		out := strings.TrimSpace(*v)
		if s.sanitizer != nil {
			out = s.sanitizer.Sanitize(out)
		}
		return &out
	}
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		out := strings.TrimSpace(*v)
		return &out
	}

	in.Name = clean(in.Name)
	in.Description = clean(in.Description)
	in.ImageURL = trim(in.ImageURL)
	if c := trim(in.Category); c != nil {
		lower := strings.ToLower(*c)
		in.Category = &lower
	}
	return in
}

func (s *Service) recordMutationError(action string, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeProductNotFound {
		s.metrics.RecordProductMutation(action, "not_found")
	}
}

// apply は指定されたフィールドを商品に反映する。
func apply(p *model.Product, in model.ProductInput) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = roundPrice(*in.Price)
	}
	if in.Category != nil {
		p.Category = model.Category(*in.Category)
	}
	if in.Stock != nil {
		p.Stock = int(*in.Stock)
	}
	if in.ImageURL != nil {
		p.ImageURL = *in.ImageURL
		if p.ImageURL == "" {
			p.ImageURL = model.DefaultImageURL
		}
	}
}

// pageCount は総件数とページサイズから総ページ数を返す。
func pageCount(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// roundPrice は価格を小数点以下2桁に丸める。
func roundPrice(v float64) float64 {
	return math.Round(v*100) / 100
}
