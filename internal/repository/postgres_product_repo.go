package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/productman/internal/model"
)

// PostgresProductRepo はPostgreSQLを使用した商品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

const productSelect = `SELECT p.id, p.name, p.description, p.price, p.category, p.stock,
		        p.image_url, p.created_by, p.created_at, p.updated_at,
		        u.name, u.email
		 FROM products p
		 JOIN users u ON u.id = p.created_by`

// FindByID は指定IDの商品を作成者情報付きで取得する。
// 見つからない場合、またはIDがUUID形式でない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	product, err := scanProduct(r.db.QueryRowContext(ctx, productSelect+` WHERE p.id = $1`, id))
	if err == sql.ErrNoRows || isInvalidTextRepresentation(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return product, nil
}

// List は検索条件に一致する商品と総件数を返す。
// Searchはname/descriptionに対する大文字小文字を区別しない部分一致。
func (r *PostgresProductRepo) List(ctx context.Context, filter model.ProductFilter) ([]*model.Product, int, error) {
	where, args := buildProductWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM products p`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if total == 0 || filter.Offset >= total {
		return []*model.Product{}, total, nil
	}

	args = append(args, filter.Limit, filter.Offset)
	query := productSelect + where +
		fmt.Sprintf(` ORDER BY p.created_at DESC, p.id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*model.Product, 0, filter.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate products: %w", err)
	}

	return products, total, nil
}

// Create は商品を作成する。
func (r *PostgresProductRepo) Create(ctx context.Context, product *model.Product) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, name, description, price, category, stock, image_url, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		product.ID, product.Name, product.Description, product.Price, string(product.Category),
		product.Stock, product.ImageURL, product.CreatedBy, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// Update は商品の可変フィールドを上書きする。
// 同時更新は後勝ちとなる。
func (r *PostgresProductRepo) Update(ctx context.Context, product *model.Product) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE products
		 SET name = $2, description = $3, price = $4, category = $5,
		     stock = $6, image_url = $7, updated_at = $8
		 WHERE id = $1`,
		product.ID, product.Name, product.Description, product.Price, string(product.Category),
		product.Stock, product.ImageURL, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return expectOneRow(result)
}

// Delete は指定IDの商品を削除する。
func (r *PostgresProductRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return expectOneRow(result)
}

// buildProductWhere は一覧取得用のWHERE句とバインド引数を組み立てる。
func buildProductWhere(filter model.ProductFilter) (string, []any) {
	var conds []string
	var args []any

	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(p.name ILIKE $%d ESCAPE '\' OR p.description ILIKE $%d ESCAPE '\')`, n, n))
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		conds = append(conds, fmt.Sprintf(`p.category = $%d`, len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*model.Product, error) {
	p := &model.Product{Creator: &model.Creator{}}
	var category string
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &category, &p.Stock,
		&p.ImageURL, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
		&p.Creator.Name, &p.Creator.Email,
	)
	if err != nil {
		return nil, err
	}
	p.Category = model.Category(category)
	p.Creator.ID = p.CreatedBy
	return p, nil
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ ProductRepository = (*PostgresProductRepo)(nil)
