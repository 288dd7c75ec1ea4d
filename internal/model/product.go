package model

import "time"

// Category は商品カテゴリを表す。
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryClothing    Category = "clothing"
	CategoryBooks       Category = "books"
	CategoryHome        Category = "home"
	CategorySports      Category = "sports"
	CategoryOther       Category = "other"
)

// Categories は定義済みカテゴリの一覧。
var Categories = []Category{
	CategoryElectronics,
	CategoryClothing,
	CategoryBooks,
	CategoryHome,
	CategorySports,
	CategoryOther,
}

// Valid はカテゴリが定義済みの値かどうかを返す。
func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// DefaultImageURL は画像URL未指定時に設定されるプレースホルダ。
const DefaultImageURL = "https://via.placeholder.com/300x200"

// Product は商品を表す。
type Product struct {
	ID          string
	Name        string
	Description string
	Price       float64
	Category    Category
	Stock       int
	ImageURL    string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Creator は一覧・詳細取得時に結合される作成者情報。
	Creator *Creator
}

// Creator は商品に埋め込まれる作成者の公開情報。
type Creator struct {
	ID    string
	Name  string
	Email string
}

// ProductInput は商品の作成・更新入力を表す。
// nilのフィールドは未指定として扱う。
type ProductInput struct {
	Name        *string
	Description *string
	Price       *float64
	Category    *string
	Stock       *float64
	ImageURL    *string
}

// ProductFilter は商品一覧の検索条件を表す。
type ProductFilter struct {
	Search   string
	Category Category
	Limit    int
	Offset   int
}

// Pagination はページング情報を表す。
type Pagination struct {
	Page  int
	Limit int
	Total int
	Pages int
}
