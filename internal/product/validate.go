package product

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/productman/internal/model"
	"github.com/hitoshi/productman/internal/security"
)

// 入力制約
const (
	MaxNameLength        = 100
	MaxDescriptionLength = 500
	MaxPrice             = 9999999999.99
	MaxStock             = math.MaxInt32
)

// Mode は検証モード。作成時は必須項目を要求し、更新時は指定された項目のみ検証する。
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

// Validate は商品入力を検証し、全フィールドのエラーをまとめて返す。
// imagesがnilの場合、画像URLは空でないことのみ検証する。
func Validate(in model.ProductInput, mode Mode, images security.ImageURLValidatorService) []model.FieldError {
	var errs []model.FieldError
	add := func(field, msg string) {
		errs = append(errs, model.FieldError{Field: field, Message: msg})
	}
	required := mode == ModeCreate

	if in.Name != nil || required {
		name := deref(in.Name)
		switch {
		case strings.TrimSpace(name) == "":
			add("name", "Product name is required")
		case utf8.RuneCountInString(name) > MaxNameLength:
			add("name", "Product name cannot exceed 100 characters")
		}
	}

	if in.Description != nil || required {
		desc := deref(in.Description)
		switch {
		case strings.TrimSpace(desc) == "":
			add("description", "Product description is required")
		case utf8.RuneCountInString(desc) > MaxDescriptionLength:
			add("description", "Description cannot exceed 500 characters")
		}
	}

	switch {
	case in.Price == nil:
		if required {
			add("price", "Price is required")
		}
	case math.IsNaN(*in.Price) || math.IsInf(*in.Price, 0):
		add("price", "Price must be a number")
	case *in.Price < 0:
		add("price", "Price cannot be negative")
	case *in.Price > MaxPrice:
		add("price", "Price cannot exceed 9999999999.99")
	}

	if in.Category != nil || required {
		category := strings.TrimSpace(deref(in.Category))
		switch {
		case category == "":
			add("category", "Category is required")
		case !model.Category(category).Valid():
			add("category", fmt.Sprintf("Category must be one of: %s", categoryList()))
		}
	}

	if in.Stock != nil {
		stock := *in.Stock
		switch {
		case math.IsNaN(stock) || math.IsInf(stock, 0):
			add("stock", "Stock must be a whole number")
		case stock < 0:
			add("stock", "Stock cannot be negative")
		case stock != math.Trunc(stock):
			add("stock", "Stock must be a whole number")
		case stock > MaxStock:
			add("stock", "Stock is too large")
		}
	}

	if in.ImageURL != nil && *in.ImageURL != "" {
		if images != nil {
			if err := images.ValidateImageURL(*in.ImageURL); err != nil {
				add("imageUrl", "Image URL must be a public http or https URL")
			}
		}
	}

	return errs
}

func categoryList() string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
