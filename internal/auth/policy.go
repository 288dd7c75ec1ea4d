package auth

import "github.com/hitoshi/productman/internal/model"

// CanMutate は主体が商品を更新・削除できるかを返す。
// 作成者本人または管理者のみ許可する。更新と削除で同じ判定を使う。
func CanMutate(identity *model.Identity, product *model.Product) bool {
	if identity == nil || product == nil || identity.UserID == "" {
		return false
	}
	return identity.UserID == product.CreatedBy || identity.Role == model.RoleAdmin
}
