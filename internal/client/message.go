package client

import (
	"errors"
	"net/http"
)

// MessageNotAuthorizedToEdit は他人の商品を変更しようとした場合の表示メッセージ。
const MessageNotAuthorizedToEdit = "You are not authorized to edit this product"

// MutationMessage は商品の作成・更新・削除に失敗した際にユーザーへ表示するメッセージを返す。
// 403はオーナーシップ違反として固定文言、それ以外はサーバーのメッセージ、なければfallbackを返す。
func MutationMessage(err error, fallback string) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return fallback
	}
	if apiErr.Status == http.StatusForbidden {
		return MessageNotAuthorizedToEdit
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
