// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザー入力の商品名・説明からHTMLを取り除き、プレーンテキストに正規化する。
// ImageURLValidator は商品画像URLの形式と公開ホストであることを静的に検証する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はプレーンテキスト化のインターフェースを定義する。
type TextSanitizerService interface {
	// Sanitize は全てのHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

// TextSanitizer はbluemondayのStrictPolicyを使ったTextSanitizerServiceの実装。
// ポリシーはスレッドセーフに共有できる。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// maxSanitizePasses は文字実体の多重エンコードを剥がす最大回数。
const maxSanitizePasses = 8

// Sanitize はHTMLタグを除去したプレーンテキストを返す。
// 文字実体でエンコードされたタグもデコード後に除去する。
// 結果が変化しなくなるまでタグ除去とデコードを繰り返す。
func (s *TextSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	cur := raw
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(cur))
		if next == cur {
			return strings.TrimSpace(next)
		}
		cur = next
	}
	// 収束しない入力はエスケープしたまま返す
	return strings.TrimSpace(s.policy.Sanitize(cur))
}

var _ TextSanitizerService = (*TextSanitizer)(nil)
