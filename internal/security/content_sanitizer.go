// Package security はアプリケーションのセキュリティ機能を提供する。
//
// RichTextSanitizer は記事ブロックのリッチテキスト（text / alert / レガシー本文）を
// サニタイズする。記事本文は編集部が管理する信頼済みHTMLだが、
// 生成パイプライン経由で混入したマークアップでページが壊れないよう、
// bluemondayの許可リストで明示的に硬化してから描画する。
package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// RichTextSanitizer はHTMLフラグメントのサニタイズ機能のインターフェースを定義する。
type RichTextSanitizer interface {
	// Sanitize はHTMLフラグメントをサニタイズして安全なHTMLを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// richTextSanitizer はRichTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので、1インスタンスを共有してよい。
type richTextSanitizer struct {
	policy *bluemonday.Policy
}

// NewRichTextSanitizer はRichTextSanitizerの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: h2, h3, h4, p, br, hr, a, ul, ol, li, blockquote, pre, code,
//     strong, em, b, i, u, s, small, sup, sub, figure, figcaption, img,
//     table, thead, tbody, tr, th, td
//   - 禁止タグ: script, iframe, style, form 等（許可リスト外はすべて除去）
//   - on*イベント属性・style属性: 除去
//   - URLスキーム: https と mailto のみ。サイト内の相対URLは許可。
//     http:// のリンクはhref属性だけが落ち、リンク文言はテキストとして残る
//   - aタグ: 外部リンクに target="_blank" と rel="noopener noreferrer" を付与
func NewRichTextSanitizer() *richTextSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h2", "h3", "h4",
		"p", "br", "hr",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "b", "i", "u", "s", "small", "sup", "sub",
		"figure", "figcaption",
	)
	p.AllowTables()

	// サイト内リンク（/products/... 等）を記事から張るため相対URLは許可する
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowAttrs("width", "height").Matching(bluemonday.Integer).OnElements("img")

	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return u.Host != ""
	})
	p.AllowURLSchemes("mailto")

	return &richTextSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLフラグメントをサニタイズして安全なHTMLを返す。
func (s *richTextSanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return s.policy.Sanitize(rawHTML)
}
