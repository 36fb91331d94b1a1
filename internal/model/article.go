// Package model はドメインモデルを定義する。
package model

import "time"

// ArticleKind は記事の種別を表す。
// ブログ記事とPSEOページは同じレンダリングパイプラインで扱う。
type ArticleKind string

const (
	// ArticleKindBlog は編集部が公開するブログ記事。
	ArticleKindBlog ArticleKind = "blog"
	// ArticleKindPSEO はプログラムで組み立てられたランディングページ。
	ArticleKindPSEO ArticleKind = "pseo"
)

// Valid は種別が既知の値かどうかを返す。
func (k ArticleKind) Valid() bool {
	return k == ArticleKindBlog || k == ArticleKindPSEO
}

// Article は保存済みの記事レコードを表す。
// ストアフロントからは読み取り専用で、公開済み（Published=true）のものだけを表示する。
type Article struct {
	ID          string
	Kind        ArticleKind
	Slug        string
	Title       string
	Excerpt     string
	Author      string
	PublishedAt time.Time
	CoverImage  string // 未設定の場合は空文字列
	// Content はシリアライズ済みDocument（JSON）またはレガシーなHTMLテキスト。
	// NULLの場合はnil。
	Content   *string
	Published bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ArticleSummary は記事一覧用のメタデータ。contentは含まない。
type ArticleSummary struct {
	Kind        ArticleKind
	Slug        string
	Title       string
	Excerpt     string
	Author      string
	PublishedAt time.Time
	CoverImage  string
}

// Summary は記事からArticleSummaryを生成する。
func (a *Article) Summary() ArticleSummary {
	return ArticleSummary{
		Kind:        a.Kind,
		Slug:        a.Slug,
		Title:       a.Title,
		Excerpt:     a.Excerpt,
		Author:      a.Author,
		PublishedAt: a.PublishedAt,
		CoverImage:  a.CoverImage,
	}
}
