// Package repository はデータ永続化のインターフェースを定義する。
//
// 記事と商品はどちらも読み取り専用で、PostgreSQLへの直接接続（lib/pq）と
// ホスト型REST API（PostgREST互換）の2つのバックエンドを持つ。
package repository

import (
	"context"

	"github.com/hitoshi/wellshelf/internal/model"
)

// ArticleRepository は記事データの読み取りインターフェース。
// 公開済み（published = true）の記事だけを返す。
type ArticleRepository interface {
	// FindPublishedBySlug は種別とslugで公開済みの記事を取得する。見つからない場合はnilを返す。
	FindPublishedBySlug(ctx context.Context, kind model.ArticleKind, slug string) (*model.Article, error)

	// ListPublished は公開済みの記事を公開日時の降順で取得する。contentは読み込まない。
	ListPublished(ctx context.Context, kind model.ArticleKind, limit, offset int) ([]model.ArticleSummary, error)
}

// ProductRepository は商品データの読み取りインターフェース。
type ProductRepository interface {
	// FindByIDs は指定IDの商品を一括取得する。
	// 存在しないIDは結果に含まれない。順序は保証しない。
	FindByIDs(ctx context.Context, ids []string) ([]model.Product, error)
}

// Pinger は接続確認のインターフェース。ヘルスチェックで使用する。
type Pinger interface {
	PingContext(ctx context.Context) error
}
