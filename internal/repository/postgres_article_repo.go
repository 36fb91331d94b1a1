package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/wellshelf/internal/model"
)

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// FindPublishedBySlug は種別とslugで公開済みの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindPublishedBySlug(ctx context.Context, kind model.ArticleKind, slug string) (*model.Article, error) {
	a := &model.Article{}
	var excerpt, author, coverImage, content sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, kind, slug, title, excerpt, author, published_at,
		        cover_image, content, published, created_at, updated_at
		 FROM articles
		 WHERE kind = $1 AND slug = $2 AND published = true`,
		string(kind), slug,
	).Scan(
		&a.ID, &a.Kind, &a.Slug, &a.Title, &excerpt, &author, &a.PublishedAt,
		&coverImage, &content, &a.Published, &a.CreatedAt, &a.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}

	a.Excerpt = nullStringValue(excerpt)
	a.Author = nullStringValue(author)
	a.CoverImage = nullStringValue(coverImage)
	if content.Valid {
		a.Content = &content.String
	}

	return a, nil
}

// ListPublished は公開済みの記事を公開日時の降順で取得する。
func (r *PostgresArticleRepo) ListPublished(ctx context.Context, kind model.ArticleKind, limit, offset int) ([]model.ArticleSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, slug, title, excerpt, author, published_at, cover_image
		 FROM articles
		 WHERE kind = $1 AND published = true
		 ORDER BY published_at DESC, slug ASC
		 LIMIT $2 OFFSET $3`,
		string(kind), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	summaries := []model.ArticleSummary{}
	for rows.Next() {
		var s model.ArticleSummary
		var excerpt, author, coverImage sql.NullString
		if err := rows.Scan(&s.Kind, &s.Slug, &s.Title, &excerpt, &author, &s.PublishedAt, &coverImage); err != nil {
			return nil, fmt.Errorf("記事一覧の読み取りに失敗しました: %w", err)
		}
		s.Excerpt = nullStringValue(excerpt)
		s.Author = nullStringValue(author)
		s.CoverImage = nullStringValue(coverImage)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の読み取りに失敗しました: %w", err)
	}

	return summaries, nil
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
