package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/wellshelf/internal/model"
)

// PostgresProductRepo はPostgreSQLを使用した商品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

// FindByIDs は指定IDの商品を1回のクエリで一括取得する。
// idsが空の場合はクエリを発行しない。
func (r *PostgresProductRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, price, category, image_url,
		        stock, features, is_featured, is_active
		 FROM products
		 WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	products := make([]model.Product, 0, len(ids))
	for rows.Next() {
		var p model.Product
		var description, category, imageURL sql.NullString
		var features pq.StringArray
		if err := rows.Scan(
			&p.ID, &p.Name, &description, &p.Price, &category, &imageURL,
			&p.Stock, &features, &p.IsFeatured, &p.IsActive,
		); err != nil {
			return nil, fmt.Errorf("商品の読み取りに失敗しました: %w", err)
		}
		p.Description = nullStringValue(description)
		p.Category = nullStringValue(category)
		p.ImageURL = nullStringValue(imageURL)
		p.Features = []string(features)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("商品の読み取りに失敗しました: %w", err)
	}

	return products, nil
}
