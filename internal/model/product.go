// Package model はドメインモデルを定義する。
package model

// Product はカタログ上の商品を表す。
// カタログ管理側が所有し、記事パイプラインからはIDで読み取るのみ。
type Product struct {
	ID          string
	Name        string
	Description string
	Price       float64
	Category    string
	ImageURL    string
	Stock       int
	Features    []string
	IsFeatured  bool
	IsActive    bool
}

// InStock は在庫があるかどうかを返す。
func (p Product) InStock() bool {
	return p.Stock > 0
}
