// Package catalog は記事コンテンツが参照する商品の解決を提供する。
package catalog

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/hitoshi/wellshelf/internal/content"
	"github.com/hitoshi/wellshelf/internal/model"
)

// ProductFetcher はカタログの読み取りAPI。repository.ProductRepository が満たす。
// 要求したIDのうち存在するものだけを返してよい。
type ProductFetcher interface {
	FindByIDs(ctx context.Context, ids []string) ([]model.Product, error)
}

// Recorder は解決失敗を記録するためのインターフェース。metrics.Collector が満たす。
type Recorder interface {
	RecordProductResolveFailure()
}

type nopRecorder struct{}

func (nopRecorder) RecordProductResolveFailure() {}

// slugIDPattern はUUID以外に受け付ける商品IDの形式。
var slugIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// NormalizeProductID は商品IDを正規化する。
// UUIDは小文字の標準形式に揃え、それ以外は英数字・ハイフン・アンダースコアからなる
// 64文字以内のIDだけを受け付ける。不正な形式の場合は false を返す。
func NormalizeProductID(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", false
	}
	if u, err := uuid.Parse(id); err == nil {
		return u.String(), true
	}
	if !slugIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

// CollectProductIDs は全product_gridブロックのproductIdsを集める。
// 不正な形式のIDは除外し、重複は最初に現れた位置を残して取り除く。
func CollectProductIDs(doc *content.Document) []string {
	if doc == nil {
		return nil
	}
	var ids []string
	seen := make(map[string]bool)
	for _, block := range doc.Blocks {
		grid, ok := block.(*content.ProductGridBlock)
		if !ok || grid == nil {
			continue
		}
		for _, raw := range grid.ProductIDs {
			id, ok := NormalizeProductID(raw)
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// ProductSet は解決済みの商品の集合。IDは正規化してから引く。
type ProductSet struct {
	order    []string
	products map[string]model.Product
}

// NewProductSet は商品リストからProductSetを作る。同じIDが複数ある場合は最初のものを使う。
func NewProductSet(products []model.Product) *ProductSet {
	set := &ProductSet{products: make(map[string]model.Product, len(products))}
	for _, p := range products {
		id, ok := NormalizeProductID(p.ID)
		if !ok {
			continue
		}
		if _, exists := set.products[id]; exists {
			continue
		}
		set.order = append(set.order, id)
		set.products[id] = p
	}
	return set
}

// Lookup はIDに対応する商品を返す。render.ProductLookup を満たす。
func (s *ProductSet) Lookup(id string) (model.Product, bool) {
	if s == nil {
		return model.Product{}, false
	}
	key, ok := NormalizeProductID(id)
	if !ok {
		return model.Product{}, false
	}
	p, ok := s.products[key]
	return p, ok
}

// Len は商品数を返す。
func (s *ProductSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Products は取得順の商品リストを返す。
func (s *ProductSet) Products() []model.Product {
	if s == nil {
		return nil
	}
	out := make([]model.Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.products[id])
	}
	return out
}

// Resolver は記事が参照する商品をカタログから一括取得する。
type Resolver struct {
	fetcher  ProductFetcher
	logger   *slog.Logger
	recorder Recorder
}

// NewResolver はResolverを生成する。
func NewResolver(fetcher ProductFetcher, logger *slog.Logger, recorder Recorder) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Resolver{fetcher: fetcher, logger: logger, recorder: recorder}
}

// Resolve はDocumentが参照する商品を1回の一括読み取りで取得する。
// 参照がない場合は取得しない。取得に失敗した場合はエラーを返さず空の集合を返し、
// 記事の残りの部分はそのまま描画できるようにする（リトライはしない）。
// 存在しないIDは結果に含まれないだけで、エラーにはならない。
func (r *Resolver) Resolve(ctx context.Context, doc *content.Document) *ProductSet {
	ids := CollectProductIDs(doc)
	if len(ids) == 0 {
		return NewProductSet(nil)
	}

	products, err := r.fetcher.FindByIDs(ctx, ids)
	if err != nil {
		r.logger.Warn("product resolve failed, rendering without products",
			slog.Int("requested", len(ids)),
			slog.String("error", err.Error()),
		)
		r.recorder.RecordProductResolveFailure()
		return NewProductSet(nil)
	}

	set := NewProductSet(products)
	if set.Len() < len(ids) {
		r.logger.Debug("some referenced products were not found",
			slog.Int("requested", len(ids)),
			slog.Int("resolved", set.Len()),
		)
	}
	return set
}
