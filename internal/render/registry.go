// Package render は検証済みの記事コンテンツをHTMLに描画する。
//
// ブロックごとのレンダラーは判別子をキーとする Registry に登録する。
// レンダラーは入力のブロックとEnvだけからHTMLを作る純粋な関数で、
// 1ブロックの失敗が他のブロックの描画を妨げないよう Renderer が境界で隔離する。
package render

import (
	"fmt"
	"html/template"

	"github.com/hitoshi/wellshelf/internal/content"
	"github.com/hitoshi/wellshelf/internal/model"
)

// ProductLookup は解決済みの商品をIDで引く。catalog.ProductSet が満たす。
type ProductLookup interface {
	Lookup(id string) (model.Product, bool)
}

// Env はブロック以外にレンダラーが参照してよい唯一の入力。
type Env struct {
	Products ProductLookup
}

// product はEnvから商品を引く。Productsがnilの場合は常に見つからない。
func (e *Env) product(id string) (model.Product, bool) {
	if e == nil || e.Products == nil {
		return model.Product{}, false
	}
	return e.Products.Lookup(id)
}

// BlockRenderer は1種類のブロックを描画する。
// 空のHTMLを返した場合、そのブロックは出力から省かれる。
type BlockRenderer interface {
	Render(b content.Block, env *Env) (template.HTML, error)
}

// RenderFunc は具象ブロック型を受け取る関数をBlockRendererに適合させる。
type RenderFunc[T content.Block] func(b T, env *Env) (template.HTML, error)

// Render はブロックを具象型に変換してから描画する。
func (f RenderFunc[T]) Render(b content.Block, env *Env) (template.HTML, error) {
	typed, ok := b.(T)
	if !ok {
		var zero T
		return "", fmt.Errorf("renderer for %T received %T", zero, b)
	}
	return f(typed, env)
}

// Registry は判別子からレンダラーへの対応表。
// 描画前に構築し、描画中は読み取り専用として扱う。
type Registry struct {
	renderers map[content.BlockType]BlockRenderer
}

// NewRegistry は空のRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{renderers: make(map[content.BlockType]BlockRenderer)}
}

// Register は判別子にレンダラーを登録する。同じ判別子への再登録は上書きする。
func (r *Registry) Register(typ content.BlockType, renderer BlockRenderer) {
	r.renderers[typ] = renderer
}

// Lookup は判別子に対応するレンダラーを返す。
func (r *Registry) Lookup(typ content.BlockType) (BlockRenderer, bool) {
	renderer, ok := r.renderers[typ]
	return renderer, ok
}
