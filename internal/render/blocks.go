package render

import (
	"fmt"
	"html/template"
	"net/url"

	"github.com/hitoshi/wellshelf/internal/content"
	"github.com/hitoshi/wellshelf/internal/security"
)

// alertStyle はalertバリアントごとの見た目。
type alertStyle struct {
	Color string
	Icon  string
	Label string
}

// alertStyles はバリアントから見た目への固定の対応表。
var alertStyles = map[content.AlertVariant]alertStyle{
	content.AlertInfo:    {Color: "blue", Icon: "info", Label: "Info"},
	content.AlertWarning: {Color: "amber", Icon: "alert-triangle", Label: "Warning"},
	content.AlertTip:     {Color: "green", Icon: "lightbulb", Label: "Tip"},
}

// NewDefaultRegistry は6種類のブロックレンダラーを登録したRegistryを返す。
// text / alert のHTMLは sanitizer を通してから描画する。
func NewDefaultRegistry(sanitizer security.RichTextSanitizer) *Registry {
	r := NewRegistry()
	r.Register(content.BlockTypeHero, RenderFunc[*content.HeroBlock](renderHero))
	r.Register(content.BlockTypeText, RenderFunc[*content.TextBlock](func(b *content.TextBlock, env *Env) (template.HTML, error) {
		return renderText(sanitizer, b)
	}))
	r.Register(content.BlockTypeQuote, RenderFunc[*content.QuoteBlock](renderQuote))
	r.Register(content.BlockTypeAlert, RenderFunc[*content.AlertBlock](func(b *content.AlertBlock, env *Env) (template.HTML, error) {
		return renderAlert(sanitizer, b)
	}))
	r.Register(content.BlockTypeProductGrid, RenderFunc[*content.ProductGridBlock](renderProductGrid))
	r.Register(content.BlockTypeImageGroup, RenderFunc[*content.ImageGroupBlock](renderImageGroup))
	return r
}

// renderHero は画像がある場合は暗いグラデーションを重ねた全幅背景に明色の見出しを、
// ない場合は明るいパネルに暗色の見出しを描画する。
func renderHero(b *content.HeroBlock, _ *Env) (template.HTML, error) {
	return execute("hero", b)
}

// renderText はサニタイズ後の本文と見出しがどちらも空なら何も描画しない。
func renderText(sanitizer security.RichTextSanitizer, b *content.TextBlock) (template.HTML, error) {
	body := sanitizer.Sanitize(b.Content)
	if !security.HasVisibleContent(body) {
		if b.Title == "" {
			return "", nil
		}
		body = ""
	}
	return execute("text", struct {
		Key     string
		Title   string
		Content template.HTML
	}{
		Key:     b.Key(),
		Title:   b.Title,
		Content: template.HTML(body),
	})
}

// renderQuote は本文のマークアップを除去してから描画する。
// 除去後に文字が残らない場合は何も描画しない。
func renderQuote(b *content.QuoteBlock, _ *Env) (template.HTML, error) {
	text := security.StripMarkup(b.Content)
	if text == "" {
		return "", nil
	}
	return execute("quote", struct {
		Key    string
		Text   string
		Author string
		Role   string
	}{
		Key:    b.Key(),
		Text:   text,
		Author: b.Author,
		Role:   b.Role,
	})
}

// renderAlert はサニタイズ後に本文が残らない場合は何も描画しない。
func renderAlert(sanitizer security.RichTextSanitizer, b *content.AlertBlock) (template.HTML, error) {
	body := sanitizer.Sanitize(b.Content)
	if !security.HasVisibleContent(body) {
		return "", nil
	}
	style, ok := alertStyles[b.Variant]
	if !ok {
		style = alertStyles[content.AlertInfo]
	}
	return execute("alert", struct {
		Key     string
		Variant content.AlertVariant
		Style   alertStyle
		Content template.HTML
	}{
		Key:     b.Key(),
		Variant: b.Variant,
		Style:   style,
		Content: template.HTML(body),
	})
}

// productCard は商品グリッドの1枚分の表示データ。
type productCard struct {
	ID       string
	Name     string
	Price    string
	ImageURL string
	Href     string
	InStock  bool
}

// renderProductGrid はProductIDsの順に解決済みの商品だけをカードとして並べる。
// 1件も解決できなかった場合は空の枠を出さず、ブロックごと省く。
func renderProductGrid(b *content.ProductGridBlock, env *Env) (template.HTML, error) {
	cards := make([]productCard, 0, len(b.ProductIDs))
	shown := make(map[string]bool, len(b.ProductIDs))
	for _, id := range b.ProductIDs {
		p, ok := env.product(id)
		if !ok || shown[p.ID] {
			continue
		}
		shown[p.ID] = true
		cards = append(cards, productCard{
			ID:       p.ID,
			Name:     p.Name,
			Price:    formatPrice(p.Price),
			ImageURL: p.ImageURL,
			Href:     "/products/" + url.PathEscape(p.ID),
			InStock:  p.InStock(),
		})
	}
	if len(cards) == 0 {
		return "", nil
	}

	return execute("product_grid", struct {
		Key   string
		Title string
		Cards []productCard
	}{
		Key:   b.Key(),
		Title: b.Title,
		Cards: cards,
	})
}

// renderImageGroup は画像とキャプションを単純なリストとして描画する。
func renderImageGroup(b *content.ImageGroupBlock, _ *Env) (template.HTML, error) {
	if len(b.Images) == 0 {
		return "", nil
	}
	return execute("image_group", struct {
		Key    string
		Images []content.Image
	}{
		Key:    b.Key(),
		Images: b.Images,
	})
}

func formatPrice(price float64) string {
	return fmt.Sprintf("%.2f", price)
}
