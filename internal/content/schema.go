// Package content は記事本文のコンテンツモデル（Document）と、
// 保存済みテキストからDocumentを復元するバリデータを提供する。
//
// 保存済みの content カラムには、シリアライズ済みDocument（JSON）か
// レガシーなHTMLテキストのどちらかが入っている。バージョン情報は保存されていないため、
// 形状（theme / blocks キーの有無）だけで両者を判別する。
package content

// Theme は記事全体の見せ方を表す。
type Theme string

const (
	// ThemeDeepDive は読み物中心の解説記事。未指定・未知の値のデフォルト。
	ThemeDeepDive Theme = "deep-dive"
	// ThemeProductShowcase は商品紹介中心の記事。
	ThemeProductShowcase Theme = "product-showcase"
	// ThemeListicle はリスト形式の記事。
	ThemeListicle Theme = "listicle"
)

// Valid はテーマが既知の値かどうかを返す。
func (t Theme) Valid() bool {
	switch t {
	case ThemeDeepDive, ThemeProductShowcase, ThemeListicle:
		return true
	}
	return false
}

// BlockType はブロックの判別子（JSON上の "type"）。
type BlockType string

const (
	BlockTypeHero        BlockType = "hero"
	BlockTypeText        BlockType = "text"
	BlockTypeQuote       BlockType = "quote"
	BlockTypeAlert       BlockType = "alert"
	BlockTypeProductGrid BlockType = "product_grid"
	BlockTypeImageGroup  BlockType = "image_group"
)

// AlertVariant はalertブロックの見た目の種別。
type AlertVariant string

const (
	AlertInfo    AlertVariant = "info"
	AlertWarning AlertVariant = "warning"
	AlertTip     AlertVariant = "tip"
)

// Valid はバリアントが既知の値かどうかを返す。
func (v AlertVariant) Valid() bool {
	return v == AlertInfo || v == AlertWarning || v == AlertTip
}

// Block は記事を構成する1単位。判別子ごとに具象型が決まる直和型で、
// 具象型はすべてこのパッケージで定義する。
type Block interface {
	// Type はブロックの判別子を返す。
	Type() BlockType
	// Key は描画キーとして使う安定したIDを返す。
	Key() string

	setKey(key string)
}

// Base は全ブロック共通のフィールド。
type Base struct {
	ID string
}

// Key は描画キーを返す。
func (b Base) Key() string { return b.ID }

func (b *Base) setKey(key string) { b.ID = key }

// HeroBlock は記事冒頭の見出しパネル。
type HeroBlock struct {
	Base
	Heading    string
	Subheading string
	Image      string
}

// TextBlock はリッチテキストのセクション。
type TextBlock struct {
	Base
	Title   string
	Content string // HTMLフラグメント
}

// QuoteBlock は引用。
type QuoteBlock struct {
	Base
	Content string
	Author  string
	Role    string
}

// AlertBlock は注意書き・ヒントなどの囲み。
type AlertBlock struct {
	Base
	Variant AlertVariant
	Content string // HTMLフラグメント
}

// ProductGridBlock は商品カードのグリッド。ProductIDsの順に並べる。
type ProductGridBlock struct {
	Base
	Title      string
	ProductIDs []string
}

// ImageGroupBlock は画像の並び。
type ImageGroupBlock struct {
	Base
	Images []Image
}

// Image は画像URLとキャプションの組。
type Image struct {
	URL     string
	Caption string
}

func (*HeroBlock) Type() BlockType        { return BlockTypeHero }
func (*TextBlock) Type() BlockType        { return BlockTypeText }
func (*QuoteBlock) Type() BlockType       { return BlockTypeQuote }
func (*AlertBlock) Type() BlockType       { return BlockTypeAlert }
func (*ProductGridBlock) Type() BlockType { return BlockTypeProductGrid }
func (*ImageGroupBlock) Type() BlockType  { return BlockTypeImageGroup }

// Reference は参考文献。URLは任意で、到達可能性は検証しない。
type Reference struct {
	Text string
	URL  string
}

// Document は検証済みの記事コンテンツ。描画のたびに保存済みテキストから作り直す値オブジェクト。
// Blocksの順序が描画順であり、並べ替えてはならない。
type Document struct {
	Theme      Theme
	Blocks     []Block
	References []Reference
}

// ResultKind はパース結果の種別。
type ResultKind int

const (
	// ResultEmpty はコンテンツが存在しない（NULL・空文字列）ことを表す。
	ResultEmpty ResultKind = iota
	// ResultStructured は検証済みDocumentが得られたことを表す。
	ResultStructured
	// ResultLegacy はDocument形状ではないレガシーテキストであることを表す。
	ResultLegacy
)

// String はメトリクスラベル・ログ用の名前を返す。
func (k ResultKind) String() string {
	switch k {
	case ResultStructured:
		return "structured"
	case ResultLegacy:
		return "legacy"
	default:
		return "empty"
	}
}

// Result はパース結果。Kindに応じて Document（Structured）または Raw（Legacy）が設定される。
// Emptyの場合はどちらも空。
type Result struct {
	Kind     ResultKind
	Document *Document
	Raw      string
}
