package content

import "strings"

// URLChecker は記事コンテンツに埋め込まれたURLを検証する。
// security.URLGuard が満たす。
type URLChecker interface {
	CheckContentURL(rawURL string) (string, bool)
}

// blockDecoder は判別子に対応するブロックをフィールドから組み立てる。
// 必須フィールドが欠けている場合はエラーを返し、そのブロックだけが捨てられる。
type blockDecoder func(f fields, urls URLChecker) (Block, error)

// blockDecoders は判別子からデコーダへの対応表。
// ブロック種別を増やすときはここに1行追加し、render側にレンダラーを登録する。
var blockDecoders = map[BlockType]blockDecoder{
	BlockTypeHero:        decodeHero,
	BlockTypeText:        decodeText,
	BlockTypeQuote:       decodeQuote,
	BlockTypeAlert:       decodeAlert,
	BlockTypeProductGrid: decodeProductGrid,
	BlockTypeImageGroup:  decodeImageGroup,
}

// KnownBlockTypes はデコード可能な判別子の一覧を返す。
func KnownBlockTypes() []BlockType {
	return []BlockType{
		BlockTypeHero,
		BlockTypeText,
		BlockTypeQuote,
		BlockTypeAlert,
		BlockTypeProductGrid,
		BlockTypeImageGroup,
	}
}

func decodeHero(f fields, urls URLChecker) (Block, error) {
	heading, err := f.requiredString("heading")
	if err != nil {
		return nil, err
	}
	return &HeroBlock{
		Heading:    strings.TrimSpace(heading),
		Subheading: f.optionalString("subheading"),
		Image:      checkedURL(urls, f.optionalString("image")),
	}, nil
}

func decodeText(f fields, _ URLChecker) (Block, error) {
	body, err := f.requiredString("content")
	if err != nil {
		return nil, err
	}
	return &TextBlock{
		Title:   f.optionalString("title"),
		Content: body,
	}, nil
}

func decodeQuote(f fields, _ URLChecker) (Block, error) {
	body, err := f.requiredString("content")
	if err != nil {
		return nil, err
	}
	return &QuoteBlock{
		Content: body,
		Author:  f.optionalString("author"),
		Role:    f.optionalString("role"),
	}, nil
}

func decodeAlert(f fields, _ URLChecker) (Block, error) {
	body, err := f.requiredString("content")
	if err != nil {
		return nil, err
	}
	variant := AlertVariant(strings.ToLower(f.optionalString("variant")))
	if !variant.Valid() {
		variant = AlertInfo
	}
	return &AlertBlock{
		Variant: variant,
		Content: body,
	}, nil
}

func decodeProductGrid(f fields, _ URLChecker) (Block, error) {
	items, err := f.array("productIds")
	if err != nil {
		return nil, err
	}
	return &ProductGridBlock{
		Title:      f.optionalString("title"),
		ProductIDs: stringList(items),
	}, nil
}

func decodeImageGroup(f fields, urls URLChecker) (Block, error) {
	items, err := f.array("images")
	if err != nil {
		return nil, err
	}
	images := make([]Image, 0, len(items))
	for _, item := range items {
		img, err := object(item)
		if err != nil {
			continue
		}
		u := checkedURL(urls, img.optionalString("url"))
		if u == "" {
			continue
		}
		images = append(images, Image{URL: u, Caption: img.optionalString("caption")})
	}
	return &ImageGroupBlock{Images: images}, nil
}

// checkedURL はURLを検証し、受け入れられない場合は空文字列を返す。
func checkedURL(urls URLChecker, raw string) string {
	if raw == "" {
		return ""
	}
	if urls == nil {
		return raw
	}
	u, ok := urls.CheckContentURL(raw)
	if !ok {
		return ""
	}
	return u
}
