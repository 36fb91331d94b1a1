package content

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// --- テスト用モック ---

// mockRecorder はRecorderのモック。呼び出し内容を記録する。
type mockRecorder struct {
	parsed  []string
	dropped []string
}

func (m *mockRecorder) RecordContentParsed(kind string)  { m.parsed = append(m.parsed, kind) }
func (m *mockRecorder) RecordBlockDropped(reason string) { m.dropped = append(m.dropped, reason) }

// mockURLChecker は "https://" で始まるURLとサイト内パスだけを受け入れる。
type mockURLChecker struct{}

func (mockURLChecker) CheckContentURL(raw string) (string, bool) {
	u := strings.TrimSpace(raw)
	if strings.HasPrefix(u, "https://") || (strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//")) {
		return u, true
	}
	return "", false
}

func newTestParser(t *testing.T) (*Parser, *mockRecorder, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rec := &mockRecorder{}
	return NewParser(mockURLChecker{}, logger, rec), rec, &buf
}

func strPtr(s string) *string { return &s }

// --- 結果種別の判定 ---

func TestParse_ClassifiesInput(t *testing.T) {
	tests := []struct {
		name     string
		input    *string
		wantKind ResultKind
	}{
		{name: "NULLはEmpty", input: nil, wantKind: ResultEmpty},
		{name: "空文字列はEmpty", input: strPtr(""), wantKind: ResultEmpty},
		{name: "空白のみはEmpty", input: strPtr("  \n\t"), wantKind: ResultEmpty},
		{name: "JSONのnullはEmpty", input: strPtr("null"), wantKind: ResultEmpty},
		{name: "HTMLはLegacy", input: strPtr("<p>legacy text</p>"), wantKind: ResultLegacy},
		{name: "壊れたJSONはLegacy", input: strPtr(`{"blocks": [`), wantKind: ResultLegacy},
		{name: "Document形状でないJSONはLegacy", input: strPtr(`{"title":"x"}`), wantKind: ResultLegacy},
		{name: "JSON配列はLegacy", input: strPtr(`[{"type":"hero"}]`), wantKind: ResultLegacy},
		{name: "JSON文字列はLegacy", input: strPtr(`"<p>quoted</p>"`), wantKind: ResultLegacy},
		{name: "themeのみでもStructured", input: strPtr(`{"theme":"listicle"}`), wantKind: ResultStructured},
		{name: "blocksのみでもStructured", input: strPtr(`{"blocks":[]}`), wantKind: ResultStructured},
		{name: "BOM付きのDocumentはStructured", input: strPtr("\ufeff{\"blocks\":[]}"), wantKind: ResultStructured},
		{name: "BOMのみはEmpty", input: strPtr("\ufeff"), wantKind: ResultEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, rec, _ := newTestParser(t)
			got := p.Parse(tt.input)
			if got.Kind != tt.wantKind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if (got.Document != nil) != (tt.wantKind == ResultStructured) {
				t.Errorf("Document = %v, want non-nil only for structured", got.Document)
			}
			if len(rec.parsed) != 1 || rec.parsed[0] != tt.wantKind.String() {
				t.Errorf("recorded kinds = %v, want [%s]", rec.parsed, tt.wantKind)
			}
		})
	}
}

func TestParse_LegacyKeepsOriginalString(t *testing.T) {
	p, _, _ := newTestParser(t)
	raw := "  <p>legacy text</p>\n"

	got := p.ParseString(raw)
	if got.Kind != ResultLegacy {
		t.Fatalf("Kind = %v, want legacy", got.Kind)
	}
	if got.Raw != raw {
		t.Errorf("Raw = %q, want original %q", got.Raw, raw)
	}
}

// --- 既定値 ---

func TestParse_Defaults(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantTheme Theme
	}{
		{name: "theme省略時はdeep-dive", input: `{"blocks":[]}`, wantTheme: ThemeDeepDive},
		{name: "未知のthemeはdeep-dive", input: `{"theme":"magazine","blocks":[]}`, wantTheme: ThemeDeepDive},
		{name: "themeが文字列でない場合はdeep-dive", input: `{"theme":3,"blocks":[]}`, wantTheme: ThemeDeepDive},
		{name: "product-showcaseはそのまま", input: `{"theme":"product-showcase"}`, wantTheme: ThemeProductShowcase},
		{name: "listicleはそのまま", input: `{"theme":"listicle"}`, wantTheme: ThemeListicle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestParser(t)
			got := p.ParseString(tt.input)
			if got.Document == nil {
				t.Fatal("expected document")
			}
			if got.Document.Theme != tt.wantTheme {
				t.Errorf("Theme = %q, want %q", got.Document.Theme, tt.wantTheme)
			}
			if got.Document.References == nil || len(got.Document.References) != 0 {
				t.Errorf("References = %#v, want empty non-nil slice", got.Document.References)
			}
			if got.Document.Blocks == nil {
				t.Error("Blocks should be an empty non-nil slice")
			}
		})
	}
}

// --- ブロックの取捨 ---

func TestParse_DropsUnknownBlockTypes(t *testing.T) {
	p, rec, logs := newTestParser(t)

	got := p.ParseString(`{"blocks":[
		{"type":"alert","variant":"warning","content":"Caution"},
		{"type":"unknown_type","foo":"bar"}
	]}`)

	if got.Document == nil || len(got.Document.Blocks) != 1 {
		t.Fatalf("expected exactly one block, got %#v", got.Document)
	}
	alert, ok := got.Document.Blocks[0].(*AlertBlock)
	if !ok {
		t.Fatalf("block type = %T, want *AlertBlock", got.Document.Blocks[0])
	}
	if alert.Variant != AlertWarning || alert.Content != "Caution" {
		t.Errorf("alert = %+v", alert)
	}
	if len(rec.dropped) != 1 || rec.dropped[0] != DropReasonUnknownType {
		t.Errorf("dropped = %v, want [%s]", rec.dropped, DropReasonUnknownType)
	}
	if !strings.Contains(logs.String(), "content block dropped") || !strings.Contains(logs.String(), "unknown_type") {
		t.Errorf("expected a warning log for the unknown block, got %s", logs.String())
	}
}

func TestParse_DropsOnlyInvalidBlocks(t *testing.T) {
	p, rec, _ := newTestParser(t)

	got := p.ParseString(`{"theme":"deep-dive","blocks":[
		{"type":"hero"},
		{"type":"hero","heading":"   "},
		{"type":"hero","heading":42},
		{"type":"text","title":"no content"},
		{"type":"quote","author":"nobody"},
		{"type":"alert","variant":"tip"},
		{"type":"product_grid","productIds":"p1"},
		{"type":"image_group","images":{"url":"https://x.example.com/a.png"}},
		"not an object",
		{"heading":"no type"},
		{"type":"text","content":"<p>kept</p>"}
	]}`)

	if got.Document == nil {
		t.Fatal("expected document")
	}
	if len(got.Document.Blocks) != 1 {
		t.Fatalf("len(Blocks) = %d, want 1", len(got.Document.Blocks))
	}
	if text, ok := got.Document.Blocks[0].(*TextBlock); !ok || text.Content != "<p>kept</p>" {
		t.Errorf("remaining block = %#v", got.Document.Blocks[0])
	}

	want := map[string]int{
		DropReasonInvalidFields: 8,
		DropReasonMalformed:     1,
		DropReasonMissingType:   1,
	}
	counts := map[string]int{}
	for _, r := range rec.dropped {
		counts[r]++
	}
	for reason, n := range want {
		if counts[reason] != n {
			t.Errorf("dropped[%s] = %d, want %d (all: %v)", reason, counts[reason], n, rec.dropped)
		}
	}
}

func TestParse_BlockCountEqualsRecognizedBlocks(t *testing.T) {
	p, _, _ := newTestParser(t)

	got := p.ParseString(`{"blocks":[
		{"type":"hero","heading":"H"},
		{"type":"video","src":"x"},
		{"type":"text","content":"a"},
		{"type":"quote","content":"q"},
		{"type":"carousel"},
		{"type":"alert","content":"c"},
		{"type":"product_grid"},
		{"type":"image_group"}
	]}`)

	if n := len(got.Document.Blocks); n != 6 {
		t.Fatalf("len(Blocks) = %d, want 6", n)
	}
	wantTypes := []BlockType{
		BlockTypeHero, BlockTypeText, BlockTypeQuote,
		BlockTypeAlert, BlockTypeProductGrid, BlockTypeImageGroup,
	}
	for i, b := range got.Document.Blocks {
		if b.Type() != wantTypes[i] {
			t.Errorf("Blocks[%d].Type() = %q, want %q", i, b.Type(), wantTypes[i])
		}
	}
}

// --- 各ブロックのフィールド ---

func TestParse_BlockFields(t *testing.T) {
	p, _, _ := newTestParser(t)

	got := p.ParseString(`{"theme":"product-showcase","blocks":[
		{"id":"intro","type":"hero","heading":" H1 ","subheading":"sub","image":"https://cdn.example.com/h.jpg"},
		{"type":"text","title":"Why","content":"<p>body</p>"},
		{"type":"quote","content":"<em>great</em>","author":"A","role":"Doctor"},
		{"type":"alert","variant":"WARNING","content":"careful"},
		{"type":"alert","variant":"danger","content":"unknown variant"},
		{"type":"product_grid","title":"Picks","productIds":["p1",2,"p2",null]},
		{"type":"image_group","images":[
			{"url":"/images/a.png","caption":"A"},
			{"caption":"no url"},
			{"url":"javascript:alert(1)"},
			"bad",
			{"url":"https://cdn.example.com/b.png"}
		]}
	]}`)

	doc := got.Document
	if doc == nil || len(doc.Blocks) != 7 {
		t.Fatalf("unexpected document: %#v", doc)
	}

	hero := doc.Blocks[0].(*HeroBlock)
	if hero.Key() != "intro" || hero.Heading != "H1" || hero.Subheading != "sub" || hero.Image != "https://cdn.example.com/h.jpg" {
		t.Errorf("hero = %+v", hero)
	}

	text := doc.Blocks[1].(*TextBlock)
	if text.Title != "Why" || text.Content != "<p>body</p>" {
		t.Errorf("text = %+v", text)
	}

	quote := doc.Blocks[2].(*QuoteBlock)
	if quote.Content != "<em>great</em>" || quote.Author != "A" || quote.Role != "Doctor" {
		t.Errorf("quote = %+v", quote)
	}

	if a := doc.Blocks[3].(*AlertBlock); a.Variant != AlertWarning {
		t.Errorf("alert variant = %q, want %q", a.Variant, AlertWarning)
	}
	if a := doc.Blocks[4].(*AlertBlock); a.Variant != AlertInfo {
		t.Errorf("unknown alert variant = %q, want fallback %q", a.Variant, AlertInfo)
	}

	grid := doc.Blocks[5].(*ProductGridBlock)
	if grid.Title != "Picks" || strings.Join(grid.ProductIDs, ",") != "p1,p2" {
		t.Errorf("grid = %+v", grid)
	}

	images := doc.Blocks[6].(*ImageGroupBlock).Images
	if len(images) != 2 {
		t.Fatalf("images = %+v, want 2 entries", images)
	}
	if images[0] != (Image{URL: "/images/a.png", Caption: "A"}) || images[1].URL != "https://cdn.example.com/b.png" {
		t.Errorf("images = %+v", images)
	}
}

func TestParse_RejectedHeroImageKeepsBlock(t *testing.T) {
	p, _, _ := newTestParser(t)

	got := p.ParseString(`{"blocks":[{"type":"hero","heading":"H","image":"javascript:alert(1)"}]}`)
	hero, ok := got.Document.Blocks[0].(*HeroBlock)
	if !ok {
		t.Fatalf("block = %T", got.Document.Blocks[0])
	}
	if hero.Image != "" {
		t.Errorf("Image = %q, want cleared", hero.Image)
	}
}

func TestParse_BlockKeys(t *testing.T) {
	p, _, _ := newTestParser(t)

	got := p.ParseString(`{"blocks":[
		{"type":"text","content":"a"},
		{"type":"text","content":"b","id":"dup"},
		{"type":"text","content":"c","id":"dup"},
		{"type":"text","content":"d","id":7},
		{"type":"unknown"},
		{"type":"text","content":"e","id":"block-5"},
		{"type":"text","content":"f"}
	]}`)

	var keys []string
	for _, b := range got.Document.Blocks {
		keys = append(keys, b.Key())
	}
	want := []string{"block-0", "dup", "dup-2", "7", "block-5", "block-5-5"}
	if strings.Join(keys, "|") != strings.Join(want, "|") {
		t.Errorf("keys = %v, want %v", keys, want)
	}
}

// --- 参考文献 ---

func TestParse_References(t *testing.T) {
	p, _, _ := newTestParser(t)

	got := p.ParseString(`{"blocks":[],"references":[
		{"text":"Study A","url":"https://pubmed.example.org/1"},
		{"text":"Book B"},
		"Plain citation",
		{"url":"https://no-text.example.org"},
		{"text":"Bad link","url":"javascript:void(0)"},
		42
	]}`)

	want := []Reference{
		{Text: "Study A", URL: "https://pubmed.example.org/1"},
		{Text: "Book B"},
		{Text: "Plain citation"},
		{Text: "Bad link"},
	}
	refs := got.Document.References
	if len(refs) != len(want) {
		t.Fatalf("References = %+v, want %+v", refs, want)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("References[%d] = %+v, want %+v", i, refs[i], want[i])
		}
	}
}

func TestParse_NonArrayFieldsDegrade(t *testing.T) {
	p, _, _ := newTestParser(t)

	got := p.ParseString(`{"theme":"listicle","blocks":{"type":"hero"},"references":"x"}`)
	if got.Kind != ResultStructured {
		t.Fatalf("Kind = %v, want structured", got.Kind)
	}
	if len(got.Document.Blocks) != 0 || len(got.Document.References) != 0 {
		t.Errorf("document = %+v, want no blocks and no references", got.Document)
	}
}

// --- シナリオ ---

func TestParse_ScenarioA_HeroOnly(t *testing.T) {
	p, _, _ := newTestParser(t)

	got := p.ParseString(`{"theme":"listicle","blocks":[{"type":"hero","heading":"H1"}]}`)
	if got.Document == nil || got.Document.Theme != ThemeListicle || len(got.Document.Blocks) != 1 {
		t.Fatalf("unexpected result: %#v", got)
	}
	hero := got.Document.Blocks[0].(*HeroBlock)
	if hero.Heading != "H1" || hero.Image != "" {
		t.Errorf("hero = %+v", hero)
	}
}

func TestParse_NilLoggerAndRecorder(t *testing.T) {
	p := NewParser(nil, nil, nil)
	got := p.ParseString(`{"blocks":[{"type":"hero","heading":"H","image":"http://anything"}]}`)
	if hero := got.Document.Blocks[0].(*HeroBlock); hero.Image != "http://anything" {
		t.Errorf("without checker the URL should be kept, got %q", hero.Image)
	}
}

func TestKnownBlockTypes_MatchDecoders(t *testing.T) {
	known := KnownBlockTypes()
	if len(known) != len(blockDecoders) {
		t.Fatalf("KnownBlockTypes() = %v, decoders = %d", known, len(blockDecoders))
	}
	for _, typ := range known {
		if _, ok := blockDecoders[typ]; !ok {
			t.Errorf("no decoder registered for %q", typ)
		}
	}
}

func TestParse_BOMPrefixedDocumentKeepsBlocks(t *testing.T) {
	p, _, _ := newTestParser(t)

	res := p.ParseString("\ufeff{\"blocks\":[{\"type\":\"hero\",\"heading\":\"H1\"}]}")
	if res.Kind != ResultStructured {
		t.Fatalf("Kind = %v, want structured", res.Kind)
	}
	if res.Raw != "" {
		t.Errorf("Raw = %q, want empty for structured", res.Raw)
	}
	if len(res.Document.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(res.Document.Blocks))
	}
	hero, ok := res.Document.Blocks[0].(*HeroBlock)
	if !ok || hero.Heading != "H1" {
		t.Errorf("block = %#v, want hero H1", res.Document.Blocks[0])
	}
}
