package content

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/goccy/go-json"
)

// ブロックを捨てた理由（メトリクスラベル）。
const (
	DropReasonMalformed     = "malformed"
	DropReasonMissingType   = "missing_type"
	DropReasonUnknownType   = "unknown_type"
	DropReasonInvalidFields = "invalid_fields"
)

// Recorder はパース結果を記録するためのインターフェース。
// metrics.Collector が満たす。
type Recorder interface {
	RecordContentParsed(kind string)
	RecordBlockDropped(reason string)
}

type nopRecorder struct{}

func (nopRecorder) RecordContentParsed(string) {}
func (nopRecorder) RecordBlockDropped(string)  {}

// Parser は保存済みの content 値を検証し、Result に変換する。
// どのような入力に対してもエラーやpanicを呼び出し元に返さない。
type Parser struct {
	urls     URLChecker
	logger   *slog.Logger
	recorder Recorder
}

// NewParser はParserを生成する。
// urlsがnilの場合はURLを検証せずそのまま受け入れる。
// logger, recorder がnilの場合はデフォルトロガー・何もしないRecorderを使う。
func NewParser(urls URLChecker, logger *slog.Logger, recorder Recorder) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Parser{urls: urls, logger: logger, recorder: recorder}
}

// Parse は content カラムの値（NULLはnil）をパースする。
func (p *Parser) Parse(raw *string) Result {
	if raw == nil {
		p.recorder.RecordContentParsed(ResultEmpty.String())
		return Result{Kind: ResultEmpty}
	}
	return p.ParseString(*raw)
}

// ParseString は保存済みテキストをパースする。
//
//   - 空文字列・空白のみ・JSONの null → Empty
//   - theme または blocks キーを持つJSONオブジェクト → Structured
//   - それ以外（HTML、JSONとして壊れている、Document形状でないJSON） → Legacy（元の文字列のまま）
func (p *Parser) ParseString(raw string) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("content parse panicked",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			res = Result{Kind: ResultLegacy, Raw: raw}
		}
		p.recorder.RecordContentParsed(res.Kind.String())
	}()

	// 先頭のBOMはエディタ経由の保存で付くことがある
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "\ufeff"))
	if trimmed == "" || trimmed == "null" {
		return Result{Kind: ResultEmpty}
	}

	top, ok := p.sniffDocument(trimmed)
	if !ok {
		p.logger.Debug("content is not a structured document, falling back to legacy text",
			slog.Int("length", len(raw)),
		)
		return Result{Kind: ResultLegacy, Raw: raw}
	}

	return Result{Kind: ResultStructured, Document: p.buildDocument(top)}
}

// sniffDocument はテキストがDocument形状のJSONオブジェクトであれば、そのフィールドを返す。
func (p *Parser) sniffDocument(trimmed string) (fields, bool) {
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var top fields
	if err := json.Unmarshal([]byte(trimmed), &top); err != nil {
		return nil, false
	}
	_, hasTheme := top["theme"]
	_, hasBlocks := top["blocks"]
	if !hasTheme && !hasBlocks {
		return nil, false
	}
	return top, true
}

func (p *Parser) buildDocument(top fields) *Document {
	doc := &Document{
		Theme:      ThemeDeepDive,
		Blocks:     []Block{},
		References: []Reference{},
	}

	if theme := Theme(top.optionalString("theme")); theme.Valid() {
		doc.Theme = theme
	}

	items, err := top.array("blocks")
	if err != nil {
		p.logger.Warn("content blocks field is not an array, rendering no blocks",
			slog.String("error", err.Error()),
		)
	}

	seen := make(map[string]bool, len(items))
	for i, item := range items {
		block, ok := p.decodeBlock(i, item)
		if !ok {
			continue
		}
		assignKey(block, len(doc.Blocks), seen)
		doc.Blocks = append(doc.Blocks, block)
	}

	doc.References = p.decodeReferences(top)

	return doc
}

// decodeBlock はblocks配列のi番目の要素をデコードする。
// 捨てる場合は理由をログとメトリクスに残して false を返す。
func (p *Parser) decodeBlock(i int, raw json.RawMessage) (Block, bool) {
	f, err := object(raw)
	if err != nil {
		p.dropBlock(i, "", DropReasonMalformed, err)
		return nil, false
	}

	typ := BlockType(f.optionalString("type"))
	if typ == "" {
		p.dropBlock(i, "", DropReasonMissingType, nil)
		return nil, false
	}

	decode, ok := blockDecoders[typ]
	if !ok {
		p.dropBlock(i, typ, DropReasonUnknownType, nil)
		return nil, false
	}

	block, err := decode(f, p.urls)
	if err != nil {
		p.dropBlock(i, typ, DropReasonInvalidFields, err)
		return nil, false
	}

	block.setKey(f.identifier())
	return block, true
}

func (p *Parser) dropBlock(i int, typ BlockType, reason string, err error) {
	attrs := []any{
		slog.Int("index", i),
		slog.String("block_type", string(typ)),
		slog.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	p.logger.Warn("content block dropped", attrs...)
	p.recorder.RecordBlockDropped(reason)
}

// decodeReferences は references 配列をデコードする。
// 文字列要素はテキストのみの参考文献として扱い、text を持たない要素は捨てる。
func (p *Parser) decodeReferences(top fields) []Reference {
	items, err := top.array("references")
	if err != nil {
		p.logger.Warn("content references field is not an array, ignoring",
			slog.String("error", err.Error()),
		)
		return []Reference{}
	}

	refs := make([]Reference, 0, len(items))
	for _, item := range items {
		var text string
		if err := json.Unmarshal(item, &text); err == nil {
			if text = strings.TrimSpace(text); text != "" {
				refs = append(refs, Reference{Text: text})
			}
			continue
		}

		f, err := object(item)
		if err != nil {
			continue
		}
		text, err = f.requiredString("text")
		if err != nil {
			continue
		}
		refs = append(refs, Reference{
			Text: strings.TrimSpace(text),
			URL:  checkedURL(p.urls, f.optionalString("url")),
		})
	}
	return refs
}

// assignKey は描画キーを確定させる。IDがない場合は位置から導出し、
// 重複する場合は位置を付けて一意にする。
func assignKey(block Block, position int, seen map[string]bool) {
	key := block.Key()
	if key == "" {
		key = fmt.Sprintf("block-%d", position)
	}
	for base, n := key, position; seen[key]; n++ {
		key = fmt.Sprintf("%s-%d", base, n)
	}
	seen[key] = true
	block.setKey(key)
}
