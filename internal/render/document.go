package render

import (
	"html/template"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/hitoshi/wellshelf/internal/content"
	"github.com/hitoshi/wellshelf/internal/security"
)

// 描画されなかったブロックの理由（メトリクスラベル）。
const (
	SkipReasonUnregistered = "unregistered"
	SkipReasonElided       = "elided"
)

// Section は記事本文の1区画。ブロック・参考文献・レガシー本文のいずれか。
type Section struct {
	Key  string
	Type string
	HTML template.HTML
}

// セクション種別のうちブロック以外のもの。
const (
	SectionReferences = "references"
	SectionLegacy     = "legacy"
)

// Body は描画済みの記事本文。HTMLはSectionsのHTMLを順に連結したもの。
// コンテンツがない場合はSectionsが空、HTMLが空文字列になる。
type Body struct {
	Sections []Section
	HTML     template.HTML
}

// Empty は描画結果が空かどうかを返す。
func (b Body) Empty() bool {
	return len(b.Sections) == 0
}

// Recorder は描画結果を記録するためのインターフェース。
// metrics.Collector が満たす。
type Recorder interface {
	RecordBlockRendered(blockType string)
	RecordBlockFailed(blockType string)
	RecordBlockDropped(reason string)
	ObserveRenderDuration(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordBlockRendered(string)          {}
func (nopRecorder) RecordBlockFailed(string)            {}
func (nopRecorder) RecordBlockDropped(string)           {}
func (nopRecorder) ObserveRenderDuration(time.Duration) {}

// Renderer はパース結果と解決済み商品から記事本文を組み立てる。
// 状態を持たないため、複数のgoroutineから同時に使ってよい。
type Renderer struct {
	registry  *Registry
	sanitizer security.RichTextSanitizer
	logger    *slog.Logger
	recorder  Recorder
}

// NewRenderer はRendererを生成する。
// logger, recorder がnilの場合はデフォルトロガー・何もしないRecorderを使う。
func NewRenderer(registry *Registry, sanitizer security.RichTextSanitizer, logger *slog.Logger, recorder Recorder) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Renderer{
		registry:  registry,
		sanitizer: sanitizer,
		logger:    logger,
		recorder:  recorder,
	}
}

// Render はパース結果を描画する。
//
//   - Structured: ブロックを順に描画し、参考文献があれば末尾に参考文献セクションを付ける
//   - Legacy: 元のテキストをリッチテキスト1区画として描画する
//   - Empty: 何も描画しない
//
// エラーを返すことはなく、最悪の場合でも空または一部だけの本文になる。
func (r *Renderer) Render(res content.Result, env *Env) Body {
	start := time.Now()
	defer func() {
		r.recorder.ObserveRenderDuration(time.Since(start))
	}()

	var sections []Section
	switch {
	case res.Kind == content.ResultStructured && res.Document != nil:
		sections = r.renderDocument(res.Document, env)
	case res.Kind == content.ResultLegacy && strings.TrimSpace(res.Raw) != "":
		sections = r.renderLegacy(res.Raw)
	}

	if sections == nil {
		sections = []Section{}
	}
	return Body{Sections: sections, HTML: join(sections)}
}

func (r *Renderer) renderDocument(doc *content.Document, env *Env) []Section {
	sections := make([]Section, 0, len(doc.Blocks)+1)
	for i, block := range doc.Blocks {
		html, ok := r.renderBlock(i, block, env)
		if !ok {
			continue
		}
		sections = append(sections, Section{
			Key:  block.Key(),
			Type: string(block.Type()),
			HTML: html,
		})
	}

	if len(doc.References) > 0 {
		html, err := execute("references", doc.References)
		if err != nil {
			r.logger.Error("references render failed", slog.String("error", err.Error()))
		} else {
			sections = append(sections, Section{Key: SectionReferences, Type: SectionReferences, HTML: html})
		}
	}

	return sections
}

// renderBlock は1ブロックを描画する。panicやエラーはこのブロックの境界で止め、
// ログに残して何も描画しない。
func (r *Renderer) renderBlock(i int, block content.Block, env *Env) (html template.HTML, ok bool) {
	typ := "unknown"
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("block render panicked",
				slog.Int("index", i),
				slog.String("block_type", typ),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			r.recorder.RecordBlockFailed(typ)
			html, ok = "", false
		}
	}()

	typ = string(block.Type())

	renderer, found := r.registry.Lookup(block.Type())
	if !found {
		r.logger.Warn("no renderer registered for block type, skipping",
			slog.Int("index", i),
			slog.String("block_type", typ),
		)
		r.recorder.RecordBlockDropped(SkipReasonUnregistered)
		return "", false
	}

	out, err := renderer.Render(block, env)
	if err != nil {
		r.logger.Error("block render failed",
			slog.Int("index", i),
			slog.String("block_type", typ),
			slog.String("error", err.Error()),
		)
		r.recorder.RecordBlockFailed(typ)
		return "", false
	}
	if out == "" {
		r.recorder.RecordBlockDropped(SkipReasonElided)
		return "", false
	}

	r.recorder.RecordBlockRendered(typ)
	return out, true
}

// renderLegacy はレガシーテキストをブロック構造なしのリッチテキスト1区画として描画する。
// サニタイズ後に何も残らない場合は区画を出さない。
func (r *Renderer) renderLegacy(raw string) []Section {
	clean := r.sanitizer.Sanitize(raw)
	if !security.HasVisibleContent(clean) {
		return nil
	}
	html, err := execute(SectionLegacy, template.HTML(clean))
	if err != nil {
		r.logger.Error("legacy content render failed", slog.String("error", err.Error()))
		return nil
	}
	return []Section{{Key: SectionLegacy, Type: SectionLegacy, HTML: html}}
}

func join(sections []Section) template.HTML {
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(s.HTML))
	}
	return template.HTML(b.String())
}
