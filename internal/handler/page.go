package handler

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/wellshelf/internal/article"
	"github.com/hitoshi/wellshelf/internal/model"
	"github.com/hitoshi/wellshelf/internal/render"
)

//go:embed templates/*.html.tmpl
var pageTemplatesFS embed.FS

var pageTemplates = template.Must(template.New("pages").Funcs(template.FuncMap{
	"articlePath": ArticlePath,
	"date":        func(t time.Time) string { return t.Format("January 2, 2006") },
}).ParseFS(pageTemplatesFS, "templates/*.html.tmpl"))

// PageRenderer は記事ページのHTMLレイアウトを描画する。
type PageRenderer struct {
	baseURL string
	logger  *slog.Logger
}

// NewPageRenderer はPageRendererを生成する。baseURLはcanonicalリンクに使う。
func NewPageRenderer(baseURL string, logger *slog.Logger) *PageRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageRenderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// pageHead は全ページ共通の<head>に出力する値。
type pageHead struct {
	Title     string
	Canonical string
}

// articlePageData は記事レイアウトのテンプレートに渡す値。
type articlePageData struct {
	pageHead
	Article *model.Article
	Theme   string
	Body    render.Body
	Related []model.ArticleSummary
}

// RenderArticle は記事ページを描画する。
func (p *PageRenderer) RenderArticle(w http.ResponseWriter, page *article.Page) {
	p.execute(w, http.StatusOK, "article", articlePageData{
		pageHead: pageHead{
			Title:     page.Article.Title,
			Canonical: p.baseURL + ArticlePath(page.Article.Kind, page.Article.Slug),
		},
		Article: page.Article,
		Theme:   string(page.Theme),
		Body:    page.Body,
		Related: page.Related,
	})
}

// RenderError はサービス層のエラーをHTMLページとして返す。
// 記事が存在しない場合とslugが不正な場合は404ページ、それ以外は500ページを描画する。
func (p *PageRenderer) RenderError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeArticleNotFound, model.ErrCodeInvalidSlug:
			p.execute(w, http.StatusNotFound, "not_found", pageHead{Title: "Page not found"})
			return
		}
	}

	p.logger.Error("article page failed",
		slog.String("request_id", chimw.GetReqID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	p.execute(w, http.StatusInternalServerError, "server_error", pageHead{Title: "Something went wrong"})
}

// execute はテンプレートをバッファに描画してから書き込む。
// 描画途中で失敗した場合に壊れたページを返さないようにする。
func (p *PageRenderer) execute(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		p.logger.Error("page template failed",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if status == http.StatusOK {
		w.Header().Set("Cache-Control", "public, max-age=300")
	}
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
