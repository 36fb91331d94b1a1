package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/wellshelf/internal/article"
	"github.com/hitoshi/wellshelf/internal/model"
)

// defaultListLimit は一覧取得でlimitが省略された場合の件数。
const defaultListLimit = 20

// ArticleServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type ArticleServiceInterface interface {
	// GetPage は公開済みの記事を取得して本文を描画する。
	GetPage(ctx context.Context, kind model.ArticleKind, slug string) (*article.Page, error)
	// List は公開済みの記事を新しい順に返す。
	List(ctx context.Context, kind model.ArticleKind, limit, offset int) ([]model.ArticleSummary, error)
}

// ArticleHandler は記事のHTTPハンドラー。
// JSON APIとサーバーサイドで描画するHTMLページの両方を提供する。
type ArticleHandler struct {
	service ArticleServiceInterface
	pages   *PageRenderer
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(service ArticleServiceInterface, pages *PageRenderer) *ArticleHandler {
	return &ArticleHandler{
		service: service,
		pages:   pages,
	}
}

// articleSummaryResponse は記事一覧の1件。
type articleSummaryResponse struct {
	Kind        string    `json:"kind"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"published_at"`
	CoverImage  string    `json:"cover_image,omitempty"`
	Path        string    `json:"path"`
}

// listArticlesResponse は記事一覧のレスポンス。
type listArticlesResponse struct {
	Articles []articleSummaryResponse `json:"articles"`
	Limit    int                      `json:"limit"`
	Offset   int                      `json:"offset"`
}

// sectionResponse は描画済み本文の1区画。
type sectionResponse struct {
	Key  string `json:"key"`
	Type string `json:"type"`
	HTML string `json:"html"`
}

// productResponse は記事内で参照された商品。
type productResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"image_url,omitempty"`
	InStock  bool    `json:"in_stock"`
}

// articlePageResponse は記事ページのレスポンス。
type articlePageResponse struct {
	articleSummaryResponse
	Theme       string                   `json:"theme"`
	ContentKind string                   `json:"content_kind"`
	Sections    []sectionResponse        `json:"sections"`
	HTML        string                   `json:"html"`
	Products    []productResponse        `json:"products"`
	Related     []articleSummaryResponse `json:"related"`
}

// ListArticles は公開済みの記事一覧を返す。
// GET /api/articles?kind=blog&limit=20&offset=0
func (h *ArticleHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	kind, apiErr := parseKind(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, r, http.StatusBadRequest, apiErr)
		return
	}

	limit, err := parseIntParam(r, "limit", defaultListLimit)
	if err != nil {
		writeAPIErrorResponse(w, r, http.StatusBadRequest, model.NewInvalidPaginationError("limitが整数ではありません"))
		return
	}
	offset, err := parseIntParam(r, "offset", 0)
	if err != nil {
		writeAPIErrorResponse(w, r, http.StatusBadRequest, model.NewInvalidPaginationError("offsetが整数ではありません"))
		return
	}

	list, err := h.service.List(r.Context(), kind, limit, offset)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listArticlesResponse{
		Articles: toSummaryResponses(list),
		Limit:    limit,
		Offset:   offset,
	})
}

// GetArticle は記事ページを描画済みの本文付きで返す。
// GET /api/articles/{slug}?kind=blog
func (h *ArticleHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	kind, apiErr := parseKind(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, r, http.StatusBadRequest, apiErr)
		return
	}

	page, err := h.service.GetPage(r.Context(), kind, chi.URLParam(r, "slug"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toArticlePageResponse(page))
}

// BlogPage はブログ記事のHTMLページを返す。
// GET /blog/{slug}
func (h *ArticleHandler) BlogPage(w http.ResponseWriter, r *http.Request) {
	h.servePage(w, r, model.ArticleKindBlog)
}

// GuidePage はPSEOページのHTMLページを返す。
// GET /guides/{slug}
func (h *ArticleHandler) GuidePage(w http.ResponseWriter, r *http.Request) {
	h.servePage(w, r, model.ArticleKindPSEO)
}

func (h *ArticleHandler) servePage(w http.ResponseWriter, r *http.Request, kind model.ArticleKind) {
	page, err := h.service.GetPage(r.Context(), kind, chi.URLParam(r, "slug"))
	if err != nil {
		h.pages.RenderError(w, r, err)
		return
	}
	h.pages.RenderArticle(w, page)
}

// --- ヘルパー関数 ---

// parseKind はクエリパラメータkindを解析する。省略時はblog。
func parseKind(r *http.Request) (model.ArticleKind, *model.APIError) {
	raw := r.URL.Query().Get("kind")
	if raw == "" {
		return model.ArticleKindBlog, nil
	}
	kind := model.ArticleKind(raw)
	if !kind.Valid() {
		return "", model.NewInvalidKindError(raw)
	}
	return kind, nil
}

// parseIntParam は整数のクエリパラメータを解析する。省略時はdefaultValueを返す。
func parseIntParam(r *http.Request, name string, defaultValue int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(raw)
}

// ArticlePath は記事ページのパスを返す。blogは /blog/、pseoは /guides/ の下に置く。
func ArticlePath(kind model.ArticleKind, slug string) string {
	if kind == model.ArticleKindPSEO {
		return "/guides/" + slug
	}
	return "/blog/" + slug
}

func toSummaryResponse(s model.ArticleSummary) articleSummaryResponse {
	return articleSummaryResponse{
		Kind:        string(s.Kind),
		Slug:        s.Slug,
		Title:       s.Title,
		Excerpt:     s.Excerpt,
		Author:      s.Author,
		PublishedAt: s.PublishedAt,
		CoverImage:  s.CoverImage,
		Path:        ArticlePath(s.Kind, s.Slug),
	}
}

func toSummaryResponses(list []model.ArticleSummary) []articleSummaryResponse {
	results := make([]articleSummaryResponse, len(list))
	for i, s := range list {
		results[i] = toSummaryResponse(s)
	}
	return results
}

func toArticlePageResponse(page *article.Page) articlePageResponse {
	sections := make([]sectionResponse, len(page.Body.Sections))
	for i, s := range page.Body.Sections {
		sections[i] = sectionResponse{Key: s.Key, Type: s.Type, HTML: string(s.HTML)}
	}

	products := make([]productResponse, len(page.Products))
	for i, p := range page.Products {
		products[i] = productResponse{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			ImageURL: p.ImageURL,
			InStock:  p.InStock(),
		}
	}

	return articlePageResponse{
		articleSummaryResponse: toSummaryResponse(page.Article.Summary()),
		Theme:                  string(page.Theme),
		ContentKind:            page.ContentKind.String(),
		Sections:               sections,
		HTML:                   string(page.Body.HTML),
		Products:               products,
		Related:                toSummaryResponses(page.Related),
	}
}
