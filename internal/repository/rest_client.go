package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/wellshelf/internal/model"
)

const (
	// restPathPrefix はホスト型APIのテーブルエンドポイントの接頭辞。
	restPathPrefix = "/rest/v1/"
	// maxIDsPerRequest は商品の一括取得で1リクエストに含める最大ID数。
	// in.() フィルタでURLが長くなりすぎないよう、超える場合は複数リクエストに分割する。
	maxIDsPerRequest = 50
)

// ErrResponseTooLarge はレスポンスが上限サイズを超えた場合のエラー。
var ErrResponseTooLarge = errors.New("レスポンスサイズが上限を超えています")

// RESTClient はPostgREST互換のホスト型APIのクライアント。
// 記事と商品のテーブルをHTTP経由で読み取る。
type RESTClient struct {
	httpClient      *http.Client
	logger          *slog.Logger
	baseURL         string
	apiKey          string
	maxResponseSize int64
}

// NewRESTClient はRESTClientを生成する。
// httpClientには security.URLGuard.NewSafeClient で作成したクライアントを渡す。
func NewRESTClient(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey string, maxResponseSize int64) *RESTClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &RESTClient{
		httpClient:      httpClient,
		logger:          logger,
		baseURL:         strings.TrimRight(baseURL, "/"),
		apiKey:          apiKey,
		maxResponseSize: maxResponseSize,
	}
}

// get はテーブルに対してGETリクエストを発行し、JSON配列をdestにデコードする。
func (c *RESTClient) get(ctx context.Context, table string, query url.Values, dest any) error {
	reqURL := c.baseURL + restPathPrefix + table
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ホスト型APIの呼び出しに失敗しました",
			slog.String("table", table),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("ホスト型APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("ホスト型APIがエラーステータスを返しました",
			slog.String("table", table),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("ホスト型APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if int64(len(body)) > c.maxResponseSize {
		return ErrResponseTooLarge
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// PingContext はホスト型APIへの疎通を確認する。
func (c *RESTClient) PingContext(ctx context.Context) error {
	var rows []json.RawMessage
	return c.get(ctx, "articles", url.Values{
		"select": {"id"},
		"limit":  {"1"},
	}, &rows)
}

// restArticle はarticlesテーブルの1行。
type restArticle struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Excerpt     *string   `json:"excerpt"`
	Author      *string   `json:"author"`
	PublishedAt time.Time `json:"published_at"`
	CoverImage  *string   `json:"cover_image"`
	Content     *string   `json:"content"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r restArticle) toModel() *model.Article {
	return &model.Article{
		ID:          r.ID,
		Kind:        model.ArticleKind(r.Kind),
		Slug:        r.Slug,
		Title:       r.Title,
		Excerpt:     derefString(r.Excerpt),
		Author:      derefString(r.Author),
		PublishedAt: r.PublishedAt,
		CoverImage:  derefString(r.CoverImage),
		Content:     r.Content,
		Published:   r.Published,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// restProduct はproductsテーブルの1行。
type restProduct struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Price       float64  `json:"price"`
	Category    *string  `json:"category"`
	ImageURL    *string  `json:"image_url"`
	Stock       int      `json:"stock"`
	Features    []string `json:"features"`
	IsFeatured  bool     `json:"is_featured"`
	IsActive    bool     `json:"is_active"`
}

func (r restProduct) toModel() model.Product {
	return model.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: derefString(r.Description),
		Price:       r.Price,
		Category:    derefString(r.Category),
		ImageURL:    derefString(r.ImageURL),
		Stock:       r.Stock,
		Features:    r.Features,
		IsFeatured:  r.IsFeatured,
		IsActive:    r.IsActive,
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// RESTArticleRepo はホスト型APIを使用した記事リポジトリ。
type RESTArticleRepo struct {
	client *RESTClient
}

// NewRESTArticleRepo はRESTArticleRepoを生成する。
func NewRESTArticleRepo(client *RESTClient) *RESTArticleRepo {
	return &RESTArticleRepo{client: client}
}

const articleColumns = "id,kind,slug,title,excerpt,author,published_at,cover_image,content,published,created_at,updated_at"

// FindPublishedBySlug は種別とslugで公開済みの記事を取得する。見つからない場合はnilを返す。
func (r *RESTArticleRepo) FindPublishedBySlug(ctx context.Context, kind model.ArticleKind, slug string) (*model.Article, error) {
	var rows []restArticle
	err := r.client.get(ctx, "articles", url.Values{
		"select":    {articleColumns},
		"kind":      {"eq." + string(kind)},
		"slug":      {"eq." + slug},
		"published": {"is.true"},
		"limit":     {"1"},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toModel(), nil
}

// ListPublished は公開済みの記事を公開日時の降順で取得する。contentは要求しない。
func (r *RESTArticleRepo) ListPublished(ctx context.Context, kind model.ArticleKind, limit, offset int) ([]model.ArticleSummary, error) {
	var rows []restArticle
	err := r.client.get(ctx, "articles", url.Values{
		"select":    {"kind,slug,title,excerpt,author,published_at,cover_image"},
		"kind":      {"eq." + string(kind)},
		"published": {"is.true"},
		"order":     {"published_at.desc,slug.asc"},
		"limit":     {strconv.Itoa(limit)},
		"offset":    {strconv.Itoa(offset)},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}

	summaries := make([]model.ArticleSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, row.toModel().Summary())
	}
	return summaries, nil
}

// RESTProductRepo はホスト型APIを使用した商品リポジトリ。
type RESTProductRepo struct {
	client *RESTClient
}

// NewRESTProductRepo はRESTProductRepoを生成する。
func NewRESTProductRepo(client *RESTClient) *RESTProductRepo {
	return &RESTProductRepo{client: client}
}

// FindByIDs は指定IDの商品を一括取得する。
// IDがmaxIDsPerRequestを超える場合は分割して順に取得する。
// 1つでも失敗した場合は取得済みの分も捨ててエラーを返す（部分的な結果は返さない）。
func (r *RESTProductRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	products := make([]model.Product, 0, len(ids))
	for start := 0; start < len(ids); start += maxIDsPerRequest {
		end := min(start+maxIDsPerRequest, len(ids))

		var rows []restProduct
		err := r.client.get(ctx, "products", url.Values{
			"select": {"id,name,description,price,category,image_url,stock,features,is_featured,is_active"},
			"id":     {inFilter(ids[start:end])},
		}, &rows)
		if err != nil {
			return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
		}
		for _, row := range rows {
			products = append(products, row.toModel())
		}
	}
	return products, nil
}

// inFilter はPostgRESTの in 演算子の値を組み立てる。
// 各値はダブルクオートで囲み、区切り文字を含む値でも壊れないようにする。
func inFilter(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `"`, `\"`)
		quoted[i] = `"` + v + `"`
	}
	return "in.(" + strings.Join(quoted, ",") + ")"
}
