// Package article は記事ページの組み立てを提供する。
// 記事の取得、コンテンツの検証、商品の解決、本文の描画を1つのリクエストの中で行う。
package article

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/wellshelf/internal/catalog"
	"github.com/hitoshi/wellshelf/internal/content"
	"github.com/hitoshi/wellshelf/internal/model"
	"github.com/hitoshi/wellshelf/internal/render"
	"github.com/hitoshi/wellshelf/internal/repository"
)

const (
	// MaxListLimit は一覧取得で指定できるlimitの上限。
	MaxListLimit = 50
	// maxSlugLength はslugの最大長。
	maxSlugLength = 200
)

// slugPattern は英小文字・数字をハイフンで区切ったslug。
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidSlug はslugの形式が正しいかどうかを返す。
func ValidSlug(slug string) bool {
	return len(slug) <= maxSlugLength && slugPattern.MatchString(slug)
}

// Page は描画済みの記事ページ。
type Page struct {
	Article *model.Article
	Theme   content.Theme
	// ContentKind は保存済みcontentの種別（structured / legacy / empty）。
	ContentKind content.ResultKind
	Body        render.Body
	Products    []model.Product
	Related     []model.ArticleSummary
}

// Service は記事ページのサービス層。
type Service struct {
	articles     repository.ArticleRepository
	parser       *content.Parser
	resolver     *catalog.Resolver
	renderer     *render.Renderer
	relatedLimit int
	logger       *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// relatedLimitが0以下の場合は関連記事を取得しない。
func NewService(
	articles repository.ArticleRepository,
	parser *content.Parser,
	resolver *catalog.Resolver,
	renderer *render.Renderer,
	relatedLimit int,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		articles:     articles,
		parser:       parser,
		resolver:     resolver,
		renderer:     renderer,
		relatedLimit: relatedLimit,
		logger:       logger,
	}
}

// GetPage は公開済みの記事を取得して本文を描画する。
//
// 商品の解決と関連記事の取得は並行して行う。どちらも失敗してもページ全体は失敗させず、
// 商品は空の集合、関連記事はなしとして描画を続ける。
// 記事が存在しない場合は ARTICLE_NOT_FOUND を返す。
func (s *Service) GetPage(ctx context.Context, kind model.ArticleKind, slug string) (*Page, error) {
	if !kind.Valid() {
		return nil, model.NewInvalidKindError(string(kind))
	}
	if !ValidSlug(slug) {
		return nil, model.NewInvalidSlugError(slug)
	}

	a, err := s.articles.FindPublishedBySlug(ctx, kind, slug)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if a == nil {
		return nil, model.NewArticleNotFoundError(slug)
	}

	res := s.parser.Parse(a.Content)

	var (
		products *catalog.ProductSet
		related  []model.ArticleSummary
		g        errgroup.Group
	)
	g.Go(func() error {
		products = s.resolver.Resolve(ctx, res.Document)
		return nil
	})
	g.Go(func() error {
		related = s.related(ctx, a)
		return nil
	})
	_ = g.Wait()

	page := &Page{
		Article:     a,
		Theme:       content.ThemeDeepDive,
		ContentKind: res.Kind,
		Body:        s.renderer.Render(res, &render.Env{Products: products}),
		Products:    products.Products(),
		Related:     related,
	}
	if res.Document != nil {
		page.Theme = res.Document.Theme
	}

	return page, nil
}

// related は同じ種別の公開済み記事を新しい順に返す。表示中の記事は含めない。
// 取得に失敗した場合はログに残して空を返す。
func (s *Service) related(ctx context.Context, current *model.Article) []model.ArticleSummary {
	if s.relatedLimit <= 0 {
		return []model.ArticleSummary{}
	}

	list, err := s.articles.ListPublished(ctx, current.Kind, s.relatedLimit+1, 0)
	if err != nil {
		s.logger.Warn("related articles fetch failed",
			slog.String("kind", string(current.Kind)),
			slog.String("slug", current.Slug),
			slog.String("error", err.Error()),
		)
		return []model.ArticleSummary{}
	}

	related := make([]model.ArticleSummary, 0, s.relatedLimit)
	for _, summary := range list {
		if summary.Slug == current.Slug {
			continue
		}
		if len(related) == s.relatedLimit {
			break
		}
		related = append(related, summary)
	}
	return related
}

// List は公開済みの記事を新しい順に返す。contentは含まない。
// limitは1〜MaxListLimit、offsetは0以上でなければならない。
func (s *Service) List(ctx context.Context, kind model.ArticleKind, limit, offset int) ([]model.ArticleSummary, error) {
	if !kind.Valid() {
		return nil, model.NewInvalidKindError(string(kind))
	}
	if limit < 1 || limit > MaxListLimit {
		return nil, model.NewInvalidPaginationError(fmt.Sprintf("limit=%d", limit))
	}
	if offset < 0 {
		return nil, model.NewInvalidPaginationError(fmt.Sprintf("offset=%d", offset))
	}

	list, err := s.articles.ListPublished(ctx, kind, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	if list == nil {
		list = []model.ArticleSummary{}
	}
	return list, nil
}
