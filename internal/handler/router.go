package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/wellshelf/internal/metrics"
	"github.com/hitoshi/wellshelf/internal/middleware"
	"github.com/hitoshi/wellshelf/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	// CORSAllowedOrigin はカンマ区切りの許可オリジン一覧。
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	MetricsRecorder   middleware.StatusRecorder

	// ヘルスチェック・メトリクス
	HealthChecker   repository.Pinger
	MetricsGatherer prometheus.Gatherer

	// 記事
	ArticleService ArticleServiceInterface
	// BaseURL はcanonicalリンクに使う公開URL（例: https://shop.example.com）。
	BaseURL string
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → SecurityHeaders → Logging → CORS → RateLimit
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(strings.HasPrefix(deps.BaseURL, "https://")))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.MetricsRecorder))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	healthHandler := NewHealthHandler(deps.HealthChecker)
	articleHandler := NewArticleHandler(deps.ArticleService, NewPageRenderer(deps.BaseURL, logger))

	// --- レート制限なしのルート ---
	r.Get("/health", healthHandler.Health)
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- レート制限ありのルート ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		// JSON API
		r.Route("/api/articles", func(r chi.Router) {
			r.Get("/", articleHandler.ListArticles)
			r.Get("/{slug}", articleHandler.GetArticle)
		})

		// HTMLページ
		r.Get("/blog/{slug}", articleHandler.BlogPage)
		r.Get("/guides/{slug}", articleHandler.GuidePage)
	})

	return r
}
