package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/wellshelf/internal/article"
	"github.com/hitoshi/wellshelf/internal/catalog"
	"github.com/hitoshi/wellshelf/internal/config"
	"github.com/hitoshi/wellshelf/internal/content"
	"github.com/hitoshi/wellshelf/internal/database"
	"github.com/hitoshi/wellshelf/internal/handler"
	"github.com/hitoshi/wellshelf/internal/logger"
	"github.com/hitoshi/wellshelf/internal/metrics"
	"github.com/hitoshi/wellshelf/internal/middleware"
	"github.com/hitoshi/wellshelf/internal/render"
	"github.com/hitoshi/wellshelf/internal/repository"
	"github.com/hitoshi/wellshelf/internal/security"
)

// startupPingTimeout は起動時のバックエンド疎通確認のタイムアウト。
const startupPingTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("catalog_backend", cfg.CatalogBackend),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// backend は記事・商品の読み取り先をまとめたもの。
type backend struct {
	articles repository.ArticleRepository
	products repository.ProductRepository
	pinger   repository.Pinger
	close    func() error
}

// openBackend は設定に従ってPostgreSQLまたはホスト型REST APIのバックエンドを開く。
func openBackend(cfg *config.Config) (*backend, error) {
	switch cfg.CatalogBackend {
	case config.BackendREST:
		httpClient := security.NewURLGuard().NewSafeClient(cfg.RESTTimeout)
		client := repository.NewRESTClient(httpClient, slog.Default(), cfg.RESTURL, cfg.RESTAPIKey, cfg.RESTMaxResponseSize)
		return &backend{
			articles: repository.NewRESTArticleRepo(client),
			products: repository.NewRESTProductRepo(client),
			pinger:   client,
			close:    func() error { return nil },
		}, nil
	case config.BackendPostgres:
		db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return newPostgresBackend(db), nil
	default:
		return nil, fmt.Errorf("unknown catalog backend %q", cfg.CatalogBackend)
	}
}

func newPostgresBackend(db *sql.DB) *backend {
	return &backend{
		articles: repository.NewPostgresArticleRepo(db),
		products: repository.NewPostgresProductRepo(db),
		pinger:   db,
		close:    db.Close,
	}
}

// newRouter はコンテンツパイプライン・サービス・ミドルウェアを組み立ててルーターを返す。
// 返されたRateLimiterはサーバー停止時にStopすること。
func newRouter(cfg *config.Config, b *backend, reg *prometheus.Registry) (http.Handler, *middleware.RateLimiter) {
	log := slog.Default()
	collector := metrics.NewCollector(reg)

	// コンテンツパイプライン: パース → 商品解決 → 描画
	guard := security.NewURLGuard()
	sanitizer := security.NewRichTextSanitizer()
	parser := content.NewParser(guard, log, collector)
	resolver := catalog.NewResolver(b.products, log, collector)
	renderer := render.NewRenderer(render.NewDefaultRegistry(sanitizer), sanitizer, log, collector)

	articleService := article.NewService(b.articles, parser, resolver, renderer, cfg.RelatedArticlesLimit, log)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitPerMinute))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		MetricsRecorder:   collector,
		HealthChecker:     b.pinger,
		MetricsGatherer:   reg,
		ArticleService:    articleService,
		BaseURL:           cfg.BaseURL,
	})

	return router, rateLimiter
}

// runServe はHTTPサーバーモードで起動する。
// バックエンドへの接続を確認し、全依存関係をワイヤリングしてHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. バックエンド接続
	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), startupPingTimeout)
	err = b.pinger.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		return fmt.Errorf("failed to connect to %s backend: %w", cfg.CatalogBackend, err)
	}

	slog.Info("catalog backend connection established", slog.String("catalog_backend", cfg.CatalogBackend))

	// 2. ルーターの構築
	router, rateLimiter := newRouter(cfg, b, prometheus.NewRegistry())
	defer rateLimiter.Stop()

	// 3. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
// ホスト型REST APIバックエンドではスキーマを管理しないためエラーを返す。
func runMigrate(cfg *config.Config) error {
	if cfg.CatalogBackend != config.BackendPostgres {
		return fmt.Errorf("migrate requires CATALOG_BACKEND=%s, got %q", config.BackendPostgres, cfg.CatalogBackend)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	status, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(status.Version)),
		slog.Bool("dirty", status.Dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// dsnPassword はキーワード形式DSN（host=db password=...）のパスワード部分。
var dsnPassword = regexp.MustCompile(`(?i)(\bpassword\s*=\s*)('(?:[^'\\]|\\.)*'|\S+)`)

// maskDatabaseURL はログ出力用にデータベース接続文字列のパスワードを伏せる。
// URL形式とキーワード形式の両方を扱う。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return dsnPassword.ReplaceAllString(raw, "${1}xxxxx")
	}
	if q := u.Query(); q.Has("password") {
		q.Set("password", "xxxxx")
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}
