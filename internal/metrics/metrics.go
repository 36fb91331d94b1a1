// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// コンテンツのパース・描画、商品解決、HTTP層から利用する。
type MetricsCollector interface {
	RecordContentParsed(kind string)
	RecordBlockRendered(blockType string)
	RecordBlockFailed(blockType string)
	RecordBlockDropped(reason string)
	ObserveRenderDuration(d time.Duration)
	RecordProductResolveFailure()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	contentParsed   *prometheus.CounterVec
	blocksRendered  *prometheus.CounterVec
	blocksDropped   *prometheus.CounterVec
	blockFailures   *prometheus.CounterVec
	resolveFailures prometheus.Counter
	renderDuration  prometheus.Histogram
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		contentParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wellshelf_content_parsed_total",
			Help: "パース結果の種別（structured / legacy / empty）ごとの記事本文数",
		}, []string{"kind"}),
		blocksRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wellshelf_blocks_rendered_total",
			Help: "ブロック種別ごとの描画成功数",
		}, []string{"type"}),
		blocksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wellshelf_blocks_dropped_total",
			Help: "理由ごとの描画されなかったブロック数",
		}, []string{"reason"}),
		blockFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wellshelf_block_render_failures_total",
			Help: "ブロック種別ごとの描画失敗（エラー・panic）数",
		}, []string{"type"}),
		resolveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wellshelf_product_resolve_failures_total",
			Help: "商品の一括取得に失敗した回数",
		}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wellshelf_render_duration_seconds",
			Help:    "記事本文の描画時間（秒）",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wellshelf_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.contentParsed,
		c.blocksRendered,
		c.blocksDropped,
		c.blockFailures,
		c.resolveFailures,
		c.renderDuration,
		c.httpStatus,
	)

	return c
}

// RecordContentParsed はパース結果の種別を記録する。
func (c *Collector) RecordContentParsed(kind string) {
	c.contentParsed.WithLabelValues(kind).Inc()
}

// RecordBlockRendered はブロックの描画成功を記録する。
func (c *Collector) RecordBlockRendered(blockType string) {
	c.blocksRendered.WithLabelValues(blockType).Inc()
}

// RecordBlockFailed はブロックの描画失敗を記録する。
func (c *Collector) RecordBlockFailed(blockType string) {
	c.blockFailures.WithLabelValues(blockType).Inc()
}

// RecordBlockDropped は検証・描画で除外されたブロックを理由付きで記録する。
func (c *Collector) RecordBlockDropped(reason string) {
	c.blocksDropped.WithLabelValues(reason).Inc()
}

// ObserveRenderDuration は記事本文1件の描画時間を記録する。
func (c *Collector) ObserveRenderDuration(d time.Duration) {
	c.renderDuration.Observe(d.Seconds())
}

// RecordProductResolveFailure は商品の一括取得の失敗を記録する。
func (c *Collector) RecordProductResolveFailure() {
	c.resolveFailures.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 収集エラーが起きても取得できたメトリクスは返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
