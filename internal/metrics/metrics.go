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
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordAuthEvent(event, outcome string)
	RecordProductMutation(action, outcome string)
	RecordProductList(resultCount int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(method string, duration time.Duration)
	RecordRateLimited(scope string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authEvents       *prometheus.CounterVec
	productMutations *prometheus.CounterVec
	productListSize  prometheus.Histogram
	httpStatus       *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
	rateLimited      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "productman_auth_events_total",
			Help: "認証イベント（登録・ログイン・ログアウト・トークン検証）の合計数",
		}, []string{"event", "outcome"}),
		productMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "productman_product_mutations_total",
			Help: "商品の作成・更新・削除の合計数",
		}, []string{"action", "outcome"}),
		productListSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "productman_product_list_results",
			Help:    "商品一覧クエリで返された件数",
			Buckets: []float64{0, 1, 4, 8, 16, 32, 64, 100},
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "productman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "productman_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "productman_rate_limited_total",
			Help: "レート制限で拒否されたリクエスト数",
		}, []string{"scope"}),
	}

	reg.MustRegister(
		c.authEvents,
		c.productMutations,
		c.productListSize,
		c.httpStatus,
		c.requestLatency,
		c.rateLimited,
	)

	return c
}

// RecordAuthEvent は認証イベントを記録する。
func (c *Collector) RecordAuthEvent(event, outcome string) {
	c.authEvents.WithLabelValues(event, outcome).Inc()
}

// RecordProductMutation は商品の変更操作を記録する。
func (c *Collector) RecordProductMutation(action, outcome string) {
	c.productMutations.WithLabelValues(action, outcome).Inc()
}

// RecordProductList は商品一覧の返却件数を記録する。
func (c *Collector) RecordProductList(resultCount int) {
	c.productListSize.Observe(float64(resultCount))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(method string, duration time.Duration) {
	c.requestLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(scope string) {
	c.rateLimited.WithLabelValues(scope).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordAuthEvent(string, string)             {}
func (Nop) RecordProductMutation(string, string)       {}
func (Nop) RecordProductList(int)                      {}
func (Nop) RecordHTTPStatus(int)                       {}
func (Nop) RecordRequestLatency(string, time.Duration) {}
func (Nop) RecordRateLimited(string)                   {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
