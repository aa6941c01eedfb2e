package metrics

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CollectorConfig はPrometheusコレクターの設定
type CollectorConfig struct {
	Namespace string
	Buckets   []float64
	Registry  *prometheus.Registry
}

// Option はCollectorConfigを変更する関数
type Option func(*CollectorConfig)

// WithNamespace はメトリクス名の接頭辞を設定する
func WithNamespace(ns string) Option {
	return func(c *CollectorConfig) {
		c.Namespace = ns
	}
}

// WithBuckets はレイテンシヒストグラムのバケットを設定する
func WithBuckets(buckets []float64) Option {
	return func(c *CollectorConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry は登録先のレジストリを設定する
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *CollectorConfig) {
		c.Registry = reg
	}
}

func defaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		Namespace: "uaspace",
		Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
	}
}

// Collector はサービス呼び出しごとのメトリクスを集計する
// Prometheus向けのカウンタと、JSON向けのMetricsを並行して持つ
type Collector struct {
	namespace string
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec

	mu       sync.RWMutex
	services map[string]*Metrics
}

// NewCollector は新しいコレクターを作成する
func NewCollector(opts ...Option) *Collector {
	config := defaultCollectorConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	factory := promauto.With(config.Registry)

	return &Collector{
		namespace: config.Namespace,
		registry:  config.Registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "requests_total",
			Help:      "Total number of address space service calls",
		}, []string{"service", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "request_duration_seconds",
			Help:      "Address space service call duration in seconds",
			Buckets:   config.Buckets,
		}, []string{"service"}),
		services: make(map[string]*Metrics),
	}
}

// Observe はサービス呼び出しを1件記録する
// status はStatusCodeの名前など低カーディナリティの文字列を渡す
func (c *Collector) Observe(service, status string, err error, latency time.Duration) {
	c.requests.WithLabelValues(service, status).Inc()
	c.duration.WithLabelValues(service).Observe(latency.Seconds())
	c.service(service).Record(err, latency)
}

func (c *Collector) service(name string) *Metrics {
	c.mu.RLock()
	m, ok := c.services[name]
	c.mu.RUnlock()
	if ok {
		return m
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok = c.services[name]; !ok {
		m = New()
		c.services[name] = m
	}
	return m
}

// Service はサービス単位のメトリクスを返す (未記録ならnil)
func (c *Collector) Service(name string) *Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services[name]
}

// Snapshots は全サービスのスナップショットを返す
func (c *Collector) Snapshots() map[string]Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Snapshot, len(c.services))
	for name, m := range c.services {
		out[name] = m.Snapshot()
	}
	return out
}

// ServiceNames は記録済みのサービス名をソートして返す
func (c *Collector) ServiceNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GaugeFunc はスクレイプ時に値を取得するゲージを登録する
func (c *Collector) GaugeFunc(name, help string, fn func() float64) {
	promauto.With(c.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      name,
		Help:      help,
	}, fn)
}

// CounterFunc はスクレイプ時に値を取得するカウンタを登録する
func (c *Collector) CounterFunc(name, help string, fn func() float64) {
	promauto.With(c.registry).NewCounterFunc(prometheus.CounterOpts{
		Namespace: c.namespace,
		Name:      name,
		Help:      help,
	}, fn)
}

// Registry は登録先のレジストリを返す
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler は /metrics 用のHTTPハンドラを返す
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
