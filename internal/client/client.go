// Package client provides a load generator for exercising an address space.
package client

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"uaspace/internal/addrspace"
	"uaspace/internal/logger"
	"uaspace/internal/metrics"
	"uaspace/internal/ua"
	"uaspace/internal/worker"
)

const logScope = "bench"

// サービス名 (メトリクスのラベル)
const (
	ServiceRead   = "Read"
	ServiceWrite  = "Write"
	ServiceBrowse = "Browse"
)

// Target は負荷をかける対象
type Target interface {
	ReadValue(id ua.NodeID) (ua.Variant, error)
	WriteValue(id ua.NodeID, value ua.Variant) error
	BrowseAll(id ua.NodeID, opts addrspace.BrowseOptions) []addrspace.BrowseResult
}

// Config はClientの設定
type Config struct {
	NumWorkers    int     // ワーカー数（0でCPU数）
	WriteRatio    float64 // Write比率（0.0〜1.0）
	BrowseRatio   float64 // Browse比率（0.0〜1.0）、残りがRead
	Namespace     uint16  // ベンチ用ノードの名前空間
	NodeCount     int     // ベンチ用ノード数
	RequestsLimit uint64  // リクエスト上限（0で無制限）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		NumWorkers:    0,   // CPU数
		WriteRatio:    0.3, // 30% Write
		BrowseRatio:   0.1, // 10% Browse
		Namespace:     1,
		NodeCount:     100,
		RequestsLimit: 0,
	}
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.WriteRatio < 0 || c.BrowseRatio < 0 || c.WriteRatio+c.BrowseRatio > 1 {
		return fmt.Errorf("write ratio + browse ratio must be within 0.0 and 1.0")
	}
	if c.NodeCount <= 0 {
		return fmt.Errorf("node count must be positive")
	}
	return nil
}

// NodeID はベンチ用ノードのIDを返す
func (c Config) NodeID(i int) ua.NodeID {
	return ua.NewStringNodeID(c.Namespace, fmt.Sprintf("bench/%d", i))
}

// Prepare はベンチ用のInt32変数をObjectsフォルダ配下に作成する
// 既に存在するノードはそのまま使う
func Prepare(s *addrspace.Space, config Config) ([]ua.NodeID, error) {
	ids := make([]ua.NodeID, 0, config.NodeCount)
	for i := range config.NodeCount {
		id := config.NodeID(i)
		ids = append(ids, id)
		if _, exists := s.GetNode(id); exists {
			continue
		}
		spec := addrspace.VariableNode(id, fmt.Sprintf("bench%d", i), ua.NewInt32(0))
		if err := s.AddNodeUnder(spec, ua.ObjectsFolder, ua.Organizes); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", id, err)
		}
	}
	return ids, nil
}

// Client は負荷生成器
type Client struct {
	config    Config
	target    Target
	nodes     []ua.NodeID
	pool      *worker.Pool
	collector *metrics.Collector
	total     *metrics.Metrics
	submitted atomic.Uint64

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New は新しいClientを作成する
// collector が nil の場合は専用のレジストリで作成する
func New(target Target, nodes []ua.NodeID, config Config, collector *metrics.Collector) *Client {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Client{
		config:    config,
		target:    target,
		nodes:     nodes,
		pool:      worker.NewPoolWithConfig(worker.PoolConfig{Name: "bench", NumWorkers: config.NumWorkers}),
		collector: collector,
		total:     metrics.New(),
	}
}

// Start は負荷生成を開始する
func (c *Client) Start(ctx context.Context) {
	if c.running.Swap(true) {
		return // Already running
	}

	// プールは親のctxで動かし、Stopで生成ループだけ先に止める
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.pool.Start(ctx)

	logger.Info(logScope, "Client started (workers: %d, nodes: %d, write_ratio: %.1f%%, browse_ratio: %.1f%%)",
		c.pool.NumWorkers(), len(c.nodes), c.config.WriteRatio*100, c.config.BrowseRatio*100)

	// リクエスト生成ループ
	c.wg.Add(1)
	go c.generateRequests()
}

// generateRequests はリクエストを生成し続ける
func (c *Client) generateRequests() {
	defer c.wg.Done()

	if len(c.nodes) == 0 {
		logger.Error(logScope, "No nodes to exercise")
		return
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		// リクエスト上限チェック
		if c.config.RequestsLimit > 0 && c.submitted.Load() >= c.config.RequestsLimit {
			return
		}

		id := c.nodes[rand.IntN(len(c.nodes))]
		if !c.pool.Submit(c.createJob(id, rand.Float64())) {
			return
		}
		c.submitted.Add(1)
	}
}

// createJob はリクエストジョブを作成する
// dice で Write/Browse/Read を振り分ける
func (c *Client) createJob(id ua.NodeID, dice float64) worker.Job {
	return func(context.Context) error {
		var service string
		var err error

		start := time.Now()
		switch {
		case dice < c.config.WriteRatio:
			service = ServiceWrite
			err = c.target.WriteValue(id, ua.NewInt32(rand.Int32()))
		case dice < c.config.WriteRatio+c.config.BrowseRatio:
			service = ServiceBrowse
			c.target.BrowseAll(id, addrspace.BrowseOptions{Direction: addrspace.Both})
		default:
			service = ServiceRead
			_, err = c.target.ReadValue(id)
		}
		latency := time.Since(start)

		c.collector.Observe(service, addrspace.StatusOf(err).String(), err, latency)
		c.total.Record(err, latency)
		// 失敗はメトリクスで数えるのでプールには返さない
		return nil
	}
}

// Stop は負荷生成を停止する
// 送信済みのリクエストは全て完了してから戻る
func (c *Client) Stop() {
	if !c.running.Swap(false) {
		return // Not running
	}

	c.cancel()
	c.wg.Wait()
	c.pool.Stop()

	logger.Info(logScope, "Client stopped (%d requests)", c.total.TotalRequests())
}

// Metrics は全体のメトリクスを返す
func (c *Client) Metrics() *metrics.Metrics {
	return c.total
}

// Collector はサービス別のメトリクスを返す
func (c *Client) Collector() *metrics.Collector {
	return c.collector
}

// IsRunning は実行中かどうかを返す
func (c *Client) IsRunning() bool {
	return c.running.Load()
}

// RunFor は指定時間だけ負荷生成を実行する
func (c *Client) RunFor(ctx context.Context, duration time.Duration) *metrics.Snapshot {
	c.Start(ctx)

	select {
	case <-ctx.Done():
	case <-time.After(duration):
	}

	c.Stop()

	snapshot := c.total.Snapshot()
	return &snapshot
}

// RunRequests は指定数のリクエストを実行する
func (c *Client) RunRequests(ctx context.Context, count uint64) *metrics.Snapshot {
	c.config.RequestsLimit = count
	c.Start(ctx)
	c.wg.Wait()
	c.Stop()

	snapshot := c.total.Snapshot()
	return &snapshot
}
