package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"uaspace/internal/logger"
)

const logScope = "worker"

// Job はワーカーが実行するジョブを表す
// ctx はプールの寿命に従う
type Job func(ctx context.Context) error

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	Name       string // ログ用の名前
	NumWorkers int    // ワーカー数（0でCPU数）
	QueueSize  int    // キューの長さ（0でNumWorkers*100）
}

// DefaultPoolConfig はデフォルト設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Name:       "pool",
		NumWorkers: 0, // CPU数
		QueueSize:  0,
	}
}

// Stats はプールの統計
type Stats struct {
	Workers   int    `json:"workers"`
	Queued    int    `json:"queued"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Rejected  uint64 `json:"rejected"`
}

// Pool はゴルーチンのプールを管理する
type Pool struct {
	name       string
	numWorkers int
	jobs       chan Job
	quit       chan struct{}
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	// sendMu は送信中のSubmitとjobsのcloseを排他する
	sendMu  sync.RWMutex
	mu      sync.Mutex
	started bool
	closed  bool

	completed atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
}

// NewPool は新しいワーカープールを作成する
// numWorkers が 0 の場合は CPU 数を使用
func NewPool(numWorkers int) *Pool {
	config := DefaultPoolConfig()
	config.NumWorkers = numWorkers
	return NewPoolWithConfig(config)
}

// NewPoolWithConfig は設定を指定してワーカープールを作成する
func NewPoolWithConfig(config PoolConfig) *Pool {
	numWorkers := config.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = numWorkers * 100
	}
	name := config.Name
	if name == "" {
		name = DefaultPoolConfig().Name
	}
	return &Pool{
		name:       name,
		numWorkers: numWorkers,
		jobs:       make(chan Job, queueSize),
		quit:       make(chan struct{}),
	}
}

// Start はワーカープールを起動する
// 停止済みのプールは再起動できない
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.closed {
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	for range p.numWorkers {
		p.wg.Add(1)
		go p.worker()
	}

	logger.Info(logScope, "%s started with %d workers", p.name, p.numWorkers)
}

// worker は個々のワーカーゴルーチン
// jobsがcloseされたら残りを処理してから終了する
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.run(job)
		}
	}
}

func (p *Pool) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			logger.Error(logScope, "%s: job panicked: %v", p.name, r)
		}
	}()

	if err := job(p.ctx); err != nil {
		p.failed.Add(1)
		logger.Warn(logScope, "%s: job failed: %v", p.name, err)
		return
	}
	p.completed.Add(1)
}

// accepting はジョブを受け付けられるか返す
func (p *Pool) accepting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started || p.closed {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	default:
		return true
	}
}

// TrySubmit はジョブを送信する。キューが満杯なら待たずに false を返す
func (p *Pool) TrySubmit(job Job) bool {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()

	if !p.accepting() {
		p.rejected.Add(1)
		return false
	}

	select {
	case p.jobs <- job:
		return true
	default:
		p.rejected.Add(1)
		return false
	}
}

// Submit はジョブを送信し、キューに空きがなければブロックする
// プールが停止またはキャンセルされると false を返す
func (p *Pool) Submit(job Job) bool {
	p.sendMu.RLock()
	defer p.sendMu.RUnlock()

	if !p.accepting() {
		p.rejected.Add(1)
		return false
	}

	select {
	case <-p.quit:
	case <-p.ctx.Done():
	case p.jobs <- job:
		return true
	}
	p.rejected.Add(1)
	return false
}

// Stop はワーカープールを停止する
// キュー済みのジョブは全て処理されてから戻る
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.closed {
		p.closed = true
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	// 待機中のSubmitを解放してからcloseする
	close(p.quit)
	p.sendMu.Lock()
	close(p.jobs)
	p.sendMu.Unlock()

	p.wg.Wait()
	p.cancel()

	logger.Info(logScope, "%s stopped (completed=%d failed=%d)", p.name, p.completed.Load(), p.failed.Load())
}

// NumWorkers はワーカー数を返す
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// QueueSize は現在のキューサイズを返す
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}

// Stats は統計を返す
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.numWorkers,
		Queued:    len(p.jobs),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}
