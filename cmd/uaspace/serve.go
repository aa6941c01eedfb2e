package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"uaspace/internal/addrspace"
	"uaspace/internal/api"
	"uaspace/internal/config"
	"uaspace/internal/events"
	"uaspace/internal/history"
	"uaspace/internal/logger"
	"uaspace/internal/metrics"
	"uaspace/internal/model"
	"uaspace/internal/server"
	"uaspace/internal/snapshot"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const logScope = "main"

type serveOptions struct {
	configFile string
	logLevel   string
	port       int
	minimal    bool
	noAPI      bool
	apiAddr    string
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the address space server",
		Long: `Run the address space server until SIGINT or SIGTERM.

Startup order: namespace 0 bootstrap, snapshot restore, built-in model,
model files, watched model directory. Any failure during startup exits
non-zero before the server starts serving.`,
		Example: `  uaspace serve
  uaspace serve --config uaspace.yaml
  UASPACE_PORT=4841 uaspace serve --api-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger.Default.SetLevel(cfg.LogLevel())
			return serve(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "設定ファイルパス (YAML/JSON)")
	f.StringVar(&opts.logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
	f.IntVarP(&opts.port, "port", "p", 0, "エンドポイントのポート")
	f.BoolVar(&opts.minimal, "minimal", false, "Serverオブジェクトを作らない最小構成で起動")
	f.BoolVar(&opts.noAPI, "no-api", false, "HTTPゲートウェイを無効化")
	f.StringVar(&opts.apiAddr, "api-addr", "", "HTTPゲートウェイのアドレス (例: :8080)")
	return cmd
}

// loadConfig は 設定ファイル → 環境変数 → フラグ の順に設定を重ねる
func loadConfig(cmd *cobra.Command, opts serveOptions) (*config.FileConfig, error) {
	cfg := config.Default()
	if opts.configFile != "" {
		var err error
		if cfg, err = config.LoadFile(opts.configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if f.Changed("port") {
		cfg.Server.Port = opts.port
	}
	if f.Changed("minimal") {
		cfg.Server.MinimalProfile = opts.minimal
	}
	if f.Changed("no-api") {
		cfg.API.Enabled = !opts.noAPI
	}
	if f.Changed("api-addr") {
		cfg.API.Addr = opts.apiAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// serve はサーバーを起動し、シグナルを受けるまで動かす
func serve(ctx context.Context, cfg *config.FileConfig) error {
	a, err := newApp(cfg)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer a.close()

	// シグナルハンドラはRequestStopを呼ぶだけ
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info(logScope, "Received %s, stopping", sig)
			a.srv.RequestStop()
		case <-a.srv.Done():
		}
	}()

	return a.run(ctx)
}

// app は serve が組み立てるコンポーネント一式
type app struct {
	cfg       *config.FileConfig
	space     *addrspace.Space
	bus       *events.Bus
	collector *metrics.Collector
	snapshots *snapshot.Store
	history   *history.Store
	recorder  *history.Recorder
	watcher   *model.Watcher
	api       *api.Server
	srv       *server.Server
}

// newApp はアドレス空間を構築する
// 途中で失敗した場合は開いたリソースを閉じてエラーを返す
func newApp(cfg *config.FileConfig) (a *app, err error) {
	a = &app{
		cfg:       cfg,
		space:     addrspace.New(),
		bus:       events.NewBus(),
		collector: metrics.NewCollector(),
	}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.space.SetEventBus(a.bus)
	ns := a.space.Namespaces().Register(cfg.Server.NamespaceURI)
	logger.Info(logScope, "Namespace %d: %s", ns, cfg.Server.NamespaceURI)

	if cfg.Storage.Path != "" {
		if a.snapshots, err = snapshot.Open(snapshot.Options{Path: cfg.Storage.Path}); err != nil {
			return a, err
		}
	}
	if cfg.History.Path != "" {
		if a.history, err = history.Open(cfg.History.Path); err != nil {
			return a, fmt.Errorf("failed to open history: %w", err)
		}
	}

	// ゲートウェイ無効時はIdleTransportでループだけ回す
	var transport server.Transport
	if cfg.API.Enabled {
		a.api = api.NewServer(a.space,
			api.WithEventBus(a.bus),
			api.WithHistory(a.history),
			api.WithSnapshots(a.snapshots),
			api.WithCollector(a.collector),
			api.WithListenAddr(cfg.API.Addr),
		)
		transport = a.api
	}

	a.srv = server.New(a.space, transport)
	a.srv.SetEventBus(a.bus)
	if a.api != nil {
		a.api.SetStatusSource(a.srv.Status)
	}

	scfg, err := cfg.ToServerConfig()
	if err != nil {
		return a, err
	}
	if err = a.srv.Configure(scfg); err != nil {
		return a, err
	}

	if err = a.loadContent(); err != nil {
		return a, err
	}

	if a.history != nil {
		a.recorder = history.NewRecorder(a.history, a.bus, history.RecorderConfig{
			Workers:   cfg.History.Workers,
			QueueSize: cfg.History.QueueSize,
		})
	}

	logger.Info(logScope, "Address space ready: %d nodes", a.space.Len())
	return a, nil
}

// loadContent はスナップショット、既定モデル、モデルファイルの順に読み込む
// 先に存在するノードが優先される
func (a *app) loadContent() error {
	if a.snapshots != nil {
		stats, ok, err := a.snapshots.Restore(a.space)
		if err != nil {
			return fmt.Errorf("failed to restore snapshot: %w", err)
		}
		if ok {
			logger.Info(logScope, "Restored snapshot: %d nodes, %d references, %d skipped",
				stats.Nodes, stats.References, stats.Skipped)
		}
	}

	if !a.cfg.Model.SkipDefault {
		if _, err := model.Apply(a.space, model.Default()); err != nil {
			return fmt.Errorf("failed to apply built-in model: %w", err)
		}
	}

	for _, path := range a.cfg.Model.Files {
		if _, err := model.ApplyFile(a.space, path); err != nil {
			return err
		}
	}

	if dir := a.cfg.Model.WatchDir; dir != "" {
		w, err := model.NewWatcher(dir, a.space,
			model.WithOnApplied(func(path string, stats model.Stats) {
				logger.Info(logScope, "Model %s applied: %d nodes, %d references", path, stats.Nodes, stats.References)
			}),
			model.WithOnError(func(err error) {
				logger.Error(logScope, "Model import failed: %v", err)
			}),
		)
		if err != nil {
			return err
		}
		a.watcher = w
		if err := w.ApplyExisting(); err != nil {
			return err
		}
	}
	return nil
}

// run はサーバーループと定期スナップショットを並行に動かす
// どちらかが失敗するか、停止が要求されると戻る
func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 停止後もキューに残ったサンプルを書き切るため、ctxのキャンセルは伝えない
	if a.recorder != nil {
		a.recorder.Start(context.WithoutCancel(ctx))
	}
	if a.watcher != nil {
		a.watcher.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return a.srv.Run(gctx)
	})
	if a.snapshots != nil {
		g.Go(func() error {
			return a.snapshots.Run(gctx, a.space, a.cfg.SnapshotInterval())
		})
	}
	err := g.Wait()

	if a.snapshots != nil {
		err = errors.Join(err, a.saveFinal())
	}

	st := a.srv.Status()
	logger.Info(logScope, "Server %s after %d iterations (%d nodes)", st.State, st.Iterations, st.Nodes)
	return err
}

// saveFinal は停止時のスナップショットとバックアップを書く
func (a *app) saveFinal() error {
	info, err := a.snapshots.Save(a.space)
	if err != nil {
		return fmt.Errorf("final snapshot: %w", err)
	}
	logger.Info(logScope, "Saved snapshot generation %d (%d nodes)", info.Generation, info.Nodes)

	if path := a.cfg.Storage.BackupPath; path != "" {
		if err := a.snapshots.BackupFile(path); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
		logger.Info(logScope, "Wrote backup to %s", path)
	}
	return nil
}

// close はrunの後始末をする (newAppの途中失敗でも呼ばれる)
func (a *app) close() {
	if a.srv != nil && a.srv.State() != server.StateStopped {
		a.srv.RequestStop()
	}
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			logger.Warn(logScope, "Watcher stop failed: %v", err)
		}
	}
	if a.recorder != nil {
		a.recorder.Stop()
		logger.Info(logScope, "History: %d recorded, %d dropped", a.recorder.Recorded(), a.recorder.Dropped())
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			logger.Warn(logScope, "History close failed: %v", err)
		}
	}
	if a.snapshots != nil {
		if err := a.snapshots.Close(); err != nil {
			logger.Warn(logScope, "Snapshot close failed: %v", err)
		}
	}
	a.bus.Close()
}
