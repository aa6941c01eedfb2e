package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"uaspace/internal/addrspace"
	"uaspace/internal/client"

	"github.com/spf13/cobra"
)

// ベンチ用ノードを置く名前空間
const benchNamespaceURI = "urn:uaspace:bench"

type benchOptions struct {
	profile     string
	listProfile bool
	duration    time.Duration
	requests    uint64
	workers     int
	nodes       int
	writeRatio  float64
	browseRatio float64
}

func benchCmd() *cobra.Command {
	var opts benchOptions

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a load benchmark against an in-process address space",
		Long: `Run a load benchmark against an in-process address space.

Variables are created under the Objects folder and exercised with a mix of
Read, Write and Browse calls. A profile supplies the defaults; flags
override individual settings.`,
		Example: `  uaspace bench --profile quick
  uaspace bench --profile browse --duration 30s
  uaspace bench --requests 100000 --workers 8 --write-ratio 0.5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.listProfile {
				printProfiles(cmd.OutOrStdout())
				return nil
			}
			profile, err := buildProfile(cmd, opts)
			if err != nil {
				return err
			}
			return runBench(cmd.Context(), cmd.OutOrStdout(), profile, opts.requests)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.profile, "profile", "quick", "プロファイル名")
	f.BoolVar(&opts.listProfile, "list-profiles", false, "利用可能なプロファイルを表示")
	f.DurationVarP(&opts.duration, "duration", "d", 0, "実行時間 (例: 10s, 1m)")
	f.Uint64VarP(&opts.requests, "requests", "n", 0, "リクエスト数 (指定時は実行時間より優先)")
	f.IntVarP(&opts.workers, "workers", "w", 0, "ワーカー数")
	f.IntVar(&opts.nodes, "nodes", 0, "ベンチ用ノード数")
	f.Float64Var(&opts.writeRatio, "write-ratio", 0, "Write比率 (0.0〜1.0)")
	f.Float64Var(&opts.browseRatio, "browse-ratio", 0, "Browse比率 (0.0〜1.0)")
	return cmd
}

// buildProfile はプロファイルにフラグを重ねる
func buildProfile(cmd *cobra.Command, opts benchOptions) (client.Profile, error) {
	p, ok := client.GetProfile(opts.profile)
	if !ok {
		return p, fmt.Errorf("unknown profile: %s (available: %v)", opts.profile, client.ListProfiles())
	}

	f := cmd.Flags()
	if f.Changed("duration") {
		p.Duration = opts.duration
	}
	if f.Changed("workers") {
		p.Config.NumWorkers = opts.workers
	}
	if f.Changed("nodes") {
		p.Config.NodeCount = opts.nodes
	}
	if f.Changed("write-ratio") {
		p.Config.WriteRatio = opts.writeRatio
	}
	if f.Changed("browse-ratio") {
		p.Config.BrowseRatio = opts.browseRatio
	}

	if err := p.Config.Validate(); err != nil {
		return p, fmt.Errorf("invalid benchmark config: %w", err)
	}
	return p, nil
}

// runBench はアドレス空間を用意して負荷をかけ、レポートを書き出す
// requests が0なら Profile.Duration だけ実行する
func runBench(ctx context.Context, out io.Writer, p client.Profile, requests uint64) error {
	space := addrspace.New()
	if err := addrspace.Bootstrap(space, true); err != nil {
		return err
	}
	p.Config.Namespace = space.Namespaces().Register(benchNamespaceURI)

	nodes, err := client.Prepare(space, p.Config)
	if err != nil {
		return err
	}

	c := client.New(space, nodes, p.Config, nil)
	start := time.Now()
	if requests > 0 {
		c.RunRequests(ctx, requests)
	} else {
		c.RunFor(ctx, p.Duration)
	}

	_, err = fmt.Fprint(out, c.Result(p.Name, start).Report())
	return err
}

func printProfiles(out io.Writer) {
	fmt.Fprintln(out, "Available profiles:")
	for _, name := range client.ListProfiles() {
		p, _ := client.GetProfile(name)
		fmt.Fprintf(out, "  %-12s %-8v %s\n", p.Name, p.Duration, p.Description)
	}
}
