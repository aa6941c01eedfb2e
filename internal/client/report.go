package client

import (
	"fmt"
	"strings"
	"time"

	"uaspace/internal/metrics"
)

// Result はベンチマーク1回分の結果
type Result struct {
	ProfileName string
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Workers     int
	Nodes       int

	Total    metrics.Snapshot
	Services map[string]metrics.Snapshot
}

// Result は実行結果をまとめる
// RunFor/RunRequests の後に呼ぶ
func (c *Client) Result(name string, start time.Time) Result {
	end := time.Now()
	return Result{
		ProfileName: name,
		StartTime:   start,
		EndTime:     end,
		Duration:    end.Sub(start),
		Workers:     c.pool.NumWorkers(),
		Nodes:       len(c.nodes),
		Total:       c.total.Snapshot(),
		Services:    c.collector.Snapshots(),
	}
}

// Report は結果をフォーマットして返す
func (r Result) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, `
================================================================================
                         BENCHMARK REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Start Time:     %s
  End Time:       %s
  Duration:       %v
  Workers:        %d
  Nodes:          %d

TRAFFIC METRICS
---------------
  Total Requests:   %d
  Success:          %d
  Failed:           %d
  Error Rate:       %.2f%%
  Throughput:       %.0f req/s
  Avg Latency:      %v
  P99 Latency:      %v

SERVICES
--------
`,
		r.ProfileName,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.Workers,
		r.Nodes,
		r.Total.TotalRequests,
		r.Total.SuccessRequests,
		r.Total.FailedRequests,
		r.Total.ErrorRate*100,
		r.Total.OverallRPS,
		r.Total.AverageLatency,
		r.Total.P99Latency,
	)

	for _, name := range []string{ServiceRead, ServiceWrite, ServiceBrowse} {
		s, ok := r.Services[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %-8s %10d req  %6.2f%% err  avg %-12v p99 %v\n",
			name, s.TotalRequests, s.ErrorRate*100, s.AverageLatency, s.P99Latency)
	}
	b.WriteString("================================================================================\n")
	return b.String()
}
