// Package client provides a load generator for exercising an address space.
//
// The Client issues a configurable mix of Read, Write and Browse calls
// against a set of Int32 variables and records per-service metrics.
//
// # Basic Usage
//
//	space := addrspace.New()
//	addrspace.Bootstrap(space, true)
//
//	config := client.DefaultConfig()
//	config.WriteRatio = 0.5
//	ids, err := client.Prepare(space, config)
//
//	cl := client.New(space, ids, config, nil)
//	snap := cl.RunFor(ctx, 10*time.Second)
//	fmt.Printf("Total: %d, RPS: %.2f\n", snap.TotalRequests, snap.RPS)
//
//	// Or run a fixed number of requests
//	snap = cl.RunRequests(ctx, 10000)
//
// # Configuration
//
// The Config struct allows tuning:
//   - NumWorkers: parallel workers (0 = CPU count)
//   - WriteRatio: fraction of Write calls
//   - BrowseRatio: fraction of Browse calls; the rest are Reads
//   - NodeCount: number of variables created by Prepare
//   - RequestsLimit: max requests (0 = unlimited)
package client
