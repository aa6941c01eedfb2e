// Package server implements the server lifecycle around an address space.
//
// # Lifecycle
//
//	Created -> Configured -> Running -> Stopping -> Stopped
//
// Configure applies a Config and bootstraps namespace 0 into an empty
// address space. Run binds the Transport and polls it until a stop is
// requested; each Poll is bounded by Config.PollInterval, which bounds
// shutdown latency to one iteration. RequestStop is the single stop entry
// point. It only performs atomic writes, so a signal goroutine may call
// it directly:
//
//	srv := server.New(space, transport)
//	if err := srv.Configure(cfg); err != nil {
//	    log.Fatal(err)
//	}
//
//	sigCh := make(chan os.Signal, 1)
//	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
//	go func() {
//	    <-sigCh
//	    srv.RequestStop()
//	}()
//
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Once a stop is requested the address space is frozen and every mutation
// fails with addrspace.ErrServerNotRunning. Stopped is terminal.
//
// # Server Status
//
// Unless Config.MinimalProfile is set, the Server object is part of the
// address space and the loop keeps ServerStatus/State and
// ServerStatus/CurrentTime up to date.
package server
