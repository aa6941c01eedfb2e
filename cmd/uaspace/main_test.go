package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"uaspace/internal/config"
	"uaspace/internal/server"
	"uaspace/internal/ua"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var temperature = ua.MustParseNodeID("ns=1;s=temperature")

func testConfig(t *testing.T) *config.FileConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.API.Enabled = false
	cfg.Server.PollInterval = "10ms"
	cfg.Storage.Path = filepath.Join(dir, "snapshots")
	cfg.Storage.BackupPath = filepath.Join(dir, "uaspace.bak")
	cfg.History.Path = filepath.Join(dir, "history.db")
	return cfg
}

func runApp(t *testing.T, a *app) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- a.run(context.Background()) }()
	require.Eventually(t, func() bool {
		return a.srv.State() == server.StateRunning
	}, 2*time.Second, 5*time.Millisecond)
	return done
}

func TestServeLifecycle(t *testing.T) {
	cfg := testConfig(t)

	a, err := newApp(cfg)
	require.NoError(t, err)
	done := runApp(t, a)

	require.NoError(t, a.space.WriteValue(temperature, ua.NewInt32(77)))
	a.srv.RequestStop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after RequestStop")
	}
	assert.Equal(t, server.StateStopped, a.srv.State())
	assert.True(t, a.space.Frozen())

	a.recorder.Stop()
	n, err := a.history.Count(context.Background(), temperature)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	a.close()

	_, err = os.Stat(cfg.Storage.BackupPath)
	require.NoError(t, err, "backup written on stop")

	// The snapshot wins over the built-in model on the next start
	again, err := newApp(cfg)
	require.NoError(t, err)
	defer again.close()

	v, err := again.space.ReadValue(temperature)
	require.NoError(t, err)
	assert.True(t, v.Equal(ua.NewInt32(77)), "got %v", v)
}

func TestServeContextCancelStops(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Path = ""
	cfg.History.Path = ""

	a, err := newApp(cfg)
	require.NoError(t, err)
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()
	require.Eventually(t, func() bool {
		return a.srv.State() == server.StateRunning
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	assert.Equal(t, server.StateStopped, a.srv.State())
}

func TestServeStartupFailsClosed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model.Files = []string{filepath.Join(t.TempDir(), "missing.yaml")}

	_, err := newApp(cfg)
	require.Error(t, err)

	// Resources were released, so the store can be opened again
	cfg.Model.Files = nil
	a, err := newApp(cfg)
	require.NoError(t, err)
	a.close()
}

func TestServeLoadsModelFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plant.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
namespaces:
  - urn:example:plant
nodes:
  - id: ns=1;s=pump
    class: Object
    browse_name: pump
    parent: i=85
    reference_type: Organizes
`), 0o644))

	cfg := testConfig(t)
	cfg.Storage.Path = ""
	cfg.History.Path = ""
	cfg.Model.Files = []string{path}
	cfg.Model.WatchDir = t.TempDir()

	a, err := newApp(cfg)
	require.NoError(t, err)
	defer a.close()

	idx, ok := a.space.Namespaces().Index("urn:example:plant")
	require.True(t, ok)
	_, ok = a.space.GetNode(ua.NewStringNodeID(idx, "pump"))
	assert.True(t, ok)
	assert.NotNil(t, a.watcher)
}

func TestLoadConfigFlags(t *testing.T) {
	cmd := serveCmd()
	require.NoError(t, cmd.Flags().Set("port", "4900"))
	require.NoError(t, cmd.Flags().Set("no-api", "true"))

	cfg, err := loadConfig(cmd, serveOptions{port: 4900, noAPI: true})
	require.NoError(t, err)
	assert.Equal(t, 4900, cfg.Server.Port)
	assert.False(t, cfg.API.Enabled)
	assert.Equal(t, "127.0.0.1:8080", cfg.API.Addr, "unset flags keep defaults")
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cmd := serveCmd()
	require.NoError(t, cmd.Flags().Set("log-level", "loud"))

	_, err := loadConfig(cmd, serveOptions{logLevel: "loud"})
	assert.Error(t, err)
}

func TestBrowseTree(t *testing.T) {
	space, err := buildSpace(browseOptions{namespaceURI: "urn:uaspace:server"})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printTree(&out, space, ua.RootFolder, 2, false))

	text := out.String()
	assert.Contains(t, text, "Root (i=84) [Object]")
	assert.Contains(t, text, "Organizes Objects (i=85)")
	assert.Contains(t, text, "temperature (ns=1;s=temperature) [Variable] = 45")
	assert.NotContains(t, text, "HasTypeDefinition")

	out.Reset()
	require.NoError(t, printTree(&out, space, ua.ObjectsFolder, 1, true))
	assert.Contains(t, out.String(), "HasTypeDefinition")
}

func TestBrowseUnknownStart(t *testing.T) {
	space, err := buildSpace(browseOptions{namespaceURI: "urn:uaspace:server", skipDefault: true})
	require.NoError(t, err)

	var out bytes.Buffer
	err = printTree(&out, space, ua.NewStringNodeID(1, "nope"), 1, false)
	assert.Error(t, err)
}

func TestBrowseFromBackup(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Path = ""

	a, err := newApp(cfg)
	require.NoError(t, err)
	done := runApp(t, a)
	require.NoError(t, a.space.WriteValue(temperature, ua.NewInt32(12)))
	a.srv.RequestStop()
	require.NoError(t, <-done)
	a.close()

	space, err := buildSpace(browseOptions{
		namespaceURI: "urn:uaspace:server",
		backupFile:   cfg.Storage.BackupPath,
		skipDefault:  true,
	})
	require.NoError(t, err)
	v, err := space.ReadValue(temperature)
	require.NoError(t, err)
	assert.True(t, v.Equal(ua.NewInt32(12)), "got %v", v)
}

func TestBench(t *testing.T) {
	cmd := benchCmd()
	require.NoError(t, cmd.Flags().Set("workers", "2"))

	p, err := buildProfile(cmd, benchOptions{profile: "quick", workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Config.NumWorkers)

	var out bytes.Buffer
	require.NoError(t, runBench(context.Background(), &out, p, 300))
	assert.Contains(t, out.String(), "BENCHMARK REPORT: quick")
	assert.Contains(t, out.String(), "Total Requests:   300")
}

func TestBenchUnknownProfile(t *testing.T) {
	_, err := buildProfile(benchCmd(), benchOptions{profile: "nope"})
	assert.Error(t, err)
}

func TestPrintProfiles(t *testing.T) {
	var out bytes.Buffer
	printProfiles(&out)
	assert.Contains(t, out.String(), "read-heavy")
	assert.Contains(t, out.String(), "stress")
}
