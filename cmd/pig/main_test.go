package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirtypig/pig/pkg/repository"
)

// fakeBoard serves a catalog with a single thread
func fakeBoard(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/b/threads.json":
			_, _ = w.Write([]byte(`{"threads":[{"num":"100","subject":"test","posts_count":3}]}`))
		case "/b/res/100.json":
			_, _ = w.Write([]byte(`{"title":"test","threads":[{"posts":[
				{"num":100,"parent":"0","comment":"hello"},
				{"num":101,"parent":"100","comment":"HI @EVERYONE"},
				{"num":102,"parent":"100","comment":"SHOUTING no marker"}
			]}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func writeConfig(t *testing.T, boardURL, listen string) (cfgPath, dsn string) {
	t.Helper()
	dir := t.TempDir()
	dsn = fmt.Sprintf("file:%s?mode=rwc&_txlock=immediate&_pragma=busy_timeout(5000)", filepath.Join(dir, "pig.db"))
	cfg := fmt.Sprintf(`
board:
  name: b
  base_url: %s
  save_top: 5
fetch:
  rate_limit: 1ms
collector:
  content_dir: %s
  idle_interval: 1h
database:
  dsn: "%s"
server:
  listen: "%s"
`, boardURL, filepath.Join(dir, "content"), dsn, listen)

	cfgPath = filepath.Join(dir, "pig.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return cfgPath, dsn
}

func countRecords(t *testing.T, dsn string) int {
	t.Helper()
	repos, err := repository.NewRepositories(context.Background(), repository.Config{DSN: dsn, MaxOpenConns: 1, MaxIdleConns: 1})
	require.NoError(t, err)
	defer repos.Close()
	count, err := repos.Record.Count(context.Background())
	require.NoError(t, err)
	return count
}

func TestRun_MissingConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := run(ctx, Opts{Config: "non-existent-config.yml"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load config")
}

func TestRun_InvalidConfig(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid-config.yml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("invalid: yaml: content: ["), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := run(ctx, Opts{Config: tmpFile})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load config")
}

func TestRun_BotWithoutToken(t *testing.T) {
	cfgPath, _ := writeConfig(t, "http://127.0.0.1:1", "127.0.0.1:0")

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	err := run(ctx, Opts{Config: cfgPath, NoCollector: true, NoServer: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram.token is required")
}

func TestRun_Once(t *testing.T) {
	board := fakeBoard(t)
	cfgPath, dsn := writeConfig(t, board.URL, "127.0.0.1:0")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, run(ctx, Opts{Config: cfgPath, Once: true}))
	assert.Equal(t, 1, countRecords(t, dsn))

	// second run adds a new snapshot of the same thread, collection keeps a single record
	require.NoError(t, run(ctx, Opts{Config: cfgPath, Once: true}))
	assert.Equal(t, 1, countRecords(t, dsn))
}

func TestRun_ServerStartStop(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	board := fakeBoard(t)
	cfgPath, _ := writeConfig(t, board.URL, fmt.Sprintf("127.0.0.1:%d", port))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, Opts{Config: cfgPath, NoBot: true}) }()

	statusURL := fmt.Sprintf("http://127.0.0.1:%d/api/v1/status", port)
	assert.Eventually(t, func() bool {
		resp, err := http.Get(statusURL)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var status struct {
			Records int `json:"records"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return false
		}
		return status.Records == 1
	}, 5*time.Second, 50*time.Millisecond, "collector builds the collection and status reports it")

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/v1/random", port))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server shutdown timeout")
	}
}

func TestSetupLog(t *testing.T) {
	t.Run("debug mode enabled", func(t *testing.T) {
		setupLog(true, false)
	})

	t.Run("debug mode disabled", func(t *testing.T) {
		setupLog(false, false)
	})

	t.Run("with secrets", func(t *testing.T) {
		setupLog(true, false, "secret1", "secret2")
	})

	t.Run("no color mode", func(t *testing.T) {
		setupLog(false, true)
	})
}
