package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaity/folio/internal/builder"
	"github.com/pbaity/folio/internal/config"
	"github.com/pbaity/folio/internal/logger"
	"github.com/pbaity/folio/internal/rebuild"
	"github.com/pbaity/folio/pkg/models"
)

func testInitLogger(t *testing.T) {
	t.Helper()
	require.NoError(t, logger.Init(models.ApplicationSettings{LogLevel: "error", LogFormat: "text"}, io.Discard))
}

// syncBuffer is a bytes.Buffer safe for a writer and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// testConfig returns defaults pointed at a small site in a temp dir.
func testConfig(t *testing.T) *models.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Application.PIDFilePath = filepath.Join(root, "folio.pid")
	cfg.Site.SourceRoot = filepath.Join(root, "content")
	cfg.Site.OutputRoot = filepath.Join(root, "build")
	cfg.Watch.Debounce.Duration = 20 * time.Millisecond

	writeFile(t, cfg.Site.SourceRoot, "base.html", "<html><title>{{title}}</title>\n{{content}}\n</html>\n")
	writeFile(t, cfg.Site.SourceRoot, "pages/index.html", "<p>Welcome</p>\n")
	writeFile(t, cfg.Site.SourceRoot, "pages/about.md", "# About\n")
	writeFile(t, cfg.Site.SourceRoot, "static/robots.txt", "User-agent: *\n")
	return cfg
}

func TestStatusLine(t *testing.T) {
	res := &builder.Result{Rendered: 2, Copied: 1, Written: 4, Fingerprint: "0123456789abcdef"}

	ok := statusLine(rebuild.Outcome{Result: res})
	assert.Contains(t, ok, "built")
	assert.Contains(t, ok, "2 pages, 1 assets")
	assert.Contains(t, ok, "0123456789abcdef")

	failed := statusLine(rebuild.Outcome{Err: errors.New("base.html: malformed")})
	assert.Contains(t, failed, "build failed")
	assert.Contains(t, failed, "base.html: malformed")

	hooks := statusLine(rebuild.Outcome{Result: res, HookErr: errors.New("hook deploy: exit code 1")})
	assert.Contains(t, hooks, "hooks failed")
	assert.Contains(t, hooks, "hook deploy: exit code 1")
}

func TestSummary(t *testing.T) {
	assert.Empty(t, summary(nil))

	s := summary(&builder.Result{Rendered: 1, Drafts: 2, Written: 1, Unchanged: 3, Removed: 1, Fingerprint: "ff"})
	assert.Contains(t, s, "2 drafts skipped")
	assert.Contains(t, s, "1 written, 3 unchanged")
	assert.Contains(t, s, "1 removed")
	assert.Contains(t, s, "[ff]")
}

func TestAcquirePIDFile(t *testing.T) {
	testInitLogger(t)
	path := filepath.Join(t.TempDir(), "folio.pid")

	release, err := acquirePIDFile(path)
	require.NoError(t, err)
	pid, err := readPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	release()
	release()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAcquirePIDFile_LiveProcess(t *testing.T) {
	testInitLogger(t)
	path := filepath.Join(t.TempDir(), "folio.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())), 0644))

	_, err := acquirePIDFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already watching")
}

func TestAcquirePIDFile_StaleFile(t *testing.T) {
	testInitLogger(t)
	path := filepath.Join(t.TempDir(), "folio.pid")
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), 0644))

	release, err := acquirePIDFile(path)
	require.NoError(t, err)
	defer release()

	pid, err := readPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquirePIDFile_Disabled(t *testing.T) {
	release, err := acquirePIDFile("")
	require.NoError(t, err)
	release()
}

func TestReadPID_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := readPID(filepath.Join(dir, "missing.pid"))
	assert.ErrorIs(t, err, errNotRunning)

	garbage := filepath.Join(dir, "garbage.pid")
	require.NoError(t, os.WriteFile(garbage, []byte("not-a-pid"), 0644))
	_, err = readPID(garbage)
	assert.Error(t, err)

	negative := filepath.Join(dir, "negative.pid")
	require.NoError(t, os.WriteFile(negative, []byte("-4"), 0644))
	_, err = readPID(negative)
	assert.Error(t, err)
}

func TestSignalWatcher_NoPIDFile(t *testing.T) {
	_, err := signalWatcher(filepath.Join(t.TempDir(), "folio.pid"), 0)
	assert.ErrorIs(t, err, errNotRunning)

	_, err = signalWatcher("", 0)
	assert.Error(t, err)
}

func TestPrintConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printConfig(&buf, config.Default()))

	out := buf.String()
	assert.Contains(t, out, "source_root: content")
	assert.Contains(t, out, "output_root: build")
	assert.Contains(t, out, "debounce: 100ms")
	assert.Contains(t, out, "highlight_style: github")
}

func TestPrintHooks(t *testing.T) {
	var buf bytes.Buffer
	printHooks(&buf, nil)
	assert.Contains(t, buf.String(), "No hooks configured.")

	buf.Reset()
	printHooks(&buf, []models.HookConfig{
		{ID: "deploy", Description: "Sync to the bucket", Script: "rsync -a {{output_root}}/ host:/srv", Timeout: models.Duration{Duration: time.Minute}},
		{ID: "notify", Script: "#!/bin/sh\necho one\necho two\n"},
	})
	out := buf.String()
	assert.Contains(t, out, "[0] ID: deploy")
	assert.Contains(t, out, "Description: Sync to the bucket")
	assert.Contains(t, out, "Script: rsync -a {{output_root}}/ host:/srv")
	assert.Contains(t, out, "Timeout: 1m0s")
	assert.Contains(t, out, "[1] ID: notify")
	assert.Contains(t, out, "Script: (3 lines)")
}

func TestRunBuild(t *testing.T) {
	testInitLogger(t)
	cfg := testConfig(t)
	var out bytes.Buffer

	require.NoError(t, runBuild(context.Background(), cfg, &out))
	assert.Contains(t, out.String(), "built")
	assert.FileExists(t, filepath.Join(cfg.Site.OutputRoot, "index.html"))
	assert.FileExists(t, filepath.Join(cfg.Site.OutputRoot, "about.html"))
	assert.FileExists(t, filepath.Join(cfg.Site.OutputRoot, "robots.txt"))
}

func TestRunBuild_MalformedTemplate(t *testing.T) {
	testInitLogger(t)
	cfg := testConfig(t)
	writeFile(t, cfg.Site.SourceRoot, "base.html", "<html>no content line</html>\n")
	var out bytes.Buffer

	err := runBuild(context.Background(), cfg, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, builder.ErrMalformed)
	assert.Contains(t, out.String(), "build failed")
	assert.NoDirExists(t, cfg.Site.OutputRoot)
}

func TestRunBuild_HookFailure(t *testing.T) {
	testInitLogger(t)
	cfg := testConfig(t)
	cfg.Hooks = []models.HookConfig{{ID: "broken", Script: "false"}}
	var out bytes.Buffer

	err := runBuild(context.Background(), cfg, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "post-build hooks failed")
	assert.Contains(t, out.String(), "hooks failed")
	assert.FileExists(t, filepath.Join(cfg.Site.OutputRoot, "index.html"))
}

func TestRunWatch(t *testing.T) {
	testInitLogger(t)
	cfg := testConfig(t)
	out := &syncBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, cfg, out) }()

	index := filepath.Join(cfg.Site.OutputRoot, "index.html")
	require.Eventually(t, func() bool {
		_, err := os.Stat(index)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "initial build")
	assert.FileExists(t, cfg.Application.PIDFilePath)

	writeFile(t, cfg.Site.SourceRoot, "pages/news.md", "# News\n")
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(cfg.Site.OutputRoot, "news.html"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "rebuild after a new page")

	require.NoError(t, os.Remove(filepath.Join(cfg.Site.SourceRoot, "pages", "about.md")))
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(cfg.Site.OutputRoot, "about.html"))
		return os.IsNotExist(err)
	}, 5*time.Second, 20*time.Millisecond, "stale output pruned")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runWatch did not return after cancel")
	}

	assert.Contains(t, out.String(), "watching")
	assert.Contains(t, out.String(), "stopped")
	assert.NoFileExists(t, cfg.Application.PIDFilePath)
}

func TestRunWatch_SIGHUPOnceThePIDFileExists(t *testing.T) {
	testInitLogger(t)
	cfg := testConfig(t)
	out := &syncBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, cfg, out) }()

	// A rebuild request may arrive as soon as the PID file is visible.
	require.Eventually(t, func() bool {
		_, err := os.Stat(cfg.Application.PIDFilePath)
		return err == nil
	}, 5*time.Second, time.Millisecond)
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGHUP))

	builds := func() int { return strings.Count(out.String(), "✓ built") }
	require.Eventually(t, func() bool { return builds() >= 1 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	before := builds()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGHUP))
	require.Eventually(t, func() bool { return builds() > before }, 5*time.Second, 20*time.Millisecond, "SIGHUP queues a rebuild")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runWatch did not return after cancel")
	}
}

func TestRunWatch_RefusesSecondInstance(t *testing.T) {
	testInitLogger(t)
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Application.PIDFilePath, []byte(strconv.Itoa(os.Getppid())), 0644))

	err := runWatch(context.Background(), cfg, io.Discard)
	require.Error(t, err)
	assert.NoDirExists(t, cfg.Site.OutputRoot)
}
