package syncer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/treesync/internal/filter"
	"github.com/bamsammich/treesync/internal/plan"
	"github.com/bamsammich/treesync/internal/stats"
	"github.com/bamsammich/treesync/internal/transport"
	"github.com/bamsammich/treesync/internal/ui"
)

var (
	mtime     = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	cycleTime = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
)

type dirs struct {
	base, src, dst string
}

func newDirs(t *testing.T) dirs {
	t.Helper()
	base := t.TempDir()
	d := dirs{base: base, src: filepath.Join(base, "src"), dst: filepath.Join(base, "dst")}
	require.NoError(t, os.MkdirAll(d.src, 0o755))
	return d
}

func (d dirs) config() Config {
	return Config{
		Source:  transport.Location{Path: d.src},
		Dest:    transport.Location{Path: d.dst},
		Workers: 4,
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(p, mtime, mtime))
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func runOnce(t *testing.T, cfg Config) CycleResult {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)
	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	return res
}

func TestRunOnceCreatesDestination(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	writeFile(t, d.src, "a.txt", "alpha")
	writeFile(t, d.src, "sub/b.txt", "bravo")
	require.NoError(t, os.Mkdir(filepath.Join(d.src, "empty"), 0o755))

	res := runOnce(t, d.config())
	assert.Zero(t, res.Failed())
	assert.Equal(t, "alpha", readFile(t, d.dst, "a.txt"))
	assert.Equal(t, "bravo", readFile(t, d.dst, "sub/b.txt"))
	assert.DirExists(t, filepath.Join(d.dst, "empty"))

	res = runOnce(t, d.config())
	assert.Empty(t, res.Plan.Changes(), "second run should find nothing to do")
}

func TestRunOnceRenameAndRecycle(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	writeFile(t, d.src, "new/name.txt", "payload")
	writeFile(t, d.dst, "old.txt", "payload")
	writeFile(t, d.dst, "sub/extra.txt", "leftover")

	cfg := d.config()
	cfg.Extraneous = plan.MoveToRecycle
	cfg.RecycleDir = "trash"
	s, err := New(cfg)
	require.NoError(t, err)
	s.now = func() time.Time { return cycleTime }
	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	counts := res.Plan.Counts()
	assert.Equal(t, 1, counts[plan.Rename])
	assert.Equal(t, 2, counts[plan.Recycle], "the file and its emptied directory")
	assert.Zero(t, res.Failed())

	assert.Equal(t, "payload", readFile(t, d.dst, "new/name.txt"))
	assert.NoFileExists(t, filepath.Join(d.dst, "old.txt"))
	assert.NoDirExists(t, filepath.Join(d.dst, "sub"))
	assert.Equal(t, "leftover", readFile(t, filepath.Join(d.base, "trash", "20250304_050607"), "sub/extra.txt"))
}

func TestRunOnceRecycleKeepsEarlierVersions(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	writeFile(t, d.src, "keep.txt", "k")
	writeFile(t, d.dst, "x.txt", "v1")

	cfg := d.config()
	cfg.Extraneous = plan.MoveToRecycle
	cfg.RecycleDir = "trash"
	s, err := New(cfg)
	require.NoError(t, err)
	// Both cycles land in the same second.
	s.now = func() time.Time { return cycleTime }

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, res.Failed())

	writeFile(t, d.dst, "x.txt", "v2")
	res, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, res.Failed())

	trash := filepath.Join(d.base, "trash", "20250304_050607")
	assert.Equal(t, "v1", readFile(t, trash, "x.txt"))
	assert.Equal(t, "v2", readFile(t, trash, "x.txt.1"))
	assert.NoFileExists(t, filepath.Join(d.dst, "x.txt"))
}

func TestRunOnceRecycleUsesDirectoryPerCycle(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	writeFile(t, d.src, "keep.txt", "k")
	writeFile(t, d.dst, "x.txt", "v1")

	cfg := d.config()
	cfg.Extraneous = plan.MoveToRecycle
	cfg.RecycleDir = AutoRecycle
	s, err := New(cfg)
	require.NoError(t, err)

	now := cycleTime
	s.now = func() time.Time { return now }
	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)

	writeFile(t, d.dst, "x.txt", "v2")
	now = now.Add(time.Minute)
	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "v1", readFile(t, filepath.Join(d.base, "Trash_20250304_050607"), "x.txt"))
	assert.Equal(t, "v2", readFile(t, filepath.Join(d.base, "Trash_20250304_050707"), "x.txt"))
}

// unreadableDir makes ReadDir fail for one directory of the wrapped
// endpoint.
type unreadableDir struct {
	transport.WriteEndpoint
	dir string
}

func (u unreadableDir) ReadDir(relPath string) ([]transport.FileEntry, error) {
	if relPath == u.dir {
		return nil, os.ErrPermission
	}
	return u.WriteEndpoint.ReadDir(relPath)
}

func TestRunOnceUnreadableSourceDirectoryKeepsDestination(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	writeFile(t, d.src, "sub/a.txt", "alpha")
	writeFile(t, d.src, "top.txt", "t")
	writeFile(t, d.dst, "sub/a.txt", "alpha")
	writeFile(t, d.dst, "sub/old.txt", "old")

	cfg := d.config()
	cfg.Extraneous = plan.Remove
	cfg.Connect = func(ctx context.Context, loc transport.Location, mustExist bool) (transport.WriteEndpoint, error) {
		ep, err := transport.Open(ctx, loc, transport.SSHOpts{}, mustExist)
		if err != nil || loc != cfg.Source {
			return ep, err
		}
		return unreadableDir{WriteEndpoint: ep, dir: "sub"}, nil
	}
	res := runOnce(t, cfg)

	for _, a := range res.Plan.Changes() {
		assert.NotContains(t, a.Path(), "sub/", a.String())
	}
	assert.Zero(t, res.Failed())
	assert.Equal(t, "alpha", readFile(t, d.dst, "sub/a.txt"))
	assert.Equal(t, "old", readFile(t, d.dst, "sub/old.txt"))
	assert.Equal(t, "t", readFile(t, d.dst, "top.txt"))
}

func TestRunOnceRenameIntoNewDirectories(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	writeFile(t, d.dst, "a", "payload")
	writeFile(t, d.src, "a/other", "other")
	writeFile(t, d.src, "b/x", "payload")

	cfg := d.config()
	cfg.Extraneous = plan.Remove
	res := runOnce(t, cfg)
	assert.Zero(t, res.Failed())
	assert.Equal(t, 1, res.Plan.Counts()[plan.Rename])
	assert.Equal(t, "payload", readFile(t, d.dst, "b/x"))
	assert.Equal(t, "other", readFile(t, d.dst, "a/other"))

	res = runOnce(t, cfg)
	assert.Empty(t, res.Plan.Changes())
}

func TestRunOnceFileReplacedByDirectoryOfItself(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	writeFile(t, d.dst, "docs", "readme text")
	writeFile(t, d.src, "docs/readme", "readme text")

	cfg := d.config()
	cfg.Extraneous = plan.Remove
	res := runOnce(t, cfg)
	assert.Zero(t, res.Failed())
	assert.Zero(t, res.Plan.Counts()[plan.Rename])
	assert.Equal(t, "readme text", readFile(t, d.dst, "docs/readme"))

	res = runOnce(t, cfg)
	assert.Empty(t, res.Plan.Changes())
}

func TestRunOnceExcludedDirectoryIsLeftAlone(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	writeFile(t, d.src, "secret/key.pem", "src-key")
	writeFile(t, d.src, "public.txt", "p")
	writeFile(t, d.dst, "secret/old.pem", "dst-key")

	cfg := d.config()
	cfg.Rules = filter.MustCompile("- secret/ + **", filter.Options{})
	cfg.Extraneous = plan.Remove
	res := runOnce(t, cfg)

	for _, a := range res.Plan.Changes() {
		assert.NotContains(t, a.Path(), "secret", a.String())
	}
	assert.NoFileExists(t, filepath.Join(d.dst, "secret", "key.pem"))
	assert.Equal(t, "dst-key", readFile(t, d.dst, "secret/old.pem"))
	assert.Equal(t, "p", readFile(t, d.dst, "public.txt"))
}

func TestRunOnceVerifyRenamesRejectsDifferentContent(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	writeFile(t, d.src, "new.txt", "aaaa")
	writeFile(t, d.dst, "old.txt", "bbbb")

	cfg := d.config()
	cfg.Extraneous = plan.Remove
	cfg.VerifyRenames = true
	res := runOnce(t, cfg)

	counts := res.Plan.Counts()
	assert.Zero(t, counts[plan.Rename])
	assert.Equal(t, 1, counts[plan.Copy])
	assert.Equal(t, 1, counts[plan.Delete])
	assert.Equal(t, "aaaa", readFile(t, d.dst, "new.txt"))
	assert.NoFileExists(t, filepath.Join(d.dst, "old.txt"))
}

func TestRunOnceDryRunChangesNothing(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	writeFile(t, d.src, "a.txt", "alpha")

	cfg := d.config()
	cfg.DryRun = true
	res := runOnce(t, cfg)

	assert.Len(t, res.Plan.Changes(), 1)
	assert.NoDirExists(t, d.dst)
}

func TestRunOnceMissingSource(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	cfg := d.config()
	cfg.Source = transport.Location{Path: filepath.Join(d.base, "missing")}

	s, err := New(cfg)
	require.NoError(t, err)
	_, err = s.RunOnce(context.Background())

	var terr *transport.Error
	assert.ErrorAs(t, err, &terr)
}

func TestRunOnceReportsSummary(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	writeFile(t, d.src, "a.txt", "alpha")

	var out, summary bytes.Buffer
	cfg := d.config()
	cfg.Presenter = func(c *stats.Collector) ui.Presenter {
		return ui.NewPresenter(ui.Config{Writer: &out, ErrWriter: &out, Stats: c})
	}
	cfg.SummaryWriter = &summary
	runOnce(t, cfg)

	assert.Contains(t, out.String(), "+ a.txt")
	assert.Contains(t, summary.String(), "copied 1")
	assert.Contains(t, summary.String(), "errors 0")
}

func TestRecycleInsideDestinationIsRejected(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	writeFile(t, d.src, "keep.txt", "k")
	writeFile(t, d.dst, "extra.txt", "x")

	cfg := d.config()
	cfg.Extraneous = plan.MoveToRecycle
	cfg.RecycleDir = filepath.Join(d.dst, "trash")

	s, err := New(cfg)
	require.NoError(t, err)
	_, err = s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRecycleInside)
	assert.FileExists(t, filepath.Join(d.dst, "extra.txt"))
}

func TestRecycleRequiresDirectory(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Extraneous: plan.MoveToRecycle})
	assert.ErrorIs(t, err, ErrNoRecycleDir)
}

func TestParseRecycleAuto(t *testing.T) {
	t.Parallel()

	spec, err := parseRecycle(AutoRecycle, transport.Location{Path: "/data/dst"})
	require.NoError(t, err)
	cycle := spec.at(cycleTime)
	assert.Equal(t, "Trash_20250304_050607", cycle.dir)
	assert.False(t, cycle.absolute)
	assert.Equal(t, "Trash_20250304_050807", spec.at(cycleTime.Add(2*time.Minute)).dir)
}

func TestRecycleExplicitDirectoryGetsCycleSubdirectory(t *testing.T) {
	t.Parallel()

	spec, err := parseRecycle("/var/trash", transport.Location{Path: "/data/dst"})
	require.NoError(t, err)
	cycle := spec.at(cycleTime)
	assert.Equal(t, "/var/trash/20250304_050607", cycle.dir)
	assert.True(t, cycle.absolute)
	assert.Equal(t, "/var/trash", spec.dir, "at must not change the parsed directory")
}

type fakeRoot string

func (r fakeRoot) Root() string { return string(r) }

func TestRecycleResolveRemote(t *testing.T) {
	t.Parallel()

	remote := transport.Location{Host: "example.com", Path: "/srv/data"}
	tests := []struct {
		dir  string
		want string
		err  error
	}{
		{dir: "trash", want: "../trash"},
		{dir: "/srv/old", want: "../old"},
		{dir: "/var/trash", want: "../../var/trash"},
		{dir: "/srv/data/trash", err: ErrRecycleInside},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			t.Parallel()
			spec, err := parseRecycle(tt.dir, remote)
			require.NoError(t, err)
			got, err := spec.resolveRoot(fakeRoot("/srv/data"))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func countingConnector(calls *atomic.Int32) Connector {
	return func(ctx context.Context, loc transport.Location, mustExist bool) (transport.WriteEndpoint, error) {
		calls.Add(1)
		return transport.Open(ctx, loc, transport.SSHOpts{}, mustExist)
	}
}

func TestWatchRunsCyclePerRequest(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	writeFile(t, d.src, "a.txt", "alpha")

	var calls atomic.Int32
	cfg := d.config()
	cfg.Connect = countingConnector(&calls)
	s, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	requests := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, requests) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(d.dst, "a.txt"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	writeFile(t, d.src, "b.txt", "bravo")
	requests <- struct{}{}
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(d.dst, "b.txt"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	// Two endpoints per cycle.
	assert.GreaterOrEqual(t, calls.Load(), int32(4))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestWatchRetriesAfterTransportError(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	missing := filepath.Join(d.base, "later")
	cfg := d.config()
	cfg.Source = transport.Location{Path: missing}
	s, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	requests := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, requests) }()

	writeFile(t, missing, "x.txt", "x")
	requests <- struct{}{}
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(d.dst, "x.txt"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestWatchReturnsWhenRequestsClose(t *testing.T) {
	t.Parallel()

	d := newDirs(t)
	s, err := New(d.config())
	require.NoError(t, err)

	requests := make(chan struct{})
	close(requests)
	err = s.Watch(context.Background(), requests)
	assert.NoError(t, err)
}

func TestWatchStopsOnFatalError(t *testing.T) {
	t.Parallel()

	fatal := errors.New("boom")
	cfg := Config{
		Connect: func(context.Context, transport.Location, bool) (transport.WriteEndpoint, error) {
			return nil, fatal
		},
	}
	s, err := New(cfg)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Watch(context.Background(), make(chan struct{})), fatal)
}
