package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks sync statistics using lock-free atomic counters.
type Collector struct {
	filesCopied  atomic.Int64
	dirsCreated  atomic.Int64
	filesUpdated atomic.Int64
	renamed      atomic.Int64
	recycled     atomic.Int64
	deleted      atomic.Int64
	skipped      atomic.Int64
	failed       atomic.Int64
	bytesCopied  atomic.Int64
	byteDiff     atomic.Int64
	actionsDone  atomic.Int64
	actionsTotal atomic.Int64
	bytesTotal   atomic.Int64
	startTime    time.Time

	// Ring buffer, written only by the presenter's Tick.
	mu         sync.Mutex
	throughput [ringSize]int64 // bytes delta per second
	ringIdx    int
	ringCount  int // samples written, capped at ringSize
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotals records the number of changing actions and the bytes they
// transfer, once the plan is known.
func (c *Collector) SetTotals(actions, bytes int64) {
	c.actionsTotal.Store(actions)
	c.bytesTotal.Store(bytes)
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesCopied  int64
	DirsCreated  int64
	FilesUpdated int64
	Renamed      int64
	Recycled     int64
	Deleted      int64
	Skipped      int64
	Failed       int64
	BytesCopied  int64
	ByteDiff     int64 // net change in destination size
	ActionsDone  int64
	ActionsTotal int64
	BytesTotal   int64
	Elapsed      time.Duration
}

func (c *Collector) AddFilesCopied(n int64)  { c.filesCopied.Add(n) }
func (c *Collector) AddDirsCreated(n int64)  { c.dirsCreated.Add(n) }
func (c *Collector) AddFilesUpdated(n int64) { c.filesUpdated.Add(n) }
func (c *Collector) AddRenamed(n int64)      { c.renamed.Add(n) }
func (c *Collector) AddRecycled(n int64)     { c.recycled.Add(n) }
func (c *Collector) AddDeleted(n int64)      { c.deleted.Add(n) }
func (c *Collector) AddSkipped(n int64)      { c.skipped.Add(n) }
func (c *Collector) AddFailed(n int64)       { c.failed.Add(n) }
func (c *Collector) AddBytesCopied(n int64)  { c.bytesCopied.Add(n) }
func (c *Collector) AddByteDiff(n int64)     { c.byteDiff.Add(n) }
func (c *Collector) AddActionsDone(n int64)  { c.actionsDone.Add(n) }

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesCopied:  c.filesCopied.Load(),
		DirsCreated:  c.dirsCreated.Load(),
		FilesUpdated: c.filesUpdated.Load(),
		Renamed:      c.renamed.Load(),
		Recycled:     c.recycled.Load(),
		Deleted:      c.deleted.Load(),
		Skipped:      c.skipped.Load(),
		Failed:       c.failed.Load(),
		BytesCopied:  c.bytesCopied.Load(),
		ByteDiff:     c.byteDiff.Load(),
		ActionsDone:  c.actionsDone.Load(),
		ActionsTotal: c.actionsTotal.Load(),
		BytesTotal:   c.bytesTotal.Load(),
		Elapsed:      c.Elapsed(),
	}
}

// Changed returns the number of actions that modified the destination.
func (s Snapshot) Changed() int64 {
	return s.FilesCopied + s.DirsCreated + s.FilesUpdated + s.Renamed + s.Recycled + s.Deleted
}

// Tick snapshots the byte delta into the ring buffer. Called 1/sec by the presenter.
func (c *Collector) Tick() {
	currentBytes := c.bytesCopied.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = currentBytes - c.lastBytes
	c.lastBytes = currentBytes
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(seconds, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// ETA estimates remaining time based on rolling speed and remaining bytes.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.bytesCopied.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"copied=%d dirs=%d updated=%d renamed=%d recycled=%d deleted=%d skipped=%d failed=%d bytes=%d",
		s.FilesCopied, s.DirsCreated, s.FilesUpdated, s.Renamed, s.Recycled,
		s.Deleted, s.Skipped, s.Failed, s.BytesCopied,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	if b < 0 {
		return "-" + FormatBytes(-b)
	}
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
