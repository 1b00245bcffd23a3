package tree

import (
	"time"
)

// Signature is the identity of a file for change and rename detection:
// its size and modification time. Equal signatures are taken to mean
// equal content without reading the files.
type Signature struct {
	Size    uint64
	ModTime int64 // nanoseconds since the epoch, truncated
}

// Relation is how a source file relates to the destination file at the
// same path.
type Relation int

const (
	// Same means the signatures are equal.
	Same Relation = iota
	// SourceNewer means the destination is older or as old as the source
	// but differs from it.
	SourceNewer
	// DestNewer means the destination was modified after the source.
	DestNewer
)

func (r Relation) String() string {
	switch r {
	case Same:
		return "same"
	case SourceNewer:
		return "source newer"
	default:
		return "destination newer"
	}
}

// Comparator compares entries from two trees. Resolution is the coarsest
// modification-time granularity of the two trees; times are truncated to
// it before comparison so a copy to a filesystem with second-resolution
// times still compares equal to its source.
type Comparator struct {
	Resolution time.Duration
}

func (c Comparator) truncate(t time.Time) int64 {
	if c.Resolution > 0 {
		t = t.Truncate(c.Resolution)
	}
	return t.UnixNano()
}

// Signature returns the identity signature of e.
func (c Comparator) Signature(e Entry) Signature {
	return Signature{Size: e.Size, ModTime: c.truncate(e.ModTime)}
}

// Compare relates a source file to the destination file at the same path.
func (c Comparator) Compare(src, dst Entry) Relation {
	s, d := c.Signature(src), c.Signature(dst)
	switch {
	case s == d:
		return Same
	case d.ModTime <= s.ModTime:
		return SourceNewer
	default:
		return DestNewer
	}
}

// Coarsest returns the larger of the given resolutions.
func Coarsest(res ...time.Duration) time.Duration {
	var out time.Duration
	for _, r := range res {
		out = max(out, r)
	}
	return out
}
