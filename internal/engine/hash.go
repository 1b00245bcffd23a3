package engine

import (
	"fmt"
	"log/slog"

	"github.com/zeebo/blake3"

	"github.com/bamsammich/treesync/internal/transport"
	"github.com/bamsammich/treesync/internal/tree"
)

// TailSize is how many trailing bytes VerifyRename compares.
const TailSize = 1024

// HashTail returns the BLAKE3 digest of the last n bytes of the file.
func HashTail(ep transport.ReadEndpoint, relPath string, n int64) ([32]byte, error) {
	data, err := ep.ReadTail(relPath, n)
	if err != nil {
		return [32]byte{}, fmt.Errorf("read tail of %s: %w", relPath, err)
	}
	return blake3.Sum256(data), nil
}

// VerifyRename returns a rename confirmer that accepts a candidate only
// when the last TailSize bytes of the destination orphan and the source
// file hash the same. Read errors reject the candidate, so the file is
// copied instead.
func VerifyRename(src, dst transport.ReadEndpoint) func(orphan, s tree.Entry) bool {
	return func(orphan, s tree.Entry) bool {
		want, err := HashTail(src, s.Path, TailSize)
		if err != nil {
			slog.Debug("rename check failed", "path", s.Path, "error", err)
			return false
		}
		got, err := HashTail(dst, orphan.Path, TailSize)
		if err != nil {
			slog.Debug("rename check failed", "path", orphan.Path, "error", err)
			return false
		}
		return want == got
	}
}
