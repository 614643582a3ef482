package render

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Workspace is the scratch directory of a single render. Every temporary
// narration, caption and clip file lives under it and is removed together.
type Workspace struct {
	dir string
}

func NewWorkspace(root string, videoID uuid.UUID) (*Workspace, error) {
	dir := filepath.Join(root, fmt.Sprintf("render_%s_%d", videoID, time.Now().UnixNano()))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create render workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Path returns the location of a named file inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// SegmentPath names a per-segment file, e.g. SegmentPath(2, "clip", "mp4").
func (w *Workspace) SegmentPath(index int, kind, ext string) string {
	return w.Path(fmt.Sprintf("%s_%03d.%s", kind, index, ext))
}

// Cleanup removes the workspace and everything in it.
func (w *Workspace) Cleanup() error {
	return os.RemoveAll(w.dir)
}
