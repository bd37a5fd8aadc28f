// ABOUTME: The loaded track: open file, index and cue point
// ABOUTME: Also resolves load paths against the root directory
package deck

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sendspin/sendspin-deck/internal/mpeg"
)

// Track is owned by the deck from load until eject.
type Track struct {
	filepath string // as given to Load
	resolved string
	filename string
	file     *os.File
	index    *mpeg.Index
	cuepoint float64
	cued     float64 // point of the last cue
}

func openTrack(path, resolved string) (*Track, error) {
	f, err := os.Open(resolved)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", resolved, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", resolved)
	}

	return &Track{
		filepath: path,
		resolved: resolved,
		filename: trackName(path),
		file:     f,
		index:    mpeg.Scan(f, info.Size()),
	}, nil
}

func (t *Track) close() error {
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}

// resolvePath joins relative paths onto root. Absolute paths pass through.
func resolvePath(root, path string) string {
	if filepath.IsAbs(path) || root == "" {
		return path
	}
	root = strings.TrimRight(root, "/")
	return root + "/" + path
}

// trackName is the base name with its last extension removed.
func trackName(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
