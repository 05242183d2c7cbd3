package kiosk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FrameSource supplies the latest camera frame as encoded image bytes.
type FrameSource interface {
	Capture(ctx context.Context) ([]byte, error)
}

// DirSource reads the newest image from a spool directory that an external
// camera grabber keeps writing frames into.
type DirSource struct {
	Dir string
}

// Capture returns the bytes of the most recently modified image file.
func (d DirSource) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}

	type candidate struct {
		path string
		mod  int64
	}
	var frames []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
		default:
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		frames = append(frames, candidate{path: filepath.Join(d.Dir, e.Name()), mod: info.ModTime().UnixNano()})
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames in %s", d.Dir)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].mod > frames[j].mod })
	return os.ReadFile(frames[0].path)
}
