// Package thumbnail implements the content-addressed, at-most-once
// thumbnail build described in spec §4.3, shelling out to the same three
// converters as the original implementation (original_source/rust/src/main.rs:
// generate_picture_thumb/generate_video_thumb) via os/exec rather than an
// image-processing library, since the artifact pipeline (auto-orient,
// letterbox-extent, play-button overlay) is specified in terms of those
// external tools' flags.
package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mindflavor/gallerysrv/internal/media"
	"github.com/mindflavor/gallerysrv/internal/metrics"
)

// MinSize and MaxSize bound the requested thumbnail edge length. The spec
// leaves this an open question; this implementation rejects anything
// outside a sane range rather than letting an unbounded size value drive an
// unbounded convert/composite invocation.
const (
	MinSize = 1
	MaxSize = 4096
)

// ErrNotApplicable is returned when source is neither an image nor a video
// source extension.
var ErrNotApplicable = errors.New("thumbnail: source is not a previewable media file")

// ErrSizeOutOfRange is returned when the requested size falls outside
// [MinSize, MaxSize].
var ErrSizeOutOfRange = errors.New("thumbnail: size out of range")

// playButtonOverlay is the asset composited over a video's extracted frame,
// matching the original's "play256.png" sitting alongside the binary.
const playButtonOverlay = "play256.png"

// Cache produces and serves thumbnails rooted at RootPath, deduplicating
// concurrent builds of the same (size, source) key with a per-key mutex so
// a generation race wastes at most one redundant converter invocation
// rather than corrupting the artifact (spec §4.3's "at most once
// observably").
type Cache struct {
	RootPath string
	Metrics  *metrics.Recorder
	Logger   *slog.Logger

	mu      sync.Mutex
	keyLock map[string]*sync.Mutex
}

// New constructs a Cache rooted at rootPath.
func New(rootPath string, recorder *metrics.Recorder, logger *slog.Logger) *Cache {
	return &Cache{RootPath: rootPath, Metrics: recorder, Logger: logger, keyLock: make(map[string]*sync.Mutex)}
}

// ArtifactPath returns the deterministic cache location for (size, source),
// per spec §4.1: thumb_root_path/<S>x<S>/<source-parent-without-leading-slash>/<basename>.jpg.
func (c *Cache) ArtifactPath(size int, source string) string {
	parent := filepath.Dir(source)
	parent = strings.TrimPrefix(parent, "/")
	base := filepath.Base(source)
	dir := filepath.Join(c.RootPath, fmt.Sprintf("%dx%d", size, size), parent)
	return filepath.Join(dir, base+".jpg")
}

func (c *Cache) lockFor(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.keyLock[key]
	if !ok {
		l = &sync.Mutex{}
		c.keyLock[key] = l
	}
	return l
}

// Get returns the artifact path for (size, source), building it first if
// necessary. Every call with an in-range size and an image or video source
// counts as one access; a build is only counted, and only happens, on a
// cache miss (spec Scenario E).
func (c *Cache) Get(ctx context.Context, size int, source string) (string, error) {
	if size < MinSize || size > MaxSize {
		return "", ErrSizeOutOfRange
	}

	ext := media.Extension(source)
	switch {
	case media.IsImage(ext):
		return c.getPicture(ctx, size, source)
	case media.IsVideo(ext):
		return c.getVideo(ctx, size, source)
	default:
		return "", ErrNotApplicable
	}
}

func (c *Cache) getPicture(ctx context.Context, size int, source string) (string, error) {
	c.Metrics.TrackPictureThumbAccess()

	dst := c.ArtifactPath(size, source)
	key := fmt.Sprintf("pic:%d:%s", size, source)
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if fileExists(dst) {
		return dst, nil
	}
	c.Metrics.TrackPictureThumbGeneration()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("thumbnail: mkdir: %w", err)
	}
	c.runConvertThumbnail(ctx, source, dst, size)
	return dst, nil
}

func (c *Cache) getVideo(ctx context.Context, size int, source string) (string, error) {
	c.Metrics.TrackVideoThumbAccess()

	dst := c.ArtifactPath(size, source)
	key := fmt.Sprintf("vid:%d:%s", size, source)
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if fileExists(dst) {
		return dst, nil
	}
	c.Metrics.TrackVideoThumbGeneration()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("thumbnail: mkdir: %w", err)
	}

	c.run(ctx, "ffmpeg", "-i", source, "-vframes", "1", dst, "-y")
	c.runConvertThumbnail(ctx, dst, dst, size)
	c.run(ctx, "composite",
		"-dissolve", "50",
		"-gravity", "Center",
		playButtonOverlay,
		dst,
		"-alpha", "Set",
		dst,
	)
	return dst, nil
}

func (c *Cache) runConvertThumbnail(ctx context.Context, src, dst string, size int) {
	c.run(ctx, "convert",
		src,
		"-auto-orient",
		"-thumbnail", fmt.Sprintf("%dx%d>", size, size),
		"-background", "white",
		"-gravity", "center",
		"-extent", fmt.Sprintf("%dx%d", size, size),
		dst,
	)
}

// run invokes an external converter and logs, but never propagates, a
// non-zero exit: a failed build simply leaves no (or a partial) artifact for
// the next request to retry, matching the original implementation's
// fire-and-forget Command::output() calls.
func (c *Cache) run(ctx context.Context, name string, args ...string) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil && c.Logger != nil {
		c.Logger.Debug("thumbnail: converter failed",
			slog.String("converter", name),
			slog.Any("error", err),
			slog.String("output", string(output)))
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
