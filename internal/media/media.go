// Package media classifies files by extension and resolves content types,
// grounded on the IMAGE_EXTENSIONS/VIDEO_EXTENSIONS tables and the
// content-type fallback logic in original_source/rust/src/main.rs.
package media

import (
	"mime"
	"path/filepath"
	"strings"
)

// imageExtensions are thumbnail-able and previewable picture sources.
var imageExtensions = map[string]bool{
	"png": true, "bmp": true, "jpg": true, "gif": true,
}

// videoExtensions are thumbnail-able and previewable video sources.
var videoExtensions = map[string]bool{
	"mkv": true, "mp4": true, "avi": true, "mov": true, "webm": true,
}

// extensionFallback covers content types the stdlib mime package doesn't
// know, per spec §4.4's fallback table. It is consulted only after the mime
// table, so it never overrides a type the mime table returns.
var extensionFallback = map[string]string{
	"mkv":  "video/mp4",
	"mp4":  "video/mp4",
	"avi":  "video/x-msvideo",
	"webm": "video/webm",
	"webp": "image/webp",
	"ogv":  "video/ogg",
	"mpeg": "video/mpeg",
}

// Extension returns the lowercased extension of path without its leading
// dot ("" if there is none).
func Extension(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsImage reports whether ext names a thumbnail-able image source.
func IsImage(ext string) bool { return imageExtensions[strings.ToLower(ext)] }

// IsVideo reports whether ext names a thumbnail-able video source.
func IsVideo(ext string) bool { return videoExtensions[strings.ToLower(ext)] }

// IsPreviewable reports whether ext is either a thumbnail-able image or
// video extension — the Preview/Extra partition used by the listing
// endpoint.
func IsPreviewable(ext string) bool { return IsImage(ext) || IsVideo(ext) }

// ContentType resolves the HTTP content type for ext: the standard mime
// table first, then the domain-specific fallback table, then a generic
// octet-stream default for anything unrecognized.
func ContentType(ext string) string {
	ext = strings.ToLower(ext)
	if ct := mime.TypeByExtension("." + ext); ct != "" {
		return ct
	}
	if ct, ok := extensionFallback[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
