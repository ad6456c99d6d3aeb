// Package gallery implements the HTTP surface described in spec §4.4: the
// request handlers wiring AccessEngine, ThumbnailCache, and the static site
// together, grounded on the route table in original_source/rust/src/main.rs
// (the "path", "thumb", "list_files", "is_folder_allowed",
// "get_first_level_folders", "root", and "site" Rocket handlers) and shaped
// as plain net/http handlers after the teacher's internal/server routing
// style.
package gallery

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mindflavor/gallerysrv/internal/access"
	"github.com/mindflavor/gallerysrv/internal/audit"
	"github.com/mindflavor/gallerysrv/internal/identity"
	"github.com/mindflavor/gallerysrv/internal/media"
	"github.com/mindflavor/gallerysrv/internal/metrics"
	"github.com/mindflavor/gallerysrv/internal/thumbnail"
)

// FileWithSize is one entry of a directory listing: Size is omitted (zero
// value) for folder entries, matching the original's FileWithSize::without_size.
type FileWithSize struct {
	Path string `json:"path"`
	Size int64  `json:"size,omitempty"`
}

// FileKind selects which partition of a directory's children /list returns.
type FileKind int

const (
	KindPreview FileKind = iota
	KindExtra
	KindFolder
)

// ParseFileKind maps a path segment to a FileKind.
func ParseFileKind(s string) (FileKind, bool) {
	switch strings.ToLower(s) {
	case "preview":
		return KindPreview, true
	case "extra":
		return KindExtra, true
	case "folder":
		return KindFolder, true
	default:
		return 0, false
	}
}

func (k FileKind) String() string {
	switch k {
	case KindPreview:
		return "Preview"
	case KindExtra:
		return "Extra"
	case KindFolder:
		return "Folder"
	default:
		return "Preview"
	}
}

// Handlers binds one AccessEngine snapshot, one ThumbnailCache, and the
// static site root into the full gallery HTTP surface. The engine field is
// an atomic pointer rather than a plain field because a config hot-reload
// (internal/config's fsnotify watcher) swaps it from a different goroutine
// while request handlers are concurrently reading it.
type Handlers struct {
	engine         atomic.Pointer[access.Decider]
	Thumbnails     *thumbnail.Cache
	StaticSitePath string
	CORSOrigin     string
	Metrics        *metrics.Recorder
	Audit          *audit.Sink
	Logger         *slog.Logger
}

// New builds a Handlers bound to the given collaborators.
func New(engine access.Decider, thumbs *thumbnail.Cache, staticSitePath, corsOrigin string, recorder *metrics.Recorder, auditSink *audit.Sink, logger *slog.Logger) *Handlers {
	h := &Handlers{
		Thumbnails:     thumbs,
		StaticSitePath: staticSitePath,
		CORSOrigin:     corsOrigin,
		Metrics:        recorder,
		Audit:          auditSink,
		Logger:         logger,
	}
	h.SetEngine(engine)
	return h
}

// SetEngine atomically swaps the decision engine every handler reads,
// letting a config reload take effect without a restart.
func (h *Handlers) SetEngine(engine access.Decider) {
	h.engine.Store(&engine)
}

func (h *Handlers) decider() access.Decider {
	return *h.engine.Load()
}

func (h *Handlers) addCORS(w http.ResponseWriter) {
	if h.CORSOrigin != "" {
		w.Header().Set("Access-Control-Allow-Origin", h.CORSOrigin)
	}
}

func (h *Handlers) identity(r *http.Request) (identity.ForwardedIdentity, bool) {
	id, err := identity.FromRequest(r)
	if err != nil {
		return identity.ForwardedIdentity{}, false
	}
	return id, true
}

// ServeFile streams a file from the media tree at GET /path/<p…>: 401 if not
// allowed; else 404 if not found, a directory, or not a recognized media
// extension.
func (h *Handlers) ServeFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(r)
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	path := "/" + strings.TrimPrefix(r.PathValue("path"), "/")
	if !h.decider().IsAllowed(path, id.Email) {
		h.Metrics.TrackUnauthorizedStatic(path)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ext := media.Extension(path)
	info, err := os.Stat(path)
	switch {
	case err != nil, info.IsDir(), !media.IsPreviewable(ext):
		h.Metrics.TrackAuthorizedNotFound()
		http.NotFound(w, r)
		return
	}

	h.Metrics.TrackAuthorizedDynamic()
	h.auditRecord(id.Email, "image/video", path, "get", true)
	serveFile(w, r, path, ext)
}

// ServeThumb produces or serves a cached thumbnail at GET /thumb/<size>/<p…>.
func (h *Handlers) ServeThumb(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(r)
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	size, err := strconv.Atoi(r.PathValue("size"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	path := "/" + strings.TrimPrefix(r.PathValue("path"), "/")
	if !h.decider().IsAllowed(path, id.Email) {
		h.Metrics.TrackUnauthorizedThumb()
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	h.Metrics.TrackAuthorizedThumb()
	artifact, err := h.Thumbnails.Get(r.Context(), size, path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	serveFile(w, r, artifact, "jpg")
}

// ServeList enumerates a directory's children at GET /list/<kind>/<p…>,
// filtered to Preview (previewable files), Extra (everything else), or
// Folder (subdirectories further filtered by the caller's own access).
func (h *Handlers) ServeList(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(r)
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	kind, ok := ParseFileKind(r.PathValue("kind"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	path := "/" + strings.TrimPrefix(r.PathValue("path"), "/")
	if !h.decider().IsAllowed(path, id.Email) {
		h.Metrics.TrackUnauthorizedListFiles(kind.String())
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.Metrics.TrackAuthorizedListFiles(kind.String())

	entries, err := os.ReadDir(path)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	items := make([]FileWithSize, 0, len(entries))
	for _, entry := range entries {
		full := filepath.Join(path, entry.Name())
		switch kind {
		case KindPreview, KindExtra:
			if entry.IsDir() {
				continue
			}
			previewable := media.IsPreviewable(media.Extension(entry.Name()))
			if (kind == KindPreview) != previewable {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			items = append(items, FileWithSize{Path: full, Size: info.Size()})
		case KindFolder:
			if !entry.IsDir() {
				continue
			}
			if !h.decider().IsAllowed(full, id.Email) {
				continue
			}
			items = append(items, FileWithSize{Path: full})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })

	h.auditRecord(id.Email, strings.ToLower(kind.String()), path, "list", true)

	w.Header().Set("Content-Type", "application/json")
	h.addCORS(w)
	json.NewEncoder(w).Encode(items)
}

// ServeAllowed answers GET /allowed/<p…> with a bare JSON boolean.
func (h *Handlers) ServeAllowed(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(r)
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	path := "/" + strings.TrimPrefix(r.PathValue("path"), "/")
	allowed := h.decider().IsAllowed(path, id.Email)

	w.Header().Set("Content-Type", "application/json")
	h.addCORS(w)
	json.NewEncoder(w).Encode(allowed)
}

// ServeFirstLevel answers GET /firstlevel with the caller's minimal set of
// navigable root folders. The audit record fires unconditionally, even when
// the identity turns out not to be known, matching the original ordering.
func (h *Handlers) ServeFirstLevel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(r)
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	h.auditRecord(id.Email, "first_level_folders", "", "list", true)

	if !h.decider().IdentityAllowed(id) {
		h.Metrics.TrackUnauthorizedFirstLevel()
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.Metrics.TrackAuthorizedFirstLevel()

	folders := h.decider().FirstLevelAllowed(id.Email)
	w.Header().Set("Content-Type", "application/json")
	h.addCORS(w)
	json.NewEncoder(w).Encode(folders)
}

// ServeStatic serves the bundled site at GET / and GET /<p…>, falling back
// to index.html for any path the site does not have (SPA routing), per
// spec §4.4.
func (h *Handlers) ServeStatic(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(r)
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	if !h.decider().IdentityAllowed(id) {
		h.Metrics.TrackUnauthorizedStatic(r.URL.Path)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	rel := strings.TrimPrefix(r.URL.Path, "/")
	candidate := filepath.Join(h.StaticSitePath, rel)
	if rel != "" && fileExists(candidate) {
		h.Metrics.TrackAuthorizedStatic(candidate)
		serveFile(w, r, candidate, media.Extension(candidate))
		return
	}

	fallback := filepath.Join(h.StaticSitePath, "index.html")
	if !fileExists(fallback) {
		if h.Logger != nil {
			h.Logger.Error("gallery: static fallback missing", slog.String("path", fallback))
		}
		http.NotFound(w, r)
		return
	}
	h.Metrics.TrackAuthorizedDynamic()
	serveFile(w, r, fallback, "html")
}

func (h *Handlers) auditRecord(email, objType, objName, operation string, allowed bool) {
	if h.Audit == nil {
		return
	}
	h.Audit.Submit(audit.Record{When: time.Now(), Email: email, ObjType: objType, ObjName: objName, Operation: operation, Allowed: allowed})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func serveFile(w http.ResponseWriter, r *http.Request, path, ext string) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	var modTime time.Time
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}

	w.Header().Set("Content-Type", media.ContentType(ext))
	http.ServeContent(w, r, filepath.Base(path), modTime, f)
}
