package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// fileTypes enumerates every label value the list-files counters must carry
// from construction, per spec §4.6 ("all three series always present,
// initialized to 0").
var fileTypes = []string{"Preview", "Extra", "Folder"}

// Recorder publishes the gallery's operational counters in Prometheus
// exposition format. Every counter is monotonically non-decreasing and is
// only touched when metrics are enabled (a nil *Recorder no-ops every
// method so callers never need a nil check at the call site).
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	authorizedStatic   *prometheus.CounterVec
	unauthorizedStatic *prometheus.CounterVec
	authorizedDynamic  prometheus.Counter
	authorizedNotFound prometheus.Counter

	authorizedThumb   prometheus.Counter
	unauthorizedThumb prometheus.Counter

	pictureThumbAccess     prometheus.Counter
	pictureThumbGeneration prometheus.Counter
	videoThumbAccess       prometheus.Counter
	videoThumbGeneration   prometheus.Counter

	authorizedListFiles   *prometheus.CounterVec
	unauthorizedListFiles *prometheus.CounterVec

	authorizedFirstLevel   prometheus.Counter
	unauthorizedFirstLevel prometheus.Counter
}

// NewRecorder constructs a Prometheus-backed Recorder registered against a
// dedicated registry, so the gallery's metrics never collide with the
// process-default registerer (matching the teacher's metrics.NewRecorder).
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	r := &Recorder{
		gatherer: reg,
		authorizedStatic: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authorized_access_to_static_content",
			Help: "Authorized requests for static site content, by path.",
		}, []string{"path"}),
		unauthorizedStatic: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unauthorized_access_to_static_content",
			Help: "Unauthorized requests for static site content, by path.",
		}, []string{"path"}),
		authorizedDynamic: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authorized_access_to_dynamic_content",
			Help: "Authorized requests served media content or the SPA fallback.",
		}),
		authorizedNotFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authorized_not_found",
			Help: "Authorized requests that resolved to a 404.",
		}),
		authorizedThumb: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authorized_thumb",
			Help: "Authorized thumbnail requests.",
		}),
		unauthorizedThumb: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unauthorized_thumb",
			Help: "Unauthorized thumbnail requests.",
		}),
		pictureThumbAccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picture_thumb_access",
			Help: "Thumbnail lookups for picture sources, cache hit or miss.",
		}),
		pictureThumbGeneration: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picture_thumb_generation",
			Help: "Picture thumbnails actually generated (cache misses).",
		}),
		videoThumbAccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "video_thumb_access",
			Help: "Thumbnail lookups for video sources, cache hit or miss.",
		}),
		videoThumbGeneration: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "video_thumb_generation",
			Help: "Video thumbnails actually generated (cache misses).",
		}),
		authorizedListFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authorized_list_files",
			Help: "Authorized directory listing requests, by file_type.",
		}, []string{"file_type"}),
		unauthorizedListFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unauthorized_list_files",
			Help: "Unauthorized directory listing requests, by file_type.",
		}, []string{"file_type"}),
		authorizedFirstLevel: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authorized_first_level_folders",
			Help: "Authorized /firstlevel requests.",
		}),
		unauthorizedFirstLevel: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unauthorized_first_level_folders",
			Help: "Unauthorized /firstlevel requests.",
		}),
	}

	for _, ft := range fileTypes {
		r.authorizedListFiles.WithLabelValues(ft).Add(0)
		r.unauthorizedListFiles.WithLabelValues(ft).Add(0)
	}

	reg.MustRegister(
		r.authorizedStatic,
		r.unauthorizedStatic,
		r.authorizedDynamic,
		r.authorizedNotFound,
		r.authorizedThumb,
		r.unauthorizedThumb,
		r.pictureThumbAccess,
		r.pictureThumbGeneration,
		r.videoThumbAccess,
		r.videoThumbGeneration,
		r.authorizedListFiles,
		r.unauthorizedListFiles,
		r.authorizedFirstLevel,
		r.unauthorizedFirstLevel,
	)

	r.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return r
}

// Handler exposes the Prometheus HTTP handler serving this recorder's
// registry, meant to be mounted on the separate metrics listener.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer exposes the underlying Prometheus gatherer for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

func (r *Recorder) TrackAuthorizedStatic(path string) {
	if r == nil {
		return
	}
	r.authorizedStatic.WithLabelValues(path).Inc()
}

func (r *Recorder) TrackUnauthorizedStatic(path string) {
	if r == nil {
		return
	}
	r.unauthorizedStatic.WithLabelValues(path).Inc()
}

func (r *Recorder) TrackAuthorizedDynamic() {
	if r == nil {
		return
	}
	r.authorizedDynamic.Inc()
}

func (r *Recorder) TrackAuthorizedNotFound() {
	if r == nil {
		return
	}
	r.authorizedNotFound.Inc()
}

func (r *Recorder) TrackAuthorizedThumb() {
	if r == nil {
		return
	}
	r.authorizedThumb.Inc()
}

func (r *Recorder) TrackUnauthorizedThumb() {
	if r == nil {
		return
	}
	r.unauthorizedThumb.Inc()
}

func (r *Recorder) TrackPictureThumbAccess() {
	if r == nil {
		return
	}
	r.pictureThumbAccess.Inc()
}

func (r *Recorder) TrackPictureThumbGeneration() {
	if r == nil {
		return
	}
	r.pictureThumbGeneration.Inc()
}

func (r *Recorder) TrackVideoThumbAccess() {
	if r == nil {
		return
	}
	r.videoThumbAccess.Inc()
}

func (r *Recorder) TrackVideoThumbGeneration() {
	if r == nil {
		return
	}
	r.videoThumbGeneration.Inc()
}

func (r *Recorder) TrackAuthorizedListFiles(fileType string) {
	if r == nil {
		return
	}
	r.authorizedListFiles.WithLabelValues(fileType).Inc()
}

func (r *Recorder) TrackUnauthorizedListFiles(fileType string) {
	if r == nil {
		return
	}
	r.unauthorizedListFiles.WithLabelValues(fileType).Inc()
}

func (r *Recorder) TrackAuthorizedFirstLevel() {
	if r == nil {
		return
	}
	r.authorizedFirstLevel.Inc()
}

func (r *Recorder) TrackUnauthorizedFirstLevel() {
	if r == nil {
		return
	}
	r.unauthorizedFirstLevel.Inc()
}
