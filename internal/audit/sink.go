// Package audit implements the tamper-evident, best-effort append log
// described in spec §4.5. It is a direct translation of the original
// implementation's channel-plus-dedicated-thread design
// (original_source/rust/src/audit.rs) into a Go channel and goroutine.
package audit

import (
	"fmt"
	"log/slog"
	"os"
	"time"
)

// queueSize is generous headroom for the single background writer so a
// momentary burst of requests never blocks a handler goroutine on Submit.
const queueSize = 4096

// Record is one audit line: an access decision attributed to an email,
// classified by object type and name, for some operation.
type Record struct {
	When      time.Time
	Email     string
	ObjType   string
	ObjName   string
	Operation string
	Allowed   bool
}

func (r Record) line() string {
	decision := "DENIED"
	if r.Allowed {
		decision = "ALLOWED"
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		r.When.Format("2006-01-02|15:04:05"),
		r.Email, r.ObjType, r.ObjName, r.Operation, decision)
}

// Sink is a non-blocking, single-writer append log. Submit is O(1) — it only
// hands the record to an in-memory channel — and a dedicated goroutine owns
// the file and appends one line per record, in enqueue order. Disabled (all
// Submit calls are no-ops) when constructed with an empty path.
type Sink struct {
	enabled bool
	records chan Record
	done    chan struct{}
}

// New starts the background writer for path. An empty path disables the
// sink: Submit becomes a no-op, matching "disabled when no audit file is
// configured."
func New(path string, logger *slog.Logger) *Sink {
	if path == "" {
		return &Sink{enabled: false}
	}

	s := &Sink{
		enabled: true,
		records: make(chan Record, queueSize),
		done:    make(chan struct{}),
	}
	go s.run(path, logger)
	return s
}

// Submit enqueues a record for asynchronous append. It never blocks beyond a
// brief channel handoff and never returns an error to the caller — audit
// write failures are logged by the background writer and otherwise
// swallowed, per the AuditWriteFailure policy in spec §7.
func (s *Sink) Submit(r Record) {
	if s == nil || !s.enabled {
		return
	}
	select {
	case s.records <- r:
	default:
		// The queue is saturated; drop rather than block the request path.
		// Losing an audit line must never take the service down.
	}
}

// Close stops accepting new records and waits for the writer to drain and
// exit. It is safe to call on a disabled or nil Sink.
func (s *Sink) Close() {
	if s == nil || !s.enabled {
		return
	}
	close(s.records)
	<-s.done
}

func (s *Sink) run(path string, logger *slog.Logger) {
	defer close(s.done)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		if logger != nil {
			logger.Error("audit: could not open log file, audit records will be dropped", slog.String("path", path), slog.Any("error", err))
		}
		for range s.records {
			// Drain without writing; the sink stays best-effort even when
			// the backing file never opened.
		}
		return
	}
	defer f.Close()

	for rec := range s.records {
		if _, err := fmt.Fprintln(f, rec.line()); err != nil && logger != nil {
			logger.Error("audit: write failed", slog.Any("error", err))
		}
	}
}
