// Package server exposes a trace over HTTP: the /trace collaborator
// endpoint, the interactive page and static timeline images, and a /diag
// endpoint that receives segment clicks from the page.
//
// The server holds one Snapshot at a time. A reload, manual or triggered by
// the file watcher, builds a new snapshot and swaps it in whole.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/pipetrace/internal/datasource"
	"github.com/vanderheijden86/pipetrace/pkg/debug"
	"github.com/vanderheijden86/pipetrace/pkg/inspect"
	"github.com/vanderheijden86/pipetrace/pkg/loader"
	"github.com/vanderheijden86/pipetrace/pkg/model"
	"github.com/vanderheijden86/pipetrace/pkg/timeline"
	"github.com/vanderheijden86/pipetrace/pkg/watcher"
)

// DiagPath receives click payloads from the page.
const DiagPath = "/diag"

// maxDiagBody bounds the /diag request body.
const maxDiagBody = 4 << 10

// Options configures a Server.
type Options struct {
	Source datasource.Fetcher
	// Range is the range the page is drawn for, and the default for /trace
	// requests that omit start or end.
	Range  model.Range
	Layout timeline.Options
	Title  string
	Header bool
	Sink   inspect.Sink
}

// Server serves one trace source.
type Server struct {
	opts Options
	mux  *http.ServeMux

	mu      sync.RWMutex
	snap    *Snapshot
	watcher *watcher.Watcher
}

// New returns a Server. Call Reload before serving to fetch the first
// snapshot; otherwise the first request does it.
func New(opts Options) *Server {
	if opts.Sink == nil {
		opts.Sink = inspect.Discard
	}
	s := &Server{opts: opts, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /{$}", s.handlePage)
	s.mux.HandleFunc("GET "+datasource.TracePath, s.handleTrace)
	s.mux.HandleFunc("GET /timeline.svg", s.handleSVG)
	s.mux.HandleFunc("GET /timeline.png", s.handlePNG)
	s.mux.HandleFunc("POST "+DiagPath, s.handleDiag)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Reload fetches the trace again and replaces the current snapshot.
func (s *Server) Reload(ctx context.Context) *Snapshot {
	snap := LoadSnapshot(ctx, s.opts.Source, s.opts.Range, s.opts.Layout, s.opts.Sink)
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	debug.Log("server: loaded %d instructions (%d rects)", len(snap.Trace.Instructions), len(snap.Layout.Rects))
	return snap
}

// Snapshot returns the current snapshot, loading it on first use.
func (s *Server) Snapshot(ctx context.Context) *Snapshot {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	if snap != nil {
		return snap
	}
	return s.Reload(ctx)
}

// Watch reloads the snapshot whenever the file at path changes.
func (s *Server) Watch(path string, opts ...watcher.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return watcher.ErrAlreadyStarted
	}

	opts = append([]watcher.Option{
		watcher.WithOnChange(func() { s.Reload(context.Background()) }),
		watcher.WithOnError(func(err error) { debug.Log("server: watch %s: %v", path, err) }),
	}, opts...)
	w, err := watcher.New(path, opts...)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	s.watcher = w
	return nil
}

// Close stops the file watcher, if any.
func (s *Server) Close() {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	snap := s.Snapshot(r.Context())
	var buf bytes.Buffer
	err := timeline.RenderHTML(&buf, snap.Trace, snap.Layout, timeline.HTMLOptions{
		Title:   s.opts.Title,
		DiagURL: DiagPath,
		Header:  s.opts.Header,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	writeBody(w, buf.Bytes())
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	snap := s.Snapshot(r.Context())
	var buf bytes.Buffer
	if err := timeline.RenderSVG(&buf, snap.Layout, timeline.SVGOptions{Title: s.opts.Title, Header: s.opts.Header}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	writeBody(w, buf.Bytes())
}

func (s *Server) handlePNG(w http.ResponseWriter, r *http.Request) {
	snap := s.Snapshot(r.Context())
	var buf bytes.Buffer
	if err := timeline.RenderPNG(&buf, snap.Layout, timeline.PNGOptions{Title: s.opts.Title, Header: s.opts.Header}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	writeBody(w, buf.Bytes())
}

// handleTrace answers GET /trace?start=&end= with the selected raw
// instructions as a JSON array.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r, s.opts.Range)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	raw, err := s.opts.Source.Fetch(r.Context(), rng)
	if err != nil {
		debug.Log("server: /trace: %v", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	var buf bytes.Buffer
	if err := loader.EncodeTrace(&buf, raw); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeBody(w, buf.Bytes())
}

func parseRange(r *http.Request, def model.Range) (model.Range, error) {
	rng := def
	q := r.URL.Query()
	if v := q.Get("start"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return rng, fmt.Errorf("invalid start %q", v)
		}
		rng.Start = f
	}
	if v := q.Get("end"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return rng, fmt.Errorf("invalid end %q", v)
		}
		rng.End = f
	}
	if err := rng.Validate(); err != nil {
		return rng, err
	}
	return rng, nil
}

// diagRequest is the body the page beacons on click.
type diagRequest struct {
	Inst  *int `json:"inst"`
	Event *int `json:"event"`
}

func (s *Server) handleDiag(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDiagBody))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	var req diagRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid segment: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Inst == nil || req.Event == nil {
		http.Error(w, "segment needs inst and event", http.StatusBadRequest)
		return
	}

	id := model.SegmentID{Inst: *req.Inst, Event: *req.Event}
	snap := s.Snapshot(r.Context())
	if err := snap.Inspector.Click(id); err != nil {
		var unknown *model.UnknownSegmentError
		if errors.As(err, &unknown) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type health struct {
	Status       string    `json:"status"`
	Instructions int       `json:"instructions"`
	Events       int       `json:"events"`
	Failures     int       `json:"failures"`
	LoadedAt     time.Time `json:"loaded_at"`
	Error        string    `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.Snapshot(r.Context())
	h := health{
		Status:       "ok",
		Instructions: len(snap.Trace.Instructions),
		Events:       snap.Trace.EventCount(),
		Failures:     len(snap.Trace.Failures),
		LoadedAt:     snap.LoadedAt,
	}
	if snap.Err != nil {
		h.Status = "degraded"
		h.Error = snap.Err.Error()
	}
	data, err := json.Marshal(h)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeBody(w, data)
}

func writeBody(w http.ResponseWriter, b []byte) {
	if _, err := w.Write(b); err != nil {
		debug.Log("server: write response: %v", err)
	}
}
