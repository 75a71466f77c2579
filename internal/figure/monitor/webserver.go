// Package monitor serves the tracking dashboard: session state, the pick
// and playback controls, and charts of the rolling telemetry.
package monitor

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/banshee-data/skintrack/internal/figure/storage/sqlite"
	"github.com/banshee-data/skintrack/internal/figure/stream"
	"github.com/banshee-data/skintrack/internal/figure/tracking"
	"github.com/banshee-data/skintrack/internal/figure/viewer"
	"github.com/banshee-data/skintrack/internal/httputil"
	"github.com/banshee-data/skintrack/internal/monitoring"
	"github.com/banshee-data/skintrack/internal/version"
)

//go:embed dashboard.html
var dashboardFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(dashboardFS, "dashboard.html"))

// RecordingStore reads stored recordings. *sqlite.Store satisfies it.
type RecordingStore interface {
	ListRecordings(ctx context.Context) ([]sqlite.Recording, error)
	Samples(ctx context.Context, recordingID string) ([]tracking.Sample, error)
}

// StreamStats reports the sample stream. *stream.Publisher satisfies it.
type StreamStats interface {
	Stats() stream.Stats
}

// WebServer handles the HTTP interface of one tracking session.
type WebServer struct {
	address    string
	session    *viewer.Session
	recordings RecordingStore
	stream     StreamStats
	server     *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Session *viewer.Session
	// Recordings is optional; without it /api/recordings answers 404.
	Recordings RecordingStore
	// Stream is optional; when set /health includes its counters.
	Stream StreamStats
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:    config.Address,
		session:    config.Session,
		recordings: config.Recordings,
		stream:     config.Stream,
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.setupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("[monitor] HTTP server listening on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	monitoring.Logf("[monitor] shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("[monitor] HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("[monitor] HTTP server force close error: %v", err)
		}
	}
	monitoring.Logf("[monitor] HTTP server routine stopped")
	return nil
}

// Handler exposes the route table, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// Close stops the server immediately.
func (ws *WebServer) Close() error {
	return ws.server.Close()
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleDashboard)
	mux.HandleFunc("/api/state", ws.handleState)
	mux.HandleFunc("/api/series", ws.handleSeries)
	mux.HandleFunc("/api/pick", ws.handlePick)
	mux.HandleFunc("/api/actions", ws.handleActions)
	mux.HandleFunc("/api/playback", ws.handlePlayback)
	mux.HandleFunc("/api/recordings", ws.handleRecordings)
	mux.HandleFunc("GET /api/recordings/{id}", ws.handleRecordingSamples)
	mux.HandleFunc("/charts", ws.handleCharts)
	mux.HandleFunc("/charts/png", ws.handleChartPNG)

	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"service":   "skintrack",
		"version":   version.Version,
		"ready":     ws.session.Ready(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if ws.stream != nil {
		resp["stream"] = ws.stream.Stats()
	}
	httputil.WriteJSONOK(w, resp)
}

func (ws *WebServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		httputil.NotFound(w, "not found")
		return
	}
	st := ws.session.State()
	data := struct {
		Version string
		GitSHA  string
		State   viewer.State
		Groups  []string
	}{
		Version: version.Version,
		GitSHA:  version.GitSHA,
		State:   st,
		Groups:  groupNames(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, data); err != nil {
		monitoring.Logf("[monitor] render dashboard: %v", err)
	}
}
