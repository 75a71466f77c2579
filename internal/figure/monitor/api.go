package monitor

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/banshee-data/skintrack/internal/figure/anim"
	"github.com/banshee-data/skintrack/internal/figure/viewer"
	"github.com/banshee-data/skintrack/internal/httputil"
)

func (ws *WebServer) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, ws.session.State())
}

func (ws *WebServer) handleSeries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, ws.session.Series())
	case http.MethodDelete:
		ws.session.ClearSeries()
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w)
	}
}

type pickRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type pickResponse struct {
	Hit       bool              `json:"hit"`
	Selection *viewer.Selection `json:"selection,omitempty"`
}

// handlePick casts a ray through a window coordinate. A miss is not an
// error: the answer is {"hit": false} and tracking continues unchanged.
func (ws *WebServer) handlePick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req pickRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	sel, ok, err := ws.session.Pick(req.X, req.Y)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if !ok {
		httputil.WriteJSONOK(w, pickResponse{})
		return
	}
	httputil.WriteJSONOK(w, pickResponse{
		Hit: true,
		Selection: &viewer.Selection{
			Mesh:        sel.Mesh.Name,
			Face:        sel.Face,
			Triangle:    sel.Triangle,
			Barycentric: sel.Barycentric,
			WorldPoint:  sel.WorldPoint,
		},
	})
}

func (ws *WebServer) handleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	acts, err := ws.session.Actions()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	httputil.WriteJSONOK(w, acts)
}

// playbackRequest changes any subset of the playback controls. Action may
// be given by id or by name.
type playbackRequest struct {
	Action   *anim.ActionID `json:"action,omitempty"`
	Name     *string        `json:"name,omitempty"`
	Paused   *bool          `json:"paused,omitempty"`
	Speed    *float64       `json:"speed,omitempty"`
	Progress *float64       `json:"progress,omitempty"`
}

func (ws *WebServer) handlePlayback(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, ws.session.State().Playback)
		return
	case http.MethodPost:
	default:
		httputil.MethodNotAllowed(w)
		return
	}

	var req playbackRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.Name != nil {
		id, err := ws.lookupAction(*req.Name)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		req.Action = &id
	}
	if req.Action != nil {
		if err := ws.session.PlayAction(*req.Action); err != nil {
			writeSessionError(w, err)
			return
		}
	}
	if req.Speed != nil {
		if err := ws.session.SetSpeed(*req.Speed); err != nil {
			writeSessionError(w, err)
			return
		}
	}
	if req.Progress != nil {
		if err := ws.session.Seek(*req.Progress); err != nil {
			writeSessionError(w, err)
			return
		}
	}
	if req.Paused != nil {
		if err := ws.session.SetPaused(*req.Paused); err != nil {
			writeSessionError(w, err)
			return
		}
	}
	httputil.WriteJSONOK(w, ws.session.State().Playback)
}

func (ws *WebServer) lookupAction(name string) (anim.ActionID, error) {
	acts, err := ws.session.Actions()
	if err != nil {
		return anim.NoAction, err
	}
	for _, a := range acts {
		if a.Name == name {
			return a.ID, nil
		}
	}
	return anim.NoAction, fmt.Errorf("%w: %q", anim.ErrUnknownAction, name)
}

func (ws *WebServer) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.recordings == nil {
		httputil.NotFound(w, "recording disabled")
		return
	}
	recs, err := ws.recordings.ListRecordings(r.Context())
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, recs)
}

func (ws *WebServer) handleRecordingSamples(w http.ResponseWriter, r *http.Request) {
	if ws.recordings == nil {
		httputil.NotFound(w, "recording disabled")
		return
	}
	id := r.PathValue("id")
	samples, err := ws.recordings.Samples(r.Context(), id)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if len(samples) == 0 {
		httputil.NotFound(w, fmt.Sprintf("no samples for recording %q", id))
		return
	}
	httputil.WriteJSONOK(w, samples)
}

// writeSessionError maps session errors onto status codes.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, viewer.ErrNotReady):
		httputil.ServiceUnavailable(w, err.Error())
	case errors.Is(err, anim.ErrUnknownAction):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}
