package api

import (
	"errors"
	"math"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/wesm/borderstat/internal/table"
)

// RowResponse is one materialized row.
type RowResponse struct {
	ID         string            `json:"id"`
	Depth      int               `json:"depth"`
	Group      bool              `json:"group"`
	Expandable bool              `json:"expandable"`
	Expanded   bool              `json:"expanded"`
	Members    int               `json:"members,omitempty"`
	LoadState  string            `json:"load_state"`
	LoadError  string            `json:"load_error,omitempty"`
	Values     map[string]any    `json:"values"`
	Display    map[string]string `json:"display"`
	Videos     []string          `json:"videos,omitempty"`
}

// SortKeyResponse is one key of the sort order.
type SortKeyResponse struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// ColumnResponse describes a column.
type ColumnResponse struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Kind       string `json:"kind"`
	Aggregator string `json:"aggregate"`
	Unit       string `json:"unit,omitempty"`
	Hidden     bool   `json:"hidden,omitempty"`
}

// RowsResponse is the body of GET /api/v1/rows.
type RowsResponse struct {
	Generation uint64            `json:"generation"`
	Sort       []SortKeyResponse `json:"sort"`
	Total      int               `json:"total"`
	Rows       []RowResponse     `json:"rows"`
}

// ToggleResponse reports the state of a node after a toggle.
type ToggleResponse struct {
	ID        string `json:"id"`
	Expanded  bool   `json:"expanded"`
	LoadState string `json:"load_state"`
	LoadError string `json:"load_error,omitempty"`
}

// ReloadResponse is the body of POST /api/v1/reload.
type ReloadResponse struct {
	Generation  uint64 `json:"generation"`
	Rows        int    `json:"rows"`
	Diagnostics int    `json:"diagnostics"`
}

// DiagnosticResponse is one parse problem.
type DiagnosticResponse struct {
	Line    int    `json:"line"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

// SchedulerStatusResponse represents scheduler status.
type SchedulerStatusResponse struct {
	Running bool        `json:"running"`
	Jobs    []JobStatus `json:"jobs"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// NewRowResponse converts a materialized row. Numbers that are missing or
// not finite encode as null; their raw text stays in Display.
func NewRowResponse(s *table.Schema, row table.Row) RowResponse {
	cols := s.Columns()
	resp := RowResponse{
		ID:         row.ID,
		Depth:      row.Depth,
		Group:      row.IsGroupHeader,
		Expandable: row.Expandable,
		Expanded:   row.Expanded,
		Members:    row.Members,
		LoadState:  row.State.String(),
		Values:     make(map[string]any, len(cols)),
		Display:    make(map[string]string, len(cols)),
	}
	if row.Err != nil {
		resp.LoadError = row.Err.Error()
	}
	for _, c := range cols {
		v := row.Record.Get(c.ID)
		resp.Display[c.ID] = table.FormatValue(c, v)
		switch {
		case c.Format == table.FormatVideos:
			resp.Values[c.ID] = v.Text
			resp.Videos = append(resp.Videos, table.VideoLinks(v.Text)...)
		case v.Kind == table.Numeric:
			if v.Missing() || math.IsInf(v.Num, 0) {
				resp.Values[c.ID] = nil
			} else {
				resp.Values[c.ID] = v.Num
			}
		default:
			resp.Values[c.ID] = v.Text
		}
	}
	return resp
}

func sortResponse(o table.SortOrder) []SortKeyResponse {
	out := make([]SortKeyResponse, len(o))
	for i, k := range o {
		out[i] = SortKeyResponse{Column: k.Column, Direction: k.Dir.String()}
	}
	return out
}

// NewRowsResponse converts one materialized view of a table.
func NewRowsResponse(s *table.Schema, generation uint64, order table.SortOrder, rows []table.Row) RowsResponse {
	resp := RowsResponse{
		Generation: generation,
		Sort:       sortResponse(order),
		Total:      len(rows),
		Rows:       make([]RowResponse, len(rows)),
	}
	for i, row := range rows {
		resp.Rows[i] = NewRowResponse(s, row)
	}
	return resp
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	snap := s.table.Snapshot()
	writeJSON(w, http.StatusOK, NewRowsResponse(snap.Schema, snap.Generation, snap.Order, snap.Rows))
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	cols := s.table.Schema().Columns()
	resp := make([]ColumnResponse, len(cols))
	for i, c := range cols {
		resp[i] = ColumnResponse{
			ID:         c.ID,
			Label:      c.Title(),
			Kind:       c.Kind.String(),
			Aggregator: c.Aggregator.String(),
			Unit:       c.Unit,
			Hidden:     c.Hidden,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	diags := s.table.Diagnostics()
	resp := make([]DiagnosticResponse, len(diags))
	for i, d := range diags {
		resp[i] = DiagnosticResponse{Line: d.Line, Column: d.Column, Message: d.Msg}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSort(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sortResponse(s.table.Order()))
}

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	col := chi.URLParam(r, "column")
	order, err := s.table.Promote(col)
	if errors.Is(err, table.ErrUnknownColumn) {
		writeError(w, http.StatusBadRequest, "unknown_column", "No column named "+col)
		return
	}
	if err != nil {
		s.logger.Error("promote failed", "column", col, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sortResponse(order))
}

// handleToggle expands or collapses a group. With ?wait=1 it blocks until a
// load started or joined by the toggle settles; otherwise such a toggle
// answers 202.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || id == "" {
		writeError(w, http.StatusBadRequest, "invalid_id", "Invalid node ID")
		return
	}

	p, err := s.table.Toggle(r.Context(), id)
	switch {
	case errors.Is(err, table.ErrUnknownNode):
		writeError(w, http.StatusNotFound, "not_found", "No node with ID "+id)
		return
	case errors.Is(err, table.ErrNotGroup):
		writeError(w, http.StatusBadRequest, "not_group", "Node "+id+" has no children")
		return
	case err != nil:
		s.logger.Error("toggle failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	status := http.StatusOK
	resp := ToggleResponse{ID: id}
	if p != nil {
		if r.URL.Query().Get("wait") == "" {
			status = http.StatusAccepted
		} else if _, werr := p.Wait(r.Context()); werr != nil {
			if r.Context().Err() != nil {
				writeError(w, http.StatusGatewayTimeout, "timeout", "Load did not finish in time")
				return
			}
			resp.LoadError = werr.Error()
		}
	}
	resp.Expanded = s.table.IsExpanded(id)
	if st, err := s.table.State(id); err == nil {
		resp.LoadState = st.String()
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.table.Reload(r.Context()); err != nil {
		s.logger.Error("reload failed", "error", err)
		writeError(w, http.StatusBadGateway, "reload_failed", err.Error())
		return
	}
	snap := s.table.Snapshot()
	writeJSON(w, http.StatusOK, ReloadResponse{
		Generation:  snap.Generation,
		Rows:        len(snap.Rows),
		Diagnostics: len(s.table.Diagnostics()),
	})
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeJSON(w, http.StatusOK, SchedulerStatusResponse{Jobs: []JobStatus{}})
		return
	}
	jobs := s.scheduler.Status()
	if jobs == nil {
		jobs = []JobStatus{}
	}
	writeJSON(w, http.StatusOK, SchedulerStatusResponse{
		Running: s.scheduler.IsRunning(),
		Jobs:    jobs,
	})
}
