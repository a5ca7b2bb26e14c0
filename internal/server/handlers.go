package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/epochscript/internal/compiler"
	"github.com/aristath/epochscript/internal/domain"
	"github.com/aristath/epochscript/internal/health"
)

var (
	errNoDatabase       = errors.New("server: pipeline database not wired")
	errUnknownTimeframe = errors.New("server: unknown timeframe")
	errUnknownAsset     = errors.New("server: unknown asset for timeframe")
	errInvalidRange     = errors.New("server: invalid start/end row range")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// healthzResponse mirrors the teacher's system-status payload shape, scoped
// to this service's ambient concerns.
type healthzResponse struct {
	Status       string  `json:"status"`
	CPUPercent   float64 `json:"cpu_percent"`
	MemUsedPct   float64 `json:"mem_used_percent"`
	MemUsed      string  `json:"mem_used"`
	MemTotal     string  `json:"mem_total"`
	NumGoroutine int     `json:"num_goroutine"`
	NumCPU       int     `json:"num_cpu"`
	WorkerCount  int     `json:"worker_count"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := health.Sample()
	writeJSON(w, http.StatusOK, healthzResponse{
		Status:       "ok",
		CPUPercent:   snap.CPUPercent,
		MemUsedPct:   snap.MemUsedPct,
		MemUsed:      snap.MemUsedHuman,
		MemTotal:     snap.MemTotalHuman,
		NumGoroutine: snap.NumGoroutine,
		NumCPU:       snap.NumCPU,
		WorkerCount:  health.WorkerCount(0),
	})
}

type compileRequest struct {
	Source string `json:"source"`
}

type compileNodeSummary struct {
	Id        string `json:"id"`
	Type      string `json:"type"`
	Timeframe string `json:"timeframe,omitempty"`
}

type compileResponse struct {
	NodeCount     int                  `json:"node_count"`
	ExecutorCount int                  `json:"executor_count"`
	Nodes         []compileNodeSummary `json:"nodes"`
}

// handleCompile compiles posted script text through the full compiler
// pipeline (spec §4) and returns a summary of the resulting program, or a
// structured compile error.
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	program, err := compiler.Compile(req.Source, s.reg)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	resp := compileResponse{
		NodeCount:     len(program.Nodes),
		ExecutorCount: program.ExecutorCount,
		Nodes:         make([]compileNodeSummary, len(program.Nodes)),
	}
	for i, n := range program.Nodes {
		resp.Nodes[i] = compileNodeSummary{Id: n.Id, Type: n.Type, Timeframe: string(n.Timeframe)}
	}
	writeJSON(w, http.StatusOK, resp)
}

type runResponse struct {
	Status string `json:"status"`
}

// handleRun triggers a synchronous RunPipeline cycle (spec §4.9).
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, errNoDatabase)
		return
	}
	if err := s.db.RunPipeline(s.progress); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Status: "completed"})
}

type tableSliceResponse struct {
	Timeframe  string               `json:"timeframe"`
	Asset      string               `json:"asset"`
	Timestamps []int64              `json:"timestamps"`
	Columns    map[string][]float64 `json:"columns"`
}

// handleData reads a slice of the currently transformed data for one
// (timeframe, asset) pair, optionally bounded by ?start=&end= row indices.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, errNoDatabase)
		return
	}
	timeframe := chi.URLParam(r, "timeframe")
	asset := chi.URLParam(r, "asset")

	assets, ok := s.db.GetTransformedData()[domain.Timeframe(timeframe)]
	if !ok {
		writeError(w, http.StatusNotFound, errUnknownTimeframe)
		return
	}
	table, ok := assets[asset]
	if !ok {
		writeError(w, http.StatusNotFound, errUnknownAsset)
		return
	}

	start, end := 0, table.NumRows()
	if v := r.URL.Query().Get("start"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			start = n
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			end = n
		}
	}
	if start < 0 || end > table.NumRows() || start > end {
		writeError(w, http.StatusBadRequest, errInvalidRange)
		return
	}

	slice := table.Slice(start, end)
	resp := tableSliceResponse{
		Timeframe:  timeframe,
		Asset:      asset,
		Timestamps: slice.Timestamps,
		Columns:    make(map[string][]float64, len(slice.ColumnNames())),
	}
	for _, name := range slice.ColumnNames() {
		col := slice.Column(name)
		if col.Numbers != nil {
			resp.Columns[name] = col.Numbers
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
