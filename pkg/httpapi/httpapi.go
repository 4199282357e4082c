// Package httpapi is a thin net/http adapter over the registry-facing
// API from spec.md §6 (create_task/get_task/kill_task/list_tasks). The
// actual HTTP transport and routing layer - virtual hosts, session
// cookies, login forms - is named out of scope in spec.md §1; this is
// the minimal glue a real router would sit in front of, kept to the
// standard library rather than pulling in an ecosystem router since
// four routes under one prefix don't need one (see DESIGN.md).
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hacluster/pcsd/pkg/auth"
	"github.com/hacluster/pcsd/pkg/log"
	"github.com/hacluster/pcsd/pkg/metrics"
	"github.com/hacluster/pcsd/pkg/registry"
	"github.com/hacluster/pcsd/pkg/types"
)

const basePath = "/api/v1/tasks"

// Server binds the registry-facing operations to net/http handlers.
type Server struct {
	reg      *registry.Registry
	resolver auth.Resolver
}

// New builds a Server. resolver resolves the caller identity attached
// to each request; in this repo's demo that's an auth.FixedResolver
// since the real provider (password/token/peer-credential) is out of
// scope per spec.md §6.
func New(reg *registry.Registry, resolver auth.Resolver) *Server {
	return &Server{reg: reg, resolver: resolver}
}

// Handler returns the mux the daemon's HTTP listener serves.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(basePath, s.instrument("tasks", s.handleCollection))
	mux.HandleFunc(basePath+"/", s.instrument("task", s.handleItem))
	return mux
}

func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		timer.ObserveDurationVec(metrics.HTTPRequestDuration, route)
		metrics.HTTPRequestsTotal.WithLabelValues(route, http.StatusText(rec.status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// createRequest is the JSON body for POST /api/v1/tasks.
type createRequest struct {
	Command struct {
		Name    string            `json:"name"`
		Params  map[string]string `json:"params"`
		Options struct {
			RequestTimeoutSeconds *float64 `json:"request_timeout_seconds"`
			CorrelationID         string   `json:"correlation_id"`
		} `json:"options"`
	} `json:"command"`
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreate(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, basePath+"/")
	if id == "" {
		writeError(w, http.StatusNotFound, "task id required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, r, types.TaskID(id))
	case http.MethodDelete:
		s.handleKill(w, r, types.TaskID(id))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	authUser, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Command.Name == "" {
		writeError(w, http.StatusBadRequest, "command.name is required")
		return
	}

	cmd := types.Command{
		Name:   req.Command.Name,
		Params: req.Command.Params,
		Options: types.CommandOptions{
			CorrelationID: req.Command.Options.CorrelationID,
		},
	}
	if req.Command.Options.RequestTimeoutSeconds != nil {
		d := time.Duration(*req.Command.Options.RequestTimeoutSeconds * float64(time.Second))
		cmd.Options.RequestTimeout = &d
	}

	id, err := s.reg.Create(cmd, authUser)
	if err != nil {
		if errors.Is(err, registry.ErrCapacityExceeded) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"task_id": string(id)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, id types.TaskID) {
	if _, err := s.authenticate(r); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	dto, err := s.reg.Get(id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(dto))
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request, id types.TaskID) {
	if _, err := s.authenticate(r); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	if err := s.reg.Kill(id, types.KillReasonUser); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authenticate(r); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	dtos := s.reg.List()
	out := make([]taskResponse, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, toTaskResponse(dto))
	}
	writeJSON(w, http.StatusOK, out)
}

// authenticate resolves the caller identity from the request's bearer
// token (or, over the control socket transport this repo doesn't
// implement, peer credentials - see pkg/auth). Returning an error here
// is the only path by which an unauthenticated request is rejected;
// the registry itself trusts whatever AuthUser it's handed.
func (s *Server) authenticate(r *http.Request) (types.AuthUser, error) {
	credential := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	u, err := s.resolver.Resolve(r.Context(), credential)
	if err != nil {
		log.WithComponent("httpapi").Warn().Err(err).Msg("authentication failed")
		return types.AuthUser{}, err
	}
	return u, nil
}

// taskResponse is the wire shape of a types.TaskDTO - deliberately the
// same fields spec.md §6 lists for TaskDTO, nothing more (no internal
// timestamps or pids).
type taskResponse struct {
	TaskID     types.TaskID       `json:"task_id"`
	Command    types.Command      `json:"command"`
	State      string             `json:"state"`
	FinishType string             `json:"task_finish_type"`
	Result     any                `json:"result,omitempty"`
	Reports    []types.ReportItem `json:"reports"`
	KillReason string             `json:"kill_reason"`
}

func toTaskResponse(dto types.TaskDTO) taskResponse {
	return taskResponse{
		TaskID:     dto.TaskID,
		Command:    dto.Command,
		State:      dto.State.String(),
		FinishType: dto.TaskFinishType.String(),
		Result:     dto.Result,
		Reports:    dto.Reports,
		KillReason: dto.KillReason.String(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
