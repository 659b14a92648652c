package app

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// maxRequestBody caps /v1 request bodies
const maxRequestBody = 1 << 20

type actionCheckRequest struct {
	UserID string `json:"user_id"`
	Action string `json:"action"`
}

type actionCheckResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

type authFailureRequest struct {
	UserID string         `json:"user_id"`
	Data   map[string]any `json:"data,omitempty"`
}

type inspectRequest struct {
	UserID  string `json:"user_id"`
	Field   string `json:"field"`
	Content string `json:"content"`
}

type sqlInspectResponse struct {
	Suspicious bool `json:"suspicious"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// registerGuardRoutes wires the endpoints the CRM backend calls before and
// after user actions
func (s *Server) registerGuardRoutes(mux *http.ServeMux) {
	mux.Handle("POST /v1/actions/check", s.authorized(s.handleActionCheck))
	mux.Handle("POST /v1/auth-failures", s.authorized(s.handleAuthFailure))
	mux.Handle("POST /v1/inspect/html", s.authorized(s.handleInspectHTML))
	mux.Handle("POST /v1/inspect/sql", s.authorized(s.handleInspectSQL))
}

// authorized checks the bearer token when one is configured
func (s *Server) authorized(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken != "" {
			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(s.apiToken)) != 1 {
				s.logger.WarnKV("Rejected unauthenticated guard request", "path", r.URL.Path)
				s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
				return
			}
		}
		next(w, r)
	})
}

// handleActionCheck answers 200 when the action may proceed and 429 when the
// user is over the action's limit
func (s *Server) handleActionCheck(w http.ResponseWriter, r *http.Request) {
	var req actionCheckRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Action) == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id and action are required"})
		return
	}

	decision := s.guard.CheckAction(req.UserID, req.Action)
	status := http.StatusOK
	if !decision.Allowed {
		status = http.StatusTooManyRequests
	}
	s.writeJSON(w, status, actionCheckResponse{Allowed: decision.Allowed, Reason: decision.Reason})
}

func (s *Server) handleAuthFailure(w http.ResponseWriter, r *http.Request) {
	var req authFailureRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id is required"})
		return
	}

	s.guard.RecordAuthFailure(req.UserID, req.Data)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleInspectHTML(w http.ResponseWriter, r *http.Request) {
	var req inspectRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.guard.InspectHTML(req.UserID, req.Field, req.Content))
}

func (s *Server) handleInspectSQL(w http.ResponseWriter, r *http.Request) {
	var req inspectRequest
	if !s.decode(w, r, &req) {
		return
	}
	suspicious := s.guard.InspectInput(req.UserID, req.Field, req.Content)
	s.writeJSON(w, http.StatusOK, sqlInspectResponse{Suspicious: suspicious})
}

// decode reads a JSON body; on failure it writes the error response
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.writeJSON(w, status, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.ErrorKV("Failed to encode response", "error", err)
	}
}
