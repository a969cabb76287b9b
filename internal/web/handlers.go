package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/benmeehan/field-agent/internal/models"
	"github.com/benmeehan/field-agent/internal/services"
	"github.com/benmeehan/field-agent/pkg/backend"
	"github.com/benmeehan/field-agent/pkg/location"
	"github.com/benmeehan/field-agent/pkg/session"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 16 << 20 // signature and invoice photo

type errorResponse struct {
	Error string `json:"error"`
}

// handleLocation returns the current position. fresh=1 asks for a forced-fresh reading.
func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	req := location.Request{Freshness: location.FreshnessNormal}
	if fresh, _ := strconv.ParseBool(r.URL.Query().Get("fresh")); fresh {
		req.Freshness = location.FreshnessForce
	}

	pos, err := s.locator.Locate(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	user, err := s.attendance.Login(r.Context(), req.Code)
	if err != nil {
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "access code rejected"})
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionInfo(user, true))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.attendance.Logout(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	user, ok := s.attendance.Current()
	writeJSON(w, http.StatusOK, sessionInfo(user, ok))
}

func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := s.deliveries.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveries)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.deliveries.Cancel(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	var proof models.DeliveryProof
	if err := decodeBody(w, r, &proof); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	proof.DeliveryID = mux.Vars(r)["id"]

	if err := s.deliveries.Sign(r.Context(), proof); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps domain errors to status codes. Anything unrecognised is a backend failure.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNotLoggedIn):
		status = http.StatusUnauthorized
	case errors.Is(err, location.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, location.ErrTimeout), errors.Is(err, location.ErrImplausibleReading):
		status = http.StatusGatewayTimeout
	case errors.Is(err, location.ErrServiceUnavailable):
		status = http.StatusServiceUnavailable
	default:
		s.logger.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func sessionInfo(user session.User, loggedIn bool) models.SessionInfo {
	if !loggedIn {
		return models.SessionInfo{}
	}
	return models.SessionInfo{LoggedIn: true, UserID: user.ID, UserName: user.Name}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
