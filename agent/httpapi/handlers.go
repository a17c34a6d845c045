package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("empty request body")

type loginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type selectUserRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sessionID, err := s.backend.Login(r.Context(), req.UserID, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sessionID})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"users": s.backend.ListUsers(r.Context())})
}

func (s *Server) handleSelectUser(w http.ResponseWriter, r *http.Request) {
	var req selectUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.UserID) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "sessionId and userId required"})
		return
	}
	msg, err := s.backend.SelectUser(r.Context(), req.SessionID, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "sessionId required"})
		return
	}
	result, err := s.backend.Chat(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.backend.Reset(r.Context(), req.SessionID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Chat history reset."})
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.backend.Finish(r.Context(), req.SessionID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Chat finished"})
}

// decodeBody rejects empty bodies, non-objects and empty objects with 400 {"error":"No data"}.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := readBody(r, dst); err != nil {
		log.Ctx(r.Context()).Debug().Err(err).Msg("rejecting request body")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "No data"})
		return false
	}
	return true
}

func readBody(r *http.Request, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	if len(fields) == 0 {
		return errEmptyBody
	}
	return json.Unmarshal(raw, dst)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, contractx.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Invalid credentials"})
	case errors.Is(err, contractx.ErrNotLoggedIn):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Not logged in"})
	case errors.Is(err, contractx.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "User not found"})
	case errors.Is(err, contractx.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("write response failed")
	}
}
