package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nexshop/storebot/internal/session"
	"github.com/nexshop/storebot/internal/store"
)

const messageLogLimit = 100

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request, tenantID string) {
	status, err := s.sessions.Connect(r.Context(), tenantID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request, tenantID string) {
	if err := s.sessions.Disconnect(tenantID); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, tenantID string) {
	writeJSON(w, http.StatusOK, s.sessions.Status(tenantID))
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, tenantID string) {
	messages, err := s.storage.RecentMessages(tenantID, messageLogLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load messages failed")
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

type sendRequest struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request, tenantID string) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Recipient == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "recipient and text are required")
		return
	}

	if err := s.sessions.Send(r.Context(), tenantID, req.Recipient, req.Text); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *Server) handleTraining(w http.ResponseWriter, r *http.Request, tenantID string) {
	var ex store.TrainingExample
	if err := json.NewDecoder(r.Body).Decode(&ex); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ex.TenantID = tenantID

	if err := s.storage.UpsertTrainingExample(ex); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request, tenantID string) {
	entries, err := s.storage.ListCachedResponses(tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load cache failed")
		return
	}
	if entries == nil {
		entries = []store.CachedResponse{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotActive):
		writeError(w, http.StatusConflict, "session not active, reconnect first")
	case errors.Is(err, session.ErrPairingTimeout):
		writeError(w, http.StatusGatewayTimeout, "pairing timed out")
	case errors.Is(err, session.ErrTransportFailure):
		writeError(w, http.StatusBadGateway, "transport failure")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
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
