package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/PabloGalante/resq-agent/internal/adapters/telephony"
	"github.com/PabloGalante/resq-agent/internal/domain"
	"github.com/PabloGalante/resq-agent/internal/observability"
)

const voiceUsage = "RESQ voice webhook. Point your phone number's incoming call webhook here with HTTP POST.\n"

func (s *Server) handleVoiceUsage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, voiceUsage)
}

// handleVoice answers a new incoming call.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		badRequest(w, "invalid form body")
		return
	}

	callID := strings.TrimSpace(r.PostFormValue("CallSid"))
	if callID == "" {
		callID = "call-" + uuid.NewString()
	}

	reply, err := s.triage.Start(r.Context(), domain.CallID(callID), r.PostFormValue("From"))
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error("start call failed", "error", err)
		s.writeTwiML(w, r, callID, telephony.SystemErrorActions())
		return
	}
	s.writeTwiML(w, r, callID, reply.Actions)
}

// handleRespond takes the speech result of one turn.
func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		badRequest(w, "invalid form body")
		return
	}

	callID := strings.TrimSpace(r.URL.Query().Get("callId"))
	reply, err := s.triage.Advance(r.Context(), domain.CallID(callID), r.PostFormValue("SpeechResult"))
	if err != nil {
		if !errors.Is(err, domain.ErrNoCallID) {
			observability.LoggerFromContext(r.Context()).Error("advance call failed", "error", err)
		}
		s.writeTwiML(w, r, callID, telephony.SystemErrorActions())
		return
	}
	s.writeTwiML(w, r, callID, reply.Actions)
}

type locationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	CallID    string  `json:"callId"`
}

// handleLocation receives a device GPS fix for a live call.
func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	c, err := s.triage.UpdateLocation(r.Context(), domain.CallID(req.CallID), req.Latitude, req.Longitude, req.Accuracy)
	switch {
	case errors.Is(err, domain.ErrNoCallID), errors.Is(err, domain.ErrInvalidCoordinates):
		badRequest(w, "Invalid coordinates or callId")
		return
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "call not found"})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Location received",
		"location": c.Location,
	})
}

func (s *Server) writeTwiML(w http.ResponseWriter, r *http.Request, callID string, actions []domain.Action) {
	body, err := s.twiml.Render(callID, actions)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error("render twiml failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
