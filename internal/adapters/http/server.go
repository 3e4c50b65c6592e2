package httpadapter

import (
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/PabloGalante/resq-agent/internal/adapters/telephony"
	"github.com/PabloGalante/resq-agent/internal/app/dispatch"
	"github.com/PabloGalante/resq-agent/internal/app/priority"
	"github.com/PabloGalante/resq-agent/internal/app/triage"
)

// Config wires the services the HTTP layer exposes.
type Config struct {
	Triage     *triage.Service
	Dispatch   *dispatch.Service
	Classifier *priority.Classifier
	Hub        *Hub
	Renderer   telephony.Renderer
}

type Server struct {
	triage     *triage.Service
	dispatch   *dispatch.Service
	classifier *priority.Classifier
	hub        *Hub
	twiml      telephony.Renderer
}

// NewServer returns the router for telephony webhooks, the dashboard
// websocket and the JSON API under /api.
func NewServer(cfg Config) http.Handler {
	s := &Server{
		triage:     cfg.Triage,
		dispatch:   cfg.Dispatch,
		classifier: cfg.Classifier,
		hub:        cfg.Hub,
		twiml:      cfg.Renderer,
	}
	if s.hub == nil {
		s.hub = NewHub(0)
	}
	if s.twiml.RespondPath == "" {
		s.twiml = telephony.NewRenderer()
	}

	router := chi.NewRouter()
	router.Use(withRequestID, withLogging, withCORS)

	router.Get("/healthz", s.handleHealthz)
	router.Get("/voice", s.handleVoiceUsage)
	router.Post("/voice", s.handleVoice)
	router.Post("/respond", s.handleRespond)
	router.Post("/location", s.handleLocation)
	router.Get("/ws", s.handleWS)

	hcfg := huma.DefaultConfig("RESQ Dispatch API", "1.0.0")
	hcfg.OpenAPIPath = "/api/openapi"
	hcfg.DocsPath = "/api/docs"
	hcfg.SchemasPath = "/api/schemas"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, "/api")

	registerCalls(group, s)
	registerCases(group, s)
	registerClassify(group, s)

	return router
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"observer": s.hub.Connected(),
	})
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}
