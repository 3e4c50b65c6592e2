package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/PabloGalante/resq-agent/internal/app/dispatch"
	"github.com/PabloGalante/resq-agent/internal/domain"
	"github.com/PabloGalante/resq-agent/internal/observability"
)

// CaseResponse is the dashboard view of a case.
type CaseResponse struct {
	ID            string              `json:"id"`
	Emergency     string              `json:"emergency"`
	Name          string              `json:"name"`
	Location      string              `json:"location"`
	Number        string              `json:"number"`
	Transcript    string              `json:"transcript"`
	Priority      int                 `json:"priority"`
	PriorityLabel string              `json:"priority_label"`
	Method        string              `json:"method,omitempty"`
	Status        string              `json:"status"`
	InProgress    bool                `json:"in_progress"`
	Coordinates   *domain.Coordinates `json:"coordinates,omitempty"`
	Region        domain.Region       `json:"region"`
	CreatedAt     time.Time           `json:"created_at"`
	ResolvedAt    *time.Time          `json:"resolved_at,omitempty"`
	TimeInQueue   string              `json:"time_in_queue,omitempty"`
	Position      int                 `json:"position,omitempty"`
}

func toCaseResponse(c *domain.Case, now time.Time) CaseResponse {
	out := CaseResponse{
		ID:            string(c.ID),
		Emergency:     c.Emergency,
		Name:          c.Name,
		Location:      c.Location,
		Number:        c.Number,
		Transcript:    c.Transcript,
		Priority:      int(c.Priority),
		PriorityLabel: c.Priority.Label(),
		Method:        string(c.Method),
		Status:        string(c.Status),
		InProgress:    c.InProgress,
		Coordinates:   c.Coordinates,
		Region:        c.Region,
		CreatedAt:     c.CreatedAt,
		ResolvedAt:    c.ResolvedAt,
	}
	if c.Status == domain.StatusOpen {
		out.TimeInQueue = dispatch.TimeInQueue(c.CreatedAt, now)
	}
	return out
}

func toCaseResponses(cases []*domain.Case, now time.Time, positioned bool) []CaseResponse {
	out := make([]CaseResponse, 0, len(cases))
	for i, c := range cases {
		r := toCaseResponse(c, now)
		if positioned {
			r.Position = i + 1
		}
		out = append(out, r)
	}
	return out
}

// handleError maps service errors onto huma errors.
func handleError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrCaseNotFound):
		return huma.Error404NotFound("case not found")
	default:
		observability.LoggerFromContext(ctx).Error("api request failed", "error", err)
		return huma.Error500InternalServerError("internal server error")
	}
}

// ─────────────────────────────────────────────
// Calls
// ─────────────────────────────────────────────

type CaseIDInput struct {
	ID string `path:"id"`
}

type PositionedCase struct {
	CaseResponse
	Total int `json:"total"`
}

func registerCalls(api huma.API, s *Server) {
	huma.Register(api, huma.Operation{
		OperationID: "list-queue",
		Method:      http.MethodGet,
		Path:        "/calls",
		Summary:     "Open cases in dispatch order",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []CaseResponse `json:"body"`
	}, error) {
		q, err := s.dispatch.Queue(ctx)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body []CaseResponse `json:"body"`
		}{Body: toCaseResponses(q, time.Now(), true)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "next-case",
		Method:      http.MethodGet,
		Path:        "/calls/next",
		Summary:     "Case to dispatch first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body *CaseResponse `json:"body"`
	}, error) {
		c, err := s.dispatch.Next(ctx)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		out := &struct {
			Body *CaseResponse `json:"body"`
		}{}
		if c != nil {
			r := toCaseResponse(c, time.Now())
			r.Position = 1
			out.Body = &r
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-resolved",
		Method:      http.MethodGet,
		Path:        "/calls/resolved",
		Summary:     "Resolved cases, newest first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []CaseResponse `json:"body"`
	}, error) {
		cases, err := s.dispatch.Resolved(ctx)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body []CaseResponse `json:"body"`
		}{Body: toCaseResponses(cases, time.Now(), false)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-case",
		Method:      http.MethodGet,
		Path:        "/calls/{id}",
		Summary:     "One case with its queue position",
	}, func(ctx context.Context, in *CaseIDInput) (*struct {
		Body PositionedCase `json:"body"`
	}, error) {
		c, err := s.dispatch.Case(ctx, domain.CaseID(in.ID))
		if err != nil {
			return nil, handleError(ctx, err)
		}
		body := PositionedCase{CaseResponse: toCaseResponse(c, time.Now())}
		if c.Status == domain.StatusOpen {
			pos, total, err := s.dispatch.Position(ctx, c.ID)
			if err != nil {
				return nil, handleError(ctx, err)
			}
			body.Position, body.Total = pos, total
		}
		return &struct {
			Body PositionedCase `json:"body"`
		}{Body: body}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-case",
		Method:      http.MethodPost,
		Path:        "/calls/{id}/resolve",
		Summary:     "Mark a case resolved",
	}, func(ctx context.Context, in *CaseIDInput) (*struct {
		Body CaseResponse `json:"body"`
	}, error) {
		c, err := s.dispatch.Resolve(ctx, domain.CaseID(in.ID))
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body CaseResponse `json:"body"`
		}{Body: toCaseResponse(c, time.Now())}, nil
	})
}

// ─────────────────────────────────────────────
// Cases, stats and regions
// ─────────────────────────────────────────────

type RegionQuery struct {
	State    string `query:"state"`
	District string `query:"district"`
	City     string `query:"city"`
}

func (q RegionQuery) filter() dispatch.RegionFilter {
	return dispatch.RegionFilter{State: q.State, District: q.District, City: q.City}
}

type CasesInput struct {
	RegionQuery
	Status   string `query:"status" enum:"open,resolved" default:"open"`
	Priority int    `query:"priority" minimum:"0" maximum:"5"`
}

type StatsBody struct {
	dispatch.Stats
	Cases []CaseResponse `json:"cases"`
}

func registerCases(api huma.API, s *Server) {
	huma.Register(api, huma.Operation{
		OperationID: "list-cases",
		Method:      http.MethodGet,
		Path:        "/cases",
		Summary:     "Cases filtered by status, region and priority",
	}, func(ctx context.Context, in *CasesInput) (*struct {
		Body []CaseResponse `json:"body"`
	}, error) {
		status := domain.StatusOpen
		if strings.EqualFold(in.Status, string(domain.StatusResolved)) {
			status = domain.StatusResolved
		}
		cases, err := s.dispatch.Filter(ctx, dispatch.CaseFilter{
			Status:   status,
			Region:   in.filter(),
			Priority: domain.Priority(in.Priority),
		})
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body []CaseResponse `json:"body"`
		}{Body: toCaseResponses(cases, time.Now(), false)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "queue-stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Open queue summary for a region",
	}, func(ctx context.Context, in *RegionQuery) (*struct {
		Body StatsBody `json:"body"`
	}, error) {
		st, err := s.dispatch.Stats(ctx, in.filter())
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body StatsBody `json:"body"`
		}{Body: StatsBody{Stats: st, Cases: toCaseResponses(st.Mapped, time.Now(), false)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-regions",
		Method:      http.MethodGet,
		Path:        "/regions",
		Summary:     "Known states, districts and cities",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]map[string][]string `json:"body"`
	}, error) {
		regions, err := s.dispatch.Regions(ctx)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		return &struct {
			Body map[string]map[string][]string `json:"body"`
		}{Body: regions}, nil
	})
}

// ─────────────────────────────────────────────
// Classification
// ─────────────────────────────────────────────

type ClassifyInput struct {
	Body struct {
		Text   string   `json:"text" minLength:"1"`
		Stress *float64 `json:"stress,omitempty" minimum:"0" maximum:"1"`
	}
}

type ClassifyResponse struct {
	Priority         int     `json:"priority"`
	PriorityLabel    string  `json:"priority_label"`
	Confidence       float64 `json:"confidence"`
	Method           string  `json:"method"`
	Label            string  `json:"label,omitempty"`
	CriticalOverride bool    `json:"critical_override"`
	StressAdjusted   bool    `json:"stress_adjusted"`
}

func registerClassify(api huma.API, s *Server) {
	huma.Register(api, huma.Operation{
		OperationID: "classify",
		Method:      http.MethodPost,
		Path:        "/classify",
		Summary:     "Classify an emergency description",
	}, func(ctx context.Context, in *ClassifyInput) (*struct {
		Body ClassifyResponse `json:"body"`
	}, error) {
		res := s.classifier.Classify(ctx, in.Body.Text, in.Body.Stress)
		return &struct {
			Body ClassifyResponse `json:"body"`
		}{Body: ClassifyResponse{
			Priority:         int(res.Priority),
			PriorityLabel:    res.Priority.Label(),
			Confidence:       res.Confidence,
			Method:           string(res.Method),
			Label:            res.Label,
			CriticalOverride: res.CriticalOverride,
			StressAdjusted:   res.StressAdjusted,
		}}, nil
	})
}
