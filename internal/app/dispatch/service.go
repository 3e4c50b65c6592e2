package dispatch

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/PabloGalante/resq-agent/internal/domain"
	"github.com/PabloGalante/resq-agent/internal/observability"
)

// Service is the dispatcher's read side over the case store.
// Nothing is cached: every read goes back to the store and re-sorts.
type Service struct {
	cases    domain.CaseStore
	sessions domain.SessionStore
	notifier domain.Notifier
	now      func() time.Time
}

// NewService builds a dispatch service. sessions and notifier may be nil.
func NewService(cases domain.CaseStore, sessions domain.SessionStore, notifier domain.Notifier) *Service {
	return &Service{
		cases:    cases,
		sessions: sessions,
		notifier: notifier,
		now:      time.Now,
	}
}

// Queue returns open cases in dispatch order.
func (s *Service) Queue(ctx context.Context) ([]*domain.Case, error) {
	open, err := s.cases.ListOpenCases(ctx)
	if err != nil {
		return nil, err
	}
	out := open[:0:0]
	for _, c := range open {
		if c.Status == domain.StatusOpen {
			out = append(out, c)
		}
	}
	Order(out)
	return out, nil
}

// Next returns the case to dispatch first, or nil when the queue is empty.
func (s *Service) Next(ctx context.Context) (*domain.Case, error) {
	q, err := s.Queue(ctx)
	if err != nil || len(q) == 0 {
		return nil, err
	}
	return q[0], nil
}

// Position returns the 1-based queue position of id and the queue length.
func (s *Service) Position(ctx context.Context, id domain.CaseID) (pos, total int, err error) {
	q, err := s.Queue(ctx)
	if err != nil {
		return 0, 0, err
	}
	for i, c := range q {
		if c.ID == id {
			return i + 1, len(q), nil
		}
	}
	return 0, len(q), domain.ErrCaseNotFound
}

// Resolve closes a case and drops any live session for the same call.
func (s *Service) Resolve(ctx context.Context, id domain.CaseID) (*domain.Case, error) {
	log := observability.LoggerFromContext(ctx).With("case_id", string(id))

	ok, err := s.cases.ResolveCase(ctx, id, s.now())
	if err != nil {
		log.Error("resolve case failed", "error", err)
		return nil, err
	}
	if !ok {
		return nil, domain.ErrCaseNotFound
	}
	if s.sessions != nil {
		s.sessions.Delete(domain.CallID(id))
	}

	c, err := s.cases.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Info("case resolved")
	if s.notifier != nil {
		s.notifier.Notify(ctx, c.Clone())
	}
	return c, nil
}

// Resolved returns resolved cases, most recently resolved first.
func (s *Service) Resolved(ctx context.Context) ([]*domain.Case, error) {
	cases, err := s.cases.ListResolvedCases(ctx)
	if err != nil {
		return nil, err
	}
	sortResolved(cases)
	return cases, nil
}

func (s *Service) Case(ctx context.Context, id domain.CaseID) (*domain.Case, error) {
	return s.cases.GetCase(ctx, id)
}

// RegionFilter narrows reads to an administrative area.
// Empty or "ALL" fields match everything.
type RegionFilter struct {
	State    string
	District string
	City     string
}

func matchPart(want, got string) bool {
	return want == "" || strings.EqualFold(want, "all") || strings.EqualFold(want, got)
}

func (f RegionFilter) Match(r domain.Region) bool {
	return matchPart(f.State, r.State) && matchPart(f.District, r.District) && matchPart(f.City, r.City)
}

// CaseFilter selects cases for the dashboard list.
type CaseFilter struct {
	Status domain.CaseStatus
	Region RegionFilter
	// Priority 0 matches every level.
	Priority domain.Priority
}

// Filter returns matching cases. Open cases come in queue order, resolved
// ones newest resolution first.
func (s *Service) Filter(ctx context.Context, f CaseFilter) ([]*domain.Case, error) {
	var (
		cases []*domain.Case
		err   error
	)
	if f.Status == domain.StatusResolved {
		cases, err = s.Resolved(ctx)
	} else {
		cases, err = s.Queue(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := cases[:0:0]
	for _, c := range cases {
		if !f.Region.Match(c.Region) {
			continue
		}
		if f.Priority != domain.PriorityUnclassified && c.Priority != f.Priority {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Regions lists known states, their districts and cities for open and resolved
// cases. Unknown parts are left out.
func (s *Service) Regions(ctx context.Context) (map[string]map[string][]string, error) {
	open, err := s.cases.ListOpenCases(ctx)
	if err != nil {
		return nil, err
	}
	resolved, err := s.cases.ListResolvedCases(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]map[string]map[string]struct{})
	for _, c := range append(open, resolved...) {
		r := c.Region
		if isUnknown(r.State) || isUnknown(r.District) {
			continue
		}
		if seen[r.State] == nil {
			seen[r.State] = make(map[string]map[string]struct{})
		}
		if seen[r.State][r.District] == nil {
			seen[r.State][r.District] = make(map[string]struct{})
		}
		if !isUnknown(r.City) {
			seen[r.State][r.District][r.City] = struct{}{}
		}
	}

	out := make(map[string]map[string][]string, len(seen))
	for state, districts := range seen {
		out[state] = make(map[string][]string, len(districts))
		for district, cities := range districts {
			list := make([]string, 0, len(cities))
			for city := range cities {
				list = append(list, city)
			}
			sort.Strings(list)
			out[state][district] = list
		}
	}
	return out, nil
}

func isUnknown(part string) bool {
	return part == "" || part == domain.UnknownRegionPart
}

func sortResolved(cases []*domain.Case) {
	sort.SliceStable(cases, func(i, j int) bool {
		a, b := resolvedAt(cases[i]), resolvedAt(cases[j])
		if !a.Equal(b) {
			return a.After(b)
		}
		return cases[i].ID < cases[j].ID
	})
}

func resolvedAt(c *domain.Case) time.Time {
	if c.ResolvedAt == nil {
		return time.Time{}
	}
	return *c.ResolvedAt
}
