package dispatch

import (
	"context"
	"sort"

	"github.com/PabloGalante/resq-agent/internal/domain"
)

// LocationCount is one row of the busiest-areas table.
type LocationCount struct {
	City     string `json:"city"`
	District string `json:"district"`
	State    string `json:"state"`
	Count    int    `json:"count"`
}

// Stats summarises the open queue for the dashboard.
type Stats struct {
	TotalOpen       int             `json:"total_open"`
	ByPriority      map[string]int  `json:"by_priority"`
	TopLocations    []LocationCount `json:"top_locations"`
	AveragePriority float64         `json:"average_priority"`
	Mapped          []*domain.Case  `json:"-"`
}

const topLocations = 10

func (s *Service) Stats(ctx context.Context, f RegionFilter) (Stats, error) {
	q, err := s.Queue(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{ByPriority: make(map[string]int)}
	counts := make(map[domain.Region]int)
	sum := 0
	for _, c := range q {
		if !f.Match(c.Region) {
			continue
		}
		st.TotalOpen++
		st.ByPriority[c.Priority.Label()]++
		sum += int(c.Priority)
		region := c.Region
		region.Country = ""
		counts[region]++
		if c.Coordinates != nil {
			st.Mapped = append(st.Mapped, c)
		}
	}
	if st.TotalOpen > 0 {
		st.AveragePriority = float64(sum) / float64(st.TotalOpen)
	}

	for r, n := range counts {
		st.TopLocations = append(st.TopLocations, LocationCount{City: r.City, District: r.District, State: r.State, Count: n})
	}
	sort.Slice(st.TopLocations, func(i, j int) bool {
		a, b := st.TopLocations[i], st.TopLocations[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.State != b.State {
			return a.State < b.State
		}
		if a.District != b.District {
			return a.District < b.District
		}
		return a.City < b.City
	})
	if len(st.TopLocations) > topLocations {
		st.TopLocations = st.TopLocations[:topLocations]
	}
	return st, nil
}
