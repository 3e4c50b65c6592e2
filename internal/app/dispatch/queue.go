package dispatch

import (
	"fmt"
	"sort"
	"time"

	"github.com/PabloGalante/resq-agent/internal/domain"
)

// rank places unclassified cases after every classified level.
func rank(p domain.Priority) int {
	if p.Valid() {
		return int(p)
	}
	return int(domain.PriorityInfo) + 1
}

// Order sorts cases in place: priority ascending with 0 last, then oldest first.
// Equal timestamps fall back to the case id so the order is total.
func Order(cases []*domain.Case) {
	sort.SliceStable(cases, func(i, j int) bool {
		a, b := cases[i], cases[j]
		if ra, rb := rank(a.Priority), rank(b.Priority); ra != rb {
			return ra < rb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// TimeInQueue renders how long a case has waited as "42s", "7m" or "3h".
func TimeInQueue(created, now time.Time) string {
	d := now.Sub(created)
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}
