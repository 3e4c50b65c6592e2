package priority

import (
	"strings"

	"github.com/PabloGalante/resq-agent/internal/domain"
)

// Categories are the zero-shot candidate labels, most severe first.
// Index i corresponds to priority i+1.
var Categories = []string{
	"fire emergency or building collapse or active shooter or cardiac arrest or drowning or severe trauma or sexual assault or rape",
	"medical emergency or severe injury or assault or armed threat",
	"minor injury or property crime or suspicious activity",
	"non-urgent issue or minor complaint",
	"information request or general inquiry",
}

// criticalKeywords force priority 1 whatever the earlier stages said.
var criticalKeywords = []string{
	"fire", "burning", "flames", "smoke", "explosion",
	"cardiac arrest", "heart attack", "not breathing", "unconscious",
	"drowning", "shooting", "gunshot", "stabbing", "active shooter", "armed attack",
	"stroke", "severe burn", "collapse",
	"sexual assault", "rape", "sexual violence", "sexual attack", "molest", "assault victim",
}

type tier struct {
	priority   domain.Priority
	confidence float64
	label      string
	keywords   []string
}

// fallbackTiers are tried in order when the semantic stage is unavailable.
var fallbackTiers = []tier{
	{
		priority:   domain.PriorityCritical,
		confidence: 0.9,
		label:      "fallback-l1",
		keywords: []string{
			"rape", "sexual assault", "unconscious", "cardiac arrest", "not breathing",
			"heart attack", "stroke", "severe burn", "fire", "active shooter", "kidnap",
			"drowning", "collapse", "shooting", "gunshot", "stabbing", "armed", "armed attack",
		},
	},
	{
		priority:   domain.PriorityHigh,
		confidence: 0.85,
		label:      "fallback-l2",
		keywords: []string{
			"fracture", "broken", "burglary", "missing person", "animal bite",
			"allergy", "asthma", "fever", "severe vomiting", "dehydration",
		},
	},
	{
		priority:   domain.PriorityMedium,
		confidence: 0.8,
		label:      "fallback-l3",
		keywords:   []string{"vomiting", "injury", "assault", "robbery", "suspicious", "minor accident"},
	},
}

var defaultTier = tier{priority: domain.PriorityLow, confidence: 0.7, label: "fallback-l4"}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func priorityForLabel(label string) domain.Priority {
	for i, c := range Categories {
		if c == label {
			return domain.Priority(i + 1)
		}
	}
	return domain.PriorityLow
}
