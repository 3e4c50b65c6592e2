package priority

import (
	"context"
	"strings"
	"time"

	"github.com/PabloGalante/resq-agent/internal/domain"
	"github.com/PabloGalante/resq-agent/internal/observability"
)

// StressThreshold is the stress score above which priority is raised one level.
const StressThreshold = 0.7

// Classifier turns emergency text into a priority.
// With a nil zero-shot collaborator every call takes the rule-based path.
type Classifier struct {
	zeroShot domain.ZeroShotClassifier
	timeout  time.Duration
}

func NewClassifier(zeroShot domain.ZeroShotClassifier, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Classifier{zeroShot: zeroShot, timeout: timeout}
}

// Classify runs the pipeline: empty check, semantic stage or rule fallback,
// critical-keyword override, then stress adjustment. stress may be nil.
func (c *Classifier) Classify(ctx context.Context, text string, stress *float64) domain.ClassificationResult {
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "undefined") {
		return domain.ClassificationResult{Priority: domain.PriorityUnclassified, Method: domain.MethodNone}
	}
	lower := strings.ToLower(text)
	log := observability.LoggerFromContext(ctx)

	res, err := c.semantic(ctx, text)
	if err != nil {
		log.Warn("semantic classification unavailable, using rules", "error", err)
		res = Fallback(lower)
	}

	// The override also runs after the rule fallback; it can only raise severity.
	if containsAny(lower, criticalKeywords) && res.Priority != domain.PriorityCritical {
		res.Priority = domain.PriorityCritical
		res.CriticalOverride = true
	}

	if stress != nil && *stress > StressThreshold && res.Priority > domain.PriorityCritical {
		res.Priority--
		res.StressAdjusted = true
	}

	log.Info("emergency classified",
		"priority", int(res.Priority),
		"confidence", res.Confidence,
		"method", string(res.Method),
		"label", res.Label,
		"critical_override", res.CriticalOverride,
		"stress_adjusted", res.StressAdjusted,
	)
	return res
}

func (c *Classifier) semantic(ctx context.Context, text string) (domain.ClassificationResult, error) {
	if c == nil || c.zeroShot == nil {
		return domain.ClassificationResult{}, domain.ErrClassifierUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	label, score, err := c.zeroShot.Classify(ctx, text, Categories)
	if err != nil {
		return domain.ClassificationResult{}, err
	}
	return domain.ClassificationResult{
		Priority:   priorityForLabel(label),
		Confidence: clamp01(score),
		Method:     domain.MethodSemantic,
		Label:      label,
	}, nil
}

// Fallback classifies lower-cased text by keyword tiers. It never returns priority 5.
func Fallback(lower string) domain.ClassificationResult {
	t := defaultTier
	for _, candidate := range fallbackTiers {
		if containsAny(lower, candidate.keywords) {
			t = candidate
			break
		}
	}
	return domain.ClassificationResult{
		Priority:   t.priority,
		Confidence: t.confidence,
		Method:     domain.MethodFallback,
		Label:      t.label,
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
