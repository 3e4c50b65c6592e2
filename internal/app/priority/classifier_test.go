package priority_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PabloGalante/resq-agent/internal/app/priority"
	"github.com/PabloGalante/resq-agent/internal/domain"
)

type fixedZeroShot struct {
	label string
	score float64
	err   error
	got   []string
}

func (f *fixedZeroShot) Classify(_ context.Context, _ string, labels []string) (string, float64, error) {
	f.got = labels
	return f.label, f.score, f.err
}

func stress(v float64) *float64 { return &v }

func TestEmptyTextIsUnclassified(t *testing.T) {
	c := priority.NewClassifier(&fixedZeroShot{label: priority.Categories[0], score: 1}, 0)

	for _, text := range []string{"", "   ", "undefined"} {
		res := c.Classify(context.Background(), text, stress(0.9))
		assert.Equal(t, domain.PriorityUnclassified, res.Priority)
		assert.Zero(t, res.Confidence)
		assert.Equal(t, domain.MethodNone, res.Method)
	}
}

func TestSemanticStage(t *testing.T) {
	zs := &fixedZeroShot{label: priority.Categories[2], score: 0.64}
	c := priority.NewClassifier(zs, 0)

	res := c.Classify(context.Background(), "someone stole my bike", nil)

	assert.Equal(t, domain.PriorityMedium, res.Priority)
	assert.Equal(t, domain.MethodSemantic, res.Method)
	assert.InDelta(t, 0.64, res.Confidence, 1e-9)
	assert.False(t, res.CriticalOverride)
	assert.Equal(t, priority.Categories, zs.got)
}

func TestUnknownLabelMapsToLow(t *testing.T) {
	c := priority.NewClassifier(&fixedZeroShot{label: "weather", score: 0.3}, 0)

	res := c.Classify(context.Background(), "what time is it", nil)

	assert.Equal(t, domain.PriorityLow, res.Priority)
}

func TestCriticalKeywordOverridesSemantic(t *testing.T) {
	c := priority.NewClassifier(&fixedZeroShot{label: priority.Categories[4], score: 0.8}, 0)

	res := c.Classify(context.Background(), "there's a fire", nil)

	assert.Equal(t, domain.PriorityCritical, res.Priority)
	assert.True(t, res.CriticalOverride)
	assert.Equal(t, domain.MethodSemantic, res.Method)
}

func TestFallbackTiers(t *testing.T) {
	c := priority.NewClassifier(&fixedZeroShot{err: errors.New("model offline")}, 0)

	tests := []struct {
		text       string
		want       domain.Priority
		confidence float64
	}{
		{"man is unconscious", domain.PriorityCritical, 0.9},
		{"broken arm", domain.PriorityHigh, 0.85},
		{"bike robbery", domain.PriorityMedium, 0.8},
		{"noisy neighbours", domain.PriorityLow, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := c.Classify(context.Background(), tt.text, nil)
			assert.Equal(t, tt.want, res.Priority)
			assert.Equal(t, domain.MethodFallback, res.Method)
			assert.InDelta(t, tt.confidence, res.Confidence, 1e-9)
		})
	}
}

func TestNilCollaboratorUsesFallback(t *testing.T) {
	c := priority.NewClassifier(nil, 0)

	res := c.Classify(context.Background(), "general question about opening hours", nil)

	assert.Equal(t, domain.MethodFallback, res.Method)
	assert.NotEqual(t, domain.PriorityInfo, res.Priority)
}

func TestStressPromotesOneLevel(t *testing.T) {
	c := priority.NewClassifier(nil, 0)
	ctx := context.Background()

	assert.Equal(t, domain.PriorityHigh, c.Classify(ctx, "bike robbery", stress(0.71)).Priority)
	assert.Equal(t, domain.PriorityMedium, c.Classify(ctx, "bike robbery", stress(0.7)).Priority)

	res := c.Classify(ctx, "heart attack", stress(0.95))
	assert.Equal(t, domain.PriorityCritical, res.Priority)
	assert.False(t, res.StressAdjusted)
}

func TestDeterministicPath(t *testing.T) {
	c := priority.NewClassifier(&fixedZeroShot{label: priority.Categories[1], score: 0.5}, 0)
	ctx := context.Background()

	a := c.Classify(ctx, "severe bleeding after a fall", stress(0.8))
	b := c.Classify(ctx, "severe bleeding after a fall", stress(0.8))

	assert.Equal(t, a, b)
	assert.Equal(t, domain.PriorityCritical, a.Priority)
	assert.True(t, a.StressAdjusted)
}
