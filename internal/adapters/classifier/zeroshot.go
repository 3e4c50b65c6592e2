package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/PabloGalante/resq-agent/internal/observability"
)

// ZeroShot calls a Hugging Face style zero-shot classification endpoint.
// After repeated failures the breaker opens and calls fail fast until the
// cool-down elapses, so a dead model server never stalls a call turn.
type ZeroShot struct {
	url     string
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

type Option func(*ZeroShot)

// WithToken sends a bearer token, as hosted inference endpoints require.
func WithToken(token string) Option {
	return func(z *ZeroShot) { z.token = token }
}

func WithHTTPClient(c *http.Client) Option {
	return func(z *ZeroShot) { z.http = c }
}

func NewZeroShot(url string, opts ...Option) *ZeroShot {
	z := &ZeroShot{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(z)
	}
	z.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "zero-shot",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.WithFields("breaker", name).Warn("classifier breaker changed state",
				"from", from.String(), "to", to.String())
		},
	})
	return z
}

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

type zeroShotResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
	Error  string    `json:"error,omitempty"`
}

var ErrMalformedResponse = errors.New("zero-shot: malformed response")

// Classify returns the best scoring label.
func (z *ZeroShot) Classify(ctx context.Context, text string, labels []string) (string, float64, error) {
	out, err := z.breaker.Execute(func() (interface{}, error) {
		return z.call(ctx, text, labels)
	})
	if err != nil {
		return "", 0, err
	}
	res := out.(*zeroShotResponse)
	return res.Labels[0], res.Scores[0], nil
}

func (z *ZeroShot) call(ctx context.Context, text string, labels []string) (*zeroShotResponse, error) {
	body, err := json.Marshal(zeroShotRequest{
		Inputs:     text,
		Parameters: zeroShotParameters{CandidateLabels: labels},
	})
	if err != nil {
		return nil, fmt.Errorf("encode zero-shot request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build zero-shot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if z.token != "" {
		req.Header.Set("Authorization", "Bearer "+z.token)
	}

	resp, err := z.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zero-shot request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("zero-shot returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out zeroShotResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("zero-shot: %s", out.Error)
	}
	if len(out.Labels) == 0 || len(out.Labels) != len(out.Scores) {
		return nil, ErrMalformedResponse
	}
	return &out, nil
}
