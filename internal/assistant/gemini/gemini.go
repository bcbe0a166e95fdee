// Package gemini implements assistant.Assistant on the Gemini API.
//
// The client walks an ordered list of models. Each model has a per-minute and
// per-day request budget tracked in memory; a model that is over budget, or
// that answers with a rate-limit or not-found error, is skipped and the next
// model is tried.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/civicforum/constitution-platform/internal/assistant"
)

// generator is the single call the client makes per model. The genai client
// satisfies it through genaiGenerator; tests substitute a fake.
type generator interface {
	Generate(ctx context.Context, model string, req assistant.Request) (string, error)
}

type genaiGenerator struct {
	client *genai.Client
}

func (g genaiGenerator) Generate(ctx context.Context, model string, req assistant.Request) (string, error) {
	var config *genai.GenerateContentConfig
	if len(req.Instructions) > 0 {
		system := &genai.Content{}
		for _, in := range req.Instructions {
			system.Parts = append(system.Parts, &genai.Part{Text: in})
		}
		config = &genai.GenerateContentConfig{SystemInstruction: system}
	}

	result, err := g.client.Models.GenerateContent(ctx, model, genai.Text(req.Message), config)
	if err != nil {
		return "", err
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}

// Client is a rate-aware Gemini assistant. Safe for concurrent use.
type Client struct {
	gen     generator
	models  []Model
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu           sync.Mutex
	dailyCount   map[string]int
	minuteCount  map[string]int
	lastResetDay time.Time
	lastResetMin time.Time
}

// compile-time check that *Client implements assistant.Assistant
var _ assistant.Assistant = (*Client)(nil)

// New creates a Client backed by the Gemini API.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}

	return newClient(genaiGenerator{client: client}, cfg, logger), nil
}

func newClient(gen generator, cfg Config, logger *slog.Logger) *Client {
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}
	now := time.Now()
	return &Client{
		gen:          gen,
		models:       cfg.Models,
		timeout:      cfg.Timeout,
		now:          time.Now,
		logger:       logger,
		dailyCount:   make(map[string]int),
		minuteCount:  make(map[string]int),
		lastResetDay: now,
		lastResetMin: now,
	}
}

// Ask sends req to the first model that has budget left and answers.
func (c *Client) Ask(ctx context.Context, req assistant.Request) (*assistant.Reply, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var lastErr error
	for _, m := range c.models {
		if !c.canUse(m) {
			continue
		}

		answer, err := c.gen.Generate(ctx, m.Name, req)
		if err != nil {
			if retryable(err) {
				c.logger.Warn("gemini model unavailable, falling back",
					slog.String("model", m.Name),
					slog.String("error", err.Error()),
				)
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("gemini: %s: %w", m.Name, err)
		}

		c.recordUsage(m)
		if strings.TrimSpace(answer) == "" {
			lastErr = fmt.Errorf("gemini: %s returned an empty answer", m.Name)
			continue
		}
		return &assistant.Reply{Answer: answer, Model: m.Name}, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", assistant.ErrExhausted, lastErr)
	}
	return nil, assistant.ErrExhausted
}

// retryableMarkers match quota, unknown-model and server-side failures in
// the error text the API client returns.
var retryableMarkers = []string{
	"429", "rate limit", "exhausted",
	"404", "not found",
	"500", "502", "503", "504", "unavailable", "overloaded",
}

// retryable reports errors worth trying the next model for.
func retryable(err error) bool {
	s := strings.ToLower(err.Error())
	for _, marker := range retryableMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func (c *Client) canUse(m Model) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !sameDay(now, c.lastResetDay) {
		c.dailyCount = make(map[string]int)
		c.lastResetDay = now
	}
	if now.Sub(c.lastResetMin) >= time.Minute {
		c.minuteCount = make(map[string]int)
		c.lastResetMin = now
	}

	if m.RPD > 0 && c.dailyCount[m.Name] >= m.RPD {
		return false
	}
	if m.RPM > 0 && c.minuteCount[m.Name] >= m.RPM {
		return false
	}
	return true
}

func (c *Client) recordUsage(m Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dailyCount[m.Name]++
	c.minuteCount[m.Name]++
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
