package gemini

import (
	"time"
)

// Model is one Gemini model the client may use, with its free-tier quota.
type Model struct {
	Name string
	// RPM is the number of requests allowed per minute.
	RPM int
	// RPD is the number of requests allowed per day.
	RPD int
}

// Config holds the configuration for the Gemini assistant.
type Config struct {
	// APIKey is the Gemini API key.
	APIKey string
	// Models are tried in order; a model that is over quota or returns a
	// rate-limit / not-found error is skipped in favour of the next one.
	Models []Model
	// Timeout bounds a single request across all fallbacks.
	Timeout time.Duration
}

// DefaultModels are used when GEMINI_MODELS is not set.
func DefaultModels() []Model {
	return []Model{
		{Name: "gemini-2.5-flash", RPM: 10, RPD: 250},
		{Name: "gemini-2.5-flash-lite", RPM: 15, RPD: 1000},
	}
}

// DefaultConfig provides defaults for everything but the API key.
func DefaultConfig() Config {
	return Config{
		Models:  DefaultModels(),
		Timeout: 30 * time.Second,
	}
}

// ModelsFromNames builds a model list from bare names, keeping the quota of
// known defaults and giving unknown models a conservative one.
func ModelsFromNames(names []string) []Model {
	known := make(map[string]Model)
	for _, m := range DefaultModels() {
		known[m.Name] = m
	}

	models := make([]Model, 0, len(names))
	for _, n := range names {
		if m, ok := known[n]; ok {
			models = append(models, m)
			continue
		}
		models = append(models, Model{Name: n, RPM: 5, RPD: 100})
	}
	return models
}
