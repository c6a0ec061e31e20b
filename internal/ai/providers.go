package ai

import (
	"context"
	"fmt"

	"github.com/evalIA/property-import-service/internal/models"
)

// Provider is one chat-completion backend
type Provider interface {
	Name() string
	// Complete sends a system and a user message and returns the raw completion text
	Complete(ctx context.Context, system, user string) (string, error)
}

// Profile describes a provider endpoint and its default model
type Profile struct {
	Name         string
	BaseURL      string
	DefaultModel string
	Gemini       bool
}

var profiles = []Profile{
	{Name: "openai", BaseURL: "https://api.openai.com/v1", DefaultModel: "gpt-4o-mini"},
	{Name: "deepseek", BaseURL: "https://api.deepseek.com/v1", DefaultModel: "deepseek-chat"},
	{Name: "openrouter", BaseURL: "https://openrouter.ai/api/v1", DefaultModel: "openai/gpt-4o-mini"},
	{Name: "gemini", DefaultModel: "gemini-1.5-flash", Gemini: true},
}

// Profiles returns the known provider profiles
func Profiles() []Profile {
	return append([]Profile(nil), profiles...)
}

// LookupProfile finds a profile by name
func LookupProfile(name string) (Profile, bool) {
	for _, p := range profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// NewProvider builds the adapter for creds. baseURL overrides the profile endpoint when set.
func NewProvider(ctx context.Context, creds models.Credentials, baseURL string, temperature float32) (Provider, error) {
	p, ok := LookupProfile(creds.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", creds.Provider)
	}
	model := creds.Model
	if model == "" {
		model = p.DefaultModel
	}
	if p.Gemini {
		return NewGeminiProvider(creds.APIKey, model, temperature), nil
	}
	if baseURL == "" {
		baseURL = p.BaseURL
	}
	return NewOpenAIProvider(p.Name, creds.APIKey, baseURL, model, temperature), nil
}
