package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/evalIA/property-import-service/internal/config"
	"github.com/evalIA/property-import-service/internal/models"
)

func testAIConfig() config.AIConfig {
	return config.AIConfig{
		OpenAI:           config.ProviderConfig{},
		DeepSeek:         config.ProviderConfig{APIKey: "ds-key"},
		OpenRouter:       config.ProviderConfig{APIKey: "or-key", Model: "anthropic/claude-3-haiku"},
		Gemini:           config.ProviderConfig{APIKey: "gm-key"},
		DefaultProvider:  "openai",
		ProviderPriority: []string{"openai", "deepseek", "openrouter", "gemini"},
	}
}

func TestResolveCredentialsPriority(t *testing.T) {
	creds, err := ResolveCredentials(testAIConfig(), nil, models.Credentials{})
	if err != nil {
		t.Fatalf("ResolveCredentials failed: %v", err)
	}
	if creds.Provider != "deepseek" || creds.APIKey != "ds-key" || creds.Model != "deepseek-chat" {
		t.Errorf("Expected deepseek with default model, got %+v", creds)
	}
}

func TestResolveCredentialsUserOverrides(t *testing.T) {
	user := &config.User{
		ID:                "u1",
		APIKeys:           map[string]string{"openai": "user-openai"},
		PreferredProvider: "openai",
		PreferredModel:    "gpt-4o",
	}
	creds, err := ResolveCredentials(testAIConfig(), user, models.Credentials{})
	if err != nil {
		t.Fatalf("ResolveCredentials failed: %v", err)
	}
	if creds.Provider != "openai" || creds.APIKey != "user-openai" || creds.Model != "gpt-4o" {
		t.Errorf("Expected user's openai key and model, got %+v", creds)
	}
}

func TestResolveCredentialsRequested(t *testing.T) {
	cfg := testAIConfig()

	creds, err := ResolveCredentials(cfg, nil, models.Credentials{Provider: "openrouter"})
	if err != nil {
		t.Fatalf("ResolveCredentials failed: %v", err)
	}
	if creds.Model != "anthropic/claude-3-haiku" {
		t.Errorf("Expected configured model, got %q", creds.Model)
	}

	creds, _ = ResolveCredentials(cfg, nil, models.Credentials{Provider: "gemini", Model: "gemini-1.5-pro"})
	if creds.Model != "gemini-1.5-pro" {
		t.Errorf("Expected requested model, got %q", creds.Model)
	}

	_, err = ResolveCredentials(cfg, nil, models.Credentials{Provider: "openai"})
	var credErr *CredentialError
	if !errors.As(err, &credErr) || credErr.Provider != "openai" {
		t.Errorf("Expected CredentialError for openai, got %v", err)
	}

	if _, err := ResolveCredentials(cfg, nil, models.Credentials{Provider: "mistral"}); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestResolveCredentialsNoneConfigured(t *testing.T) {
	_, err := ResolveCredentials(config.AIConfig{ProviderPriority: []string{"openai", "gemini"}}, nil, models.Credentials{})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Expected ErrMissingCredentials, got %v", err)
	}
}

func TestNewProviderProfiles(t *testing.T) {
	tests := []struct {
		provider string
		gemini   bool
	}{
		{"openai", false},
		{"deepseek", false},
		{"openrouter", false},
		{"gemini", true},
	}
	for _, tt := range tests {
		p, err := NewProvider(context.Background(), models.Credentials{APIKey: "k", Provider: tt.provider}, "", 0.1)
		if err != nil {
			t.Fatalf("%s: %v", tt.provider, err)
		}
		if p.Name() != tt.provider {
			t.Errorf("Expected name %s, got %s", tt.provider, p.Name())
		}
		if _, isGemini := p.(*GeminiProvider); isGemini != tt.gemini {
			t.Errorf("%s: unexpected adapter %T", tt.provider, p)
		}
	}
	if _, err := NewProvider(context.Background(), models.Credentials{Provider: "x"}, "", 0.1); err == nil {
		t.Error("Expected error for unknown provider")
	}
}
