package ai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/evalIA/property-import-service/internal/config"
	"github.com/evalIA/property-import-service/internal/models"
)

// ErrMissingCredentials is wrapped by every CredentialError
var ErrMissingCredentials = errors.New("missing API credentials")

// CredentialError names the provider whose key is missing
type CredentialError struct {
	Provider string
}

func (e *CredentialError) Error() string {
	if e.Provider == "" {
		return "no LLM provider has an API key configured"
	}
	return fmt.Sprintf("missing API key for provider %q", e.Provider)
}

func (e *CredentialError) Unwrap() error { return ErrMissingCredentials }

// ExtractionFailedError wraps provider, network, timeout and response-format failures
type ExtractionFailedError struct {
	Provider string
	Err      error
}

func (e *ExtractionFailedError) Error() string {
	return fmt.Sprintf("AI extraction failed (%s): %v", e.Provider, e.Err)
}

func (e *ExtractionFailedError) Unwrap() error { return e.Err }

// ResolveCredentials picks the (apiKey, provider, model) triple for one extraction.
// An explicitly requested provider must have a key. Otherwise the user's preferred
// provider, the configured default, then the priority list are tried in order.
// Per-user keys override service-wide keys.
func ResolveCredentials(cfg config.AIConfig, user *config.User, requested models.Credentials) (models.Credentials, error) {
	if requested.Provider != "" {
		if _, ok := LookupProfile(requested.Provider); !ok {
			return models.Credentials{}, fmt.Errorf("unknown provider %q", requested.Provider)
		}
		creds := credentialsFor(cfg, user, requested.Provider)
		if creds.APIKey == "" {
			return models.Credentials{}, &CredentialError{Provider: requested.Provider}
		}
		if requested.Model != "" {
			creds.Model = requested.Model
		}
		return creds, nil
	}

	var order []string
	if user != nil && user.PreferredProvider != "" {
		order = append(order, user.PreferredProvider)
	}
	if cfg.DefaultProvider != "" {
		order = append(order, cfg.DefaultProvider)
	}
	order = append(order, cfg.ProviderPriority...)

	seen := make(map[string]bool)
	for _, name := range order {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := LookupProfile(name); !ok {
			continue
		}
		creds := credentialsFor(cfg, user, name)
		if creds.APIKey == "" {
			continue
		}
		if requested.Model != "" {
			creds.Model = requested.Model
		}
		return creds, nil
	}
	return models.Credentials{}, &CredentialError{}
}

func credentialsFor(cfg config.AIConfig, user *config.User, provider string) models.Credentials {
	pc, _ := cfg.Provider(provider)
	creds := models.Credentials{
		APIKey:   strings.TrimSpace(pc.APIKey),
		Provider: provider,
		Model:    pc.Model,
	}
	if user != nil {
		if key := strings.TrimSpace(user.APIKeys[provider]); key != "" {
			creds.APIKey = key
		}
		if user.PreferredModel != "" && user.PreferredProvider == provider {
			creds.Model = user.PreferredModel
		}
	}
	if creds.Model == "" {
		p, _ := LookupProfile(provider)
		creds.Model = p.DefaultModel
	}
	return creds
}
