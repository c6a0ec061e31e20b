package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evalIA/property-import-service/internal/config"
	"github.com/evalIA/property-import-service/internal/logger"
	"github.com/evalIA/property-import-service/internal/models"
	"github.com/evalIA/property-import-service/internal/templates"
)

// ErrEmptyText is returned when there is no document text to send
var ErrEmptyText = errors.New("document text is empty")

// ProviderFactory builds the provider adapter for one resolved credential triple
type ProviderFactory func(ctx context.Context, creds models.Credentials) (Provider, error)

// Client handles LLM-based property extraction from document text
type Client struct {
	cfg         config.AIConfig
	timeout     time.Duration
	newProvider ProviderFactory
}

// NewClient creates a new extraction client
func NewClient(cfg config.AIConfig) *Client {
	c := &Client{
		cfg:     cfg,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
	c.newProvider = c.defaultProvider
	return c
}

// WithProviderFactory swaps how provider adapters are built
func (c *Client) WithProviderFactory(f ProviderFactory) *Client {
	c.newProvider = f
	return c
}

func (c *Client) defaultProvider(ctx context.Context, creds models.Credentials) (Provider, error) {
	pc, _ := c.cfg.Provider(creds.Provider)
	return NewProvider(ctx, creds, pc.BaseURL, c.cfg.Temperature)
}

// Extract sends the document text with the document type's instruction template
// and returns every property record found in the response.
// Missing credentials fail before any network call.
func (c *Client) Extract(ctx context.Context, text string, docType models.DocumentType, creds models.Credentials) ([]models.ExtractedPropertyData, error) {
	if strings.TrimSpace(creds.APIKey) == "" {
		return nil, &CredentialError{Provider: creds.Provider}
	}
	if _, ok := LookupProfile(creds.Provider); !ok {
		return nil, fmt.Errorf("unknown provider %q", creds.Provider)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	tmpl, err := templates.Get(docType)
	if err != nil {
		return nil, err
	}
	if creds.Model == "" {
		creds.Model = c.modelFor(creds.Provider)
	}

	start := time.Now()
	logger.Info(ctx, "llm.extract.start",
		"provider", creds.Provider,
		"model", creds.Model,
		"document_type", docType,
		"text_len", len(text),
	)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	provider, err := c.newProvider(ctx, creds)
	if err != nil {
		return nil, &ExtractionFailedError{Provider: creds.Provider, Err: err}
	}

	body, err := provider.Complete(ctx, tmpl.SystemPrompt(), buildUserPrompt(text))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("request timed out after %s: %w", c.timeout, err)
		}
		logger.Error(ctx, "llm.extract.provider_error",
			"provider", creds.Provider,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, &ExtractionFailedError{Provider: creds.Provider, Err: err}
	}

	raw, err := NormalizeResponse(body)
	if err != nil {
		logger.Error(ctx, "llm.extract.decode_error",
			"provider", creds.Provider,
			"error", err,
			"raw_bytes", len(body),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, &ExtractionFailedError{Provider: creds.Provider, Err: err}
	}

	records := make([]models.ExtractedPropertyData, len(raw))
	for i, r := range raw {
		records[i] = DecodeRecord(r)
	}

	logger.Info(ctx, "llm.extract.ok",
		"provider", creds.Provider,
		"model", creds.Model,
		"records", len(records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return records, nil
}

func (c *Client) modelFor(provider string) string {
	if pc, ok := c.cfg.Provider(provider); ok && pc.Model != "" {
		return pc.Model
	}
	p, _ := LookupProfile(provider)
	return p.DefaultModel
}

func buildUserPrompt(text string) string {
	return "Document text:\n" + text + "\n\nReturn ONLY the JSON object."
}
