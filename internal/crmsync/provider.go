package crmsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ninjaos/autopilot/internal/store"
)

// Result is the provider-neutral outcome of one CRM call.
type Result struct {
	Success    bool   `json:"success"`
	ExternalID string `json:"externalId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Provider is one external CRM endpoint. Implementations map the neutral
// payload to provider-specific calls.
type Provider interface {
	Name() string
	TestConnection(ctx context.Context) error
	CreateContact(ctx context.Context, payload map[string]any) (*Result, error)
	UpdateContact(ctx context.Context, externalID string, payload map[string]any) (*Result, error)
	CreateNote(ctx context.Context, contactExternalID string, payload map[string]any) (*Result, error)
	CreateTask(ctx context.Context, payload map[string]any) (*Result, error)
	UpdateTask(ctx context.Context, externalID string, payload map[string]any) (*Result, error)
}

// webhookConfig is the JSON config blob stored on a webhook integration.
type webhookConfig struct {
	URL    string `json:"url"`
	APIKey string `json:"apiKey,omitempty"`
}

// WebhookProvider posts neutral JSON envelopes to a configured endpoint. The
// endpoint answers with a Result body.
type WebhookProvider struct {
	name   string
	cfg    webhookConfig
	client *http.Client
}

// Resolve builds a provider for the integration. Returns an error for
// providers this build does not speak.
func Resolve(integration *store.CrmIntegration) (Provider, error) {
	switch integration.Provider {
	case "webhook":
		var cfg webhookConfig
		if err := json.Unmarshal([]byte(integration.Config), &cfg); err != nil {
			return nil, fmt.Errorf("webhook config: %w", err)
		}
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, fmt.Errorf("webhook integration %s has no url", integration.IntegrationID)
		}
		return &WebhookProvider{name: integration.Provider, cfg: cfg, client: http.DefaultClient}, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", integration.Provider)
	}
}

func (p *WebhookProvider) Name() string { return p.name }

// TestConnection posts a ping envelope.
func (p *WebhookProvider) TestConnection(ctx context.Context) error {
	_, err := p.post(ctx, "ping", "", nil)
	return err
}

func (p *WebhookProvider) CreateContact(ctx context.Context, payload map[string]any) (*Result, error) {
	return p.post(ctx, "contact.create", "", payload)
}

func (p *WebhookProvider) UpdateContact(ctx context.Context, externalID string, payload map[string]any) (*Result, error) {
	return p.post(ctx, "contact.update", externalID, payload)
}

func (p *WebhookProvider) CreateNote(ctx context.Context, contactExternalID string, payload map[string]any) (*Result, error) {
	return p.post(ctx, "note.create", contactExternalID, payload)
}

func (p *WebhookProvider) CreateTask(ctx context.Context, payload map[string]any) (*Result, error) {
	return p.post(ctx, "task.create", "", payload)
}

func (p *WebhookProvider) UpdateTask(ctx context.Context, externalID string, payload map[string]any) (*Result, error) {
	return p.post(ctx, "task.update", externalID, payload)
}

func (p *WebhookProvider) post(ctx context.Context, op, externalID string, payload map[string]any) (*Result, error) {
	body, _ := json.Marshal(map[string]any{
		"operation":   op,
		"external_id": externalID,
		"payload":     payload,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := strings.TrimSpace(p.cfg.APIKey); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook status: %d", resp.StatusCode)
	}
	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("webhook response: %w", err)
	}
	return &res, nil
}
