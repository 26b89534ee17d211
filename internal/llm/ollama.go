package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llama3.2"
)

// OllamaCaller talks to a local Ollama server through the official client.
type OllamaCaller struct {
	client       *api.Client
	model        string
	pingTimeout time.Duration
}

// NewOllamaCaller falls back to the default server and model when either is
// blank. An unparsable base URL is reported on the first call.
func NewOllamaCaller(baseURL, model string, httpClient *http.Client) *OllamaCaller {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultOllamaURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultOllamaModel
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Host == "" {
		base, _ = url.Parse(DefaultOllamaURL)
	}
	return &OllamaCaller{
		client:       api.NewClient(base, httpClient),
		model:        model,
		pingTimeout: 2 * time.Second,
	}
}

func (o *OllamaCaller) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	stream := false
	var sb strings.Builder
	err := o.client.Generate(ctx, &api.GenerateRequest{
		Model:  o.model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: &stream,
		Options: map[string]any{
			"num_predict": maxTokens,
			"temperature": temperature,
		},
	}, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", ollamaError("generate", err)
	}
	return sb.String(), nil
}

// Ping lists local models with a short timeout.
func (o *OllamaCaller) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.pingTimeout)
	defer cancel()
	if _, err := o.client.List(ctx); err != nil {
		return ollamaError("list", err)
	}
	return nil
}

// ollamaError keeps the HTTP status in the message so transport failures
// classify the same way for every provider.
func ollamaError(op string, err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		return fmt.Errorf("ollama %s: status code: %d %s", op, se.StatusCode, strings.TrimSpace(se.ErrorMessage))
	}
	return fmt.Errorf("ollama %s: %w", op, err)
}
