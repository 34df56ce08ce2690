// Package intel turns raw website text into a structured business profile
// using a text-understanding model.
package intel

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 1024

	// Page texts are truncated before prompting; contact details live near
	// the top of a page anyway.
	maxCharsPerPage = 4000
	maxPages        = 3
)

// Client defines the text-understanding operations.
type Client interface {
	Summarize(ctx context.Context, businessName string, texts []string) (*BusinessIntel, error)
}

// BusinessIntel is the structured profile extracted from website text. A
// zero-valued BusinessIntel is a valid "nothing found" result.
type BusinessIntel struct {
	Summary             string         `json:"summary"`
	Category            string         `json:"category"`
	Keywords            []string       `json:"keywords"`
	Icebreaker          string         `json:"icebreaker"`
	ContextLine         string         `json:"contextLine"`
	FollowUpObservation string         `json:"followUpObservation"`
	FoundContacts       []FoundContact `json:"foundContacts"`
	EcommerceSignals    []string       `json:"ecommerceSignals"`
}

// FoundContact is a person mentioned on the site with a reachable email.
type FoundContact struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email"`
}

// Option configures the sdkClient.
type Option func(*sdkClient)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *sdkClient) {
		c.model = model
	}
}

// WithMaxTokens overrides the default response token budget.
func WithMaxTokens(n int64) Option {
	return func(c *sdkClient) {
		c.maxTokens = n
	}
}

// WithRequestOptions passes extra options to the underlying SDK client
// (base URL override for tests, custom HTTP client).
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(c *sdkClient) {
		c.sdkOpts = append(c.sdkOpts, opts...)
	}
}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client    sdk.Client
	model     string
	maxTokens int64
	sdkOpts   []option.RequestOption
}

// NewClient creates a new text-understanding client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &sdkClient{
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		sdkOpts:   []option.RequestOption{option.WithAPIKey(apiKey)},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = sdk.NewClient(c.sdkOpts...)
	return c
}

const systemPrompt = `Eres un analista de negocios locales. A partir del texto de la web de un negocio, devuelve SOLO un objeto JSON con esta forma exacta:
{
  "summary": "una frase describiendo el negocio",
  "category": "deporte" | "bienestar" | "salud",
  "keywords": ["hasta 5 palabras clave"],
  "icebreaker": "frase de apertura personalizada para un email frio",
  "contextLine": "detalle concreto de la web usable como contexto",
  "followUpObservation": "observacion para un segundo email",
  "foundContacts": [{"name": "", "role": "", "email": ""}],
  "ecommerceSignals": ["indicios de venta online encontrados"]
}
Si un campo no se puede determinar, usa cadena vacia o lista vacia. No escribas nada fuera del JSON.`

func (c *sdkClient) Summarize(ctx context.Context, businessName string, texts []string) (*BusinessIntel, error) {
	if len(texts) == 0 {
		return &BusinessIntel{}, nil
	}

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(buildPrompt(businessName, texts))),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("intel: summarize %s", businessName))
	}

	zap.L().Debug("intel usage",
		zap.String("business", businessName),
		zap.String("model", string(msg.Model)),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)

	intel := parseIntel(extractText(msg))
	return intel, nil
}

func buildPrompt(businessName string, texts []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Negocio: %s\n", businessName)
	for i, text := range texts {
		if i >= maxPages {
			break
		}
		fmt.Fprintf(&sb, "\n--- Pagina %d ---\n%s\n", i+1, truncate(text, maxCharsPerPage))
	}
	return sb.String()
}

// truncate cuts text to at most n bytes without splitting a UTF-8 rune.
func truncate(text string, n int) string {
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}

// extractText concatenates all text content blocks.
func extractText(msg *sdk.Message) string {
	if msg == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range msg.Content {
		if b.Type == "" || b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}
