package adapter

import (
	"context"
	"iter"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Gemini is the AI Text Service: given an instruction and a content string,
// it yields the generated text as an ordered sequence of fragments. The
// caller abandons a call by stopping iteration.
type Gemini interface {
	GenerateStream(ctx context.Context, instruction, content string) iter.Seq2[string, error]
}

type GeminiClient struct {
	client          *genai.Client
	generativeModel string
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		if model != "" {
			g.generativeModel = model
		}
	}
}

// GeminiConfig selects the backend: an API key uses the Gemini API,
// otherwise Vertex AI with project and location.
type GeminiConfig struct {
	APIKey   string
	Project  string
	Location string
}

func NewGemini(ctx context.Context, cfg GeminiConfig, opts ...GeminiOption) (*GeminiClient, error) {
	clientCfg := &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	}
	if cfg.APIKey != "" {
		clientCfg = &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.0-flash-001",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// GenerateStream sends instruction and content as two user parts and yields
// the text of every streamed chunk
func (g *GeminiClient) GenerateStream(ctx context.Context, instruction, content string) iter.Seq2[string, error] {
	contents := []*genai.Content{
		genai.NewContentFromText(instruction, genai.RoleUser),
		genai.NewContentFromText(content, genai.RoleUser),
	}

	return func(yield func(string, error) bool) {
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.generativeModel, contents, nil) {
			if err != nil {
				yield("", goerr.Wrap(err, "failed to stream content", goerr.V("model", g.generativeModel)))
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}
