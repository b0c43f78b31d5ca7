package note

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/adapter"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/utils/logging"
	"github.com/m-mizutani/lectern/pkg/utils/retry"
)

// DefaultPrompt asks for the six-section note format understood by Parse
const DefaultPrompt = `
You are an AI note‐taking assistant. Given the following lecture transcription, generate structured notes in this exact format:

Lecture Topic:
[Detect topic]

Key Concepts:
- concept 1
- concept 2
…

Bullet Notes:
- quick takeaway 1
- quick takeaway 2
…

Important Definitions:
→ Term 1: Definition 1
→ Term 2: Definition 2
…

Questions to Explore:
❓ Question 1
❓ Question 2

Summary:
[Give a 1–2 sentence summary of the entire content.]

Only output the formatted notes (no raw transcript).
`

var ErrEmptyTranscript = goerr.New("no lines to take notes from")

// Generator synthesizes a Note from a whole transcript
type Generator struct {
	gemini adapter.Gemini
	prompt string
	policy retry.Policy
}

type Option func(*Generator)

func WithPrompt(prompt string) Option {
	return func(g *Generator) {
		if prompt != "" {
			g.prompt = prompt
		}
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(g *Generator) {
		g.policy = p
	}
}

func NewGenerator(gemini adapter.Gemini, opts ...Option) *Generator {
	g := &Generator{
		gemini: gemini,
		prompt: DefaultPrompt,
		policy: retry.Default,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Transcript joins line texts with a single space
func Transcript(lines []model.Line) string {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, " ")
}

// Generate collects the complete response for lines and parses it. A failed
// stream is restarted from scratch within the retry policy; a parse failure
// is returned as is.
func (g *Generator) Generate(ctx context.Context, lines []model.Line) (*model.Note, error) {
	if len(lines) == 0 {
		return nil, goerr.Wrap(ErrEmptyTranscript, "cannot generate note")
	}

	content := Transcript(lines)
	var response string
	err := retry.Do(ctx, g.policy, "note", func(ctx context.Context) error {
		var buf strings.Builder
		for fragment, err := range g.gemini.GenerateStream(ctx, g.prompt, content) {
			if err != nil {
				return err
			}
			buf.WriteString(fragment)
		}
		response = buf.String()
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate note", goerr.V("lines", len(lines)))
	}

	n, err := Parse(strings.TrimSpace(response))
	if err != nil {
		logging.From(ctx).Debug("unparsable note response", "response", response)
		return nil, goerr.Wrap(err, "failed to read generated note", goerr.V("lines", len(lines)))
	}
	return n, nil
}
