package adapter_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lectern/pkg/adapter"
)

func TestGenerateStream(t *testing.T) {
	cfg := adapter.GeminiConfig{
		APIKey:   os.Getenv("TEST_GEMINI_API_KEY"),
		Project:  os.Getenv("TEST_GEMINI_PROJECT"),
		Location: "us-central1",
	}
	if cfg.APIKey == "" && cfg.Project == "" {
		t.Skip("TEST_GEMINI_API_KEY or TEST_GEMINI_PROJECT is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewGemini(ctx, cfg)
	gt.NoError(t, err)

	var b strings.Builder
	var fragments int
	for fragment, err := range client.GenerateStream(ctx,
		"You explain lecture transcriptions in one sentence.",
		"The mitochondria is the powerhouse of the cell.",
	) {
		gt.NoError(t, err)
		b.WriteString(fragment)
		fragments++
	}

	gt.True(t, fragments > 0)
	gt.True(t, b.Len() > 0)
	t.Log("response:", b.String())
}
