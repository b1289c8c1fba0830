package openrouter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// The model list is weighted by repetition, so selection must be a plain
// uniform pick over the raw list. Verified with a deterministic pick func.
func TestSummarizeUsesPickedModel(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Model string `json:"model"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": req.Model,
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	t.Cleanup(server.Close)

	models := []string{
		"openai/gpt-5-mini",
		"openai/gpt-5-mini",
		"anthropic/claude-sonnet-4.5",
	}

	clientCfg := openai.DefaultConfig("test-key")
	clientCfg.BaseURL = server.URL

	for idx, want := range models {
		client := &sdkClient{
			api:    openai.NewClientWithConfig(clientCfg),
			log:    discardLogger(),
			models: models,
			pick:   func(int) int { return idx },
		}

		result, err := client.Summarize(context.Background(), "prompt")
		if err != nil {
			t.Fatalf("pick=%d: Summarize() error: %v", idx, err)
		}
		if result.Model != want {
			t.Errorf("pick=%d: Model = %q, want %q", idx, result.Model, want)
		}
	}
}
