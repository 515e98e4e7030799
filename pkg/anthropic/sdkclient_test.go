package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = "claude-sonnet-4-5-20250929"

// messagesServer answers every request with status and body and hands the
// decoded request body to the test.
func messagesServer(t *testing.T, status int, body any) (*httptest.Server, <-chan map[string]any) {
	t.Helper()
	requests := make(chan map[string]any, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		requests <- req

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts, requests
}

func extractionReply(text string, usage map[string]any) map[string]any {
	return map[string]any{
		"id":          "msg_escritura_001",
		"type":        "message",
		"role":        "assistant",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"model":       testModel,
		"stop_reason": "end_turn",
		"usage":       usage,
	}
}

func TestSDKClient_CreateMessage(t *testing.T) {
	ts, requests := messagesServer(t, http.StatusOK, extractionReply(
		`{"fields":{"numero_escritura":"12345"}}`,
		map[string]any{"input_tokens": 812, "output_tokens": 40},
	))

	client := NewClient("test-key", option.WithBaseURL(ts.URL))
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     testModel,
		MaxTokens: 1024,
		Prompt:    "TEXTO OCR:\nESCRITURA NÚMERO 12345",
	})
	require.NoError(t, err)

	assert.Equal(t, "msg_escritura_001", resp.ID)
	assert.Equal(t, testModel, resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, `{"fields":{"numero_escritura":"12345"}}`, resp.Text)
	assert.Equal(t, int64(812), resp.Usage.InputTokens)
	assert.Equal(t, int64(40), resp.Usage.OutputTokens)

	req := <-requests
	assert.Equal(t, testModel, req["model"])
	assert.EqualValues(t, 1024, req["max_tokens"])
	assert.NotContains(t, req, "system")
	assert.NotContains(t, req, "temperature")
}

func TestSDKClient_CreateMessage_CachedSystemAndTemperature(t *testing.T) {
	ts, requests := messagesServer(t, http.StatusOK, extractionReply(
		`"fields":{}}`,
		map[string]any{"input_tokens": 50, "output_tokens": 3, "cache_creation_input_tokens": 5000},
	))

	temp := 0.0
	client := NewClient("test-key", option.WithBaseURL(ts.URL))
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:       testModel,
		MaxTokens:   128,
		System:      CachedSystem("Extrae los campos de la patente de comercio"),
		Prompt:      "PATENTE DE COMERCIO",
		Prefill:     "{",
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), resp.Usage.CacheCreationInputTokens)
	assert.Equal(t, `{"fields":{}}`, resp.Text)

	req := <-requests
	assert.Contains(t, req, "temperature")
	messages, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "assistant", messages[1].(map[string]any)["role"])
	system, ok := req["system"].([]any)
	require.True(t, ok, "system should be a block list")
	require.Len(t, system, 1)
	block := system[0].(map[string]any)
	assert.Equal(t, "Extrae los campos de la patente de comercio", block["text"])
	cc, ok := block["cache_control"].(map[string]any)
	require.True(t, ok, "system block should carry cache_control")
	assert.Equal(t, "ephemeral", cc["type"])
	assert.Equal(t, "5m", cc["ttl"])
}

func TestSDKClient_CreateMessage_APIError(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, 529, http.StatusUnauthorized} {
		ts, _ := messagesServer(t, status, map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "api_error", "message": "upstream failure"},
		})

		client := NewClient("test-key", option.WithBaseURL(ts.URL))
		_, err := client.CreateMessage(context.Background(), MessageRequest{
			Model:     testModel,
			MaxTokens: 1024,
			Prompt:    "TESTIMONIO de la escritura",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "anthropic: create message")
		assert.Equal(t, status, StatusCode(err), "status %d", status)
	}
}
