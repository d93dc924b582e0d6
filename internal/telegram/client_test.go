package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := NewClient("token123", true).WithAPIBase(server.URL)
	err := client.SendMessage(context.Background(), 42, "<b>hi</b>")
	require.NoError(t, err)

	assert.Equal(t, "/bottoken123/sendMessage", gotPath)
	assert.Equal(t, float64(42), gotPayload["chat_id"])
	assert.Equal(t, "<b>hi</b>", gotPayload["text"])
	assert.Equal(t, "HTML", gotPayload["parse_mode"])
	assert.Equal(t, true, gotPayload["disable_web_page_preview"])
}

func TestSendMessageRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok": false, "description": "Bad Request: chat not found"}`))
	}))
	defer server.Close()

	client := NewClient("token123", false).WithAPIBase(server.URL)
	err := client.SendMessage(context.Background(), 42, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSetWebhook(t *testing.T) {
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottoken123/setWebhook", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := NewClient("token123", false).WithAPIBase(server.URL)
	err := client.SetWebhook(context.Background(), "https://advisor.example/telegram/webhook")
	require.NoError(t, err)
	assert.Equal(t, "https://advisor.example/telegram/webhook", gotPayload["url"])
}

func TestEnabled(t *testing.T) {
	assert.True(t, NewClient("token", false).Enabled())
	assert.False(t, NewClient("", false).Enabled())
}
