package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragnotebook/internal/config"
	"ragnotebook/internal/domain"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Webhooks: config.WebhookConfig{
			BaseURL:     "http://backend:5678/webhook/",
			TimeoutSecs: 30,
			MaxRetries:  3,
			Headers:     map[string]string{"X-Api-Key": "k"},
			Notebooks:   config.NotebookHooksConfig{List: "notebook-list", Create: "https://other/create"},
			Strategies: map[string]config.StrategyEndpointConfig{
				"fusion": {Retrieval: "custom-fusion"},
			},
		},
	}
}

func TestWebhookConfig_ResolvesEndpoints(t *testing.T) {
	wc := webhookConfig(testConfig())
	assert.Equal(t, "http://backend:5678/webhook/notebook-list", wc.Endpoints.ListNotebooks)
	assert.Equal(t, "https://other/create", wc.Endpoints.CreateNotebook)
	assert.Empty(t, wc.Endpoints.PullHistory)
	assert.Equal(t, 30*time.Second, wc.Timeout)
	assert.Equal(t, 3, wc.MaxRetries)
	assert.Equal(t, "k", wc.Headers["X-Api-Key"])
}

func TestStrategyOverrides(t *testing.T) {
	out := strategyOverrides(testConfig())
	require.Len(t, out, 1)
	assert.Equal(t, "custom-fusion", out[domain.StrategyFusion].Retrieval)
	assert.Empty(t, out[domain.StrategyFusion].Agentic)
}

func TestPrintNotebooks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printNotebooks(&buf, []domain.Notebook{
		{ID: "nb-1", Name: "Handbook", DocumentCount: 12, Status: "ready"},
	}))
	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "nb-1")
	assert.Contains(t, out, "Handbook")
	assert.Contains(t, out, "12")
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printHistory(&buf, nil))
	assert.Equal(t, "No messages.\n", buf.String())

	buf.Reset()
	ts := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, printHistory(&buf, []domain.Message{
		{Role: domain.RoleUser, Content: "hi", Timestamp: ts},
		{Role: domain.RoleAssistant, Content: "hello", StrategyID: domain.StrategyFusion, Timestamp: ts},
	}))
	out := buf.String()
	assert.Contains(t, out, "2025-03-01 09:30  You\nhi")
	assert.Contains(t, out, "Assistant (fusion)\nhello")
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"search"}, {"ask"},
		{"notebooks", "list"}, {"notebooks", "create"}, {"notebooks", "delete"},
		{"notebooks", "ingest"}, {"notebooks", "status"},
		{"history", "clear"}, {"history", "show"},
		{"config", "path"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
