package codehelper

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jxucoder/codehelper/internal/config"
	"github.com/jxucoder/codehelper/pkg/dispatcher"
	"github.com/jxucoder/codehelper/pkg/llm"
	"github.com/jxucoder/codehelper/pkg/llm/anthropic"
	"github.com/jxucoder/codehelper/pkg/llm/gemini"
	"github.com/jxucoder/codehelper/pkg/llm/openai"
)

type echoLLM struct{}

func (echoLLM) Complete(_ context.Context, p llm.Prompt) (string, error) {
	return "echo: " + strings.SplitN(p.User, "\n", 2)[0], nil
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		ServerAddr:     "127.0.0.1:0",
		DataDir:        dir,
		DBDriver:       "sqlite",
		DBDSN:          filepath.Join(dir, "app.db"),
		Provider:       config.ProviderAuto,
		GroqAPIKey:     "gsk-test",
		LLMTemperature: 0.3,
		LLMMaxTokens:   2048,
		LLMTimeout:     5 * time.Second,
		MaxCodeBytes:   65536,
		MaxBodyBytes:   1 << 20,
		RateBurst:      5,
	}
}

func TestBuild_RequiresConfig(t *testing.T) {
	_, err := NewBuilder().Build(context.Background())
	assert.Error(t, err)
}

func TestBuild_ServesCodeHelper(t *testing.T) {
	app, err := NewBuilder().WithConfig(testConfig(t)).WithLLM(echoLLM{}).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.store.Close() })

	req := httptest.NewRequest(http.MethodPost, "/api/code-helper",
		strings.NewReader(`{"taskType":"convert","code":"x = 1","language":"python","targetLanguage":"go"}`))
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool   `json:"success"`
		Result  string `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "echo: Convert this python code to go.", body.Result)
}

func TestBuild_TemplatesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.TemplatesFile = filepath.Join(cfg.DataDir, "templates.yaml")
	require.NoError(t, os.WriteFile(cfg.TemplatesFile, []byte("tasks:\n  fix: \"Repair {{.Code}}\"\n"), 0o644))

	app, err := NewBuilder().WithConfig(cfg).WithLLM(echoLLM{}).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.store.Close() })

	got, err := app.Runner().Run(context.Background(), requestFix("print(x"))
	require.NoError(t, err)
	assert.Equal(t, "echo: Repair print(x", got)

	cfg.TemplatesFile = filepath.Join(cfg.DataDir, "missing.yaml")
	_, err = NewBuilder().WithConfig(cfg).WithLLM(echoLLM{}).Build(context.Background())
	assert.Error(t, err)
}

func TestServe_StopsOnCancel(t *testing.T) {
	app, err := NewBuilder().WithConfig(testConfig(t)).WithLLM(echoLLM{}).Build(context.Background())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestClientFromConfig(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	client, provider, err := ClientFromConfig(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderGroq, provider)
	groq, ok := client.(*openai.Client)
	require.True(t, ok)
	assert.Equal(t, "groq", groq.Name())

	cfg.GeminiAPIKey = "gm-test"
	client, provider, err = ClientFromConfig(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderGemini, provider)
	assert.IsType(t, &gemini.Client{}, client)

	cfg.Provider = config.ProviderAnthropic
	cfg.AnthropicAPIKey = "sk-ant-test"
	client, _, err = ClientFromConfig(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &anthropic.Client{}, client)

	cfg.Provider = config.ProviderOpenAI
	_, _, err = ClientFromConfig(ctx, cfg)
	assert.Error(t, err)
}

func requestFix(code string) dispatcher.Request {
	return dispatcher.Request{TaskType: dispatcher.TaskFix, Code: code}
}
