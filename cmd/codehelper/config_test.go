package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.env")
	t.Setenv("CODEHELPER_CONFIG", path)
	for _, ck := range allConfigKeys {
		t.Setenv(ck.Key, "")
	}
	return path
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "*****", maskSecret("short"))
	assert.Equal(t, "gsk_*******cdef", maskSecret("gsk_12345abcdef"))
}

func TestSaveLoadConfigFile(t *testing.T) {
	path := useTempConfig(t)

	in := map[string]string{
		"GROQ_API_KEY":        "gsk_abc",
		"CODEHELPER_PROVIDER": "groq",
		"ZZ_EXTRA":            "1",
		"EMPTY":               "",
	}
	require.NoError(t, saveConfigFile(in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Less(t, strings.Index(text, "CODEHELPER_PROVIDER="), strings.Index(text, "GROQ_API_KEY="),
		"known keys are written in display order")
	assert.NotContains(t, text, "EMPTY=")

	out, err := loadConfigFile()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"GROQ_API_KEY":        "gsk_abc",
		"CODEHELPER_PROVIDER": "groq",
		"ZZ_EXTRA":            "1",
	}, out)
}

func TestLoadConfigFile_Missing(t *testing.T) {
	useTempConfig(t)
	values, err := loadConfigFile()
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestEffectiveValue_EnvWins(t *testing.T) {
	useTempConfig(t)
	t.Setenv("GEMINI_API_KEY", "from-env")
	assert.Equal(t, "from-env", effectiveValue("GEMINI_API_KEY", map[string]string{"GEMINI_API_KEY": "from-file"}))
	assert.Equal(t, "from-file", effectiveValue("GROQ_API_KEY", map[string]string{"GROQ_API_KEY": "from-file"}))
}

func TestNonInteractiveSetup(t *testing.T) {
	useTempConfig(t)
	var out bytes.Buffer

	err := runNonInteractiveSetup(&out, map[string]string{}, "", "k")
	assert.Error(t, err)
	err = runNonInteractiveSetup(&out, map[string]string{}, "mystery", "k")
	assert.Error(t, err)
	err = runNonInteractiveSetup(&out, map[string]string{}, "groq", "")
	assert.Error(t, err)

	require.NoError(t, runNonInteractiveSetup(&out, map[string]string{}, "Groq", "gsk_key"))
	values, err := loadConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "groq", values["CODEHELPER_PROVIDER"])
	assert.Equal(t, "gsk_key", values["GROQ_API_KEY"])
}

func TestWizard_Run(t *testing.T) {
	useTempConfig(t)

	// provider, bad-prefix key, good key, no telegram, yes slack, two tokens
	input := strings.Join([]string{
		"groq",
		"wrong",
		"gsk_good",
		"n",
		"y",
		"xoxb-bot",
		"xapp-app",
	}, "\n") + "\n"

	var out bytes.Buffer
	w := newWizard(strings.NewReader(input), &out, map[string]string{})
	require.NoError(t, w.run())
	require.NoError(t, saveAndSummarize(w))

	values, err := loadConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "groq", values["CODEHELPER_PROVIDER"])
	assert.Equal(t, "gsk_good", values["GROQ_API_KEY"])
	assert.Equal(t, "xoxb-bot", values["SLACK_BOT_TOKEN"])
	assert.Equal(t, "xapp-app", values["SLACK_APP_TOKEN"])
	assert.Empty(t, values["TELEGRAM_BOT_TOKEN"])
	assert.Equal(t, 4, w.changed)
	assert.Contains(t, out.String(), `Expected prefix "gsk_"`)
}

func TestWizard_RejectsUnknownProvider(t *testing.T) {
	useTempConfig(t)
	var out bytes.Buffer
	w := newWizard(strings.NewReader("mystery\nopenai\n"), &out, map[string]string{})
	got, err := w.askProvider()
	require.NoError(t, err)
	assert.Equal(t, "openai", got)
	assert.Contains(t, out.String(), `Unknown provider "mystery"`)
}
