package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kapu/lead-analyzer-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LOG_FILE", filepath.Join(t.TempDir(), "cli.log"))
	t.Setenv("BROWSER_ENABLED", "false")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("WEBHOOK_URL", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExpertsList(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "experts", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "CONFIGURED")
	assert.Contains(t, out, "Expert 1")
	assert.Contains(t, out, "Expert 3")
	assert.Contains(t, out, "false")
}

func TestExpertsActivateUnknown(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "experts", "activate", "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown expert id")
}

func TestExpertsShow(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "experts", "show", "2")
	require.NoError(t, err)

	var e domain.Expert
	require.NoError(t, json.Unmarshal([]byte(out), &e))
	assert.Equal(t, "2", e.ID)
	assert.Equal(t, domain.ToneCasual, e.Data.CommunicationTone)
}

func TestHistoryEmpty(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "history", "list")
	require.NoError(t, err)
	assert.Equal(t, "No analyses yet.\n", out)

	_, err = run(t, "history", "show", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid history id")
}

func TestExportToFile(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "backup.json")

	out, err := run(t, "export", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 0 analyses")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var b domain.Backup
	require.NoError(t, json.Unmarshal(raw, &b))
	assert.Len(t, b.Experts, 3)
	assert.Empty(t, b.History)
}

func TestAnalyzeRequiresConfiguredExpert(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "analyze", "https://instagram.com/bob")
	require.Error(t, err)
}
