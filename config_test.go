package snag

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
project_key: proj_live_abc123
endpoint: https://bugs.example.com/api/v1/reports
`

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "proj_live_abc123", cfg.ProjectKey)
	assert.Equal(t, "https://bugs.example.com/api/v1/reports", cfg.Endpoint)

	assert.Equal(t, DefaultMaxConsoleLogs, cfg.Capture.MaxConsoleLogs)
	assert.Equal(t, DefaultMaxNetworkLogs, cfg.Capture.MaxNetworkLogs)
	assert.Equal(t, DefaultMaxUserActions, cfg.Capture.MaxUserActions)
	assert.Equal(t, DefaultMaxBodyBytes, cfg.Capture.MaxBodyBytes)
	assert.True(t, cfg.Capture.ConsoleEnabled())
	assert.True(t, cfg.Capture.NetworkEnabled())
	assert.True(t, cfg.Capture.ActionsEnabled())

	assert.Equal(t, DefaultRendererEndpoint, cfg.Screenshot.RendererEndpoint)
	assert.Equal(t, DefaultScreenshotWidth, cfg.Screenshot.Width)
	assert.Equal(t, DefaultScreenshotHeight, cfg.Screenshot.Height)
	assert.True(t, cfg.Screenshot.ScreenshotEnabled())

	assert.False(t, cfg.Launcher.Enabled)
	assert.Equal(t, PositionBottomRight, cfg.Launcher.Position)
	assert.Equal(t, DefaultSubmitTimeout, cfg.Timeout)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestParse_FullForm(t *testing.T) {
	data := `
project_key: proj_live_abc123
endpoint: https://bugs.example.com/api/v1/reports
app_url: https://shop.example/checkout
log_level: debug
timeout: 5s
capture:
  console: false
  network: true
  max_console_logs: 200
  max_body_bytes: 2048
screenshot:
  enabled: false
  renderer_endpoint: http://127.0.0.1:9333
  width: 1024
  height: 768
launcher:
  enabled: true
  position: top-left
reporter:
  name: QA Bot
  email: qa@example.com
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example/checkout", cfg.AppURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	assert.False(t, cfg.Capture.ConsoleEnabled())
	assert.True(t, cfg.Capture.NetworkEnabled())
	assert.True(t, cfg.Capture.ActionsEnabled())
	assert.Equal(t, 200, cfg.Capture.MaxConsoleLogs)
	assert.Equal(t, 2048, cfg.Capture.MaxBodyBytes)

	assert.False(t, cfg.Screenshot.ScreenshotEnabled())
	assert.Equal(t, "http://127.0.0.1:9333", cfg.Screenshot.RendererEndpoint)
	assert.Equal(t, 1024, cfg.Screenshot.Width)
	assert.Equal(t, 768, cfg.Screenshot.Height)

	assert.True(t, cfg.Launcher.Enabled)
	assert.Equal(t, PositionTopLeft, cfg.Launcher.Position)
	assert.Equal(t, "QA Bot", cfg.Reporter.Name)
	assert.Equal(t, "qa@example.com", cfg.Reporter.Email)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("capture: [not: a map"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing yaml")
}

func TestParse_BadTimeout(t *testing.T) {
	_, err := Parse([]byte(minimalConfig + "timeout: soon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing timeout")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &Config{
		Endpoint: "not-a-url",
		Capture:  CaptureConfig{MaxConsoleLogs: -1},
		Launcher: LauncherConfig{Position: "middle"},
		LogLevel: "loud",
		Timeout:  -time.Second,
	}

	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "project_key: required")
	assert.Contains(t, err.Error(), "endpoint: must be an absolute http(s) URL")
	assert.Contains(t, err.Error(), "max_console_logs")
	assert.Contains(t, err.Error(), "launcher.position")
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "timeout")
}

func TestValidate_ZeroCeilingsMeanDefaults(t *testing.T) {
	// Zero ceilings and dimensions are not errors; applyDefaults replaces
	// them. Only explicit negatives are rejected.
	cfg := &Config{
		ProjectKey: "proj_test",
		Endpoint:   "https://bugs.example.com/ingest",
	}
	require.NoError(t, Validate(cfg))

	cfg.applyDefaults()
	assert.Equal(t, DefaultMaxConsoleLogs, cfg.Capture.MaxConsoleLogs)
	assert.Equal(t, DefaultMaxBodyBytes, cfg.Capture.MaxBodyBytes)
	assert.Equal(t, DefaultScreenshotWidth, cfg.Screenshot.Width)

	cfg.Capture.MaxNetworkLogs = -1
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture.max_network_logs: must not be negative")
}

func TestValidate_Endpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		ok       bool
	}{
		{"https", "https://bugs.example.com/ingest", true},
		{"http", "http://127.0.0.1:8940/api/v1/reports", true},
		{"ftp", "ftp://bugs.example.com/ingest", false},
		{"relative", "/api/v1/reports", false},
		{"no host", "https://", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{ProjectKey: "proj_test", Endpoint: tt.endpoint}
			err := Validate(cfg)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoad_ValidationError(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "snag.yaml", "endpoint: https://bugs.example.com/ingest\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "project_key")
}

func TestLoad_AppliesEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, t.TempDir(), "snag.yaml", minimalConfig)

	t.Setenv("SNAG_PROJECT_KEY", "proj_from_env")
	t.Setenv("SNAG_ENDPOINT", "https://staging.example.com/ingest")
	t.Setenv("SNAG_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "proj_from_env", cfg.ProjectKey)
	assert.Equal(t, "https://staging.example.com/ingest", cfg.Endpoint)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := writeConfigFile(t, dir, ".env",
		"SNAG_PROJECT_KEY=proj_from_file\nSNAG_RENDERER_ENDPOINT=http://127.0.0.1:9444\n")
	path := writeConfigFile(t, dir, "snag.yaml", minimalConfig+"env_file: "+envPath+"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "proj_from_file", cfg.ProjectKey)
	assert.Equal(t, "http://127.0.0.1:9444", cfg.Screenshot.RendererEndpoint)
}

func TestLoad_ProcessEnvWinsOverEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := writeConfigFile(t, dir, ".env", "SNAG_PROJECT_KEY=proj_from_file\n")
	path := writeConfigFile(t, dir, "snag.yaml", minimalConfig+"env_file: "+envPath+"\n")

	t.Setenv("SNAG_PROJECT_KEY", "proj_from_process")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "proj_from_process", cfg.ProjectKey)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "snag.yaml",
		minimalConfig+"env_file: "+filepath.Join(dir, "nope.env")+"\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "env file not found")
}

func TestLoad_RejectsWorldWritable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not enforced on windows")
	}
	path := writeConfigFile(t, t.TempDir(), "snag.yaml", minimalConfig)
	require.NoError(t, os.Chmod(path, 0o666))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure permissions")
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := FindConfigFile()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)

	writeConfigFile(t, dir, "snag.yml", minimalConfig)
	name, err := FindConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "snag.yml", name)

	// snag.yaml outranks snag.yml when both are present.
	writeConfigFile(t, dir, "snag.yaml", minimalConfig)
	name, err = FindConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "snag.yaml", name)
}
