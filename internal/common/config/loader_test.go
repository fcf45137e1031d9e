package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: finhub-test
apis:
  genai:
    base_url: http://localhost:9000
workers:
  submit-transaction:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "finhub-test", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https", cfg.Workday.Scheme)
	assert.Equal(t, "v41.0", cfg.Workday.APIVersion)
	assert.Equal(t, 60000, cfg.Workday.Timeout)
	assert.Equal(t, 500, cfg.Workday.MemoMaxLength)
	assert.Equal(t, 60, cfg.Shell.SessionTTL)
	assert.Equal(t, 3, cfg.APIs.GenAI.MaxRetries)
	assert.False(t, cfg.Database.Postgres.Enabled())
	assert.False(t, cfg.Database.Redis.Enabled())

	worker := GetWorkerConfig(cfg, "submit-transaction")
	assert.True(t, worker.Enabled)
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.Equal(t, 3, worker.MaxRetries)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("FINHUB_TEST_GENAI_URL", "http://genai.internal:8000")
	t.Setenv("WORKDAY_USER", "isu_finhub")
	t.Setenv("WORKDAY_PASSWORD", "from-env")

	path := writeConfig(t, `
apis:
  genai:
    base_url: ${FINHUB_TEST_GENAI_URL}
workday:
  host: wd2-impl-services1.workday.com
  tenant: acme_preview
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://genai.internal:8000", cfg.APIs.GenAI.BaseURL)

	creds := cfg.Workday.IntegrationCredentials()
	assert.Equal(t, "isu_finhub", creds.User)
	assert.Equal(t, "from-env", creds.Secret)
	assert.True(t, creds.Complete())
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing genai url",
			body:    "app:\n  name: x\n",
			wantErr: "apis.genai.base_url is required",
		},
		{
			name: "camunda enabled without broker",
			body: `
apis:
  genai:
    base_url: http://localhost:9000
camunda:
  enabled: true
`,
			wantErr: "camunda.broker_address is required",
		},
		{
			name: "postgres without database",
			body: `
apis:
  genai:
    base_url: http://localhost:9000
database:
  postgres:
    host: localhost
    user: finhub
`,
			wantErr: "database.postgres.database is required",
		},
		{
			name: "bad workday scheme",
			body: `
apis:
  genai:
    base_url: http://localhost:9000
workday:
  scheme: ftp
`,
			wantErr: "workday.scheme must be http or https",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestIsWorkerEnabled(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"extract-intent": {Enabled: false},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "extract-intent"))
	assert.True(t, IsWorkerEnabled(cfg, "submit-transaction"))
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
