package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	job_scheduler "github.com/TimeWtr/job_scheduler"
	_const "github.com/TimeWtr/job_scheduler/const"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
engine:
  name: corp
  instance_id: node-001
coordinator: gorm
database:
  driver: sqlite
  dsn: ":memory:"
job:
  random_max_start_time_ms: 500
jobs:
  purge:
    schedule: "0 0 * * * *"
    type: cron
  heartbeat:
    startup: manual
    requires_registration: false
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "corp", cfg.Engine.Name)
	assert.Equal(t, "node-001", cfg.Engine.InstanceID)
	assert.False(t, cfg.GeneratedInstanceID)
	assert.True(t, cfg.Engine.Registered)
	assert.Equal(t, ":8080", cfg.HTTP.Address)

	params := cfg.Parameters()
	assert.Equal(t, int64(500), params.GetInt64(_const.ParamRandomMaxStartTimeMs))
	assert.Equal(t, int64(_const.DefaultLongOperationThresholdMs), params.GetInt64(_const.ParamLongOperationThresholdMs))
	assert.False(t, params.GetBool(_const.ParamSynchronizeAllJobs))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Engine.Name)
	assert.NotEmpty(t, cfg.Engine.InstanceID)
	assert.True(t, cfg.GeneratedInstanceID)
	assert.Equal(t, CoordinatorGorm, cfg.Coordinator)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, TraceExporterNone, cfg.Tracing.Exporter)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("JOB_SCHEDULER_HTTP_ADDRESS", ":9090")
	t.Setenv("JOB_SCHEDULER_JOB_SYNCHRONIZE_ALL_JOBS", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Address)
	assert.True(t, cfg.Parameters().GetBool(_const.ParamSynchronizeAllJobs))
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{
			name:    "unknown coordinator",
			content: "coordinator: zookeeper\n",
		},
		{
			name:    "redis without address",
			content: "coordinator: redis\n",
		},
		{
			name:    "unknown schedule type",
			content: "jobs:\n  purge:\n    type: weekly\n",
		},
		{
			name:    "unknown tracing exporter",
			content: "tracing:\n  exporter: jaeger\n",
		},
		{
			name:    "sample ratio out of range",
			content: "tracing:\n  sample_ratio: 1.5\n",
		},
		{
			name:    "unknown startup type",
			content: "jobs:\n  purge:\n    startup: sometimes\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Definition(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	defaults := job_scheduler.JobDefaults{
		ScheduleType:         _const.ScheduleTypeInterval,
		Schedule:             "60000",
		RequiresRegistration: true,
	}

	def := cfg.Definition("purge", defaults)
	assert.Equal(t, "purge", def.Name)
	assert.Equal(t, _const.ScheduleTypeCron, def.ScheduleType)
	assert.Equal(t, "0 0 * * * *", def.Schedule)
	assert.Equal(t, _const.StartupAutomatic, def.StartupType)
	assert.True(t, def.RequiresRegistration)

	def = cfg.Definition("heartbeat", defaults)
	assert.Equal(t, _const.ScheduleTypeInterval, def.ScheduleType)
	assert.Equal(t, "60000", def.Schedule)
	assert.Equal(t, _const.StartupManual, def.StartupType)
	assert.False(t, def.RequiresRegistration)

	def = cfg.Definition("unknown", defaults)
	assert.Equal(t, "60000", def.Schedule)
	assert.Equal(t, _const.StartupAutomatic, def.StartupType)
}

func TestParameters_Watch(t *testing.T) {
	path := writeConfig(t, testConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	params := cfg.Parameters()
	changed := make(chan struct{}, 1)
	params.Watch(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	updated := strings.Replace(testConfig, "  random_max_start_time_ms: 500\n",
		"  random_max_start_time_ms: 500\n  synchronize_all_jobs: true\n", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	assert.Eventually(t, func() bool {
		return params.GetBool(_const.ParamSynchronizeAllJobs)
	}, 5*time.Second, 20*time.Millisecond)
	<-changed
}
