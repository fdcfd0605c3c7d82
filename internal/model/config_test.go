package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/congregation/internal/model"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	yml := `
version: 0
mode: grouped
grace_period: 1500ms
max_parallel: 2
max_line: 4096
shell: ["bash", "-c"]
tasks:
  - command: npm run dev
    dir: ./app
  - command: npm run start
    name: api
    color: ff8800
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, model.ModeGrouped, cfg.Mode)
	require.Equal(t, 2, cfg.MaxParallel)
	require.Equal(t, 4096, cfg.MaxLine)
	require.Equal(t, []string{"bash", "-c"}, cfg.Shell)
	require.Equal(t, model.DefaultNameLength, cfg.NameLength)
	require.False(t, cfg.NoColor)
	require.Len(t, cfg.Tasks, 2)
	require.Equal(t, "npm run dev", cfg.Tasks[0].Command)
	require.Equal(t, "./app", cfg.Tasks[0].Dir)
	require.Equal(t, "api", cfg.Tasks[1].Name)
	require.Equal(t, "ff8800", cfg.Tasks[1].Color)

	grace, err := cfg.Grace()
	require.NoError(t, err)
	require.Equal(t, 1500*time.Millisecond, grace)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := model.LoadConfig(strings.NewReader("version: 0\n"))
	require.NoError(t, err)
	require.Equal(t, model.ModeAuto, cfg.Mode)
	require.Equal(t, "5s", cfg.GracePeriod)
	require.Equal(t, model.DefaultShell(), cfg.Shell)
	require.Empty(t, cfg.Tasks)
	require.NotNil(t, cfg.Tasks)
}

func TestLoadConfig_Fail(t *testing.T) {
	cases := []struct {
		scenario string
		given    string
	}{
		{"unknown mode", "mode: sideways\n"},
		{"negative parallelism", "max_parallel: -1\n"},
		{"negative max line", "max_line: -5\n"},
		{"bad grace period", "grace_period: soon\n"},
		{"unordered grace period", "grace_period: 30s1m\n"},
		{"repeated grace period unit", "grace_period: 1s1s\n"},
		{"empty grace period", "grace_period: \"\"\n"},
		{"empty command", "tasks:\n  - command: \"\"\n"},
		{"missing command", "tasks:\n  - name: x\n"},
		{"unknown field", "colour: red\n"},
		{"bad color", "tasks:\n  - command: ls\n    color: orange\n"},
	}

	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			_, err := model.LoadConfig(strings.NewReader(tc.given))
			require.Error(t, err)
			details := model.ConfigErrDetails(err)
			require.NotEmpty(t, details)
			for _, d := range details {
				require.NotEmpty(t, d.Code)
				require.NotEmpty(t, d.Message)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := model.ParseMode("interleaved")
	require.NoError(t, err)
	require.Equal(t, model.ModeInterleaved, m)

	_, err = model.ParseMode("random")
	require.Error(t, err)
}

func TestLoadConfig_GracePeriodAgreesWithParser(t *testing.T) {
	for _, given := range []string{"5s", "1500ms", "1h2m3s4ms", "0s", "30s1m", "1s1s", "1ms1s", "5", "soon"} {
		t.Run(given, func(t *testing.T) {
			_, parseErr := model.ParseDuration(given)
			cfg, loadErr := model.LoadConfig(strings.NewReader("grace_period: \"" + given + "\"\n"))
			if parseErr != nil {
				require.Error(t, loadErr)
				return
			}
			require.NoError(t, loadErr)
			_, err := cfg.Grace()
			require.NoError(t, err)
		})
	}
}
