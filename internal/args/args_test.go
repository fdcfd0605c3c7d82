package args_test

import (
	"io"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"github.com/CZERTAINLY/congregation/internal/args"
	"github.com/CZERTAINLY/congregation/internal/model"
)

func TestParse(t *testing.T) {
	specs, err := args.Parse("congregation", []string{
		"run", "make api", "-n", "api",
		"run", "npm start", "-d", "web", "-c", "FF8800",
		"run", "echo -n hi",
	})
	require.NoError(t, err)
	require.Equal(t, []model.TaskSpec{
		{Name: "api", Command: "make api"},
		{Command: "npm start", Dir: "web", Color: "#ff8800"},
		{Command: "echo -n hi"},
	}, specs)
}

func TestParse_Errors(t *testing.T) {
	var tests = []struct {
		scenario string
		given    []string
		title    string
		message  string
	}{
		{"empty", nil, "no tasks specified!", "please list some commands to execute using the 'run' keyword"},
		{"no keyword", []string{"echo"}, "invalid syntax", "expected 'run' or 'help' as the first argument"},
		{"no command", []string{"run"}, "invalid syntax", "expected command after 'run' keyword"},
		{"no name", []string{"run", "a", "run", "b", "-n"}, "invalid syntax (in task 2)", "expected task name after -n"},
		{"no dir", []string{"run", "a", "-d"}, "invalid syntax (in task 1)", "expected directory after -d"},
		{"no color", []string{"run", "a", "-c"}, "invalid syntax (in task 1)", "expected color after -c"},
		{"hash color", []string{"run", "a", "-c", "#ff8800"}, "invalid syntax (in task 1)", "invalid color '#ff8800'"},
		{"short color", []string{"run", "a", "-c", "fff"}, "invalid syntax (in task 1)", "invalid color 'fff'"},
		{"bad color", []string{"run", "a", "-c", "gg0000"}, "invalid syntax (in task 1)", "invalid color 'gg0000'"},
		{
			"unquoted",
			[]string{"run", "echo", "hello"},
			"invalid syntax (in task 1)",
			"expected -n <name>, -d <dir>, -c <color> or run after command, got 'hello'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			_, err := args.Parse("congregation", tt.given)
			var diag *args.Error
			require.ErrorAs(t, err, &diag)
			require.Equal(t, tt.title, diag.Title)
			require.Equal(t, tt.message, diag.Message)
		})
	}
}

func TestParse_Help(t *testing.T) {
	for _, given := range [][]string{{"help"}, {"--help"}, {"run", "a", "-h"}} {
		_, err := args.Parse("congregation", given)
		require.ErrorIs(t, err, args.ErrHelp, given)
	}
}

func TestError_Render(t *testing.T) {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)

	_, err := args.Parse("congregation", nil)
	var diag *args.Error
	require.ErrorAs(t, err, &diag)
	require.Equal(t, `no tasks specified!

please list some commands to execute using the 'run' keyword:
│ congregation run 'echo hello'

note: run 'congregation help' for more information
`, diag.Render(r))

	_, err = args.Parse("congregation", []string{"run", "a", "-c"})
	require.ErrorAs(t, err, &diag)
	require.Equal(t, `invalid syntax (in task 1)
expected color after -c

note: color syntax: RRGGBB (hex)

      if you have a # symbol, remove it
`, diag.Render(r))
}

func TestUsage(t *testing.T) {
	u := args.Usage("cg")
	require.Contains(t, u, "Usage: cg [flags] <task> [<task> ...]")
	require.Contains(t, u, "run <command> [-d <dir>] [-n <name>] [-c <rrggbb>]")
}
