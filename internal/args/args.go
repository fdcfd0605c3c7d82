// Package args parses task definitions from the command line:
//
//	run <command> [-n <name>] [-d <dir>] [-c <rrggbb>] [run ...]
package args

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/CZERTAINLY/congregation/internal/model"
)

// ErrHelp is returned when a help flag appears where a task was expected.
var ErrHelp = errors.New("help requested")

const keyword = "run"

// Error is a diagnostic meant for a human. It is printed instead of logged.
type Error struct {
	Title    string
	Message  string
	Examples []string
	Notes    []string
}

func (e *Error) Error() string {
	return e.Title + ": " + e.Message
}

// Render formats the diagnostic:
//
//	title
//	message:
//	│ example
//
//	note: first note
//
//	      second note
func (e *Error) Render(r *lipgloss.Renderer) string {
	var (
		red   = r.NewStyle().Foreground(lipgloss.Color("1"))
		green = r.NewStyle().Foreground(lipgloss.Color("2"))
		grey  = r.NewStyle().Foreground(lipgloss.Color("8"))
		sb    strings.Builder
	)

	sb.WriteString(red.Render(e.Title) + "\n")
	if len(e.Examples) == 0 {
		sb.WriteString(e.Message + "\n")
	} else {
		sb.WriteString("\n" + e.Message + ":\n")
		for _, ex := range e.Examples {
			sb.WriteString(grey.Render("│") + " " + ex + "\n")
		}
	}

	const prefix = "note:"
	for i, note := range e.Notes {
		p := strings.Repeat(" ", len(prefix))
		if i == 0 {
			p = green.Render(prefix)
		}
		sb.WriteString("\n" + p + " " + grey.Render(note) + "\n")
	}
	return sb.String()
}

// Parse turns argv (program name and global flags already removed) into task
// specs. Index, Name and Color defaults are left to model.Normalize; Color is
// stored as "#rrggbb" when given.
func Parse(name string, argv []string) ([]model.TaskSpec, error) {
	var specs []model.TaskSpec
	for len(argv) > 0 {
		if isHelp(argv[0]) {
			return nil, ErrHelp
		}
		spec, rest, err := parseTask(argv, len(specs))
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
		argv = rest
	}

	if len(specs) == 0 {
		return nil, &Error{
			Title:    "no tasks specified!",
			Message:  "please list some commands to execute using the 'run' keyword",
			Examples: []string{name + " run 'echo hello'"},
			Notes:    []string{fmt.Sprintf("run '%s help' for more information", name)},
		}
	}
	return specs, nil
}

func parseTask(argv []string, count int) (model.TaskSpec, []string, error) {
	var spec model.TaskSpec
	if argv[0] != keyword {
		return spec, nil, &Error{
			Title:   "invalid syntax",
			Message: "expected 'run' or 'help' as the first argument",
		}
	}
	if len(argv) < 2 {
		return spec, nil, &Error{
			Title:   "invalid syntax",
			Message: "expected command after 'run' keyword",
		}
	}
	spec.Command = argv[1]
	argv = argv[2:]

	title := fmt.Sprintf("invalid syntax (in task %d)", count+1)
	for len(argv) > 0 && argv[0] != keyword {
		opt := argv[0]
		var value string
		switch opt {
		case "-n", "-d", "-c":
			if len(argv) < 2 {
				return spec, nil, missingValue(title, opt)
			}
			value = argv[1]
			argv = argv[2:]
		case "-h", "--help":
			return spec, nil, ErrHelp
		default:
			return spec, nil, &Error{
				Title:   title,
				Message: fmt.Sprintf("expected -n <name>, -d <dir>, -c <color> or run after command, got '%s'", opt),
				Notes: []string{
					"ensure that the command goes after the 'run' keyword",
					"if your command includes spaces, please wrap it in quotes",
					fmt.Sprintf("the command you provided is: `%s`", spec.Command),
				},
			}
		}

		switch opt {
		case "-n":
			spec.Name = value
		case "-d":
			spec.Dir = value
		case "-c":
			color, err := parseColor(value)
			if err != nil {
				return spec, nil, &Error{
					Title:   title,
					Message: fmt.Sprintf("invalid color '%s'", value),
					Notes:   []string{"color syntax: RRGGBB (hex)"},
				}
			}
			spec.Color = color
		}
	}
	return spec, argv, nil
}

func missingValue(title, opt string) *Error {
	e := &Error{Title: title}
	switch opt {
	case "-n":
		e.Message = "expected task name after -n"
	case "-d":
		e.Message = "expected directory after -d"
	case "-c":
		e.Message = "expected color after -c"
		e.Notes = []string{
			"color syntax: RRGGBB (hex)",
			"if you have a # symbol, remove it",
		}
	}
	return e
}

func parseColor(s string) (string, error) {
	if strings.HasPrefix(s, "#") {
		return "", fmt.Errorf("invalid color %q", s)
	}
	return model.ParseHexColor(s)
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

// Usage returns the task syntax help for the program called name.
func Usage(name string) string {
	return fmt.Sprintf(`Run multiple parallel tasks with grouped output

Usage: %[1]s [flags] <task> [<task> ...]

Task syntax:
  run <command> [-d <dir>] [-n <name>] [-c <rrggbb>]

  Options:
    <command>     The shell command to run (wrap in quotes if it contains spaces)
    -d <dir>      Working directory for the task (defaults to the current working directory)
    -n <name>     Name of the task (used in task header, defaults to working directory or command)
    -c <rrggbb>   Hex RGB color for task name (e.g., ff8800, defaults to a palette color)

Example:
  %[1]s run 'make api' -n api run 'npm start' -d web -c ff8800
`, name)
}
