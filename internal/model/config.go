package model

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

type Mode string

const (
	ModeAuto        Mode = "auto"
	ModeGrouped     Mode = "grouped"
	ModeInterleaved Mode = "interleaved"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAuto, ModeGrouped, ModeInterleaved:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q: possible values (auto,grouped,interleaved)", s)
	}
}

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
}

type Config struct {
	Version     int        `json:"version" yaml:"version"`
	Mode        Mode       `json:"mode" yaml:"mode"`
	GracePeriod string     `json:"grace_period" yaml:"grace_period"`
	MaxParallel int        `json:"max_parallel" yaml:"max_parallel"`
	MaxLine     int        `json:"max_line" yaml:"max_line"` // bytes, 0 is unbounded
	Shell       []string   `json:"shell,omitempty" yaml:"shell,omitempty"`
	NameLength  int        `json:"name_length" yaml:"name_length"`
	NoColor     bool       `json:"no_color" yaml:"no_color"`
	Verbose     bool       `json:"verbose" yaml:"verbose"`
	Tasks       []TaskSpec `json:"tasks" yaml:"tasks"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig(_ context.Context) Config {
	return Config{
		Version:     0,
		Mode:        ModeAuto,
		GracePeriod: "5s",
		Shell:       DefaultShell(),
		NameLength:  DefaultNameLength,
		Tasks:       []TaskSpec{},
	}
}

// DefaultShell is the argv prefix the command line is appended to.
func DefaultShell() []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd.exe", "/C"}
	}
	return []string{"sh", "-c"}
}

// Grace returns the parsed grace period.
func (c Config) Grace() (time.Duration, error) {
	return ParseDuration(c.GracePeriod)
}

// LoadConfig validates YAML from r against the CUE schema and decodes it.
// Fields missing from the file get their schema defaults.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("congregation.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),
		cue.Concrete(true),
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}
	if len(out.Shell) == 0 {
		out.Shell = DefaultShell()
	}
	if out.Tasks == nil {
		out.Tasks = []TaskSpec{}
	}
	return out, nil
}
