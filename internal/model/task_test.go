package model_test

import (
	"errors"
	"testing"

	"github.com/CZERTAINLY/congregation/internal/model"
	"github.com/stretchr/testify/require"
)

func TestPaletteColor(t *testing.T) {
	for i := range 3 * model.PaletteSize {
		require.Equal(t, model.PaletteColor(i%model.PaletteSize), model.PaletteColor(i))
	}
	seen := map[string]struct{}{}
	for i := range model.PaletteSize {
		seen[model.PaletteColor(i)] = struct{}{}
	}
	require.Len(t, seen, model.PaletteSize)
}

func TestDefaultName(t *testing.T) {
	require.Equal(t, "./app", model.DefaultName(0, "npm run dev", "./app", 32))
	require.Equal(t, "#2: npm run dev", model.DefaultName(1, "npm run dev", "", 32))
	name := model.DefaultName(0, "a very long command line that goes on", "", 10)
	require.Equal(t, "#1: a ver…", name)
}

func TestNormalize(t *testing.T) {
	specs, err := model.Normalize([]model.TaskSpec{
		{Command: "echo a"},
		{Command: "echo b", Name: "bee", Color: "FF8800"},
		{Command: "echo c", Dir: "/tmp", Color: "9"},
	}, 32)
	require.NoError(t, err)
	require.NoError(t, model.ValidateSpecs(specs))

	require.Equal(t, 0, specs[0].Index)
	require.Equal(t, "#1: echo a", specs[0].Name)
	require.Equal(t, model.PaletteColor(0), specs[0].Color)

	require.Equal(t, "bee", specs[1].Name)
	require.Equal(t, "#ff8800", specs[1].Color)

	require.Equal(t, "/tmp", specs[2].Name)
	require.Equal(t, "9", specs[2].Color)

	_, err = model.Normalize([]model.TaskSpec{{Command: "  "}}, 32)
	require.True(t, errors.Is(err, model.ErrInvalidSpecs))

	_, err = model.Normalize([]model.TaskSpec{{Command: "ls", Color: "zzzzzz"}}, 32)
	require.ErrorIs(t, err, model.ErrInvalidSpecs)
}

func TestValidateSpecs(t *testing.T) {
	require.ErrorIs(t, model.ValidateSpecs(nil), model.ErrInvalidSpecs)
	require.ErrorIs(t, model.ValidateSpecs([]model.TaskSpec{{Index: 1, Command: "ls"}}), model.ErrInvalidSpecs)
	require.NoError(t, model.ValidateSpecs([]model.TaskSpec{{Index: 0, Command: "ls"}}))
}
