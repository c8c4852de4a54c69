package config

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	assert.NilError(t, c.Validate())

	tg, err := c.ParsedTarget()
	assert.NilError(t, err)
	assert.Equal(t, tg, ir.Target{Arch: ir.ArchXR17032, System: ir.SystemNone})
	assert.DeepEqual(t, c.Optimize.Passes, []string{"localopt", "algsimp", "tdce"})
}

func TestParseKeepsDefaults(t *testing.T) {
	c, err := Parse([]byte(`
[target]
name = "x64-windows"
version = "~1.1"

[codegen]
parallelism = 2
`))
	assert.NilError(t, err)

	assert.Equal(t, c.Target.Name, "x64-windows")
	assert.Equal(t, c.Target.Version, "~1.1")
	assert.Equal(t, c.Codegen.Parallelism, 2)
	assert.Equal(t, c.Log.Level, "info")
	assert.Check(t, is.Len(c.Optimize.Passes, 3))
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"target", "[target]\nname = \"-linux\"\n", "target.name"},
		{"constraint", "[target]\nversion = \"not a version\"\n", "target.version"},
		{"pass", "[optimize]\npasses = [\"gvn\"]\n", `unknown pass "gvn"`},
		{"parallelism", "[codegen]\nparallelism = -1\n", "codegen.parallelism"},
		{"level", "[log]\nlevel = \"loud\"\n", "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.text))
			assert.Check(t, errors.Is(err, errors.ErrInvalidConfig))
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := Parse([]byte("[target\n"))
	assert.ErrorContains(t, err, "decode")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "iris.toml")
	assert.NilError(t, os.WriteFile(path, []byte("[optimize]\npasses = []\n\n[log]\nlevel = \"debug\"\n"), 0o644))

	c, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, len(c.Optimize.Passes), 0)
	assert.Equal(t, c.Log.Level, "debug")

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.ErrorContains(t, err, "read config")
}

func TestString(t *testing.T) {
	s := Default().String()
	assert.Check(t, is.Contains(s, `name = "xr17032-none"`))
	assert.Check(t, is.Contains(s, "[codegen]"))
}
