package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingDefaultIsEmpty(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(wd)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestLoadExplicitMissingFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadReadsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitmem.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: graphs/run.md\nformat: mermaid\nverbose: true\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "graphs/run.md", cfg.Output)
	assert.Equal(t, "mermaid", cfg.Format)
	assert.True(t, cfg.Verbose)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitmem.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitmem.yaml")
	require.NoError(t, os.WriteFile(path, []byte("outputs: typo.dot\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitmem.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format: svg\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestResolveOutput(t *testing.T) {
	assert.Equal(t, "given.dot", ResolveOutput("given.dot", "file.dot", "prog.gm"))
	assert.Equal(t, "file.dot", ResolveOutput("", "file.dot", "prog.gm"))
	assert.Equal(t, "prog.dot", ResolveOutput("", "", "prog.gm"))
	assert.Equal(t, "dir/prog.dot", ResolveOutput("", "", "dir/prog.gm"))
	assert.Equal(t, "noext.dot", ResolveOutput("", "", "noext"))
}

func TestResolveFormat(t *testing.T) {
	assert.Equal(t, "mermaid", ResolveFormat("mermaid", "out.dot"))
	assert.Equal(t, "mermaid", ResolveFormat("", "out.md"))
	assert.Equal(t, "mermaid", ResolveFormat("", "out.mmd"))
	assert.Equal(t, "dot", ResolveFormat("", "out.dot"))
	assert.Equal(t, "dot", ResolveFormat("", "out.gv"))
}
