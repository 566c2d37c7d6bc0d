package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadProfile(t *testing.T) {
	t.Parallel()

	path := writeProfile(t, `
patterns:
  - 'Data/.*\.dcb$'
  - '\.xml$'
out: ./extracted
workers: 8
overwrite: true
`)

	profile, err := loadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{`Data/.*\.dcb$`, `\.xml$`}, profile.Patterns)
	assert.Equal(t, "./extracted", profile.Out)
	assert.Equal(t, 8, profile.Workers)
	assert.True(t, profile.Overwrite)
}

func TestLoadProfileRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	path := writeProfile(t, "patterns: []\nbogus: true\n")
	_, err := loadProfile(path)
	assert.Error(t, err)
}

func TestLoadProfileMissingFile(t *testing.T) {
	t.Parallel()

	_, err := loadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
