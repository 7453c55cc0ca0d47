package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoadLayers_OverlayAndSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("FRONTEND", "")
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
server:
  port: ":3000"
  cors_origins: ["${FRONTEND}"]
jwt:
  secret: ${JWT_SECRET}
db:
  host: localhost
  port: 5432
`)
	writeFile(t, dir, "staging.yaml", `
db:
  host: db.staging
`)
	writeFile(t, dir, "secrets.env", `
# comment
JWT_SECRET="from-file"
export FRONTEND=https://app.example
`)

	layers, err := LoadLayers("staging", dir)
	require.NoError(t, err)

	db := layers["db"].(map[string]any)
	assert.Equal(t, "db.staging", db["host"])
	assert.Equal(t, 5432, db["port"])
	assert.Equal(t, "from-file", layers["jwt"].(map[string]any)["secret"])
	assert.Equal(t, []any{"https://app.example"}, layers["server"].(map[string]any)["cors_origins"])
}

func TestLoadLayers_ProcessEnvWinsAndUnknownStays(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "a: ${TASKDESK_TEST_A}\nb: ${TASKDESK_TEST_MISSING}\n")
	writeFile(t, dir, "secrets.env", "TASKDESK_TEST_A=file\n")
	t.Setenv("TASKDESK_TEST_A", "env")

	layers, err := LoadLayers("", dir)
	require.NoError(t, err)
	assert.Equal(t, "env", layers["a"])
	assert.Equal(t, "${TASKDESK_TEST_MISSING}", layers["b"])
}

func TestLoadLayers_MissingBase(t *testing.T) {
	_, err := LoadLayers("local", t.TempDir())
	assert.ErrorContains(t, err, "base.yaml")
}

func TestDecode(t *testing.T) {
	var out struct {
		Server struct {
			Port string `yaml:"port"`
		} `yaml:"server"`
	}
	require.NoError(t, Decode(map[string]any{"server": map[string]any{"port": ":8080"}}, &out))
	assert.Equal(t, ":8080", out.Server.Port)
}

func TestLoadLayers_BareDollarStaysLiteral(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "password: pa$word\n")

	layers, err := LoadLayers("", dir)
	require.NoError(t, err)
	assert.Equal(t, "pa$word", layers["password"])
}

func TestReadEnvFile_InlineComments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "secrets.env", `JWT_SECRET=abc # rotated
QUOTED="x" # c
HASHED="a # b"
SINGLE='y' # note
FRAGMENT=abc#def
`)

	vars, err := readEnvFile(filepath.Join(dir, "secrets.env"))
	require.NoError(t, err)
	assert.Equal(t, "abc", vars["JWT_SECRET"])
	assert.Equal(t, "x", vars["QUOTED"])
	assert.Equal(t, "a # b", vars["HASHED"])
	assert.Equal(t, "y", vars["SINGLE"])
	assert.Equal(t, "abc#def", vars["FRAGMENT"])
}
