package envutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	values := map[string]string{
		"LOTDESK_TEST_PLAIN":  "http://localhost:8080",
		"LOTDESK_TEST_QUOTED": "two words # not a comment",
	}
	require.NoError(t, WriteDotEnv(path, values, false))

	t.Setenv("LOTDESK_TEST_PLAIN", "")
	os.Unsetenv("LOTDESK_TEST_PLAIN")
	t.Setenv("LOTDESK_TEST_QUOTED", "")
	os.Unsetenv("LOTDESK_TEST_QUOTED")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "http://localhost:8080", os.Getenv("LOTDESK_TEST_PLAIN"))
	assert.Equal(t, "two words # not a comment", os.Getenv("LOTDESK_TEST_QUOTED"))
}

func TestWriteDotEnvRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, WriteDotEnv(path, map[string]string{"A": "1"}, false))
	assert.Error(t, WriteDotEnv(path, map[string]string{"A": "2"}, false))
	assert.NoError(t, WriteDotEnv(path, map[string]string{"A": "2"}, true))
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nexport LOTDESK_TEST_KEEP=file\nLOTDESK_TEST_SINGLE='a b'\n"), 0o600))

	t.Setenv("LOTDESK_TEST_KEEP", "env")
	t.Setenv("LOTDESK_TEST_SINGLE", "")
	os.Unsetenv("LOTDESK_TEST_SINGLE")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "env", os.Getenv("LOTDESK_TEST_KEEP"))
	assert.Equal(t, "a b", os.Getenv("LOTDESK_TEST_SINGLE"))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLoadDotEnvUnterminatedQuote(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BROKEN=\"open\n"), 0o600))
	assert.Error(t, LoadDotEnv(path))
}
