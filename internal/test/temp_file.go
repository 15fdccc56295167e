package test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// CreateTempFile writes content to a file that lives until the end of
// the test.
func CreateTempFile(t testing.TB, byts []byte) string {
	t.Helper()

	fpath := filepath.Join(t.TempDir(), "stream.ts")
	err := os.WriteFile(fpath, byts, 0o644)
	require.NoError(t, err)

	return fpath
}
