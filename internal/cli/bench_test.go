package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeBench(t *testing.T, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := ExecuteBench(context.Background(), args, Streams{In: strings.NewReader(""), Out: &out, Err: &errOut}, BuildInfo{})
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func TestExecuteBench_RuleModels(t *testing.T) {
	gold := writeFile(t, "Dr. Smith arrived.\nHe sat down.\n\nWait! Really?\nYes.\n\n")

	res := executeBench(t, "--gold", gold, "--model-dir", t.TempDir(), "--model", "sentencizer,en_core_web_sm", "--tolerance", "0")

	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Loaded 2 documents")
	for _, name := range []string{"sentencizer", "en_core_web_sm"} {
		assert.Regexp(t, name+`\s+0\.000\s+1\.00\s+1\.00\s+1\.00\s+1\.00`, res.stdout)
	}
}

func TestExecuteBench_CustomAbbreviations(t *testing.T) {
	modelDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(modelDir, "abt"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "abt", "meta.yaml"), []byte("kind: rules\nabbreviations: [abt]\n"), 0o600))
	gold := writeFile(t, "It was abt. five.\nDone.\n\n")

	res := executeBench(t, "--gold", gold, "--model-dir", modelDir, "--model", "abt,sentencizer")

	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Regexp(t, `abt\s+0\.000\s+1\.00\s+1\.00`, res.stdout)
	assert.Regexp(t, `sentencizer\s+0\.000\s+0\.50\s+1\.00`, res.stdout)
}

func TestExecuteBench_Errors(t *testing.T) {
	gold := writeFile(t, "One.\nTwo.\n\n")

	res := executeBench(t)
	assert.Equal(t, ExitUsage, res.code)
	assert.Contains(t, res.stderr, "gold")

	res = executeBench(t, "--gold", gold, "--sweep", "--sweep-step", "0")
	assert.Equal(t, ExitUsage, res.code)

	res = executeBench(t, "--gold", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Equal(t, ExitError, res.code)

	res = executeBench(t, "--gold", gold, "--model-dir", t.TempDir(), "--model", "no_such_model")
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, "no_such_model")
}
