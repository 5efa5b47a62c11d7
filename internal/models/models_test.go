package models

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sentsplit "github.com/jamesainslie/go-sentsplit"
)

func writeModelDir(t *testing.T, root, name, meta string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if meta != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, MetaFile), []byte(meta), 0o600))
	}
	return dir
}

func segment(t *testing.T, m sentsplit.Model, text string) []string {
	t.Helper()
	spans, err := m.Sentences(context.Background(), text)
	require.NoError(t, err)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Text
	}
	return out
}

func TestRegistry_Builtins(t *testing.T) {
	r := Registry{Dir: t.TempDir()}

	for _, name := range []string{"en_core_web_sm", "sentencizer"} {
		t.Run(name, func(t *testing.T) {
			m, err := r.Load(name, LoadOptions{})
			require.NoError(t, err)
			defer func() { _ = m.Close() }()

			assert.IsType(t, &sentsplit.RuleSegmenter{}, m)
			assert.Equal(t, []string{"Hello world.", "Bye."}, segment(t, m, "Hello world. Bye."))
		})
	}
	assert.Equal(t, []string{"en_core_web_sm", "sentencizer"}, Builtins())
}

func TestRegistry_NotFound(t *testing.T) {
	r := Registry{Dir: t.TempDir()}

	_, err := r.Load("xx_missing_model", LoadOptions{})
	require.ErrorIs(t, err, sentsplit.ErrModelNotFound)
	assert.Contains(t, err.Error(), "xx_missing_model")

	_, err = r.Load("", LoadOptions{})
	assert.ErrorIs(t, err, sentsplit.ErrModelNotFound)
}

func TestRegistry_RulesFromDir(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "custom", "kind: rules\nlang: en\nabbreviations: [abt, \"approx.\"]\n")

	m, err := Registry{Dir: root}.Load("custom", LoadOptions{Threshold: 0.5})
	require.NoError(t, err)

	assert.Equal(t, []string{"It was abt. five.", "Done."}, segment(t, m, "It was abt. five. Done."))
}

func TestRegistry_DirShadowsBuiltin(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "sentencizer", "kind: rules\nabbreviations: [abt]\n")

	m, err := Registry{Dir: root}.Load("sentencizer", LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"abt. one."}, segment(t, m, "abt. one."))
}

func TestRegistry_PathName(t *testing.T) {
	dir := writeModelDir(t, t.TempDir(), "by-path", "kind: rules\n")

	m, err := Registry{}.Load(dir, LoadOptions{})
	require.NoError(t, err)
	assert.IsType(t, &sentsplit.RuleSegmenter{}, m)
}

func TestRegistry_SaTMissingFiles(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "sat", "kind: sat\nmodel: nope.onnx\n")

	_, err := Registry{Dir: root}.Load("sat", LoadOptions{})
	require.ErrorIs(t, err, sentsplit.ErrModelNotFound)
	assert.Contains(t, err.Error(), "nope.onnx")
}

func TestRegistry_InvalidMeta(t *testing.T) {
	tests := []struct {
		name string
		meta string
	}{
		{name: "unknown kind", meta: "kind: neural\n"},
		{name: "unknown key", meta: "kind: rules\nabbrevs: [x]\n"},
		{name: "bad threshold", meta: "kind: sat\nthreshold: 2\n"},
		{name: "not yaml", meta: "kind: [rules\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeModelDir(t, root, "bad", tt.meta)

			_, err := Registry{Dir: root}.Load("bad", LoadOptions{})
			assert.ErrorIs(t, err, sentsplit.ErrInvalidModel)
		})
	}
}

func TestParseMeta_Defaults(t *testing.T) {
	m, err := parseMeta([]byte("name: sat-3l\n"))
	require.NoError(t, err)

	assert.Equal(t, KindSaT, m.Kind)
	assert.Equal(t, DefaultModelFile, m.Model)
	assert.Equal(t, DefaultTokenizerFile, m.Tokenizer)
	assert.Zero(t, m.Threshold)

	m, err = parseMeta(nil)
	require.NoError(t, err)
	assert.Equal(t, KindSaT, m.Kind)
}

func TestRegistry_SaTFromDir(t *testing.T) {
	modelPath := os.Getenv("SENTSPLIT_TEST_MODEL_DIR")
	if modelPath == "" {
		t.Skip("SENTSPLIT_TEST_MODEL_DIR not set")
	}
	if _, err := os.Stat(filepath.Join(modelPath, DefaultModelFile)); err != nil {
		t.Skip("model files not available")
	}

	m, err := Registry{}.Load(modelPath, LoadOptions{PoolSize: 1})
	require.NoError(t, err)
	defer func() { _ = m.Close() }()

	got := segment(t, m, "Hello world. This is a test.")
	assert.NotEmpty(t, got)
}
