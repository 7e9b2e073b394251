package loc

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

var defaultExcludes = []string{"/test/", "docs", "htmlcov", "README.md", "README.rst", ".eggs"}

func TestCount(t *testing.T) {
	root := writeTree(t, map[string]string{
		"setup.py":             "a\nb\n",
		"sample/core.py":       "1\n2\n3\n4\n",
		"sample/__init__.py":   "",
		"sample/Util.PY":       "x\n",
		"sample/test/t.py":     "skipped\n",
		"docs/conf.py":         "skipped\n",
		"htmlcov/x.py":         "skipped\n",
		"notes.txt":            "not python\n",
		"tests/test_core.py":   "a\nb\nc\n",
		"pkg.eggs/whatever.py": "skipped\n",
	})

	report, err := Count(root, Options{Pattern: "*py", Excludes: defaultExcludes})
	require.NoError(t, err)

	assert.Equal(t, []FileCount{
		{Path: "./sample/__init__.py", Lines: 0},
		{Path: "./sample/Util.PY", Lines: 1},
		{Path: "./setup.py", Lines: 2},
		{Path: "./tests/test_core.py", Lines: 3},
		{Path: "./sample/core.py", Lines: 4},
	}, report.Files)
	assert.Equal(t, 10, report.Total)
}

func TestCountNoTrailingNewline(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": "one\ntwo"})
	report, err := Count(root, Options{Pattern: "*.py"})
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, 1, report.Files[0].Lines)
}

func TestCountBadPattern(t *testing.T) {
	_, err := Count(t.TempDir(), Options{Pattern: "["})
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	r := &Report{
		Files: []FileCount{{Path: "./a.py", Lines: 3}, {Path: "./b.py", Lines: 12}},
		Total: 15,
	}
	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf))
	assert.Equal(t, "       3 ./a.py\n      12 ./b.py\n      15 total\n", buf.String())
}
