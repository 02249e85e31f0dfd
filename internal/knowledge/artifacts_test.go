package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifacts_WriteThenLoad(t *testing.T) {
	dir := t.TempDir()
	in := map[string]string{
		"App.tsx":              "export default function App() {}\n",
		"components/Chart.tsx": "export default function Chart() {}\n",
		"styles.css":           ".chart { color: red; }\n",
	}
	written, err := WriteArtifacts(dir, in)
	require.NoError(t, err)
	require.Len(t, written, 3)
	assert.Equal(t, filepath.Join(dir, "App.tsx"), written[0])

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# notes"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules", "x"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "x", "index.js"), []byte("x"), 0644))

	got, err := LoadArtifacts(dir)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestWriteArtifacts_RejectsEscape(t *testing.T) {
	_, err := WriteArtifacts(t.TempDir(), map[string]string{"../evil.tsx": "x"})
	assert.Error(t, err)
}

func TestLoadArtifacts_MissingDir(t *testing.T) {
	_, err := LoadArtifacts(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
