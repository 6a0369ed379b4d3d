package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skybi/verisuite/internal/verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRenderer struct {
	raw []byte
}

func (r staticRenderer) Render(_ *verifier.Result, _ string) ([]byte, error) {
	return r.raw, nil
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "123412341234_Jane Doe.pdf", Filename("123412341234", "Jane Doe"))
}

func TestFileExporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	exporter := NewFileExporter(staticRenderer{raw: []byte("%PDF-")}, dir)

	name, err := exporter.Export(&verifier.Result{Name: "Jane Doe"}, "123412341234")
	require.NoError(t, err)
	assert.Equal(t, "123412341234_Jane Doe.pdf", name)

	raw, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-"), raw)
}
