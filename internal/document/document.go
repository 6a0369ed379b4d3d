package document

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/skybi/verisuite/internal/verifier"
)

// Renderer renders a verification result into a document
type Renderer interface {
	// Render produces the raw document bytes for the given result
	Render(result *verifier.Result, subjectID string) ([]byte, error)
}

// Filename derives the deterministic artifact name for a verification result
func Filename(subjectID, displayName string) string {
	return fmt.Sprintf("%s_%s.pdf", subjectID, displayName)
}

// FileExporter renders verification results using a Renderer and writes the artifacts into a directory
type FileExporter struct {
	renderer Renderer
	dir      string
}

// NewFileExporter creates a new file-writing exporter
func NewFileExporter(renderer Renderer, dir string) *FileExporter {
	return &FileExporter{
		renderer: renderer,
		dir:      dir,
	}
}

// Export renders the given result and writes the artifact into the export directory.
// It returns the name of the produced artifact.
func (exporter *FileExporter) Export(result *verifier.Result, subjectID string) (string, error) {
	raw, err := exporter.renderer.Render(result, subjectID)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(exporter.dir, 0o755); err != nil {
		return "", err
	}
	name := Filename(subjectID, result.Name)
	if err := os.WriteFile(filepath.Join(exporter.dir, name), raw, 0o644); err != nil {
		return "", err
	}
	return name, nil
}
